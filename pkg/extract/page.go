// Package extract transforms fetched documents into normalized game records:
// detail pages into GameDetail (links classified per anchor, page metadata
// pulled from title/meta/content), listing pages into GameSummary slices via
// ordered structural strategies, and the supplemental RSS feed into a
// title-keyed entry map.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"gamedex/pkg/classify"
	"gamedex/pkg/models"
	"gamedex/pkg/textpat"
)

// contentSelector targets the main article body on a detail page.
const contentSelector = ".entry-content, .post-content, article .content"

// blockSelector is the set of elements treated as "blocks" when gathering
// context around an anchor.
const blockSelector = "p, div, li, h1, h2, h3, h4, h5, h6"

const (
	maxContextTextLen  = 250 // longer context is a whole section, not a label
	maxHeaderLineLen   = 80  // header-like lines are short
	maxSectionTextLen  = 160
	maxSectionAncestry = 10
	maxScreenshots     = 2
	maxGuideLen        = 500
)

var (
	voiceRe     = regexp.MustCompile(`(?i)voice\s*:\s*([^|]+)`)
	subtitlesRe = regexp.MustCompile(`(?i)subtitles?\s*:\s*([^|]+)`)
	notesRe     = regexp.MustCompile(`(?i)notes?\s*:\s*([^|(]+)`)
	sizeRe      = regexp.MustCompile(`(?i)size\s*:\s*([^|]+)`)
	passwordRe  = regexp.MustCompile(`(?i)password\s*[:=]\s*(\S+)`)
	languagesRe = regexp.MustCompile(`(?i)languages?\s*:\s*([^|\n]+)`)
	ppsaRe      = regexp.MustCompile(`PPSA\d+`)
	guideHdrRe  = regexp.MustCompile(`(?i)installation\s+guide|how\s+to\s+install`)

	// Filenames that are never screenshots.
	junkImageRe = regexp.MustCompile(`(?i)icon|logo|banner|avatar|badge|button|sponsor|[-_/]ads?[-_.]`)

	titleNoiseSuffixes = []string{" Download", " ISO", " Torrent"}
)

// GamePage extracts one GameDetail from a fetched detail page. It never
// fails: missing fields stay empty. It is deterministic and side-effect
// free, so running it twice on the same document yields identical results.
func GamePage(doc *goquery.Document, pageURL string, log *logrus.Entry) *models.GameDetail {
	base, _ := url.Parse(pageURL)
	detail := &models.GameDetail{}
	detail.URL = pageURL

	content := doc.Find(contentSelector).First()
	contentText := collapse(content.Text())

	// Page-global version/firmware: first match in the main content block.
	// The firmware floor collapses "5.50" style values to "5.xx".
	page := classify.PageContext{
		GlobalVersion:  textpat.ExtractVersion(contentText, "", ""),
		GlobalFirmware: textpat.FirmwareFloorXX(textpat.ExtractFirmwareFromContext(contentText)),
		LinkTypes:      map[string]models.LinkType{},
		LinkFirmware:   map[string]string{},
	}

	// Pre-pass: per-href type and firmware hints from the text immediately
	// preceding each content-area link and from the nearest preceding
	// header-like block.
	content.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" {
			return
		}
		hint := strings.TrimSpace(precedingText(a) + " " + headerLineBefore(a))
		if hint == "" {
			return
		}
		if t, ok := textpat.MatchLinkType(hint); ok {
			if _, exists := page.LinkTypes[href]; !exists {
				page.LinkTypes[href] = t
			}
		}
		if fw := textpat.ExtractFirmwareFromContext(hint); fw != "" {
			if _, exists := page.LinkFirmware[href]; !exists {
				page.LinkFirmware[href] = fw
			}
		}
	})

	// Main pass: every anchor on the page in document order (sidebar and
	// footer mirrors included), first occurrence of an href wins.
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		if classify.IdentifyHost(href) == models.HostUnknown {
			return
		}

		link, ok := classify.Classify(classify.LinkContext{
			Href:          href,
			Text:          collapse(a.Text()),
			PrecedingText: precedingText(a),
			ContextText:   contextText(a),
			SectionText:   sectionText(a),
		}, page)
		if ok {
			detail.AddLink(link)
		}
	})

	// Title metadata: labeled fields packed into the <title> element.
	title := doc.Find("title").First().Text()
	detail.Voice = firstGroup(voiceRe, title)
	detail.Subtitles = firstGroup(subtitlesRe, title)
	detail.Notes = firstGroup(notesRe, title)
	detail.Size = firstGroup(sizeRe, title)

	metaDesc := doc.Find(`meta[name="description"]`).AttrOr("content", "")
	detail.Description = strings.TrimSpace(metaDesc)
	detail.Title = CleanTitle(firstNonEmpty(metaDesc, title))

	detail.Cover = absolutize(base, doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))
	detail.Firmware = textpat.StatedFirmware(contentText)
	detail.Password = firstGroup(passwordRe, contentText)
	detail.ScreenLanguages = firstGroup(languagesRe, contentText)
	detail.PPSA = ppsaRe.FindString(title + " " + contentText)
	detail.Guide = guideText(content, log)
	detail.Date = pageDate(doc)
	detail.Screenshots = screenshots(content, base, detail.Cover)

	if log != nil {
		log.WithFields(logrus.Fields{
			"links":           detail.LinkCount(),
			"global_version":  page.GlobalVersion,
			"global_firmware": page.GlobalFirmware,
		}).Debug("Extracted detail page")
	}
	return detail
}

// CleanTitle strips the trailing "Download ..."/"ISO ..."/"Torrent ..."
// noise the site appends to titles and descriptions.
func CleanTitle(raw string) string {
	cleaned := raw
	for _, sep := range titleNoiseSuffixes {
		if i := strings.Index(cleaned, sep); i >= 0 {
			cleaned = cleaned[:i]
		}
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return strings.TrimSpace(raw)
	}
	return cleaned
}

// TitleFromSlug derives a fallback title from a detail-page URL slug:
// "/elden-ring-ps5/" becomes "ELDEN RING".
func TitleFromSlug(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 {
		return ""
	}
	slug := segs[len(segs)-1]
	slug = strings.TrimSuffix(slug, "-ps5")
	slug = strings.ReplaceAll(slug, "-", " ")
	return strings.ToUpper(strings.TrimSpace(slug))
}

// collapse trims and normalizes all runs of whitespace to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// absolutize resolves ref against base; returns ref unchanged when either
// side fails to parse.
func absolutize(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// precedingText gathers the text immediately before an anchor within its
// containing block, stopping at the previous anchor or block boundary.
func precedingText(a *goquery.Selection) string {
	if len(a.Nodes) == 0 {
		return ""
	}
	var parts []string
	for n := a.Nodes[0].PrevSibling; n != nil; n = n.PrevSibling {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				return collapse(strings.Join(parts, " "))
			}
		}
		parts = append([]string{nodeText(n)}, parts...)
	}
	return collapse(strings.Join(parts, " "))
}

// nodeText returns the plain text of a node subtree.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

// headerLineBefore finds the nearest preceding header-like sibling of the
// anchor's containing block: a short, link-free line, or one that starts
// with a content-type keyword.
func headerLineBefore(a *goquery.Selection) string {
	block := a.Closest(blockSelector)
	if block.Length() == 0 {
		return ""
	}
	var found string
	block.PrevAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		text := collapse(sib.Text())
		if text == "" {
			return true // keep scanning
		}
		if sib.Find("a").Length() == 0 && len(text) <= maxHeaderLineLen {
			found = text
			return false
		}
		if startsWithTypeKeyword(text) {
			found = text
			return false
		}
		return true
	})
	return found
}

func startsWithTypeKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range []string{"game", "update", "fix", "backport", "dlc"} {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

// contextText is the nearest enclosing block's text, used as the link's
// display string. A very long block is a whole section rather than a
// per-link label, in which case the anchor's own text is a better display.
func contextText(a *goquery.Selection) string {
	block := a.Closest(blockSelector)
	if block.Length() == 0 {
		return ""
	}
	text := collapse(block.Text())
	if len(text) > maxContextTextLen {
		return ""
	}
	return text
}

// sectionText scans up to 10 ancestors for a preceding sibling whose text
// reads like a version/firmware section header sentence.
func sectionText(a *goquery.Selection) string {
	node := a
	for depth := 0; depth < maxSectionAncestry; depth++ {
		node = node.Parent()
		if node.Length() == 0 {
			return ""
		}
		var found string
		node.PrevAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
			text := collapse(sib.Text())
			if text == "" || len(text) > maxSectionTextLen {
				return true
			}
			if textpat.IsSectionHeaderSentence(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// guideText locates the installation-guide block within the content area,
// converts it to markdown and truncates it.
func guideText(content *goquery.Selection, log *logrus.Entry) string {
	var heading *goquery.Selection
	content.Find("h1, h2, h3, h4, h5, h6, strong, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if guideHdrRe.MatchString(s.Text()) {
			heading = s
			return false
		}
		return true
	})
	if heading == nil {
		return ""
	}

	// Collect the blocks following the heading until the next heading.
	var htmlParts []string
	block := heading.Closest(blockSelector)
	block.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		// Stop at h1-h6 only; hr is a divider, not a section break.
		if name := goquery.NodeName(sib); len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
			return false
		}
		if h, err := goquery.OuterHtml(sib); err == nil {
			htmlParts = append(htmlParts, h)
		}
		return true
	})
	if len(htmlParts) == 0 {
		return ""
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(strings.Join(htmlParts, "\n"))
	if err != nil {
		if log != nil {
			log.Debugf("Guide markdown conversion failed: %v", err)
		}
		markdown = collapse(strings.Join(htmlParts, " "))
	}
	markdown = strings.TrimSpace(markdown)
	if runes := []rune(markdown); len(runes) > maxGuideLen {
		markdown = string(runes[:maxGuideLen])
	}
	return markdown
}

// dateLayouts are tried in order when normalizing the page date.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
}

// pageDate reads the dedicated date element and normalizes it to
// YYYY-MM-DD. Unparseable dates leave the field empty rather than failing
// the extraction.
func pageDate(doc *goquery.Document) string {
	el := doc.Find("time.entry-date, time[datetime], .entry-date, .post-date").First()
	if el.Length() == 0 {
		return ""
	}
	raw := el.AttrOr("datetime", "")
	if raw == "" {
		raw = collapse(el.Text())
	}
	return NormalizeDate(raw)
}

// NormalizeDate converts a raw date string to YYYY-MM-DD, or "" when no
// known layout matches.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// screenshots collects up to two content-area image URLs, skipping the
// cover, obvious chrome (icons, logos, banners, ...) and tiny images.
func screenshots(content *goquery.Selection, base *url.URL, cover string) []string {
	var shots []string
	content.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		if src == "" || junkImageRe.MatchString(src) {
			return true
		}
		abs := absolutize(base, src)
		if abs == cover {
			return true
		}
		if tooSmall(img, "width") || tooSmall(img, "height") {
			return true
		}
		shots = append(shots, abs)
		return len(shots) < maxScreenshots
	})
	return shots
}

// tooSmall reports whether an explicit width/height attribute is below 100
// pixels. Missing or non-numeric attributes do not disqualify the image.
func tooSmall(img *goquery.Selection, attr string) bool {
	v, ok := img.Attr(attr)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	return err == nil && n > 0 && n < 100
}
