package extract

import (
	"encoding/xml"
	"io"
	"regexp"
	"strings"
	"time"

	"gamedex/pkg/models"
	"gamedex/pkg/utils"
)

// --- XML structs for the supplemental RSS feed ---

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string        `xml:"title"`
	Link      string        `xml:"link"`
	PubDate   string        `xml:"pubDate"`
	Enclosure *rssEnclosure `xml:"enclosure"`
	// content:encoded carries the rendered post body, which usually holds
	// the cover image when no enclosure is present.
	Content string `xml:"encoded"`
}

type rssEnclosure struct {
	URL string `xml:"url,attr"`
}

var feedImgRe = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)

// rssDateLayouts: RFC1123-style pubDate variants seen in the wild.
var rssDateLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// Feed parses the supplemental RSS feed into a title-keyed map used to
// backfill missing cover/date on crawled games, or as the sole data source
// when the listing crawl yields nothing.
func Feed(r io.Reader) (map[string]models.FeedEntry, error) {
	var doc rssDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "decoding feed XML")
	}

	entries := make(map[string]models.FeedEntry, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		title := CleanTitle(item.Title)
		if title == "" || item.Link == "" {
			continue
		}
		if _, exists := entries[title]; exists {
			continue // first occurrence wins
		}

		entry := models.FeedEntry{
			Title: title,
			URL:   item.Link,
			Date:  normalizeRSSDate(item.PubDate),
		}
		if item.Enclosure != nil && item.Enclosure.URL != "" {
			entry.Cover = item.Enclosure.URL
		} else if m := feedImgRe.FindStringSubmatch(item.Content); m != nil {
			entry.Cover = m[1]
		}
		entries[title] = entry
	}
	return entries, nil
}

// normalizeRSSDate converts an RSS pubDate to YYYY-MM-DD, falling back to
// the generic date layouts, then to the raw string.
func normalizeRSSDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range rssDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if norm := NormalizeDate(raw); norm != "" {
		return norm
	}
	return raw
}
