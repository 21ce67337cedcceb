// Package textpat holds the pure pattern-matching rules used to pull
// version strings, firmware designators and content-type labels out of link
// text, URLs and surrounding prose.
//
// Version and firmware numbers share lexical shape ("1.005" vs "5.xx" or a
// bare "5"), so every extractor here is an explicit ordered rule list
// evaluated top to bottom with early exit. The order encodes precedence:
// explicit labels beat bare numeric guesses, and URL evidence is checked
// before free text because URLs are terser and less ambiguous.
//
// All functions are total: no match yields an empty string (or false), never
// an error.
package textpat

import (
	"regexp"
	"strconv"
	"strings"

	"gamedex/pkg/models"
)

// versionSource names which input a version rule inspects.
type versionSource int

const (
	srcHref versionSource = iota
	srcText
	srcContext
)

// versionRule is one step of the version cascade. The pattern's first two
// capture groups are the major and minor parts; they are joined with a dot,
// which also normalizes "1_005" to "1.005".
type versionRule struct {
	source  versionSource
	pattern *regexp.Regexp
}

var (
	// Labeled form: v1.005, V2_010, game_1.005. The leading underscore
	// trigger covers filenames like "game_1_005.zip".
	versionLabeledRe = regexp.MustCompile(`[vV_](\d{1,2})[._](\d{3})`)
	// Bare form: 1.005 with no marker at all. Only trusted in URLs.
	versionBareRe = regexp.MustCompile(`(\d{1,2})\.(\d{3})`)
	// Context form: only an explicit v/V marker is trusted in prose.
	versionContextRe = regexp.MustCompile(`[vV](\d{1,2})[._](\d{3})`)

	// Trailing size unit directly after a numeric match means the number was
	// a file size, not a version. RE2 has no lookahead, so the guard is a
	// separate check against the text following the match.
	sizeUnitRe = regexp.MustCompile(`^\s?(?i:GB|MB|KB)`)
)

// versionRules is the cascade for ExtractVersion, in priority order.
var versionRules = []versionRule{
	{srcHref, versionLabeledRe},
	{srcText, versionLabeledRe},
	{srcHref, versionBareRe},
	{srcContext, versionContextRe},
}

// ExtractVersion extracts a semantic version string ("1.005") from the link
// text, href, or enclosing section text, in that precedence order (href
// first). Returns "" when nothing matches.
func ExtractVersion(text, href, contextText string) string {
	inputs := map[versionSource]string{
		srcHref:    href,
		srcText:    text,
		srcContext: contextText,
	}
	for _, rule := range versionRules {
		input := inputs[rule.source]
		if input == "" {
			continue
		}
		if v := firstVersionMatch(rule.pattern, input); v != "" {
			return v
		}
	}
	return ""
}

// firstVersionMatch returns the first occurrence of pattern in s that is not
// immediately followed by a size unit, joined as "major.minor".
func firstVersionMatch(pattern *regexp.Regexp, s string) string {
	for _, loc := range pattern.FindAllStringSubmatchIndex(s, -1) {
		// loc[1] is the end of the whole match; loc[2:4]/loc[4:6] the groups.
		if sizeUnitRe.MatchString(s[loc[1]:]) {
			continue
		}
		return s[loc[2]:loc[3]] + "." + s[loc[4]:loc[5]]
	}
	return ""
}

// firmwareContextRules matches firmware designators in prose, highest
// confidence first: an explicit fw/firmware label, then fix groupings, then
// backport groupings ("backpork" is a recurring typo on the site).
var firmwareContextRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:fw|firmware)\s*[:.]?\s*(\d+(?:\.[\dxX]+)?)`),
	regexp.MustCompile(`(?i)\bfix\s+(?:for\s+)?(?:fw\s+)?(\d+(?:\.[\dxX]+)?)`),
	regexp.MustCompile(`(?i)\b(?:backport|backpork)\s+(?:for\s+)?(?:fw\s+)?(\d+(?:\.[\dxX]+)?)`),
}

// ExtractFirmwareFromContext extracts a firmware designator ("5.50", "4.xx",
// "5") from free text. Returns "" when nothing matches.
func ExtractFirmwareFromContext(text string) string {
	for _, re := range firmwareContextRules {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// firmwareURLRules matches firmware designators embedded in URLs:
// "game-5.xx.zip", "fix_4.50", then marker forms like "bp5" or "fw_4".
var firmwareURLRules = []struct {
	pattern   *regexp.Regexp
	transform func(m []string) string
}{
	{
		regexp.MustCompile(`(?i)[_/-](\d)[._](xx|\d{2})`),
		func(m []string) string { return m[1] + "." + strings.ToLower(m[2]) },
	},
	{
		regexp.MustCompile(`(?i)(?:bp|fw|backport)[\s_-]?(\d)`),
		func(m []string) string { return m[1] },
	},
}

// ExtractFirmwareFromURL extracts a firmware designator from a URL string.
// Returns "" when nothing matches.
func ExtractFirmwareFromURL(href string) string {
	for _, rule := range firmwareURLRules {
		if m := rule.pattern.FindStringSubmatch(href); m != nil {
			return rule.transform(m)
		}
	}
	return ""
}

var firmwareShapeRe = regexp.MustCompile(`^\d\.[xX]+$`)

// LooksLikeFirmware reports whether a value captured as a "version" is more
// plausibly a firmware designator: "5.xx" forms, bare single digits, and
// small numbers below 10. "05" and friends are excluded - a leading zero
// followed by another digit is version shorthand, not firmware.
func LooksLikeFirmware(ver string) bool {
	if ver == "" {
		return false
	}
	if firmwareShapeRe.MatchString(ver) {
		return true
	}
	if len(ver) == 1 && ver[0] >= '0' && ver[0] <= '9' {
		return true
	}
	if len(ver) >= 2 && ver[0] == '0' && ver[1] >= '0' && ver[1] <= '9' {
		return false
	}
	if n, err := strconv.ParseFloat(ver, 64); err == nil && n < 10 {
		return true
	}
	return false
}

// typeRules maps type keywords to link types, checked in order. "dlc" wins
// over "update" so "DLC update pack" classifies as DLC; backport outranks
// fix because backport sections routinely mention the fix they bundle.
var typeRules = []struct {
	keyword  string
	linkType models.LinkType
}{
	{"dlc", models.LinkTypeDLC},
	{"update", models.LinkTypeUpdate},
	{"backport", models.LinkTypeBackport},
	{"backpork", models.LinkTypeBackport},
	{"fix", models.LinkTypeFix},
}

// MatchLinkType reports the first type keyword found in text, if any.
func MatchLinkType(text string) (models.LinkType, bool) {
	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.linkType, true
		}
	}
	return "", false
}

// DetectLinkType infers a content type from combined link/section text.
// Defaults to game when no keyword matches.
func DetectLinkType(text string) models.LinkType {
	if t, ok := MatchLinkType(text); ok {
		return t
	}
	return models.LinkTypeGame
}

var (
	digitGroupRe    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	digitDotDigitRe = regexp.MustCompile(`^(\d+)\.\d`)
	workingPhraseRe = regexp.MustCompile(`(?i)\bwork(?:ing|s)\s+(?:on|with)?[^\n]{0,80}`)
	sectionMarkerRe = regexp.MustCompile(`(?i)\b(?:v\d|version|fw|firmware|backport|backpork|fix)\b`)
)

// FirmwareFloorXX normalizes a raw firmware value to its floor form: a
// digit-dot-digit value collapses to "<int>.xx" ("5.50" -> "5.xx"); anything
// else passes through unchanged.
func FirmwareFloorXX(raw string) string {
	if m := digitDotDigitRe.FindStringSubmatch(raw); m != nil {
		return m[1] + ".xx"
	}
	return raw
}

// StatedFirmware extracts the page-level compatibility statement: a phrase
// beginning "Working"/"Works on" followed by one or more digit groups. With
// several groups the highest integer part wins - the page states "works on X
// and higher", so the highest explicitly listed number is the most
// defensible floor. (Backport grouping uses the minimum instead; the two
// normalizations are intentionally distinct.)
func StatedFirmware(content string) string {
	// A digit-less phrase like "working on it" must not shadow a later
	// "Works on 5.50", so scan every match and keep the first that
	// carries numbers.
	for _, phrase := range workingPhraseRe.FindAllString(content, -1) {
		maxFloor := -1
		for _, g := range digitGroupRe.FindAllString(phrase, -1) {
			intPart := g
			if i := strings.IndexByte(g, '.'); i >= 0 {
				intPart = g[:i]
			}
			if n, err := strconv.Atoi(intPart); err == nil && n > maxFloor {
				maxFloor = n
			}
		}
		if maxFloor >= 0 {
			return strconv.Itoa(maxFloor) + ".xx"
		}
	}
	return ""
}

// IsSectionHeaderSentence reports whether a line of text reads like a
// version/firmware section header worth treating as link context.
func IsSectionHeaderSentence(text string) bool {
	return sectionMarkerRe.MatchString(text)
}
