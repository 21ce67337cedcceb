// Package classify turns raw anchors from a game detail page into canonical
// DownloadLink records, reconciling the signals found in the link text, the
// URL, section headers and page-global statements.
package classify

import (
	"strings"

	"gamedex/pkg/models"
	"gamedex/pkg/textpat"
)

// hostRules maps known host-domain substrings to hosts, checked in order.
// "vikingfile" must be tested before the bare "viki" rule below; the
// viki-vs-viking substring exclusion is a known heuristic weakness (any
// unrelated domain containing "viki" classifies as viki) kept deliberately
// rather than silently hardened.
var hostRules = []struct {
	substr string
	host   models.Host
}{
	{"akirabox", models.HostAkira},
	{"vikingfile", models.HostViking},
	{"1fichier.com", models.HostOneFichier},
	{"letsupload", models.HostLetsUpload},
	{"mediafire", models.HostMediafire},
	{"gofile", models.HostGofile},
	{"rootz", models.HostRootz},
}

// IdentifyHost maps an href to a known host via substring match.
// Returns HostUnknown for anything unrecognized; such links are filtered
// out before classification, not emitted as "other".
func IdentifyHost(href string) models.Host {
	lower := strings.ToLower(href)
	for _, rule := range hostRules {
		if strings.Contains(lower, rule.substr) {
			return rule.host
		}
	}
	if strings.Contains(lower, "viki") && !strings.Contains(lower, "viking") {
		return models.HostViki
	}
	return models.HostUnknown
}

// LinkContext is everything gathered around a single anchor: its href, its
// visible text, the text immediately before it in the containing block, the
// nearest enclosing paragraph text, and the nearest preceding section-header
// sentence (from an up-to-10-ancestor backward scan).
type LinkContext struct {
	Href          string
	Text          string
	PrecedingText string
	ContextText   string
	SectionText   string
}

// PageContext is the page-level state computed once per detail page: the
// first version/firmware found in the main content block, plus the per-href
// type and firmware hints built during the pre-pass over content anchors.
type PageContext struct {
	GlobalVersion  string
	GlobalFirmware string
	LinkTypes      map[string]models.LinkType
	LinkFirmware   map[string]string
}

const defaultLinkLabel = "Download Link"

// Classify produces the canonical DownloadLink for one anchor. Deterministic:
// identical inputs always yield identical output. The caller is expected to
// have filtered unknown hosts already; Classify still guards and returns
// ok=false for them.
func Classify(link LinkContext, page PageContext) (models.DownloadLink, bool) {
	host := IdentifyHost(link.Href)
	if host == models.HostUnknown {
		return models.DownloadLink{}, false
	}

	// Type: an explicit pre-pass hint for this href beats keyword inference
	// over the combined surrounding text.
	linkType, hinted := page.LinkTypes[link.Href]
	if !hinted {
		combined := link.Text + " " + link.PrecedingText + " " + link.SectionText
		linkType = textpat.DetectLinkType(combined)
	}

	// Display string: the richest context available, falling back to the
	// anchor's own text, then a generic label.
	version := strings.TrimSpace(link.ContextText)
	if version == "" {
		version = strings.TrimSpace(link.Text)
	}
	if version == "" {
		version = defaultLinkLabel
	}

	extractedVersion := textpat.ExtractVersion(version, link.Href, link.SectionText)
	if extractedVersion == "" {
		extractedVersion = page.GlobalVersion
	}

	extractedFirmware := page.LinkFirmware[link.Href]
	if extractedFirmware == "" {
		extractedFirmware = textpat.ExtractFirmwareFromContext(link.Text)
	}
	if extractedFirmware == "" {
		extractedFirmware = textpat.ExtractFirmwareFromURL(link.Href)
	}
	if extractedFirmware == "" {
		extractedFirmware = page.GlobalFirmware
	}

	// Firmware numbers routinely get mis-captured as versions because both
	// match the same lexical shape. For fix/backport links with a version
	// but no firmware, reinterpret a firmware-shaped version.
	if (linkType == models.LinkTypeBackport || linkType == models.LinkTypeFix) &&
		extractedVersion != "" && extractedFirmware == "" &&
		textpat.LooksLikeFirmware(extractedVersion) {
		extractedFirmware = extractedVersion
		extractedVersion = ""
	}

	// A page states one firmware floor for the base game; a per-link value
	// disagreeing with the page-global one is noise.
	if linkType == models.LinkTypeGame && extractedFirmware != "" &&
		page.GlobalFirmware != "" && extractedFirmware != page.GlobalFirmware {
		extractedFirmware = page.GlobalFirmware
	}

	return models.DownloadLink{
		Link:              link.Href,
		Host:              host,
		Version:           version,
		ExtractedVersion:  extractedVersion,
		ExtractedFirmware: extractedFirmware,
		Type:              linkType,
	}, true
}
