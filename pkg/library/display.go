package library

import (
	"fmt"
	"regexp"
	"strings"

	"gamedex/pkg/models"
)

// Bucket groups a game's download links under a display host name.
type Bucket struct {
	Name  string
	Links []models.DownloadLink
}

// bucketNames is the fallback ordering when hostOrder names none or only
// some of the buckets.
var bucketNames = []string{"akira", "viking", "onefichier", "other"}

// OrderedBuckets returns the game's non-empty link buckets in the user's
// preferred host order. Buckets absent from hostOrder follow in the default
// order; unknown names are ignored.
func OrderedBuckets(detail *models.GameDetail, hostOrder []string) []Bucket {
	byName := map[string][]models.DownloadLink{
		"akira":      detail.Akira,
		"viking":     detail.Viking,
		"onefichier": detail.OneFichier,
		"other":      detail.Other,
	}

	var buckets []Bucket
	taken := make(map[string]bool)
	appendBucket := func(name string) {
		if taken[name] {
			return
		}
		links, ok := byName[name]
		if !ok {
			return
		}
		taken[name] = true
		if len(links) > 0 {
			buckets = append(buckets, Bucket{Name: name, Links: links})
		}
	}

	for _, name := range hostOrder {
		appendBucket(name)
	}
	for _, name := range bucketNames {
		appendBucket(name)
	}
	return buckets
}

// ppsaRegionRe matches "PPSA01234 – EUR" product-code/region pairs as they
// appear in link context strings (the dash is an en dash on the site).
var ppsaRegionRe = regexp.MustCompile(`(PPSA\d+) – ([A-Z]{3})`)

// LinkLabel renders a download link for display. The game's product code,
// when known, replaces the generic anchor text; the extracted version or
// firmware floor follows in parentheses.
func LinkLabel(detail *models.GameDetail, link models.DownloadLink) string {
	label := link.Version
	if label == "" {
		label = "Download Link"
	}
	if link.Type == models.LinkTypeGame {
		if pairs := ppsaRegionRe.FindAllStringSubmatch(link.Version, -1); pairs != nil {
			parts := make([]string, len(pairs))
			for i, m := range pairs {
				parts[i] = fmt.Sprintf("%s (%s)", m[1], m[2])
			}
			label = strings.Join(parts, " ")
		} else if detail.PPSA != "" {
			label = detail.PPSA
		}
	}

	switch {
	case link.ExtractedVersion != "":
		return fmt.Sprintf("%s - (v%s)", label, link.ExtractedVersion)
	case link.ExtractedFirmware != "":
		return fmt.Sprintf("%s - (FW %s)", label, link.ExtractedFirmware)
	default:
		return label
	}
}
