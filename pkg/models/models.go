package models

import "time"

// Host identifies the file-hosting provider a download link points to.
type Host string

const (
	HostUnknown    Host = ""
	HostAkira      Host = "akira"
	HostViking     Host = "viking"
	HostOneFichier Host = "onefichier"
	HostLetsUpload Host = "letsupload"
	HostMediafire  Host = "mediafire"
	HostGofile     Host = "gofile"
	HostRootz      Host = "rootz"
	HostViki       Host = "viki"
	HostOther      Host = "other"
)

// String implements fmt.Stringer for logging
func (h Host) String() string {
	if h == "" {
		return "unknown"
	}
	return string(h)
}

// LinkType classifies what a download link contains.
type LinkType string

const (
	LinkTypeGame     LinkType = "game"
	LinkTypeUpdate   LinkType = "update"
	LinkTypeFix      LinkType = "fix"
	LinkTypeDLC      LinkType = "dlc"
	LinkTypeBackport LinkType = "backport"
)

// DownloadLink is one classified download anchor from a game detail page.
// Version holds the raw context string shown to the user; ExtractedVersion
// and ExtractedFirmware hold the normalized values pulled out of it (or out
// of the URL / surrounding prose). ExtractedFirmware is only meaningful for
// fix/backport links, or when a page-global firmware applies to a game link.
type DownloadLink struct {
	Link              string   `json:"link"`
	Host              Host     `json:"host"`
	Version           string   `json:"version"`
	ExtractedVersion  string   `json:"extracted_version,omitempty"`
	ExtractedFirmware string   `json:"extracted_firmware,omitempty"`
	Type              LinkType `json:"type"`
}

// GameSummary is one entry from a listing page.
type GameSummary struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
	Cover string `json:"cover,omitempty"`
}

// GameDetail is the fully scraped record for a single game. It starts life
// as a GameSummary-shaped placeholder during the crawl and is populated in
// place by the page extractor the first time the game is opened.
type GameDetail struct {
	GameSummary

	Akira      []DownloadLink `json:"akira,omitempty"`
	Viking     []DownloadLink `json:"viking,omitempty"`
	OneFichier []DownloadLink `json:"onefichier,omitempty"`
	Other      []DownloadLink `json:"other,omitempty"`

	Voice           string `json:"voice,omitempty"`
	Subtitles       string `json:"subtitles,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Size            string `json:"size,omitempty"`
	Firmware        string `json:"firmware,omitempty"` // page-level display string, "N.xx"
	Description     string `json:"description,omitempty"`
	Password        string `json:"password,omitempty"`
	ScreenLanguages string `json:"screen_languages,omitempty"`
	Guide           string `json:"guide,omitempty"`
	PPSA            string `json:"ppsa,omitempty"`

	Screenshots []string `json:"screenshots,omitempty"` // at most 2, document order

	ScrapedAt time.Time `json:"scraped_at,omitempty"`
}

// Scraped reports whether the detail page has been extracted yet.
func (g *GameDetail) Scraped() bool {
	return !g.ScrapedAt.IsZero()
}

// LinkCount returns the total number of classified links across all hosts.
func (g *GameDetail) LinkCount() int {
	return len(g.Akira) + len(g.Viking) + len(g.OneFichier) + len(g.Other)
}

// AddLink buckets a classified link into the matching host slice. Everything
// that is not akira/viking/onefichier lands in Other.
func (g *GameDetail) AddLink(link DownloadLink) {
	switch link.Host {
	case HostAkira:
		g.Akira = append(g.Akira, link)
	case HostViking:
		g.Viking = append(g.Viking, link)
	case HostOneFichier:
		g.OneFichier = append(g.OneFichier, link)
	default:
		g.Other = append(g.Other, link)
	}
}

// ListingResult is what a single listing-page fetch yields. EndOfList marks
// a 404 response, which the crawl controller treats as normal termination
// rather than an error.
type ListingResult struct {
	Games     []GameSummary
	EndOfList bool
}

// FeedEntry is one item from the supplemental feed, keyed by title in the
// feed result map. Used to backfill missing cover/date on crawled games.
type FeedEntry struct {
	Title string
	URL   string
	Cover string
	Date  string
}
