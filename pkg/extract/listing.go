package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"gamedex/pkg/models"
)

// listingStrategy names one structural shape a listing page can take. The
// container selector locates one element per entry; the nested selectors
// locate the entry's fields within it. An empty title selector means the
// container itself is the title anchor.
type listingStrategy struct {
	name      string
	container string
	title     string
	date      string
	cover     string
}

// listingStrategies is tried in order; the first strategy whose container
// selector matches at least one element on the page is used.
var listingStrategies = []listingStrategy{
	{"post-cards", "article.post", "a.title, h2 a, h3 a", "time", "img"},
	{"list-items", ".list-game .item, ul.game-list li", "a.title, a", ".date, time", "img"},
	{"title-links", "a.title", "", "", ""},
	{"generic-articles", "article", "h2 a, h3 a, a", "time", "img"},
}

// Listing enumerates {title, url, date, cover} summaries from a listing
// page. Entries missing a title or URL are discarded. URLs and covers are
// resolved against baseURL.
func Listing(doc *goquery.Document, baseURL string, log *logrus.Entry) []models.GameSummary {
	base, _ := url.Parse(baseURL)

	for _, strat := range listingStrategies {
		containers := doc.Find(strat.container)
		if containers.Length() == 0 {
			continue
		}
		if log != nil {
			log.WithFields(logrus.Fields{
				"strategy":   strat.name,
				"containers": containers.Length(),
			}).Debug("Listing strategy selected")
		}

		var games []models.GameSummary
		containers.Each(func(_ int, c *goquery.Selection) {
			if g, ok := extractEntry(c, strat, base); ok {
				games = append(games, g)
			}
		})
		return games
	}
	return nil
}

// extractEntry pulls one summary out of a matched container.
func extractEntry(c *goquery.Selection, strat listingStrategy, base *url.URL) (models.GameSummary, bool) {
	anchor := c
	if strat.title != "" {
		anchor = c.Find(strat.title).First()
	}
	if anchor.Length() == 0 {
		return models.GameSummary{}, false
	}

	href, _ := anchor.Attr("href")
	href = strings.TrimSpace(href)

	// Title text falls back to the title attribute.
	title := collapse(anchor.Text())
	if title == "" {
		title = strings.TrimSpace(anchor.AttrOr("title", ""))
	}
	if title == "" || href == "" {
		return models.GameSummary{}, false
	}

	g := models.GameSummary{
		Title: CleanTitle(title),
		URL:   absolutize(base, href),
	}

	if strat.date != "" {
		if el := c.Find(strat.date).First(); el.Length() > 0 {
			// Prefer the machine-readable attribute over element text.
			raw := el.AttrOr("datetime", "")
			if raw == "" {
				raw = collapse(el.Text())
			}
			if norm := NormalizeDate(raw); norm != "" {
				g.Date = norm
			} else {
				g.Date = raw
			}
		}
	}

	if strat.cover != "" {
		if el := c.Find(strat.cover).First(); el.Length() > 0 {
			src := el.AttrOr("src", "")
			if src == "" {
				src = el.AttrOr("data-src", "")
			}
			if src != "" {
				g.Cover = absolutize(base, src)
			}
		}
	}

	return g, true
}
