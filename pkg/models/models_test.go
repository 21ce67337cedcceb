package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGameDetailAddLink(t *testing.T) {
	var g GameDetail
	g.AddLink(DownloadLink{Host: HostAkira, Link: "a"})
	g.AddLink(DownloadLink{Host: HostViking, Link: "v"})
	g.AddLink(DownloadLink{Host: HostOneFichier, Link: "f"})
	g.AddLink(DownloadLink{Host: HostGofile, Link: "g"})
	g.AddLink(DownloadLink{Host: HostMediafire, Link: "m"})

	assert.Len(t, g.Akira, 1)
	assert.Len(t, g.Viking, 1)
	assert.Len(t, g.OneFichier, 1)
	// Hosts without a dedicated bucket all land in Other.
	assert.Len(t, g.Other, 2)
	assert.Equal(t, 5, g.LinkCount())
}

func TestGameDetailScraped(t *testing.T) {
	var g GameDetail
	assert.False(t, g.Scraped())
	g.ScrapedAt = time.Now().UTC()
	assert.True(t, g.Scraped())
}

func TestHostString(t *testing.T) {
	assert.Equal(t, "unknown", HostUnknown.String())
	assert.Equal(t, "akira", HostAkira.String())
}
