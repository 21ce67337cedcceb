package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamedex/pkg/models"
)

const listingBaseURL = "https://dlpsgame.com/list-game-ps5/"

func TestListing_PostCards(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<article class="post">
  <h2><a href="/game-one-ps5/">Game One PS5 Download Free</a></h2>
  <time datetime="2024-03-10">March 10, 2024</time>
  <img src="/covers/one.jpg">
</article>
<article class="post">
  <h2><a href="https://dlpsgame.com/game-two-ps5/">Game Two PS5</a></h2>
</article>
</body></html>`)

	games := Listing(doc, listingBaseURL, testLog())
	require.Len(t, games, 2)

	assert.Equal(t, models.GameSummary{
		Title: "Game One PS5",
		URL:   "https://dlpsgame.com/game-one-ps5/",
		Date:  "2024-03-10",
		Cover: "https://dlpsgame.com/covers/one.jpg",
	}, games[0])

	assert.Equal(t, "Game Two PS5", games[1].Title)
	assert.Empty(t, games[1].Date)
	assert.Empty(t, games[1].Cover)
}

func TestListing_ListItems(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<ul class="game-list">
  <li>
    <a href="/game-one-ps5/">Game One PS5</a>
    <span class="date">March 10, 2024</span>
    <img data-src="/covers/one.jpg">
  </li>
  <li>
    <a href="/game-two-ps5/">Game Two PS5</a>
    <span class="date">sometime soon</span>
  </li>
  <li><a href="">No URL Game</a></li>
</ul>
</body></html>`)

	games := Listing(doc, listingBaseURL, testLog())
	require.Len(t, games, 2)

	assert.Equal(t, "Game One PS5", games[0].Title)
	assert.Equal(t, "2024-03-10", games[0].Date)
	assert.Equal(t, "https://dlpsgame.com/covers/one.jpg", games[0].Cover)

	// An unparseable date is kept verbatim rather than discarded.
	assert.Equal(t, "sometime soon", games[1].Date)
}

func TestListing_TitleLinks(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<a class="title" href="/game-one-ps5/" title="Game One PS5"></a>
<a class="title" href="/game-two-ps5/">Game Two PS5 Download</a>
<a class="title" href="/nameless/"></a>
</body></html>`)

	games := Listing(doc, listingBaseURL, testLog())
	require.Len(t, games, 2)

	// Empty anchor text falls back to the title attribute; no title at all
	// discards the entry.
	assert.Equal(t, "Game One PS5", games[0].Title)
	assert.Equal(t, "https://dlpsgame.com/game-one-ps5/", games[0].URL)
	assert.Equal(t, "Game Two PS5", games[1].Title)
}

func TestListing_GenericArticles(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<article><h3><a href="/game-one-ps5/">Game One PS5</a></h3></article>
</body></html>`)

	games := Listing(doc, listingBaseURL, nil)
	require.Len(t, games, 1)
	assert.Equal(t, "Game One PS5", games[0].Title)
}

func TestListing_StrategyPrecedence(t *testing.T) {
	// When both shapes are present only the post-card entries are taken.
	doc := mustDoc(t, `<html><body>
<article class="post"><h2><a href="/game-one-ps5/">Game One PS5</a></h2></article>
<a class="title" href="/stray-ps5/">Stray Link</a>
</body></html>`)

	games := Listing(doc, listingBaseURL, testLog())
	require.Len(t, games, 1)
	assert.Equal(t, "Game One PS5", games[0].Title)
}

func TestListing_EmptyPage(t *testing.T) {
	doc := mustDoc(t, `<html><body><p>nothing here</p></body></html>`)
	assert.Empty(t, Listing(doc, listingBaseURL, testLog()))
}
