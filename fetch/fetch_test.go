package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdwils/feedreader/fetch"
	"github.com/kdwils/feedreader/models"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <item>
      <title>A very interesting post about databases</title>
      <link>https://example.com/posts/databases</link>
      <author>jane@example.com (Jane Doe)</author>
      <pubDate>Fri, 01 Mar 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Older post</title>
      <link>https://example.com/posts/older</link>
      <pubDate>Thu, 29 Feb 2024 08:30:00 GMT</pubDate>
    </item>
    <item>
      <title>Entry without a link</title>
    </item>
  </channel>
</rss>`

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	feed := models.NewFeed("Example Blog", "https://example.com", server.URL)
	fetcher := fetch.NewRSSFetcher()

	articles, err := fetcher.Fetch(context.Background(), feed)
	require.NoError(t, err)

	// The linkless entry is dropped; links are article identity.
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, models.ArticleID("https://example.com/posts/databases"), first.ID)
	assert.Equal(t, feed.ID, first.FeedID)
	assert.Equal(t, "A very interesting post about databases", first.Title)
	assert.Equal(t, "https://example.com/posts/databases", first.Link)
	assert.True(t, first.Published.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.False(t, first.Read)
	assert.False(t, first.Favorited)

	second := articles[1]
	assert.Equal(t, "Older post", second.Title)
	// Title is below the detection threshold, so no language is recorded.
	assert.Empty(t, second.Language)
}

func TestFetchMissingPublishedFallsBackToNow(t *testing.T) {
	const fixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>No Dates</title>
    <item>
      <title>Undated entry</title>
      <link>https://example.com/undated</link>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixture))
	}))
	defer server.Close()

	before := time.Now().UTC()
	articles, err := fetch.NewRSSFetcher().Fetch(context.Background(), models.NewFeed("No Dates", "", server.URL))
	require.NoError(t, err)
	require.Len(t, articles, 1)

	assert.False(t, articles[0].Published.Before(before))
}

func TestFetchUnreachableFeed(t *testing.T) {
	feed := models.NewFeed("Down", "", "http://127.0.0.1:1/feed.xml")

	_, err := fetch.NewRSSFetcher().Fetch(context.Background(), feed)
	assert.Error(t, err)
}
