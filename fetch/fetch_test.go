package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scotty/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Test Feed</title>
    <item>
      <guid>guid-1</guid>
      <title>First</title>
      <link>https://news.example/1</link>
      <pubDate>Wed, 01 Jan 2025 10:00:00 GMT</pubDate>
      <description>First excerpt</description>
    </item>
    <item>
      <title>No guid</title>
      <link>https://news.example/2</link>
      <pubDate>not a date</pubDate>
      <content:encoded>Full body only</content:encoded>
    </item>
    <item>
      <guid>guid-3</guid>
      <title>Third</title>
      <link>https://news.example/3</link>
    </item>
  </channel>
</rss>`

func serveFeed(t *testing.T, doc string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(doc))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchNormalizesEntries(t *testing.T) {
	srv := serveFeed(t, rssDoc)

	entries, err := fetch.NewClient(5*time.Second, 0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "guid-1", entries[0].Id)
	assert.Equal(t, "First", entries[0].Title)
	assert.Equal(t, "https://news.example/1", entries[0].Link)
	// Parseable timestamps come back in RFC3339 UTC
	assert.Equal(t, "2025-01-01T10:00:00Z", entries[0].Published)
	assert.Equal(t, "First excerpt", entries[0].Description)

	assert.Empty(t, entries[1].Id)
	// Unparseable timestamps pass through as-is
	assert.Equal(t, "not a date", entries[1].Published)
	// Content is the fallback when the excerpt is missing
	assert.Equal(t, "Full body only", entries[1].Description)

	assert.Empty(t, entries[2].Published)
}

func TestFetchCapsEntries(t *testing.T) {
	srv := serveFeed(t, rssDoc)

	entries, err := fetch.NewClient(5*time.Second, 2).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "First", entries[0].Title)
}

func TestFetchInvalidDocument(t *testing.T) {
	srv := serveFeed(t, "not xml at all")

	_, err := fetch.NewClient(5*time.Second, 0).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	_, err := fetch.NewClient(50*time.Millisecond, 0).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}
