// Package fetch wraps the external feed extraction capability: given a feed
// url it returns the raw entries of the remote RSS/Atom document. The remote
// side is untrusted, any entry field may be missing or malformed.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultMaxEntries caps how many entries a single fetch returns.
const DefaultMaxEntries = 50

// Entry is one raw parsed feed entry. All fields are optional.
type Entry struct {
	Id          string
	Title       string
	Link        string
	Published   string
	Description string
}

type Client struct {
	parser     *gofeed.Parser
	timeout    time.Duration
	maxEntries int
}

func NewClient(timeout time.Duration, maxEntries int) *Client {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Client{
		parser:     gofeed.NewParser(),
		timeout:    timeout,
		maxEntries: maxEntries,
	}
}

// Fetch retrieves and parses the feed at url. The call is bounded by the
// client timeout so a hung remote degrades to an error, never a stall.
func (c *Client) Fetch(ctx context.Context, url string) ([]Entry, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parsed, err := c.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}

	items := parsed.Items
	if len(items) > c.maxEntries {
		items = items[:c.maxEntries]
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Id:          item.GUID,
			Title:       item.Title,
			Link:        item.Link,
			Published:   publishedString(item),
			Description: itemText(item),
		})
	}

	return entries, nil
}

// publishedString normalizes the publication timestamp to RFC3339 UTC when
// the parser understood it, falling back to the raw feed string.
func publishedString(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}

// itemText returns the richest available text for an item. Description
// (short excerpt) is preferred to mirror what feed readers display; Content
// is the fallback for feeds that only ship a full body.
func itemText(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}
