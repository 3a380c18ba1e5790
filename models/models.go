package models

import "time"

// Category groups feeds for display purposes. The catalog is static and
// comes from the configuration file.
type Category struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
	Pos  int64  `json:"pos"`
}

// Feed is a registered remote syndication source. Url is the natural key,
// a feed is created once per url and its metadata is never rewritten.
type Feed struct {
	Id         int64  `json:"id"`
	Name       string `json:"name"`
	Url        string `json:"url"`
	CategoryId int64  `json:"categoryId"`
	FavIcon    string `json:"favIcon"`
}

// FeedDescriptor holds the fields needed to register a feed.
type FeedDescriptor struct {
	Name       string
	Url        string
	CategoryId int64
	FavIcon    string
}

// FeedItem is one normalized, persisted entry from a feed. Link is the
// global deduplication key. PubDate is the feed-supplied timestamp string,
// normalized to RFC3339 when the source value was parseable.
type FeedItem struct {
	Id          int64  `json:"id"`
	FeedId      int64  `json:"feedId"`
	OrgId       string `json:"orgId"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description"`
}

// FeedItemDetail is a feed item joined with its owning feed's display
// metadata, as served by the merged read model.
type FeedItemDetail struct {
	FeedItem
	FeedName string `json:"feedName"`
	FavIcon  string `json:"favIcon"`
}

// FeedReport is the per-feed outcome of one ingestion cycle.
type FeedReport struct {
	FeedName string `json:"feedName"`
	NewItems int    `json:"newItems"`
	Error    string `json:"error,omitempty"`
}

// IngestionReport summarizes one full ingestion cycle.
type IngestionReport struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	PerFeed    []FeedReport `json:"perFeed"`
	TotalNew   int          `json:"totalNew"`
}

// ItemCreatedEvent fired when a new item is persisted
type ItemCreatedEvent struct {
	Item FeedItemDetail
}

// CycleCompletedEvent fired when an ingestion cycle finishes
type CycleCompletedEvent struct {
	Report IngestionReport
}
