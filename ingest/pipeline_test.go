package ingest_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"scotty/config"
	"scotty/db"
	"scotty/fetch"
	"scotty/ingest"
	"scotty/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.Migrate(path))

	store, err := db.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func newCatalog(feeds ...config.TomlFeed) *config.TomlConfig {
	return &config.TomlConfig{
		Categories: []config.TomlCategory{{Name: "News", Pos: 1}},
		Feeds:      feeds,
	}
}

func newsFeed(name, url string) config.TomlFeed {
	return config.TomlFeed{Name: name, Url: url, Category: "News", FavIcon: "icon"}
}

// stubFetcher serves canned entries or errors per feed url.
type stubFetcher struct {
	entries map[string][]fetch.Entry
	errs    map[string]error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]fetch.Entry, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.entries[url], nil
}

func TestRunCycleIdempotent(t *testing.T) {
	store := newTestStore(t)
	fetcher := &stubFetcher{entries: map[string][]fetch.Entry{
		"https://a.example/rss": {
			{Id: "1", Title: "One", Link: "https://a.example/1", Published: "2025-01-01T10:00:00Z"},
			{Id: "2", Title: "Two", Link: "https://a.example/2", Published: "2025-01-01T11:00:00Z"},
		},
	}}
	pipeline := ingest.NewPipeline(store, fetcher, newCatalog(newsFeed("A", "https://a.example/rss")), nil)

	first, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalNew)

	// Unchanged upstream content, a second run inserts nothing
	second, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalNew)

	feed, err := store.GetFeedByURL(context.Background(), "https://a.example/rss")
	require.NoError(t, err)
	items, err := store.GetFeedItems(context.Background(), feed.Id, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRunCycleIsolatesFeedFailures(t *testing.T) {
	store := newTestStore(t)
	fetcher := &stubFetcher{
		entries: map[string][]fetch.Entry{
			"https://b.example/rss": {
				{Title: "Fine", Link: "https://b.example/1"},
			},
		},
		errs: map[string]error{
			"https://a.example/rss": errors.New("connection refused"),
		},
	}
	catalog := newCatalog(
		newsFeed("A", "https://a.example/rss"),
		newsFeed("B", "https://b.example/rss"),
	)
	pipeline := ingest.NewPipeline(store, fetcher, catalog, nil)

	report, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, report.PerFeed, 2)
	assert.Equal(t, "A", report.PerFeed[0].FeedName)
	assert.Contains(t, report.PerFeed[0].Error, "connection refused")
	assert.Equal(t, 0, report.PerFeed[0].NewItems)

	assert.Equal(t, "B", report.PerFeed[1].FeedName)
	assert.Empty(t, report.PerFeed[1].Error)
	assert.Equal(t, 1, report.PerFeed[1].NewItems)
	assert.Equal(t, 1, report.TotalNew)
}

func TestRunCycleDedupsWithinBatch(t *testing.T) {
	store := newTestStore(t)
	fetcher := &stubFetcher{entries: map[string][]fetch.Entry{
		"https://a.example/rss": {
			{Title: "T1", Link: "https://a.example/1"},
			{Title: "T2", Link: "https://a.example/1"},
		},
	}}
	pipeline := ingest.NewPipeline(store, fetcher, newCatalog(newsFeed("A", "https://a.example/rss")), nil)

	report, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalNew)

	item, err := store.GetFeedItemByLink(context.Background(), "https://a.example/1")
	require.NoError(t, err)
	assert.Equal(t, "T1", item.Title)
}

func TestRunCycleCollapsesLinksAcrossFeeds(t *testing.T) {
	store := newTestStore(t)
	shared := fetch.Entry{Title: "Shared", Link: "https://shared.example/story"}
	fetcher := &stubFetcher{entries: map[string][]fetch.Entry{
		"https://a.example/rss": {shared},
		"https://b.example/rss": {shared},
	}}
	catalog := newCatalog(
		newsFeed("A", "https://a.example/rss"),
		newsFeed("B", "https://b.example/rss"),
	)
	pipeline := ingest.NewPipeline(store, fetcher, catalog, nil)

	report, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalNew)

	// The item belongs to whichever feed ingested it first
	feedA, err := store.GetFeedByURL(context.Background(), "https://a.example/rss")
	require.NoError(t, err)
	item, err := store.GetFeedItemByLink(context.Background(), "https://shared.example/story")
	require.NoError(t, err)
	assert.Equal(t, feedA.Id, item.FeedId)
}

func TestRunCycleRegistersCatalogOnce(t *testing.T) {
	store := newTestStore(t)
	fetcher := &stubFetcher{}
	pipeline := ingest.NewPipeline(store, fetcher, newCatalog(newsFeed("A", "https://a.example/rss")), nil)

	_, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	_, err = pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	feeds, err := store.ListFeeds(context.Background())
	require.NoError(t, err)
	assert.Len(t, feeds, 1)

	categories, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestRunCycleEmptyLinksSuppressEachOther(t *testing.T) {
	store := newTestStore(t)
	fetcher := &stubFetcher{entries: map[string][]fetch.Entry{
		"https://a.example/rss": {
			{Title: "No link one"},
			{Title: "No link two"},
		},
	}}
	pipeline := ingest.NewPipeline(store, fetcher, newCatalog(newsFeed("A", "https://a.example/rss")), nil)

	report, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	// Entries without a link share the empty dedup key, only the first
	// ever gets stored
	assert.Equal(t, 1, report.TotalNew)
	item, err := store.GetFeedItemByLink(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "No link one", item.Title)
}

// failingStore fails every item insert while delegating everything else.
type failingStore struct {
	ingest.Store
	insertErr error
}

func (s *failingStore) CreateFeedItem(_ context.Context, _ models.FeedItem) (int64, error) {
	return 0, s.insertErr
}

func TestRunCycleReportsFailedInserts(t *testing.T) {
	store := newTestStore(t)
	failing := &failingStore{Store: store, insertErr: errors.New("disk I/O error")}
	fetcher := &stubFetcher{entries: map[string][]fetch.Entry{
		"https://a.example/rss": {
			{Title: "One", Link: "https://a.example/1"},
			{Title: "Two", Link: "https://a.example/2"},
		},
	}}
	pipeline := ingest.NewPipeline(failing, fetcher, newCatalog(newsFeed("A", "https://a.example/rss")), nil)

	report, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	// Insert failures do not abort the feed, but they must show up in its
	// report entry
	assert.Equal(t, 0, report.TotalNew)
	require.Len(t, report.PerFeed, 1)
	assert.Equal(t, 0, report.PerFeed[0].NewItems)
	assert.Contains(t, report.PerFeed[0].Error, "disk I/O error")
}

// blockingFetcher parks every Fetch call until released.
type blockingFetcher struct {
	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
}

func (f *blockingFetcher) Fetch(_ context.Context, _ string) ([]fetch.Entry, error) {
	f.startedOnce.Do(func() { close(f.started) })
	<-f.release
	return nil, nil
}

func TestRunCycleSingleFlight(t *testing.T) {
	store := newTestStore(t)
	fetcher := &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	pipeline := ingest.NewPipeline(store, fetcher, newCatalog(newsFeed("A", "https://a.example/rss")), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := pipeline.RunCycle(context.Background())
		assert.NoError(t, err)
	}()

	<-fetcher.started

	// A trigger while the first cycle is fetching is a no-op
	_, err := pipeline.RunCycle(context.Background())
	assert.ErrorIs(t, err, ingest.ErrCycleInFlight)

	close(fetcher.release)
	<-done

	// Once the first cycle finished the guard is released again
	_, err = pipeline.RunCycle(context.Background())
	assert.NoError(t, err)
}

func TestRunCycleEmitsEvents(t *testing.T) {
	store := newTestStore(t)
	fetcher := &stubFetcher{entries: map[string][]fetch.Entry{
		"https://a.example/rss": {
			{Title: "One", Link: "https://a.example/1"},
		},
	}}
	events := make(chan interface{}, 10)
	pipeline := ingest.NewPipeline(store, fetcher, newCatalog(newsFeed("A", "https://a.example/rss")), events)

	_, err := pipeline.RunCycle(context.Background())
	require.NoError(t, err)

	created, ok := (<-events).(models.ItemCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "A", created.Item.FeedName)
	assert.Equal(t, "https://a.example/1", created.Item.Link)

	completed, ok := (<-events).(models.CycleCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, 1, completed.Report.TotalNew)
}
