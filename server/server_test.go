package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"scotty/config"
	"scotty/db"
	"scotty/fetch"
	"scotty/ingest"
	"scotty/models"
	"scotty/server"
	"scotty/view"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	entries map[string][]fetch.Entry
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]fetch.Entry, error) {
	return f.entries[url], nil
}

func newTestServer(t *testing.T) (*fiber.App, *db.Store) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.Migrate(path))

	store, err := db.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	catalog := &config.TomlConfig{
		Categories: []config.TomlCategory{{Name: "News", Pos: 1}},
		Feeds: []config.TomlFeed{
			{Name: "A", Url: "https://a.example/rss", Category: "News"},
		},
	}
	fetcher := &stubFetcher{entries: map[string][]fetch.Entry{
		"https://a.example/rss": {
			{Id: "1", Title: "One", Link: "https://a.example/1", Published: "2025-01-01T10:00:00Z"},
		},
	}}
	pipeline := ingest.NewPipeline(store, fetcher, catalog, nil)

	app := server.Server(&server.ServerConfig{
		Store:       store,
		View:        view.New(store),
		Pipeline:    pipeline,
		Broadcaster: server.NewBroadcaster(),
	})

	return app, store
}

func getJSON(t *testing.T, app *fiber.App, path string, out interface{}) int {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out))
	}
	return resp.StatusCode
}

func TestItemsEmptyStore(t *testing.T) {
	app, _ := newTestServer(t)

	var items []models.FeedItemDetail
	status := getJSON(t, app, "/api/items", &items)
	assert.Equal(t, 200, status)
	assert.Empty(t, items)
}

func TestRefreshThenRead(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var report models.IngestionReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 1, report.TotalNew)

	var items []models.FeedItemDetail
	status := getJSON(t, app, "/api/items", &items)
	assert.Equal(t, 200, status)
	require.Len(t, items, 1)
	assert.Equal(t, "One", items[0].Title)
	assert.Equal(t, "A", items[0].FeedName)

	var feeds []models.Feed
	status = getJSON(t, app, "/api/feeds", &feeds)
	assert.Equal(t, 200, status)
	require.Len(t, feeds, 1)

	var feedItems []models.FeedItem
	status = getJSON(t, app, "/api/feeds/1/items", &feedItems)
	assert.Equal(t, 200, status)
	assert.Len(t, feedItems, 1)
}

func TestCategories(t *testing.T) {
	app, store := newTestServer(t)

	_, err := store.CreateCategory(context.Background(), models.Category{Name: "News", Pos: 1})
	require.NoError(t, err)

	var categories []models.Category
	status := getJSON(t, app, "/api/categories", &categories)
	assert.Equal(t, 200, status)
	require.Len(t, categories, 1)
	assert.Equal(t, "News", categories[0].Name)
}

func TestFeedItemsInvalidId(t *testing.T) {
	app, _ := newTestServer(t)

	status := getJSON(t, app, "/api/feeds/not-a-number/items", nil)
	assert.Equal(t, 400, status)
}

func TestRemoveUnknownSSEClient(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/items/sse?key=unknown", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
