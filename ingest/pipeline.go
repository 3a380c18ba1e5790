package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"scotty/config"
	"scotty/db"
	"scotty/fetch"
	"scotty/models"

	log "github.com/sirupsen/logrus"
)

// ErrCycleInFlight is returned when a cycle is triggered while the previous
// one is still running. Triggers treat it as a no-op, not a failure.
var ErrCycleInFlight = errors.New("ingestion cycle already in flight")

// Fetcher retrieves the raw entries of a remote feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]fetch.Entry, error)
}

// Store is the persistence surface the pipeline and registry work through.
// Point lookups return db.ErrNotFound when no record matches.
type Store interface {
	CreateCategory(ctx context.Context, category models.Category) (int64, error)
	CreateFeed(ctx context.Context, feed models.Feed) (int64, error)
	CreateFeedItem(ctx context.Context, item models.FeedItem) (int64, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	GetFeedByURL(ctx context.Context, url string) (*models.Feed, error)
	GetFeedItemByLink(ctx context.Context, link string) (*models.FeedItem, error)
	ListFeeds(ctx context.Context) ([]models.Feed, error)
}

// Pipeline runs ingestion cycles: it registers the configured feed catalog,
// fetches every registered feed, and merges new entries into the store.
// At most one cycle executes at a time; the store serializes the
// check-then-insert sequences that keep urls and links unique.
type Pipeline struct {
	store    Store
	fetcher  Fetcher
	catalog  *config.TomlConfig
	registry *Registry

	// Channel for publishing item and cycle events to interested readers,
	// may be nil when nobody listens
	events chan interface{}

	running atomic.Bool
}

func NewPipeline(store Store, fetcher Fetcher, catalog *config.TomlConfig, events chan interface{}) *Pipeline {
	return &Pipeline{
		store:    store,
		fetcher:  fetcher,
		catalog:  catalog,
		registry: NewRegistry(store),
		events:   events,
	}
}

// Start runs an immediate cycle and then one per interval until the context
// is cancelled. A tick that lands while a cycle is still running is skipped,
// skipped ticks are not queued.
func (p *Pipeline) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.runScheduled(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runScheduled(ctx)
		}
	}
}

func (p *Pipeline) runScheduled(ctx context.Context) {
	report, err := p.RunCycle(ctx)
	if errors.Is(err, ErrCycleInFlight) {
		log.Warn("Previous ingestion cycle still running, skipping this tick")
		return
	}
	if err != nil {
		log.WithError(err).Error("Ingestion cycle failed")
		return
	}

	log.WithFields(log.Fields{
		"feeds":    len(report.PerFeed),
		"newItems": report.TotalNew,
		"took":     report.FinishedAt.Sub(report.StartedAt),
	}).Info("Ingestion cycle finished")
}

// RunCycle executes one full ingestion pass over all registered feeds.
// Fetch, parse and storage failures are isolated per feed and surface only
// as report entries; a store read failure before any feed work aborts the
// cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (*models.IngestionReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		cyclesSkipped.Inc()
		return nil, ErrCycleInFlight
	}
	defer p.running.Store(false)

	cyclesStarted.Inc()

	report := &models.IngestionReport{
		StartedAt: time.Now().UTC(),
		PerFeed:   []models.FeedReport{},
	}

	p.ensureCatalog(ctx)

	feeds, err := p.store.ListFeeds(ctx)
	if err != nil {
		return nil, err
	}

	for _, feed := range feeds {
		feedReport := p.ingestFeed(ctx, feed)
		report.PerFeed = append(report.PerFeed, feedReport)
		report.TotalNew += feedReport.NewItems
	}

	report.FinishedAt = time.Now().UTC()
	p.publish(models.CycleCompletedEvent{Report: *report})

	return report, nil
}

// ensureCatalog registers the configured categories and feeds. Failures are
// logged per entry and never abort the cycle: a feed whose registration
// failed simply stays absent from the store and is skipped this cycle.
func (p *Pipeline) ensureCatalog(ctx context.Context) {
	categoryIds := make(map[string]int64, len(p.catalog.Categories))

	for _, category := range p.catalog.Categories {
		id, _, err := p.registry.EnsureCategory(ctx, category.Name, category.Pos)
		if err != nil {
			log.WithFields(log.Fields{
				"category": category.Name,
			}).WithError(err).Error("Failed to register category")
			continue
		}
		categoryIds[category.Name] = id
	}

	for _, feed := range p.catalog.Feeds {
		categoryId, ok := categoryIds[feed.Category]
		if !ok {
			log.WithFields(log.Fields{
				"feed":     feed.Name,
				"category": feed.Category,
			}).Error("Feed references unregistered category, skipping")
			continue
		}

		if _, _, err := p.registry.EnsureFeed(ctx, models.FeedDescriptor{
			Name:       feed.Name,
			Url:        feed.Url,
			CategoryId: categoryId,
			FavIcon:    feed.FavIcon,
		}); err != nil {
			log.WithFields(log.Fields{
				"feed": feed.Name,
				"url":  feed.Url,
			}).WithError(err).Error("Failed to register feed")
		}
	}
}

// ingestFeed fetches one feed and persists its entries that are not yet in
// the store. The link lookup before each insert also collapses duplicate
// links within the same batch, since every insert is durably visible to the
// next lookup.
func (p *Pipeline) ingestFeed(ctx context.Context, feed models.Feed) models.FeedReport {
	feedReport := models.FeedReport{FeedName: feed.Name}

	entries, err := p.fetcher.Fetch(ctx, feed.Url)
	if err != nil {
		fetchErrors.WithLabelValues(feed.Name).Inc()
		log.WithFields(log.Fields{
			"feed": feed.Name,
			"url":  feed.Url,
		}).WithError(err).Error("Failed to fetch feed")
		feedReport.Error = err.Error()
		return feedReport
	}

	for _, item := range normalizeEntries(entries) {
		_, err := p.store.GetFeedItemByLink(ctx, item.Link)
		if err == nil {
			// Already stored, possibly by another feed republishing the
			// same link
			continue
		}
		if !errors.Is(err, db.ErrNotFound) {
			log.WithFields(log.Fields{
				"feed": feed.Name,
				"link": item.Link,
			}).WithError(err).Error("Failed to check for existing item")
			feedReport.Error = err.Error()
			return feedReport
		}

		item.FeedId = feed.Id
		id, err := p.store.CreateFeedItem(ctx, item)
		if err != nil {
			log.WithFields(log.Fields{
				"feed": feed.Name,
				"link": item.Link,
			}).WithError(err).Error("Failed to store item")
			feedReport.Error = err.Error()
			continue
		}

		item.Id = id
		feedReport.NewItems++
		itemsInserted.Inc()

		p.publish(models.ItemCreatedEvent{Item: models.FeedItemDetail{
			FeedItem: item,
			FeedName: feed.Name,
			FavIcon:  feed.FavIcon,
		}})
	}

	log.WithFields(log.Fields{
		"feed":     feed.Name,
		"entries":  len(entries),
		"newItems": feedReport.NewItems,
	}).Info("Fetched feed")

	return feedReport
}

func (p *Pipeline) publish(event interface{}) {
	if p.events == nil {
		return
	}
	select {
	case p.events <- event: // Non-blocking send
	default:
		log.Warn("Event channel full, dropping event")
	}
}
