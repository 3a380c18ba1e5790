package ingest

import (
	"context"
	"errors"
	"scotty/db"
	"scotty/models"

	log "github.com/sirupsen/logrus"
)

// Registry ensures the configured catalog of categories and feeds exists in
// the store exactly once. Metadata is first-write-wins: re-registering an
// existing url never rewrites the stored record.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// EnsureCategory looks up a category by name, creating it when absent.
// Returns the category id and whether a new row was created.
func (r *Registry) EnsureCategory(ctx context.Context, name string, pos int64) (int64, bool, error) {
	category, err := r.store.GetCategoryByName(ctx, name)
	if err == nil {
		return category.Id, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return 0, false, err
	}

	id, err := r.store.CreateCategory(ctx, models.Category{Name: name, Pos: pos})
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// EnsureFeed looks up a feed by url, creating it when absent. Returns the
// feed id and whether a new row was created.
func (r *Registry) EnsureFeed(ctx context.Context, descriptor models.FeedDescriptor) (int64, bool, error) {
	feed, err := r.store.GetFeedByURL(ctx, descriptor.Url)
	if err == nil {
		return feed.Id, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return 0, false, err
	}

	log.WithFields(log.Fields{
		"name": descriptor.Name,
		"url":  descriptor.Url,
	}).Info("Registering feed")

	id, err := r.store.CreateFeed(ctx, models.Feed{
		Name:       descriptor.Name,
		Url:        descriptor.Url,
		CategoryId: descriptor.CategoryId,
		FavIcon:    descriptor.FavIcon,
	})
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
