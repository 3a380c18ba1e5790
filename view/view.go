// Package view derives read models from the store. It only reads, the
// ingestion pipeline is the sole writer.
package view

import (
	"context"
	"sort"

	"scotty/db"
	"scotty/models"

	"github.com/samber/lo"
)

// PerFeedCap bounds how many items a single feed contributes to the merged
// view, so one chatty feed cannot crowd out the others.
const PerFeedCap = 6

type View struct {
	store *db.Store
}

func New(store *db.Store) *View {
	return &View{store: store}
}

// LatestAcrossFeeds returns the newest items across all feeds, at most
// PerFeedCap per feed, globally ordered by pub_date descending and truncated
// to limit. An empty store yields an empty slice.
func (v *View) LatestAcrossFeeds(ctx context.Context, limit int) ([]models.FeedItemDetail, error) {
	feeds, err := v.store.ListFeeds(ctx)
	if err != nil {
		return nil, err
	}

	perFeed := make([][]models.FeedItemDetail, 0, len(feeds))
	for _, feed := range feeds {
		items, err := v.store.GetFeedItems(ctx, feed.Id, PerFeedCap)
		if err != nil {
			return nil, err
		}

		perFeed = append(perFeed, lo.Map(items, func(item models.FeedItem, _ int) models.FeedItemDetail {
			return models.FeedItemDetail{
				FeedItem: item,
				FeedName: feed.Name,
				FavIcon:  feed.FavIcon,
			}
		}))
	}

	merged := lo.Flatten(perFeed)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PubDate > merged[j].PubDate
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []models.FeedItemDetail{}
	}

	return merged, nil
}

// ItemsForFeed returns a single feed's items ordered by pub_date descending.
func (v *View) ItemsForFeed(ctx context.Context, feedId int64, limit int) ([]models.FeedItem, error) {
	items, err := v.store.GetFeedItems(ctx, feedId, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.FeedItem{}
	}
	return items, nil
}
