package db

import (
	"context"
	"database/sql"
	"scotty/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Store handles all database operations with a shared connection pool.
// The single-connection pool serializes writes, which together with the
// unique indexes on feeds.url and feed_items.link upholds the store's
// uniqueness guarantees.
type Store struct {
	db *sql.DB
}

func NewStore(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Write operations

func (s *Store) CreateCategory(ctx context.Context, category models.Category) (int64, error) {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("categories").Cols("name", "pos").Values(category.Name, category.Pos)
	sql, args := ib.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := s.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, &WriteError{Op: "create category", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &WriteError{Op: "create category", Err: err}
	}
	return id, nil
}

func (s *Store) CreateFeed(ctx context.Context, feed models.Feed) (int64, error) {
	log.WithFields(log.Fields{
		"name": feed.Name,
		"url":  feed.Url,
	}).Info("Creating feed")

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("feeds").
		Cols("name", "url", "category_id", "fav_icon").
		Values(feed.Name, feed.Url, feed.CategoryId, feed.FavIcon)
	sql, args := ib.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := s.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, &WriteError{Op: "create feed", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &WriteError{Op: "create feed", Err: err}
	}
	return id, nil
}

func (s *Store) CreateFeedItem(ctx context.Context, item models.FeedItem) (int64, error) {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("feed_items").
		Cols("feed_id", "org_id", "title", "link", "pub_date", "description").
		Values(item.FeedId, item.OrgId, item.Title, item.Link, item.PubDate, item.Description)
	sql, args := ib.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := s.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, &WriteError{Op: "create feed item", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &WriteError{Op: "create feed item", Err: err}
	}
	return id, nil
}

// Point lookups

func (s *Store) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "name", "pos").From("categories").Where(sb.Equal("name", name)).Limit(1)
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var category models.Category
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&category.Id, &category.Name, &category.Pos)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &ReadError{Op: "category by name", Err: err}
	}
	return &category, nil
}

func (s *Store) GetFeedByURL(ctx context.Context, url string) (*models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "name", "url", "category_id", "fav_icon").
		From("feeds").
		Where(sb.Equal("url", url)).
		Limit(1)
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var feed models.Feed
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&feed.Id, &feed.Name, &feed.Url, &feed.CategoryId, &feed.FavIcon)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &ReadError{Op: "feed by url", Err: err}
	}
	return &feed, nil
}

func (s *Store) GetFeedItemByLink(ctx context.Context, link string) (*models.FeedItem, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "feed_id", "org_id", "title", "link", "pub_date", "description").
		From("feed_items").
		Where(sb.Equal("link", link)).
		Limit(1)
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var item models.FeedItem
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&item.Id, &item.FeedId, &item.OrgId, &item.Title, &item.Link, &item.PubDate, &item.Description)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &ReadError{Op: "feed item by link", Err: err}
	}
	return &item, nil
}

// Scans

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "name", "pos").From("categories").OrderBy("pos").Asc()
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ReadError{Op: "list categories", Err: err}
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.Id, &category.Name, &category.Pos); err != nil {
			return nil, &ReadError{Op: "list categories", Err: err}
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

func (s *Store) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "name", "url", "category_id", "fav_icon").From("feeds").OrderBy("id").Asc()
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ReadError{Op: "list feeds", Err: err}
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		var feed models.Feed
		if err := rows.Scan(&feed.Id, &feed.Name, &feed.Url, &feed.CategoryId, &feed.FavIcon); err != nil {
			return nil, &ReadError{Op: "list feeds", Err: err}
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// GetFeedItems returns a single feed's items ordered by pub_date descending.
func (s *Store) GetFeedItems(ctx context.Context, feedId int64, limit int) ([]models.FeedItem, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "feed_id", "org_id", "title", "link", "pub_date", "description").
		From("feed_items").
		Where(sb.Equal("feed_id", feedId)).
		OrderBy("pub_date").Desc().
		Limit(limit)
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ReadError{Op: "feed items", Err: err}
	}
	defer rows.Close()

	var items []models.FeedItem
	for rows.Next() {
		var item models.FeedItem
		if err := rows.Scan(&item.Id, &item.FeedId, &item.OrgId, &item.Title, &item.Link, &item.PubDate, &item.Description); err != nil {
			return nil, &ReadError{Op: "feed items", Err: err}
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
