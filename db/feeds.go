package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"github.com/kdwils/feedreader/models"
	"github.com/kdwils/feedreader/paging"
)

// feedScope is the cursor scope-check value for the feed listing.
const feedScope = "feeds"

func feedKey(f models.Feed) paging.Key {
	return paging.Key{Time: f.DateAdded, ID: f.ID}
}

// CreateFeed stores a new subscription. Adding a feed URL that already
// exists is a no-op, matching the article upsert behavior.
func (db *DB) CreateFeed(ctx context.Context, feed models.Feed) error {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("feeds")
	ib.Cols("id", "name", "site_url", "feed_url", "date_added", "last_updated")
	ib.Values(feed.ID, feed.Name, feed.SiteURL, feed.FeedURL, feed.DateAdded.UTC(), feed.LastUpdated)
	ib.SQL("ON CONFLICT (feed_url) DO NOTHING")

	query, args := ib.Build()
	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}

	log.WithFields(log.Fields{
		"feed": feed.Name,
		"url":  feed.FeedURL,
	}).Info("Created feed")

	return nil
}

// GetFeed fetches a single feed by id.
func (db *DB) GetFeed(ctx context.Context, id string) (models.Feed, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "site_url", "feed_url", "date_added", "last_updated")
	sb.From("feeds")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var feed models.Feed
	var lastUpdated sql.NullTime
	err := db.db.QueryRowContext(ctx, query, args...).Scan(
		&feed.ID, &feed.Name, &feed.SiteURL, &feed.FeedURL, &feed.DateAdded, &lastUpdated,
	)
	if err != nil {
		return models.Feed{}, err
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		feed.LastUpdated = &t
	}
	return feed, nil
}

// ListFeeds returns one page of subscriptions, newest first by date added.
func (db *DB) ListFeeds(ctx context.Context, req paging.Request) (*paging.Page[models.Feed], error) {
	return paging.FetchPage(ctx, feedScope, req, feedKey, db.feedWindow)
}

// AllFeeds returns every subscription, for the refresh sweep.
func (db *DB) AllFeeds(ctx context.Context) ([]models.Feed, error) {
	return db.feedWindow(ctx, paging.Window{Older: true, Limit: -1})
}

func (db *DB) feedWindow(ctx context.Context, w paging.Window) ([]models.Feed, error) {
	query, args := buildFeedWindow(w)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		var feed models.Feed
		var lastUpdated sql.NullTime
		if err := rows.Scan(&feed.ID, &feed.Name, &feed.SiteURL, &feed.FeedURL, &feed.DateAdded, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if lastUpdated.Valid {
			t := lastUpdated.Time
			feed.LastUpdated = &t
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

func buildFeedWindow(w paging.Window) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "site_url", "feed_url", "date_added", "last_updated")
	sb.From("feeds")

	if w.Boundary != nil {
		op := "<"
		if !w.Older {
			op = ">"
		}
		sb.Where(fmt.Sprintf("(date_added, id) %s (%s, %s)",
			op, sb.Args.Add(w.Boundary.Time.UTC()), sb.Args.Add(w.Boundary.ID)))
	}

	if w.Older {
		sb.OrderBy("date_added DESC", "id DESC")
	} else {
		sb.OrderBy("date_added ASC", "id ASC")
	}
	if w.Limit > 0 {
		sb.Limit(w.Limit)
	}

	return sb.Build()
}

// DeleteFeed removes a subscription; its articles cascade.
func (db *DB) DeleteFeed(ctx context.Context, id string) error {
	if _, err := db.db.ExecContext(ctx, "DELETE FROM feeds WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}

// SetFeedLastUpdated stamps a feed after a successful refresh.
func (db *DB) SetFeedLastUpdated(ctx context.Context, id string, at time.Time) error {
	if _, err := db.db.ExecContext(ctx, "UPDATE feeds SET last_updated = $1 WHERE id = $2", at.UTC(), id); err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	return nil
}
