package models

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Feed is a subscribed RSS/Atom feed. The id is derived from the feed URL
// so re-adding the same feed is idempotent.
type Feed struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	SiteURL     string     `json:"siteUrl"`
	FeedURL     string     `json:"feedUrl"`
	DateAdded   time.Time  `json:"dateAdded"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// NewFeed builds a feed with its derived id and creation timestamp.
func NewFeed(name, siteURL, feedURL string) Feed {
	return Feed{
		ID:        base64.URLEncoding.EncodeToString([]byte(feedURL)),
		Name:      name,
		SiteURL:   siteURL,
		FeedURL:   feedURL,
		DateAdded: time.Now().UTC(),
	}
}

// Article is a single feed entry. Content fields never change after the
// article is stored; only the read/favorited state flips.
type Article struct {
	ID        string     `json:"id"`
	FeedID    string     `json:"feedId"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Author    string     `json:"author,omitempty"`
	Language  string     `json:"language,omitempty"`
	Published time.Time  `json:"published"`
	Read      bool       `json:"read"`
	Favorited bool       `json:"favorited"`
	ReadDate  *time.Time `json:"readDate,omitempty"`
}

// ArticleID derives the stable article id from its link.
func ArticleID(link string) string {
	return base64.URLEncoding.EncodeToString([]byte(link))
}

// Filter selects which articles a listing returns.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterUnread    Filter = "unread"
	FilterRead      Filter = "read"
	FilterFavorites Filter = "favorites"
)

// ParseFilter validates a filter value from the request layer. An empty
// value defaults to unread, which is what the index page shows.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "":
		return FilterUnread, nil
	case FilterAll, FilterUnread, FilterRead, FilterFavorites:
		return Filter(s), nil
	default:
		return "", fmt.Errorf("bad article filter: %s", s)
	}
}

// CreateArticleEvent fired when a refresh stores a new article
type CreateArticleEvent struct {
	Article Article
}

// FeedRefreshedEvent fired after a feed refresh completes
type FeedRefreshedEvent struct {
	FeedID   string
	Stored   int
	Duration time.Duration
}

// ArticlesAggregatedByTime is a per-bucket article count for the stats endpoint.
type ArticlesAggregatedByTime struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}
