// Package refresh keeps subscriptions up to date. A single supervised
// worker sweeps all feeds on a ticker; the paginator never sees any of this,
// it only observes new rows appearing in the order.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/kdwils/feedreader/fetch"
	"github.com/kdwils/feedreader/models"
)

var (
	refreshAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedreader_refresh_attempts_total",
		Help: "The total number of feed refresh attempts",
	})

	refreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedreader_refresh_failures_total",
		Help: "The total number of feed refreshes that gave up after retries",
	})

	articlesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedreader_articles_stored_total",
		Help: "The total number of new articles stored by refreshes",
	})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedreader_refresh_duration_seconds",
		Help:    "Duration of single feed refreshes",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms, double each bucket, 10 buckets
	})
)

// Store is the slice of the database the refresher writes through.
type Store interface {
	AllFeeds(ctx context.Context) ([]models.Feed, error)
	InsertArticles(ctx context.Context, articles []models.Article) ([]string, error)
	SetFeedLastUpdated(ctx context.Context, id string, at time.Time) error
}

// Refresher periodically fetches every subscribed feed and appends the new
// articles. It has an explicit lifecycle: Start blocks until the context is
// cancelled or Shutdown is called, and Shutdown waits for the loop to exit.
type Refresher struct {
	store    Store
	fetcher  fetch.Fetcher
	interval time.Duration
	events   chan<- models.CreateArticleEvent

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

// New builds a refresher. The events channel may be nil when nobody listens.
func New(store Store, fetcher fetch.Fetcher, interval time.Duration, events chan<- models.CreateArticleEvent) *Refresher {
	return &Refresher{
		store:    store,
		fetcher:  fetcher,
		interval: interval,
		events:   events,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs the sweep loop. The first sweep happens immediately so a fresh
// install has articles before the first tick.
func (r *Refresher) Start(ctx context.Context) {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Shutdown stops the loop and waits for any in-flight sweep to finish.
func (r *Refresher) Shutdown() {
	log.Info("Shutting down refresher")
	r.stopOnce.Do(func() {
		close(r.done)
	})
	<-r.stopped
}

func (r *Refresher) sweep(ctx context.Context) {
	feeds, err := r.store.AllFeeds(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Error listing feeds for refresh")
		return
	}

	for _, feed := range feeds {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if _, err := r.RefreshFeed(ctx, feed); err != nil {
			log.WithFields(log.Fields{
				"feed":  feed.Name,
				"error": err,
			}).Error("Error refreshing feed")
		}
	}
}

// RefreshFeed fetches one feed, retrying transient failures with bounded
// exponential backoff, and stores whatever articles are new. Also used
// directly by the manual refresh endpoint. Returns the number of articles
// stored.
func (r *Refresher) RefreshFeed(ctx context.Context, feed models.Feed) (int, error) {
	refreshAttempts.Inc()
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	var articles []models.Article
	err := backoff.Retry(func() error {
		var err error
		articles, err = r.fetcher.Fetch(ctx, feed)
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		refreshFailures.Inc()
		return 0, err
	}

	inserted, err := r.store.InsertArticles(ctx, articles)
	if err != nil {
		refreshFailures.Inc()
		return 0, err
	}

	articlesStored.Add(float64(len(inserted)))
	refreshDuration.Observe(time.Since(start).Seconds())

	if err := r.store.SetFeedLastUpdated(ctx, feed.ID, time.Now().UTC()); err != nil {
		// Stale last_updated is cosmetic, the articles are already stored.
		log.WithFields(log.Fields{
			"feed":  feed.Name,
			"error": err,
		}).Warn("Could not update feed timestamp")
	}

	r.publish(articles, inserted)

	log.WithFields(log.Fields{
		"feed":    feed.Name,
		"fetched": len(articles),
		"stored":  len(inserted),
	}).Info("Refreshed feed")

	return len(inserted), nil
}

func (r *Refresher) publish(articles []models.Article, inserted []string) {
	if r.events == nil || len(inserted) == 0 {
		return
	}

	isNew := lo.SliceToMap(inserted, func(id string) (string, bool) {
		return id, true
	})

	for _, article := range articles {
		if !isNew[article.ID] {
			continue
		}
		select {
		case r.events <- models.CreateArticleEvent{Article: article}:
		default:
			log.Warn("Event channel full, dropping create-article event")
		}
	}
}
