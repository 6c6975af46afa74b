package refresh_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdwils/feedreader/models"
	"github.com/kdwils/feedreader/refresh"
)

type fakeStore struct {
	mu          sync.Mutex
	feeds       []models.Feed
	inserted    [][]models.Article
	newIDs      []string
	lastUpdated map[string]time.Time
}

func newFakeStore(feeds ...models.Feed) *fakeStore {
	return &fakeStore{
		feeds:       feeds,
		lastUpdated: make(map[string]time.Time),
	}
}

func (s *fakeStore) AllFeeds(ctx context.Context) ([]models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds, nil
}

func (s *fakeStore) InsertArticles(ctx context.Context, articles []models.Article) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, articles)
	return s.newIDs, nil
}

func (s *fakeStore) SetFeedLastUpdated(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdated[id] = at
	return nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	articles []models.Article
	failures int
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, feed models.Feed) ([]models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}
	return f.articles, nil
}

func article(link string) models.Article {
	return models.Article{
		ID:        models.ArticleID(link),
		Link:      link,
		Title:     link,
		Published: time.Now().UTC(),
	}
}

func TestRefreshFeedStoresNewArticles(t *testing.T) {
	feed := models.NewFeed("Example", "https://example.com", "https://example.com/rss")
	fresh := article("https://example.com/a")
	stale := article("https://example.com/b")

	store := newFakeStore(feed)
	store.newIDs = []string{fresh.ID}
	fetcher := &fakeFetcher{articles: []models.Article{fresh, stale}}
	events := make(chan models.CreateArticleEvent, 10)

	r := refresh.New(store, fetcher, time.Hour, events)
	stored, err := r.RefreshFeed(context.Background(), feed)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	require.Len(t, store.inserted, 1)
	assert.Len(t, store.inserted[0], 2)
	assert.Contains(t, store.lastUpdated, feed.ID)

	// Only the article that was actually new produces an event.
	select {
	case event := <-events:
		assert.Equal(t, fresh.ID, event.Article.ID)
	default:
		t.Fatal("expected a create-article event")
	}
	select {
	case event := <-events:
		t.Fatalf("unexpected extra event for %s", event.Article.ID)
	default:
	}
}

func TestRefreshFeedRetriesTransientFailure(t *testing.T) {
	feed := models.NewFeed("Flaky", "", "https://flaky.example.com/rss")
	fresh := article("https://flaky.example.com/a")

	store := newFakeStore(feed)
	store.newIDs = []string{fresh.ID}
	fetcher := &fakeFetcher{articles: []models.Article{fresh}, failures: 1}

	r := refresh.New(store, fetcher, time.Hour, nil)
	stored, err := r.RefreshFeed(context.Background(), feed)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 2, fetcher.calls)
}

func TestRefreshFeedGivesUpWhenCancelled(t *testing.T) {
	feed := models.NewFeed("Down", "", "https://down.example.com/rss")
	fetcher := &fakeFetcher{failures: 1 << 30}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := refresh.New(newFakeStore(feed), fetcher, time.Hour, nil)
	_, err := r.RefreshFeed(ctx, feed)
	assert.Error(t, err)
}

func TestStartSweepsAndShutsDown(t *testing.T) {
	feed := models.NewFeed("Example", "", "https://example.com/rss")
	fresh := article("https://example.com/a")

	store := newFakeStore(feed)
	store.newIDs = []string{fresh.ID}
	fetcher := &fakeFetcher{articles: []models.Article{fresh}}

	r := refresh.New(store, fetcher, 10*time.Millisecond, nil)
	go r.Start(context.Background())

	// The first sweep fires immediately, before the first tick.
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.inserted) > 0
	}, time.Second, 5*time.Millisecond)

	r.Shutdown()
}
