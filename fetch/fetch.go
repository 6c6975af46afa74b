// Package fetch retrieves and parses RSS/Atom feeds into articles.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pemistahl/lingua-go"

	"github.com/kdwils/feedreader/models"
)

// Titles shorter than this carry too little signal for language detection.
const minDetectionLength = 20

// Fetcher turns a feed subscription into its current batch of articles.
type Fetcher interface {
	Fetch(ctx context.Context, feed models.Feed) ([]models.Article, error)
}

// RSSFetcher fetches feeds over HTTP and parses them with gofeed.
type RSSFetcher struct {
	parser   *gofeed.Parser
	detector lingua.LanguageDetector
}

func NewRSSFetcher() *RSSFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "feedreader/1.0"

	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		WithLowAccuracyMode().
		Build()

	return &RSSFetcher{
		parser:   parser,
		detector: detector,
	}
}

// Fetch retrieves the feed URL and maps its entries to articles. Entries
// without a link are dropped since the link is the identity of an article.
func (f *RSSFetcher) Fetch(ctx context.Context, feed models.Feed) ([]models.Article, error) {
	parsed, err := f.parser.ParseURLWithContext(feed.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", feed.Name, err)
	}

	now := time.Now().UTC()
	articles := make([]models.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		articles = append(articles, models.Article{
			ID:        models.ArticleID(item.Link),
			FeedID:    feed.ID,
			Title:     item.Title,
			Link:      item.Link,
			Author:    firstAuthor(item),
			Language:  f.language(item.Title),
			Published: published,
		})
	}

	return articles, nil
}

func firstAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}

func (f *RSSFetcher) language(title string) string {
	if len(title) < minDetectionLength {
		return ""
	}
	lang, ok := f.detector.DetectLanguageOf(title)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
