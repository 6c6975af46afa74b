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

// ArticleScope identifies which articles a listing paginates: one feed or
// all of them, narrowed by a read-state filter. Its fingerprint is baked
// into every cursor so tokens cannot cross listings.
type ArticleScope struct {
	FeedID string
	Filter models.Filter
}

func (s ArticleScope) String() string {
	filter := s.Filter
	if filter == "" {
		filter = models.FilterAll
	}
	if s.FeedID == "" {
		return "articles/" + string(filter)
	}
	return "articles/" + s.FeedID + "/" + string(filter)
}

func articleKey(a models.Article) paging.Key {
	return paging.Key{Time: a.Published, ID: a.ID}
}

// ListArticles returns one page of the scope's articles, newest first.
func (db *DB) ListArticles(ctx context.Context, scope ArticleScope, req paging.Request) (*paging.Page[models.Article], error) {
	return paging.FetchPage(ctx, scope.String(), req, articleKey, db.articleWindow(scope))
}

func (db *DB) articleWindow(scope ArticleScope) paging.WindowFunc[models.Article] {
	return func(ctx context.Context, w paging.Window) ([]models.Article, error) {
		query, args := buildArticleWindow(scope, w)

		rows, err := db.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query error: %w", err)
		}
		defer rows.Close()

		return scanArticles(rows)
	}
}

// buildArticleWindow constructs the single boundary-qualified range query a
// page fetch issues. The row comparison on (published, id) matches the
// composite index in both scan directions.
func buildArticleWindow(scope ArticleScope, w paging.Window) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "feed_id", "title", "link", "author", "language", "published", "read", "favorited", "read_date")
	sb.From("articles")

	if scope.FeedID != "" {
		sb.Where(sb.Equal("feed_id", scope.FeedID))
	}

	switch scope.Filter {
	case models.FilterUnread:
		sb.Where(sb.Equal("read", false))
	case models.FilterRead:
		sb.Where(sb.Equal("read", true))
	case models.FilterFavorites:
		sb.Where(sb.Equal("favorited", true))
	}

	if w.Boundary != nil {
		op := "<"
		if !w.Older {
			op = ">"
		}
		sb.Where(fmt.Sprintf("(published, id) %s (%s, %s)",
			op, sb.Args.Add(w.Boundary.Time.UTC()), sb.Args.Add(w.Boundary.ID)))
	}

	if w.Older {
		sb.OrderBy("published DESC", "id DESC")
	} else {
		sb.OrderBy("published ASC", "id ASC")
	}
	sb.Limit(w.Limit)

	return sb.Build()
}

func scanArticles(rows *sql.Rows) ([]models.Article, error) {
	var articles []models.Article
	for rows.Next() {
		var article models.Article
		var readDate sql.NullTime
		if err := rows.Scan(
			&article.ID,
			&article.FeedID,
			&article.Title,
			&article.Link,
			&article.Author,
			&article.Language,
			&article.Published,
			&article.Read,
			&article.Favorited,
			&readDate,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if readDate.Valid {
			t := readDate.Time
			article.ReadDate = &t
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// GetArticle fetches a single article by id.
func (db *DB) GetArticle(ctx context.Context, id string) (models.Article, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "feed_id", "title", "link", "author", "language", "published", "read", "favorited", "read_date")
	sb.From("articles")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.Article{}, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	articles, err := scanArticles(rows)
	if err != nil {
		return models.Article{}, err
	}
	if len(articles) == 0 {
		return models.Article{}, sql.ErrNoRows
	}
	return articles[0], nil
}

// InsertArticles stores a refresh batch, skipping links already present.
// Returns the ids of the rows actually inserted.
func (db *DB) InsertArticles(ctx context.Context, articles []models.Article) ([]string, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("articles")
	ib.Cols("id", "feed_id", "title", "link", "author", "language", "published", "read", "favorited", "read_date")
	for _, a := range articles {
		ib.Values(a.ID, a.FeedID, a.Title, a.Link, a.Author, a.Language, a.Published.UTC(), a.Read, a.Favorited, a.ReadDate)
	}
	ib.SQL("ON CONFLICT (link) DO NOTHING RETURNING id")

	query, args := ib.Build()
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert error: %w", err)
	}
	defer rows.Close()

	var inserted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		inserted = append(inserted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"batch":  len(articles),
		"stored": len(inserted),
	}).Debug("Inserted articles")

	return inserted, nil
}

// ToggleRead flips an article's read state, stamping or clearing the read
// date, and returns the updated article.
func (db *DB) ToggleRead(ctx context.Context, id string) (models.Article, error) {
	_, err := db.db.ExecContext(ctx, `
		UPDATE articles
		SET read = NOT read,
		    read_date = CASE WHEN read THEN NULL ELSE $1 END
		WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return models.Article{}, fmt.Errorf("update error: %w", err)
	}
	return db.GetArticle(ctx, id)
}

// ToggleFavorite flips an article's favorited state and returns the updated
// article.
func (db *DB) ToggleFavorite(ctx context.Context, id string) (models.Article, error) {
	_, err := db.db.ExecContext(ctx, "UPDATE articles SET favorited = NOT favorited WHERE id = $1", id)
	if err != nil {
		return models.Article{}, fmt.Errorf("update error: %w", err)
	}
	return db.GetArticle(ctx, id)
}
