package db

import (
	"context"
	"time"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes read, unfavorited articles whose read date is older than the
// retention window. Keeps the database size down without touching anything
// the reader might still come back to.
func (db *DB) Tidy(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC()

	deleteArticles := sb.PostgreSQL.NewDeleteBuilder()
	deleteArticles.DeleteFrom("articles")
	deleteArticles.Where(
		deleteArticles.Equal("read", true),
		deleteArticles.Equal("favorited", false),
		deleteArticles.LessEqualThan("read_date", cutoff),
	)

	query, args := deleteArticles.Build()
	log.WithFields(log.Fields{
		"cutoff": cutoff,
	}).Info("Tidying database")

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
