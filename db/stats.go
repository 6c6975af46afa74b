package db

import (
	"context"

	sqlbuilder "github.com/huandu/go-sqlbuilder"

	"github.com/kdwils/feedreader/models"
)

// GetArticleCountPerTime returns the number of stored articles per time
// bucket, for the dashboard stats endpoint.
func (db *DB) GetArticleCountPerTime(ctx context.Context, interval string) ([]models.ArticlesAggregatedByTime, error) {
	var bucket string
	switch interval {
	case "day":
		bucket = "date_trunc('day', published)"
	case "week":
		bucket = "date_trunc('week', published)"
	default:
		bucket = "date_trunc('hour', published)"
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(bucket, "count(*) as count").From("articles")
	sb.GroupBy(bucket)
	sb.OrderBy(bucket + " ASC")

	query, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.ArticlesAggregatedByTime
	for rows.Next() {
		var count models.ArticlesAggregatedByTime
		if err := rows.Scan(&count.Time, &count.Count); err != nil {
			continue
		}
		counts = append(counts, count)
	}

	return counts, rows.Err()
}
