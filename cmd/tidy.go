package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kdwils/feedreader/db"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing articles that are old.

		Removes read, unfavorited articles whose read date is older than the
		retention period. This is to keep the database size down. Favorited
		articles are never removed.`,
		Flags: append([]cli.Flag{
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "How long read articles are kept",
				EnvVars: []string{"FEEDREADER_RETENTION"},
				Value:   90 * 24 * time.Hour,
			},
		}, dbFlags()...),
		Action: func(ctx *cli.Context) error {
			database, err := db.NewDB(ctx.Context, dbConfig(ctx))
			if err != nil {
				return fmt.Errorf("could not connect to database: %w", err)
			}
			defer database.Close()

			removed, err := database.Tidy(ctx.Context, ctx.Duration("retention"))
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d articles\n", removed)
			return nil
		},
	}
}
