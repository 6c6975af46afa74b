package cmd

import (
	"errors"
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"

	"github.com/kdwils/feedreader/db"
	"github.com/kdwils/feedreader/models"
)

func addCmd() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Subscribe to a feed",
		Description: `Interactively subscribe to a new RSS or Atom feed.

Prompts for the feed details and registers the subscription in the
database. Articles show up after the next refresh sweep.`,
		Flags: dbFlags(),
		Action: func(ctx *cli.Context) error {
			name, err := prompt.New().Ask("Name:").Input("My Favorite Blog")
			if err != nil {
				return err
			}

			siteURL, err := prompt.New().Ask("Site URL:").Input("https://example.com")
			if err != nil {
				return err
			}

			feedURL, err := prompt.New().Ask("Feed URL:").Input("https://example.com/rss")
			if err != nil {
				return err
			}
			if feedURL == "" {
				return errors.New("feed url is required")
			}

			database, err := db.NewDB(ctx.Context, dbConfig(ctx))
			if err != nil {
				return fmt.Errorf("could not connect to database: %w", err)
			}
			defer database.Close()

			feed := models.NewFeed(name, siteURL, feedURL)
			if err := database.CreateFeed(ctx.Context, feed); err != nil {
				return fmt.Errorf("could not register feed: %w", err)
			}

			fmt.Println("Subscribed to feed...", feedURL)
			return nil
		},
	}
}
