package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kdwils/feedreader/config"
	"github.com/kdwils/feedreader/db"
	"github.com/kdwils/feedreader/fetch"
	"github.com/kdwils/feedreader/models"
	"github.com/kdwils/feedreader/refresh"
	"github.com/kdwils/feedreader/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feedreader API",
		Description: `Starts the HTTP server and the background feed refresher.

Launches the HTTP server on the specified or default port and polls every
subscribed feed on a fixed interval. New articles are written to PostgreSQL
and pushed to connected SSE clients as they arrive.`,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				EnvVars: []string{"FEEDREADER_PORT"},
				Value:   3000,
			},
			&cli.DurationFlag{
				Name:    "refresh-interval",
				Usage:   "How often to poll subscribed feeds",
				EnvVars: []string{"FEEDREADER_REFRESH_INTERVAL"},
				Value:   15 * time.Minute,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a feeds configuration file to seed subscriptions from",
				EnvVars: []string{"FEEDREADER_CONFIG"},
			},
		}, dbFlags()...),
		Action: func(ctx *cli.Context) error {
			database, err := db.NewDB(ctx.Context, dbConfig(ctx))
			if err != nil {
				return fmt.Errorf("could not connect to database: %w", err)
			}
			defer database.Close()

			if path := ctx.String("config"); path != "" {
				if err := seedFeeds(ctx, database, path); err != nil {
					return err
				}
			}

			// Channel for passing freshly stored articles to SSE clients
			events := make(chan models.CreateArticleEvent, 64)

			broadcaster := server.NewBroadcaster()
			go broadcaster.Listen(events)

			refresher := refresh.New(database, fetch.NewRSSFetcher(), ctx.Duration("refresh-interval"), events)

			app := server.Server(&server.ServerConfig{
				Store:       database,
				Refresher:   refresher,
				Broadcaster: broadcaster,
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			var wg sync.WaitGroup

			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				app.ShutdownWithTimeout(60 * time.Second)
				defer wg.Add(-2) // Decrement the waitgroup counter by 2 after shutdown of server and refresher
				refresher.Shutdown()
				broadcaster.Shutdown()
				close(events)
			}()

			go func() {
				log.WithField("interval", ctx.Duration("refresh-interval")).Info("Starting refresher")
				refresher.Start(ctx.Context)
			}()

			go func() {
				log.WithField("port", ctx.Int("port")).Info("Starting server")
				if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
					log.Panic(err)
				}
			}()

			// Wait for both the server and refresher to shutdown
			wg.Add(2)
			wg.Wait()

			fmt.Println("Done!")

			return nil
		},
	}
}

// seedFeeds registers every subscription from the config file. Already
// registered feeds are left untouched.
func seedFeeds(ctx *cli.Context, database *db.DB, path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, sub := range cfg.Feeds {
		feed := models.NewFeed(sub.Name, sub.SiteURL, sub.FeedURL)
		if err := database.CreateFeed(ctx.Context, feed); err != nil {
			return fmt.Errorf("could not register feed %s: %w", sub.FeedURL, err)
		}
		log.WithFields(log.Fields{
			"name": sub.Name,
			"url":  sub.FeedURL,
		}).Info("Registered feed")
	}

	return nil
}
