package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/kdwils/feedreader/db"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedreader",
		Usage: "A self-hosted RSS and Atom feed reader",
		Description: `A feed reader that polls your subscribed RSS and Atom feeds,
		stores the articles in PostgreSQL and serves them over an HTTP API
		with cursor based pagination.

		Flags can generally be set via environment variables, e.g.:

		--db-host => FEEDREADER_DB_HOST=localhost
		--port => FEEDREADER_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
			addCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// dbFlags returns the PostgreSQL connection flags shared by every command
// that touches the database.
func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-host",
			Usage:   "PostgreSQL host",
			EnvVars: []string{"FEEDREADER_DB_HOST"},
			Value:   "localhost",
		},
		&cli.IntFlag{
			Name:    "db-port",
			Usage:   "PostgreSQL port",
			EnvVars: []string{"FEEDREADER_DB_PORT"},
			Value:   5432,
		},
		&cli.StringFlag{
			Name:    "db-user",
			Usage:   "PostgreSQL user",
			EnvVars: []string{"FEEDREADER_DB_USER"},
			Value:   "feedreader",
		},
		&cli.StringFlag{
			Name:    "db-password",
			Usage:   "PostgreSQL password",
			EnvVars: []string{"FEEDREADER_DB_PASSWORD"},
			Value:   "feedreader",
		},
		&cli.StringFlag{
			Name:    "db-name",
			Usage:   "PostgreSQL database name",
			EnvVars: []string{"FEEDREADER_DB_NAME"},
			Value:   "feedreader",
		},
	}
}

func dbConfig(ctx *cli.Context) db.Config {
	return db.Config{
		Host:     ctx.String("db-host"),
		Port:     ctx.Int("db-port"),
		User:     ctx.String("db-user"),
		Password: ctx.String("db-password"),
		Database: ctx.String("db-name"),
	}
}
