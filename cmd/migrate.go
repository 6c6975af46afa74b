package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kdwils/feedreader/db"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Runs database migrations on the configured database. Will create the schema if it does not exist.`,
		Flags:       dbFlags(),
		Action: func(ctx *cli.Context) error {
			fmt.Printf("Database configured: %s:%d/%s\n",
				ctx.String("db-host"),
				ctx.Int("db-port"),
				ctx.String("db-name"),
			)
			return db.Migrate(dbConfig(ctx))
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migration",
		Description: `Rolls back the last database migration`,
		Flags:       dbFlags(),
		Action: func(ctx *cli.Context) error {
			fmt.Printf("Database configured: %s:%d/%s\n",
				ctx.String("db-host"),
				ctx.Int("db-port"),
				ctx.String("db-name"),
			)
			return db.Rollback(dbConfig(ctx))
		},
	}
}
