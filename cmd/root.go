package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "scotty",
		Usage: "A local RSS/Atom feed aggregator",
		Description: `Scotty pulls a configured catalog of RSS and Atom feeds on a
		fixed interval, merges new entries into a local SQLite database and
		serves the merged, time-ordered result over an HTTP API.

		Every entry is stored exactly once: entries are deduplicated across
		fetches and across feeds by their link. A failing feed never blocks
		the others, it only shows up as an error in the cycle report.

		Flags can generally be set via environment variables, e.g.:

		--database => SCOTTY_DATABASE=scotty.db
		--port => SCOTTY_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			ingestCmd(),
			migrateCmd(),
			rollbackCmd(),
			initCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "scotty.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"SCOTTY_DATABASE"},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config/feeds.toml",
		Usage:   "Path to the feed catalog configuration file",
		EnvVars: []string{"SCOTTY_CONFIG"},
	}
}
