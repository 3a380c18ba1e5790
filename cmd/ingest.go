package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"scotty/config"
	"scotty/db"
	"scotty/fetch"
	"scotty/ingest"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Run a single ingestion cycle",
		Description: `Runs one ingestion cycle over the configured feed catalog and exits.

Registers any feeds missing from the database, fetches every registered
feed and stores the entries that are not yet present. Prints the cycle
report as a JSON object to stdout; all log messages go to stderr.

Can be used from cron or scripts as an alternative to the built-in
scheduler of the serve command.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.DurationFlag{
				Name:    "fetch-timeout",
				Value:   30 * time.Second,
				Usage:   "Timeout for a single feed fetch",
				EnvVars: []string{"SCOTTY_FETCH_TIMEOUT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the report
			log.SetOutput(os.Stderr)

			catalog, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("could not load feed catalog: %w", err)
			}

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("could not run migrations: %w", err)
			}

			store, err := db.NewStore(database)
			if err != nil {
				return fmt.Errorf("could not open database: %w", err)
			}
			defer store.Close()

			fetcher := fetch.NewClient(ctx.Duration("fetch-timeout"), fetch.DefaultMaxEntries)
			pipeline := ingest.NewPipeline(store, fetcher, catalog, nil)

			report, err := pipeline.RunCycle(ctx.Context)
			if err != nil {
				return err
			}

			reportJson, err := json.Marshal(report)
			if err != nil {
				return err
			}
			fmt.Println(string(reportJson))

			return nil
		},
	}
}
