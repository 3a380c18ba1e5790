package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scotty/config"
	"scotty/db"
	"scotty/fetch"
	"scotty/ingest"
	"scotty/server"
	"scotty/view"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the merged feed",
		Description: `Starts the scotty HTTP server and the periodic ingestion loop.

Runs database migrations, registers the configured feed catalog and then
pulls every feed once per fetch interval, merging new entries into the
SQLite database. The merged, time-ordered result is available via the HTTP
API together with an SSE stream notifying clients of new items.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"SCOTTY_PORT"},
			},
			&cli.DurationFlag{
				Name:    "fetch-interval",
				Value:   2 * time.Minute,
				Usage:   "How often to run an ingestion cycle",
				EnvVars: []string{"SCOTTY_FETCH_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:    "fetch-timeout",
				Value:   30 * time.Second,
				Usage:   "Timeout for a single feed fetch",
				EnvVars: []string{"SCOTTY_FETCH_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:    "max-entries",
				Value:   fetch.DefaultMaxEntries,
				Usage:   "Maximum number of entries to take from a single fetch",
				EnvVars: []string{"SCOTTY_MAX_ENTRIES"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")

			catalog, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("could not load feed catalog: %w", err)
			}

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("could not run migrations: %w", err)
			}

			store, err := db.NewStore(database)
			if err != nil {
				return fmt.Errorf("could not open database: %w", err)
			}
			defer store.Close()

			// Channel for publishing store changes to SSE clients
			events := make(chan interface{}, 100)

			fetcher := fetch.NewClient(ctx.Duration("fetch-timeout"), ctx.Int("max-entries"))
			pipeline := ingest.NewPipeline(store, fetcher, catalog, events)

			broadcaster := server.NewBroadcaster()
			app := server.Server(&server.ServerConfig{
				Store:       store,
				View:        view.New(store),
				Pipeline:    pipeline,
				Broadcaster: broadcaster,
			})

			serveCtx, cancel := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go func() {
				log.WithFields(log.Fields{
					"interval": ctx.Duration("fetch-interval"),
				}).Info("Starting ingestion loop")
				if err := pipeline.Start(serveCtx, ctx.Duration("fetch-interval")); err != nil && err != context.Canceled {
					log.WithError(err).Error("Ingestion loop stopped")
				}
			}()

			// Fan pipeline events out to connected SSE clients. The events
			// channel is never closed: a cycle winding down after shutdown
			// may still publish into it.
			go server.Relay(serveCtx, events, broadcaster)

			go func() {
				<-serveCtx.Done()
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
					log.WithError(err).Error("Failed to shut down server")
				}
				broadcaster.Shutdown()
			}()

			log.WithFields(log.Fields{
				"port": ctx.Int("port"),
			}).Info("Starting server")
			if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			return nil
		},
	}
}
