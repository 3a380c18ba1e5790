package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"scotty/db"
	"scotty/ingest"
	"scotty/models"
	"scotty/view"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

type ServerConfig struct {

	// The store backing the read endpoints
	Store *db.Store

	// The merged read model
	View *view.View

	// The pipeline behind the manual refresh trigger
	Pipeline *ingest.Pipeline

	// Broadcast channels to pass store changes to SSE clients
	Broadcaster *Broadcaster
}

// parseLimit clamps the limit query parameter to 1..100, defaulting to 20.
func parseLimit(c *fiber.Ctx) int {
	limit, err := strconv.ParseInt(c.Query("limit", "20"), 0, 32)
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return int(limit)
}

// Returns a fiber.App instance serving the merged feed read model, the
// manual refresh trigger and the SSE change-notification stream
func Server(config *ServerConfig) *fiber.App {

	bc := config.Broadcaster

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Cache-Control",
	}))

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	app.Get("/api/items", func(c *fiber.Ctx) error {
		limit := parseLimit(c)

		items, err := config.View.LatestAcrossFeeds(c.UserContext(), limit)
		if err != nil {
			log.WithError(err).Error("Error getting merged items")
			return c.Status(500).JSON(fiber.Map{"error": "could not read items"})
		}

		return c.JSON(items)
	})

	app.Get("/api/feeds", func(c *fiber.Ctx) error {
		feeds, err := config.Store.ListFeeds(c.UserContext())
		if err != nil {
			log.WithError(err).Error("Error listing feeds")
			return c.Status(500).JSON(fiber.Map{"error": "could not read feeds"})
		}
		if feeds == nil {
			feeds = []models.Feed{}
		}
		return c.JSON(feeds)
	})

	app.Get("/api/categories", func(c *fiber.Ctx) error {
		categories, err := config.Store.ListCategories(c.UserContext())
		if err != nil {
			log.WithError(err).Error("Error listing categories")
			return c.Status(500).JSON(fiber.Map{"error": "could not read categories"})
		}
		if categories == nil {
			categories = []models.Category{}
		}
		return c.JSON(categories)
	})

	app.Get("/api/feeds/:id/items", func(c *fiber.Ctx) error {
		feedId, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid feed id"})
		}
		limit := parseLimit(c)

		items, err := config.View.ItemsForFeed(c.UserContext(), feedId, limit)
		if err != nil {
			log.WithError(err).Error("Error getting feed items")
			return c.Status(500).JSON(fiber.Map{"error": "could not read items"})
		}

		return c.JSON(items)
	})

	// Manual refresh trigger. Returns the cycle report, or 409 when a cycle
	// is already in flight.
	app.Post("/api/refresh", func(c *fiber.Ctx) error {
		report, err := config.Pipeline.RunCycle(c.UserContext())
		if errors.Is(err, ingest.ErrCycleInFlight) {
			return c.Status(409).JSON(fiber.Map{"error": "refresh already in progress"})
		}
		if err != nil {
			log.WithError(err).Error("Manual refresh failed")
			return c.Status(500).JSON(fiber.Map{"error": "refresh failed"})
		}

		return c.JSON(report)
	})

	app.Delete("/api/items/sse", func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		bc.RemoveClient(key)
		return c.Status(200).SendString("OK")
	})

	app.Get("/api/items/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		sseItemChannel := make(chan models.ItemCreatedEvent, 10) // Buffered channel
		sseCycleChannel := make(chan models.CycleCompletedEvent, 10)
		aliveChan := time.NewTicker(5 * time.Second)

		defer aliveChan.Stop()

		// Register the client
		bc.AddClient(key, sseItemChannel, sseCycleChannel)

		cleanup := func() {
			log.Infof("Cleaning up SSE stream for client: %s", key)
			bc.RemoveClient(key)
		}

		// Use StreamWriter to manage SSE streaming
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cleanup()

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveChan.C:
					// Send keep-alive pings
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-sseItemChannel:
					if !ok {
						log.Warnf("Item channel closed for client %s", key)
						return
					}
					jsonItem, err := json.Marshal(event.Item)
					if err != nil {
						log.Errorf("Error marshalling item for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: item-created\ndata: %s\n\n", jsonItem); err != nil {
						log.Warnf("Failed to send item-created event to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush item-created event for client %s: %v", key, err)
						return
					}

				case event, ok := <-sseCycleChannel:
					if !ok {
						log.Warnf("Cycle channel closed for client %s", key)
						return
					}
					jsonReport, err := json.Marshal(event.Report)
					if err != nil {
						log.Errorf("Error marshalling report for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: cycle-completed\ndata: %s\n\n", jsonReport); err != nil {
						log.Warnf("Failed to send cycle-completed event to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush cycle-completed event for client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}
