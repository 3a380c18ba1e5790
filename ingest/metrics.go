package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scotty_ingest_cycles_total",
		Help: "The total number of ingestion cycles started",
	})

	cyclesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scotty_ingest_cycles_skipped_total",
		Help: "The number of cycle triggers skipped because a cycle was already in flight",
	})

	itemsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scotty_ingest_items_inserted_total",
		Help: "The total number of new feed items persisted",
	})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scotty_ingest_fetch_errors_total",
		Help: "The number of failed feed fetches per feed",
	}, []string{"feed"})
)
