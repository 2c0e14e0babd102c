package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "cartoon_ingest"

// Crawl holds the counters of one ingestion run on a private registry, so runs
// in the same process (tests) do not share state.
type Crawl struct {
	registry *prometheus.Registry

	PagesFetched prometheus.Counter
	RecordsSaved prometheus.Counter
	Skipped      *prometheus.CounterVec
	FetchErrors  *prometheus.CounterVec
	LastRunSaved prometheus.Gauge
}

// NewCrawl creates and registers the crawl metrics.
func NewCrawl() *Crawl {
	reg := prometheus.NewRegistry()
	c := &Crawl{
		registry: reg,
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Catalog pages requested.",
		}),
		RecordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_saved_total",
			Help:      "Videos written to the store.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_skipped_total",
			Help:      "Catalog entries not ingested, by reason.",
		}, []string{"reason"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed requests to the archive, by kind (catalog, metadata).",
		}, []string{"kind"}),
		LastRunSaved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_saved",
			Help:      "Videos saved by the most recent run.",
		}),
	}
	reg.MustRegister(c.PagesFetched, c.RecordsSaved, c.Skipped, c.FetchErrors, c.LastRunSaved)
	return c
}

// Registry exposes the registry the crawl metrics live on.
func (c *Crawl) Registry() *prometheus.Registry {
	return c.registry
}

// Push sends the current values to a Prometheus Pushgateway, grouped by run id.
func (c *Crawl) Push(ctx context.Context, gatewayURL, job, runID string) error {
	pusher := push.New(gatewayURL, job).Gatherer(c.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
