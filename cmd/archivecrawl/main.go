package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cartoon-ingest/pkg/archive"
	"cartoon-ingest/pkg/config"
	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/filter"
	"cartoon-ingest/pkg/ingest"
	"cartoon-ingest/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "archivecrawl",
		Short:         "Ingest playable cartoons from the archive catalog into MongoDB",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfgFile, "config", "", "Config file (default ./config.yaml)")
	fs.Int("max-pages", 50, "Max catalog pages to crawl")
	fs.Duration("page-delay", time.Second, "Pause after each catalog page before fetching the next")
	fs.Int("max-stale-pages", 1, "Stop after this many consecutive pages without a new video")
	fs.String("collection", "animation_unsorted", "Archive collection to crawl")
	fs.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection string")
	fs.String("db", "cartoon", "MongoDB database name")
	fs.String("log-level", "info", "Log level")
	fs.String("log-format", "json", "Log format (json or console)")
	fs.String("pushgateway", "", "Prometheus Pushgateway URL (empty disables pushing)")

	if err := config.BindFlags(v, fs, map[string]string{
		"max-pages":       "crawl.max_pages",
		"page-delay":      "crawl.page_delay",
		"max-stale-pages": "crawl.max_stale_pages",
		"collection":      "archive.collection",
		"mongo-uri":       "mongo.uri",
		"db":              "mongo.database",
		"log-level":       "log.level",
		"log-format":      "log.format",
		"pushgateway":     "metrics.pushgateway_url",
	}); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Configure(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "archivecrawl"})
	log := logging.WithComponent("main")

	dbClient := db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err := dbClient.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dbClient.Close(closeCtx)
	}()

	if err := dbClient.EnsureIndexes(ctx); err != nil {
		log.Error().Err(err).Msg("failed to ensure indexes")
		return err
	}

	catalog, resolver, urls := archive.Clients(cfg.Archive)
	driver := ingest.New(ingest.Config{
		MaxPages:      cfg.Crawl.MaxPages,
		PageDelay:     cfg.Crawl.PageDelay,
		MaxStalePages: cfg.Crawl.MaxStalePages,
	}, ingest.Deps{
		Catalog:    catalog,
		Resolver:   resolver,
		Duplicates: filter.NewAlreadyIngestedFilter(dbClient),
		Store:      dbClient,
		URLs:       &urls,
	})

	start := time.Now()
	res, runErr := driver.Run(ctx)
	printSummary(res, time.Since(start))

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := driver.Metrics().Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, res.RunID); err != nil {
			log.Warn().Err(err).Msg("failed to push metrics")
		}
	}

	if runErr != nil {
		log.Error().Err(runErr).Str(logging.FieldRunID, res.RunID).Msg("crawl aborted")
		return runErr
	}
	return nil
}

func printSummary(res ingest.Result, elapsed time.Duration) {
	fmt.Printf("Run %s: %s saved over %s pages in %s (stopped: %s)\n",
		res.RunID,
		humanize.Comma(int64(res.Saved)),
		humanize.Comma(int64(res.Pages)),
		elapsed.Round(time.Millisecond),
		res.Stop,
	)

	if len(res.Skipped) == 0 {
		return
	}
	reasons := make([]string, 0, len(res.Skipped))
	for reason, n := range res.Skipped {
		reasons = append(reasons, fmt.Sprintf("%s=%s", reason, humanize.Comma(int64(n))))
	}
	sort.Strings(reasons)
	fmt.Printf("Skipped %s: %s\n", humanize.Comma(int64(res.SkippedTotal())), strings.Join(reasons, " "))
}
