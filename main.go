package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cartoon-ingest/pkg/archive"
	"cartoon-ingest/pkg/config"
	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/domain"
	"cartoon-ingest/pkg/filter"
)

// main prints the first entries of catalog page 1. With --mark-new, entries not yet
// in MongoDB are flagged.
func main() {
	fs := pflag.NewFlagSet("cartoon-ingest", pflag.ExitOnError)
	page := fs.Int("page", 1, "Catalog page to preview")
	limit := fs.Int("n", 10, "Number of entries to show")
	markNew := fs.Bool("mark-new", false, "Flag entries not yet ingested (needs MongoDB)")
	fs.String("collection", "animation_unsorted", "Archive collection to preview")
	_ = fs.Parse(os.Args[1:])

	v := viper.New()
	if err := config.BindFlags(v, fs, map[string]string{"collection": "archive.collection"}); err != nil {
		log.Fatalf("Failed to bind flags: %v", err)
	}
	cfg, err := config.Load(v, "")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	catalog, _, _ := archive.Clients(cfg.Archive)
	entries, err := catalog.FetchPage(ctx, *page)
	if err != nil {
		log.Fatalf("Failed to fetch catalog: %v", err)
	}

	maxEntries := min(*limit, len(entries))

	fresh := map[string]bool{}
	if *markNew && maxEntries > 0 {
		fresh, err = newIdentifiers(ctx, cfg, entries[:maxEntries])
		if err != nil {
			log.Fatalf("Failed to check stored videos: %v", err)
		}
	}

	fmt.Printf("Found %d entries on page %d. Showing first %d:\n\n", len(entries), *page, maxEntries)

	for i := 0; i < maxEntries; i++ {
		entry := entries[i]
		marker := ""
		if fresh[entry.Identifier] {
			marker = " [new]"
		}
		fmt.Printf("Entry %d:%s\n", i+1, marker)
		fmt.Printf("  Identifier: %s\n", entry.Identifier)
		if entry.Title != nil {
			fmt.Printf("  Title: %s\n", *entry.Title)
		}
		if entry.Creator != nil {
			fmt.Printf("  Creator: %s\n", *entry.Creator)
		}
		if entry.Date != nil {
			fmt.Printf("  Date: %s\n", *entry.Date)
		}
		if len(entry.Collection) > 0 {
			fmt.Printf("  Collections: %s\n", strings.Join(entry.Collection, ", "))
		}
		fmt.Printf("  Thumbnail: %s\n", archive.ThumbnailURL(entry.Identifier))
		fmt.Println()
	}
}

func newIdentifiers(ctx context.Context, cfg *config.Config, entries []domain.CatalogEntry) (map[string]bool, error) {
	client := db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	defer client.Close(ctx)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Identifier
	}
	kept, err := filter.FilterIdentifiers(ctx, ids, filter.NewBlankIdentifierFilter(), filter.NewAlreadyIngestedFilter(client))
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(kept))
	for _, id := range kept {
		out[id] = true
	}
	return out, nil
}
