// Package maintenance holds one-off fixes over the videos collection.
package maintenance

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/logging"
)

// legacyFields maps counters written by early app versions to their current name.
var legacyFields = map[string]string{
	"like": "likes",
	"view": "views",
}

// Store is implemented by *db.Client.
type Store interface {
	LegacyCounterDocs(ctx context.Context) ([]bson.M, error)
	ApplyVideoUpdates(ctx context.Context, updates []db.VideoUpdate) (int64, error)
	ResetVideoCounters(ctx context.Context) (int64, error)
}

// Maintainer runs counter maintenance.
type Maintainer struct {
	store Store
	log   zerolog.Logger
}

// New creates a new maintainer.
func New(store Store) *Maintainer {
	return &Maintainer{store: store, log: logging.WithComponent("maintenance")}
}

// MigrateLegacyCounters folds the singular like/view counters into likes/views,
// drops the duplicated id field and returns the number of modified videos.
func (m *Maintainer) MigrateLegacyCounters(ctx context.Context) (int64, error) {
	docs, err := m.store.LegacyCounterDocs(ctx)
	if err != nil {
		return 0, err
	}

	updates := PlanLegacyMigration(docs)
	if len(updates) == 0 {
		m.log.Info().Msg("no legacy counters found")
		return 0, nil
	}

	modified, err := m.store.ApplyVideoUpdates(ctx, updates)
	if err != nil {
		return 0, fmt.Errorf("migrate legacy counters: %w", err)
	}
	m.log.Info().Int("planned", len(updates)).Int64("modified", modified).Msg("legacy counters migrated")
	return modified, nil
}

// ResetCounters zeroes views, likes and dislikes on every video.
func (m *Maintainer) ResetCounters(ctx context.Context) (int64, error) {
	n, err := m.store.ResetVideoCounters(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Info().Int64("videos", n).Msg("counters reset")
	return n, nil
}

// PlanLegacyMigration computes the update for every document that carries a
// legacy field. Documents without one produce no update.
func PlanLegacyMigration(docs []bson.M) []db.VideoUpdate {
	var updates []db.VideoUpdate
	for _, doc := range docs {
		id, ok := doc["_id"]
		if !ok {
			continue
		}

		u := db.VideoUpdate{ID: id, Set: bson.M{}}
		if _, ok := doc["id"]; ok {
			u.Unset = append(u.Unset, "id")
		}
		for _, legacy := range []string{"like", "view"} {
			old, ok := doc[legacy]
			if !ok {
				continue
			}
			current := legacyFields[legacy]
			u.Set[current] = toInt64(doc[current]) + toInt64(old)
			u.Unset = append(u.Unset, legacy)
		}

		if len(u.Unset) == 0 {
			continue
		}
		if len(u.Set) == 0 {
			u.Set = nil
		}
		updates = append(updates, u)
	}
	return updates
}

// toInt64 reads a counter the way it may have been stored by any app version.
// Missing or non-numeric values count as zero.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}
