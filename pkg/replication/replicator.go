package replication

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/domain"
	"cartoon-ingest/pkg/logging"
)

const (
	defaultBatchSize = 100
	defaultWorkers   = 5
)

// VideoSource lists the videos to copy, along with how many stored documents
// could not be read as videos. *db.Client implements it.
type VideoSource interface {
	GetAllVideos(ctx context.Context) ([]domain.Video, int, error)
}

// Config wires the replication dependencies.
type Config struct {
	Source VideoSource
	Target db.DBProvider

	// BatchSize and Workers default to 100 and 5.
	BatchSize int
	Workers   int
	Logger    *zerolog.Logger
}

// Stats counts what a replication run did.
type Stats struct {
	Processed int
	Inserted  int
	// Unreadable counts source documents that could not be decoded and were not copied.
	Unreadable int
}

// Replicator copies videos from MongoDB into the Postgres `video` table.
//
// This is a one-shot "copy everything" flow; rows already present are left untouched.
type Replicator struct {
	source    VideoSource
	pg        db.DBProvider
	batchSize int
	workers   int
	log       zerolog.Logger
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("video source is required")
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("postgres target is required")
	}
	r := &Replicator{
		source:    cfg.Source,
		pg:        cfg.Target,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		log:       logging.WithComponent("replication"),
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	if cfg.Logger != nil {
		r.log = *cfg.Logger
	}
	return r, nil
}

// ReplicateVideos reads all videos from Mongo and inserts the missing ones into
// Postgres. The first failing batch cancels the rest.
func (r *Replicator) ReplicateVideos(ctx context.Context) (Stats, error) {
	if err := r.ensureVideoSchema(ctx); err != nil {
		return Stats{}, err
	}

	videos, unreadable, err := r.source.GetAllVideos(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("read videos: %w", err)
	}
	if unreadable > 0 {
		r.log.Warn().Int("unreadable", unreadable).Msg("some mongo documents could not be decoded and will not be copied")
	}
	r.log.Info().Int("videos", len(videos)).Int("batch_size", r.batchSize).Msg("loaded videos from mongo, processing in batches")

	var processed, inserted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, b := range splitBatches(videos, r.batchSize) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := r.insertBatch(gctx, b.videos)
			if err != nil {
				return fmt.Errorf("insert batch [%d:%d]: %w", b.start, b.end, err)
			}
			done := processed.Add(int64(len(b.videos)))
			total := inserted.Add(int64(n))
			r.log.Debug().Int("start", b.start).Int("end", b.end).Int("inserted", n).Msg("batch done")
			if done%1000 == 0 {
				r.log.Info().Int64("processed", done).Int("total", len(videos)).Int64("inserted", total).Msg("replication progress")
			}
			return nil
		})
	}

	err = g.Wait()
	stats := Stats{Processed: int(processed.Load()), Inserted: int(inserted.Load()), Unreadable: unreadable}
	if err != nil {
		return stats, err
	}

	r.log.Info().Int("processed", stats.Processed).Int("inserted", stats.Inserted).Int("unreadable", stats.Unreadable).Msg("replication complete")
	return stats, nil
}

type batch struct {
	videos     []domain.Video
	start, end int
}

// splitBatches cuts videos into consecutive batches of at most size elements.
func splitBatches(videos []domain.Video, size int) []batch {
	var out []batch
	for start := 0; start < len(videos); start += size {
		end := min(start+size, len(videos))
		out = append(out, batch{videos: videos[start:end], start: start, end: end})
	}
	return out
}

func (r *Replicator) ensureVideoSchema(ctx context.Context) error {
	if r.pg.DB() == nil {
		return fmt.Errorf("postgres DB not connected")
	}

	// identifier is the primary key, which also gives us uniqueness.
	const ddl = `
CREATE TABLE IF NOT EXISTS video (
  identifier TEXT PRIMARY KEY,
  mongo_id TEXT NOT NULL DEFAULT '',
  title TEXT,
  description TEXT,
  description_text TEXT NOT NULL DEFAULT '',
  author TEXT,
  date TEXT,
  mediatype TEXT,
  collection TEXT[] NOT NULL DEFAULT '{}',
  thumbnail TEXT NOT NULL DEFAULT '',
  video_url TEXT NOT NULL,
  views BIGINT NOT NULL DEFAULT 0,
  likes BIGINT NOT NULL DEFAULT 0,
  dislikes BIGINT NOT NULL DEFAULT 0,
  crawled_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := r.pg.DB().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create video table: %w", err)
	}
	return nil
}

const insertQuery = `
INSERT INTO video (identifier, mongo_id, title, description, description_text, author, date, mediatype,
  collection, thumbnail, video_url, views, likes, dislikes, crawled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, now()))
ON CONFLICT (identifier) DO NOTHING`

// insertBatch inserts one batch in a transaction and returns how many rows were new.
func (r *Replicator) insertBatch(ctx context.Context, videos []domain.Video) (int, error) {
	tx, err := r.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, v := range videos {
		if v.Identifier == "" || v.VideoURL == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, videoArgs(v)...)
		if err != nil {
			return 0, fmt.Errorf("insert video identifier=%q: %w", v.Identifier, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// videoArgs returns the insert parameters of a video in column order.
func videoArgs(v domain.Video) []any {
	var mongoID string
	if !v.ID.IsZero() {
		mongoID = v.ID.Hex()
	}
	collection := v.Collection
	if collection == nil {
		collection = []string{}
	}
	var crawledAt *time.Time
	if !v.CrawledAt.IsZero() {
		t := v.CrawledAt
		crawledAt = &t
	}
	return []any{
		v.Identifier, mongoID, v.Title, v.Description, v.DescriptionText, v.Author, v.Date, v.MediaType,
		collection, v.Thumbnail, v.VideoURL, v.Views, v.Likes, v.Dislikes, crawledAt,
	}
}
