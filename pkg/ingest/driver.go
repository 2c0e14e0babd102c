// Package ingest pages through the archive catalog and stores every new entry that
// has a playable video file.
//
// A run is strictly sequential: one page at a time, one entry at a time, with a
// fixed pause after every page. It stops at the first empty page, after
// MaxStalePages consecutive pages that stored nothing new, at the page budget
// (never more than 50 pages), or on a write failure.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"cartoon-ingest/pkg/archive"
	"cartoon-ingest/pkg/content"
	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/domain"
	"cartoon-ingest/pkg/logging"
	"cartoon-ingest/pkg/metrics"
)

const (
	// DefaultMaxPages is also the ceiling: a run never requests page 51.
	DefaultMaxPages  = 50
	DefaultPageDelay = time.Second
)

// CatalogSource returns one page of catalog entries.
type CatalogSource interface {
	FetchPage(ctx context.Context, page int) ([]domain.CatalogEntry, error)
}

// MediaResolver finds the playable file of a catalog entry.
type MediaResolver interface {
	ResolveMediaURL(ctx context.Context, identifier string) (string, bool, error)
}

// DuplicateChecker reports whether an identifier was already ingested.
type DuplicateChecker interface {
	Exists(ctx context.Context, identifier string) (bool, error)
}

// VideoStore persists new videos.
type VideoStore interface {
	InsertVideo(ctx context.Context, video *domain.Video) error
}

// Config bounds a run.
type Config struct {
	MaxPages      int
	PageDelay     time.Duration
	MaxStalePages int
}

// Deps are the collaborators of a run. Metrics, Logger, Now and URLs are optional.
type Deps struct {
	Catalog    CatalogSource
	Resolver   MediaResolver
	Duplicates DuplicateChecker
	Store      VideoStore
	URLs       *archive.URLBuilder
	Metrics    *metrics.Crawl
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// Driver runs ingestion.
type Driver struct {
	cfg  Config
	deps Deps
	urls archive.URLBuilder
	log  zerolog.Logger
}

// New creates a driver. MaxPages is clamped to 1..50, zero meaning 50. A zero
// MaxStalePages stops after the first page with nothing new. A zero PageDelay
// disables the pause; callers pass DefaultPageDelay for the one second gap.
func New(cfg Config, deps Deps) *Driver {
	if cfg.MaxPages <= 0 || cfg.MaxPages > DefaultMaxPages {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.MaxStalePages <= 0 {
		cfg.MaxStalePages = 1
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCrawl()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	urls := archive.DefaultURLs()
	if deps.URLs != nil {
		urls = *deps.URLs
	}

	log := logging.WithComponent("ingest")
	if deps.Logger != nil {
		log = *deps.Logger
	}

	return &Driver{cfg: cfg, deps: deps, urls: urls, log: log}
}

// Metrics returns the metrics the driver records into.
func (d *Driver) Metrics() *metrics.Crawl {
	return d.deps.Metrics
}

// Run crawls until a stop condition is met. The returned Result is always
// populated; the error is non-nil only for a persistence failure or cancellation.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	res := Result{
		RunID:   uuid.NewString(),
		Skipped: map[SkipReason]int{},
	}
	log := d.log.With().Str(logging.FieldRunID, res.RunID).Logger()

	log.Info().Int("max_pages", d.cfg.MaxPages).Dur("page_delay", d.cfg.PageDelay).Msg("crawl started")

	stale := 0
	for page := 1; page <= d.cfg.MaxPages; page++ {
		if page > 1 {
			if err := pause(ctx, d.cfg.PageDelay); err != nil {
				res.Stop = StopCanceled
				return d.finish(log, res), err
			}
		} else if err := ctx.Err(); err != nil {
			res.Stop = StopCanceled
			return d.finish(log, res), err
		}

		log.Debug().Int(logging.FieldPage, page).Msg("fetching catalog page")
		entries, err := d.deps.Catalog.FetchPage(ctx, page)
		res.Pages++
		d.deps.Metrics.PagesFetched.Inc()

		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Stop = StopCanceled
			return d.finish(log, res), ctxErr
		}
		if err != nil {
			// no retry: a failed page ends the run like an empty one
			d.deps.Metrics.FetchErrors.WithLabelValues("catalog").Inc()
			log.Error().Err(err).Int(logging.FieldPage, page).Msg("catalog page fetch failed, treating as empty")
			res.Stop = StopFetchError
			break
		}
		if len(entries) == 0 {
			log.Info().Int(logging.FieldPage, page).Msg("catalog page empty, catalog exhausted")
			res.Stop = StopEmptyPage
			break
		}

		log.Info().Int(logging.FieldPage, page).Int("entries", len(entries)).Msg("catalog page fetched")

		saved, err := d.processPage(ctx, log, page, entries, &res)
		res.PageSaved = append(res.PageSaved, saved)
		res.Saved += saved
		if err != nil {
			if ctx.Err() != nil {
				res.Stop = StopCanceled
			} else {
				res.Stop = StopPersistenceError
			}
			return d.finish(log, res), err
		}

		log.Info().Int(logging.FieldPage, page).Int(logging.FieldSaved, saved).Msg("catalog page done")

		if saved == 0 {
			stale++
			if stale >= d.cfg.MaxStalePages {
				res.Stop = StopNoNewRecords
				break
			}
		} else {
			stale = 0
		}

		if page == d.cfg.MaxPages {
			res.Stop = StopPageBudget
		}
	}

	return d.finish(log, res), nil
}

func (d *Driver) finish(log zerolog.Logger, res Result) Result {
	d.deps.Metrics.LastRunSaved.Set(float64(res.Saved))
	log.Info().
		Int("pages", res.Pages).
		Int(logging.FieldSaved, res.Saved).
		Int("skipped", res.SkippedTotal()).
		Str(logging.FieldReason, string(res.Stop)).
		Msg("crawl finished")
	return res
}

// processPage handles the entries of one page in order and returns how many
// records it stored. Only a write failure or cancellation returns an error.
func (d *Driver) processPage(ctx context.Context, log zerolog.Logger, page int, entries []domain.CatalogEntry, res *Result) (int, error) {
	saved := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		elog := log.With().Int(logging.FieldPage, page).Str(logging.FieldIdentifier, entry.Identifier).Logger()
		stored, reason, err := d.processEntry(ctx, elog, entry)
		if err != nil {
			return saved, err
		}
		if stored {
			saved++
			d.deps.Metrics.RecordsSaved.Inc()
			continue
		}
		res.Skipped[reason]++
		d.deps.Metrics.Skipped.WithLabelValues(string(reason)).Inc()
	}
	return saved, nil
}

func (d *Driver) processEntry(ctx context.Context, log zerolog.Logger, entry domain.CatalogEntry) (bool, SkipReason, error) {
	exists, err := d.deps.Duplicates.Exists(ctx, entry.Identifier)
	if err != nil {
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		log.Warn().Err(err).Msg("duplicate check failed, skipping entry")
		return false, SkipLookupError, nil
	}
	if exists {
		log.Debug().Msg("already ingested, skipping")
		return false, SkipDuplicate, nil
	}

	videoURL, ok, err := d.deps.Resolver.ResolveMediaURL(ctx, entry.Identifier)
	if err != nil {
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		d.deps.Metrics.FetchErrors.WithLabelValues("metadata").Inc()
		log.Error().Err(err).Msg("media resolution failed, skipping entry")
		return false, SkipResolveError, nil
	}
	if !ok {
		log.Info().Msg("no video file, skipping")
		return false, SkipNoMedia, nil
	}

	video := domain.NewVideo(entry, videoURL, d.urls.Thumbnail(entry.Identifier), d.deps.Now())
	if entry.Description != nil {
		if text, err := content.PlainText(*entry.Description); err == nil {
			video.DescriptionText = text
		}
	}

	if err := d.deps.Store.InsertVideo(ctx, video); err != nil {
		if errors.Is(err, db.ErrDuplicateVideo) {
			// another writer stored it after our duplicate check
			log.Warn().Msg("video appeared concurrently, skipping")
			return false, SkipDuplicate, nil
		}
		log.Error().Err(err).Msg("failed to save video")
		return false, "", &PersistenceError{Identifier: entry.Identifier, Err: err}
	}

	log.Info().Str(logging.FieldVideoID, video.ID.Hex()).Str(logging.FieldURL, videoURL).Msg("video saved")
	return true, "", nil
}

// pause blocks for the full delay counted from now, however long the previous
// page took. The limiter starts with its only token spent, so the reservation
// is due one interval later.
func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	lim := rate.NewLimiter(rate.Every(delay), 1)
	lim.Allow()
	r := lim.Reserve()

	timer := time.NewTimer(r.Delay())
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
