// Package engagement keeps video view and reaction counters consistent with the
// per-user reaction documents.
package engagement

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/domain"
	"cartoon-ingest/pkg/logging"
)

var (
	ErrMissingUser     = errors.New("user id is empty")
	ErrMissingVideo    = errors.New("video id is empty")
	ErrUnknownReaction = errors.New("unknown reaction kind")
)

// maxReactAttempts bounds retries when another request changes the same
// reaction between our read and write.
const maxReactAttempts = 3

// Store is the subset of the video store the service needs. *db.Client implements it.
type Store interface {
	FindVideo(ctx context.Context, id string) (*domain.Video, error)
	IncrementVideoCounters(ctx context.Context, id string, deltas map[string]int64) error
	IncrementViewedCollections(ctx context.Context, userID string, tags []string) error
	FindReaction(ctx context.Context, userID, videoID string) (*domain.Reaction, error)
	InsertReaction(ctx context.Context, userID, videoID string, kind domain.ReactionKind) error
	DeleteReaction(ctx context.Context, userID, videoID string, kind domain.ReactionKind) error
	SwitchReaction(ctx context.Context, userID, videoID string, from, to domain.ReactionKind) error
}

// Service applies views and reactions.
type Service struct {
	store Store
	log   zerolog.Logger
}

// New creates a new engagement service.
func New(store Store) *Service {
	return &Service{store: store, log: logging.WithComponent("engagement")}
}

// RecordView counts one view of a video. When userID is set, the user's
// per-collection tallies are bumped as well.
func (s *Service) RecordView(ctx context.Context, userID, videoID string) error {
	if videoID == "" {
		return ErrMissingVideo
	}

	video, err := s.store.FindVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if err := s.store.IncrementVideoCounters(ctx, videoID, map[string]int64{"views": 1}); err != nil {
		return err
	}

	if userID != "" && len(video.Collection) > 0 {
		if err := s.store.IncrementViewedCollections(ctx, userID, video.Collection); err != nil {
			return fmt.Errorf("record viewed collections: %w", err)
		}
	}

	s.log.Debug().Str(logging.FieldVideoID, videoID).Str(logging.FieldUserID, userID).Msg("view recorded")
	return nil
}

// React toggles the user's reaction to a video. Reacting with the current kind
// removes the reaction; reacting with the other kind switches it. The returned
// kind is the reaction in effect afterwards, empty when none.
func (s *Service) React(ctx context.Context, userID, videoID string, kind domain.ReactionKind) (domain.ReactionKind, error) {
	if userID == "" {
		return "", ErrMissingUser
	}
	if videoID == "" {
		return "", ErrMissingVideo
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownReaction, kind)
	}

	if _, err := s.store.FindVideo(ctx, videoID); err != nil {
		return "", err
	}

	var err error
	for attempt := 1; attempt <= maxReactAttempts; attempt++ {
		var current domain.ReactionKind
		current, err = s.toggle(ctx, userID, videoID, kind)
		if err == nil {
			s.log.Debug().
				Str(logging.FieldVideoID, videoID).
				Str(logging.FieldUserID, userID).
				Str("reaction", string(current)).
				Msg("reaction applied")
			return current, nil
		}
		if !errors.Is(err, db.ErrReactionConflict) {
			return "", err
		}
		s.log.Warn().Int("attempt", attempt).Str(logging.FieldVideoID, videoID).Msg("reaction changed concurrently, retrying")
	}
	return "", err
}

// toggle moves the reaction document first and only then adjusts counters, so a
// lost race never touches the counters. If the counter update fails the move is
// undone, leaving document and counters as they were.
func (s *Service) toggle(ctx context.Context, userID, videoID string, kind domain.ReactionKind) (domain.ReactionKind, error) {
	existing, err := s.store.FindReaction(ctx, userID, videoID)
	if err != nil {
		return "", err
	}

	var (
		deltas  map[string]int64
		current domain.ReactionKind
		undo    func() error
	)
	switch {
	case existing == nil:
		if err := s.store.InsertReaction(ctx, userID, videoID, kind); err != nil {
			return "", err
		}
		deltas = map[string]int64{kind.CounterField(): 1}
		current = kind
		undo = func() error { return s.store.DeleteReaction(ctx, userID, videoID, kind) }
	case existing.Kind == kind:
		if err := s.store.DeleteReaction(ctx, userID, videoID, kind); err != nil {
			return "", err
		}
		deltas = map[string]int64{kind.CounterField(): -1}
		undo = func() error { return s.store.InsertReaction(ctx, userID, videoID, kind) }
	default:
		if err := s.store.SwitchReaction(ctx, userID, videoID, existing.Kind, kind); err != nil {
			return "", err
		}
		deltas = map[string]int64{kind.CounterField(): 1}
		if existing.Kind.Valid() {
			deltas[existing.Kind.CounterField()] = -1
		}
		current = kind
		previous := existing.Kind
		undo = func() error { return s.store.SwitchReaction(ctx, userID, videoID, kind, previous) }
	}

	if err := s.store.IncrementVideoCounters(ctx, videoID, deltas); err != nil {
		if undoErr := undo(); undoErr != nil {
			s.log.Error().Err(undoErr).
				Str(logging.FieldVideoID, videoID).
				Str(logging.FieldUserID, userID).
				Msg("failed to undo reaction after counter update failed, reaction and counters differ")
		}
		return "", fmt.Errorf("adjust reaction counters: %w", err)
	}
	return current, nil
}
