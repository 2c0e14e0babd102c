package filter

import (
	"context"
	"fmt"
	"strings"
)

// Filter decides whether a catalog identifier should be processed.
type Filter interface {
	ShouldKeep(ctx context.Context, identifier string) (bool, error)
}

// ExistenceChecker looks up whether an identifier is already stored.
type ExistenceChecker interface {
	VideoExists(ctx context.Context, identifier string) (bool, error)
}

// AlreadyIngestedFilter filters out identifiers that already have a stored video.
// It only reads; the store is queried on every call so records written earlier in
// the same run are seen.
type AlreadyIngestedFilter struct {
	store ExistenceChecker
}

// NewAlreadyIngestedFilter creates a new already-ingested filter
func NewAlreadyIngestedFilter(store ExistenceChecker) *AlreadyIngestedFilter {
	return &AlreadyIngestedFilter{store: store}
}

// Exists reports whether the identifier has already been ingested.
func (f *AlreadyIngestedFilter) Exists(ctx context.Context, identifier string) (bool, error) {
	exists, err := f.store.VideoExists(ctx, identifier)
	if err != nil {
		return false, fmt.Errorf("duplicate check for %s: %w", identifier, err)
	}
	return exists, nil
}

// ShouldKeep returns false if the identifier is already stored
func (f *AlreadyIngestedFilter) ShouldKeep(ctx context.Context, identifier string) (bool, error) {
	exists, err := f.Exists(ctx, identifier)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// BlankIdentifierFilter filters out empty identifiers
type BlankIdentifierFilter struct{}

// NewBlankIdentifierFilter creates a new blank identifier filter
func NewBlankIdentifierFilter() *BlankIdentifierFilter {
	return &BlankIdentifierFilter{}
}

// ShouldKeep returns false for identifiers that are empty or whitespace
func (f *BlankIdentifierFilter) ShouldKeep(ctx context.Context, identifier string) (bool, error) {
	return strings.TrimSpace(identifier) != "", nil
}

// FilterIdentifiers applies all filters to a list of identifiers
func FilterIdentifiers(ctx context.Context, identifiers []string, filters ...Filter) ([]string, error) {
	filtered := make([]string, 0, len(identifiers))

	for _, id := range identifiers {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("filter error for %s: %w", id, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, id)
		}
	}

	return filtered, nil
}
