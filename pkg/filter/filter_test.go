package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	stored  map[string]bool
	err     error
	lookups []string
}

func (s *fakeStore) VideoExists(ctx context.Context, identifier string) (bool, error) {
	s.lookups = append(s.lookups, identifier)
	if s.err != nil {
		return false, s.err
	}
	return s.stored[identifier], nil
}

func TestAlreadyIngestedFilter(t *testing.T) {
	store := &fakeStore{stored: map[string]bool{"popeye_taxi": true}}
	f := NewAlreadyIngestedFilter(store)
	ctx := context.Background()

	exists, err := f.Exists(ctx, "popeye_taxi")
	require.NoError(t, err)
	assert.True(t, exists)

	keep, err := f.ShouldKeep(ctx, "betty_boop_ha_ha_ha")
	require.NoError(t, err)
	assert.True(t, keep)

	keep, err = f.ShouldKeep(ctx, "popeye_taxi")
	require.NoError(t, err)
	assert.False(t, keep)

	assert.Equal(t, []string{"popeye_taxi", "betty_boop_ha_ha_ha", "popeye_taxi"}, store.lookups)
}

func TestAlreadyIngestedFilterError(t *testing.T) {
	boom := errors.New("connection reset")
	f := NewAlreadyIngestedFilter(&fakeStore{err: boom})

	_, err := f.Exists(context.Background(), "x")
	require.ErrorIs(t, err, boom)

	keep, err := f.ShouldKeep(context.Background(), "x")
	require.ErrorIs(t, err, boom)
	assert.False(t, keep)
}

func TestFilterIdentifiers(t *testing.T) {
	store := &fakeStore{stored: map[string]bool{"b": true}}

	got, err := FilterIdentifiers(context.Background(), []string{"a", " ", "b", "c"},
		NewBlankIdentifierFilter(), NewAlreadyIngestedFilter(store))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, []string{"a", "b", "c"}, store.lookups, "blank identifiers never reach the store")
}
