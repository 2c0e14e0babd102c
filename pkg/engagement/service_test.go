package engagement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/domain"
)

type reactionKey struct{ user, video string }

type memStore struct {
	videos    map[string]*domain.Video
	reactions map[reactionKey]domain.ReactionKind
	viewed    map[string]map[string]int
	// conflicts makes the next n reaction writes fail as if another request won
	conflicts int
	incErr    error
}

func newMemStore(videos ...*domain.Video) *memStore {
	s := &memStore{
		videos:    map[string]*domain.Video{},
		reactions: map[reactionKey]domain.ReactionKind{},
		viewed:    map[string]map[string]int{},
	}
	for _, v := range videos {
		s.videos[v.Identifier] = v
	}
	return s
}

func (s *memStore) FindVideo(ctx context.Context, id string) (*domain.Video, error) {
	v, ok := s.videos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrVideoNotFound, id)
	}
	return v, nil
}

func (s *memStore) IncrementVideoCounters(ctx context.Context, id string, deltas map[string]int64) error {
	if s.incErr != nil {
		return s.incErr
	}
	v, ok := s.videos[id]
	if !ok {
		return fmt.Errorf("%w: %s", db.ErrVideoNotFound, id)
	}
	for field, d := range deltas {
		switch field {
		case "views":
			v.Views += d
		case "likes":
			v.Likes += d
		case "dislikes":
			v.Dislikes += d
		default:
			return fmt.Errorf("unexpected counter %q", field)
		}
	}
	return nil
}

func (s *memStore) IncrementViewedCollections(ctx context.Context, userID string, tags []string) error {
	if s.viewed[userID] == nil {
		s.viewed[userID] = map[string]int{}
	}
	for _, t := range tags {
		s.viewed[userID][t]++
	}
	return nil
}

func (s *memStore) FindReaction(ctx context.Context, userID, videoID string) (*domain.Reaction, error) {
	kind, ok := s.reactions[reactionKey{userID, videoID}]
	if !ok {
		return nil, nil
	}
	return &domain.Reaction{UserID: userID, VideoID: videoID, Kind: kind}, nil
}

func (s *memStore) conflict() bool {
	if s.conflicts > 0 {
		s.conflicts--
		return true
	}
	return false
}

func (s *memStore) InsertReaction(ctx context.Context, userID, videoID string, kind domain.ReactionKind) error {
	if s.conflict() {
		return db.ErrReactionConflict
	}
	s.reactions[reactionKey{userID, videoID}] = kind
	return nil
}

func (s *memStore) DeleteReaction(ctx context.Context, userID, videoID string, kind domain.ReactionKind) error {
	if s.conflict() {
		return db.ErrReactionConflict
	}
	delete(s.reactions, reactionKey{userID, videoID})
	return nil
}

func (s *memStore) SwitchReaction(ctx context.Context, userID, videoID string, from, to domain.ReactionKind) error {
	if s.conflict() {
		return db.ErrReactionConflict
	}
	s.reactions[reactionKey{userID, videoID}] = to
	return nil
}

func video(id string, tags ...string) *domain.Video {
	if tags == nil {
		tags = []string{}
	}
	return &domain.Video{Identifier: id, Collection: tags}
}

func TestRecordView(t *testing.T) {
	v := video("v1", "animation_unsorted", "popeye")
	store := newMemStore(v)
	svc := New(store)

	require.NoError(t, svc.RecordView(context.Background(), "u1", "v1"))
	require.NoError(t, svc.RecordView(context.Background(), "", "v1"))

	assert.EqualValues(t, 2, v.Views)
	assert.Equal(t, map[string]int{"animation_unsorted": 1, "popeye": 1}, store.viewed["u1"])
	assert.Len(t, store.viewed, 1, "anonymous views do not touch user documents")
}

func TestRecordViewErrors(t *testing.T) {
	svc := New(newMemStore())

	assert.ErrorIs(t, svc.RecordView(context.Background(), "u1", ""), ErrMissingVideo)
	assert.ErrorIs(t, svc.RecordView(context.Background(), "u1", "nope"), db.ErrVideoNotFound)
}

func TestReactToggle(t *testing.T) {
	v := video("v1")
	store := newMemStore(v)
	svc := New(store)
	ctx := context.Background()

	current, err := svc.React(ctx, "u1", "v1", domain.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, domain.ReactionLike, current)
	assert.EqualValues(t, 1, v.Likes)

	current, err = svc.React(ctx, "u1", "v1", domain.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, domain.ReactionDislike, current)
	assert.EqualValues(t, 0, v.Likes)
	assert.EqualValues(t, 1, v.Dislikes)

	current, err = svc.React(ctx, "u1", "v1", domain.ReactionDislike)
	require.NoError(t, err)
	assert.Empty(t, current)
	assert.EqualValues(t, 0, v.Likes)
	assert.EqualValues(t, 0, v.Dislikes)
	assert.Empty(t, store.reactions)
}

func TestReactNeverDoubleCounts(t *testing.T) {
	v := video("v1")
	store := newMemStore(v)
	svc := New(store)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := svc.React(ctx, user, "v1", domain.ReactionLike)
		require.NoError(t, err)
	}
	_, err := svc.React(ctx, "u2", "v1", domain.ReactionLike)
	require.NoError(t, err)

	assert.EqualValues(t, 2, v.Likes)
	assert.Len(t, store.reactions, 2)
}

func TestReactRetriesOnConflict(t *testing.T) {
	v := video("v1")
	store := newMemStore(v)
	store.conflicts = 2
	svc := New(store)

	current, err := svc.React(context.Background(), "u1", "v1", domain.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, domain.ReactionLike, current)
	assert.EqualValues(t, 1, v.Likes)
}

func TestReactGivesUpAfterRepeatedConflicts(t *testing.T) {
	v := video("v1")
	store := newMemStore(v)
	store.conflicts = maxReactAttempts
	svc := New(store)

	_, err := svc.React(context.Background(), "u1", "v1", domain.ReactionLike)
	assert.ErrorIs(t, err, db.ErrReactionConflict)
	assert.Zero(t, v.Likes)
}

func TestReactValidation(t *testing.T) {
	svc := New(newMemStore(video("v1")))
	ctx := context.Background()

	_, err := svc.React(ctx, "", "v1", domain.ReactionLike)
	assert.ErrorIs(t, err, ErrMissingUser)

	_, err = svc.React(ctx, "u1", "", domain.ReactionLike)
	assert.ErrorIs(t, err, ErrMissingVideo)

	_, err = svc.React(ctx, "u1", "v1", domain.ReactionKind("love"))
	assert.ErrorIs(t, err, ErrUnknownReaction)

	_, err = svc.React(ctx, "u1", "missing", domain.ReactionLike)
	assert.ErrorIs(t, err, db.ErrVideoNotFound)
}

func TestReactCounterFailureSurfaces(t *testing.T) {
	store := newMemStore(video("v1"))
	store.incErr = errors.New("write concern timeout")

	_, err := New(store).React(context.Background(), "u1", "v1", domain.ReactionLike)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjust reaction counters")
	assert.Empty(t, store.reactions, "the inserted reaction is rolled back")
}

func TestReactCounterFailureRestoresReaction(t *testing.T) {
	ctx := context.Background()
	key := reactionKey{"u1", "v1"}

	for _, tt := range []struct {
		name     string
		existing domain.ReactionKind
		react    domain.ReactionKind
	}{
		{"remove", domain.ReactionLike, domain.ReactionLike},
		{"switch", domain.ReactionLike, domain.ReactionDislike},
	} {
		t.Run(tt.name, func(t *testing.T) {
			v := video("v1")
			v.Likes = 1
			store := newMemStore(v)
			store.reactions[key] = tt.existing
			store.incErr = errors.New("write concern timeout")

			_, err := New(store).React(ctx, "u1", "v1", tt.react)
			require.Error(t, err)

			assert.Equal(t, tt.existing, store.reactions[key])
			assert.EqualValues(t, 1, v.Likes)
			assert.Zero(t, v.Dislikes)
		})
	}
}
