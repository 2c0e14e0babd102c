package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/domain"
)

type fakeCatalog struct {
	pages     map[int][]domain.CatalogEntry
	errs      map[int]error
	requested []int
	fetchedAt []time.Time
}

func (c *fakeCatalog) FetchPage(ctx context.Context, page int) ([]domain.CatalogEntry, error) {
	c.requested = append(c.requested, page)
	c.fetchedAt = append(c.fetchedAt, time.Now())
	if err := c.errs[page]; err != nil {
		return nil, err
	}
	return c.pages[page], nil
}

// fakeResolver maps identifiers to the video file name the item carries; items
// not in files have no video.
type fakeResolver struct {
	files  map[string]string
	errs   map[string]error
	onCall func(identifier string)
	delay  time.Duration
	calls  []string
}

func (r *fakeResolver) ResolveMediaURL(ctx context.Context, identifier string) (string, bool, error) {
	r.calls = append(r.calls, identifier)
	if r.onCall != nil {
		r.onCall(identifier)
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if err := r.errs[identifier]; err != nil {
		return "", false, err
	}
	name, ok := r.files[identifier]
	if !ok {
		return "", false, nil
	}
	return "https://archive.org/download/" + identifier + "/" + name, true, nil
}

// memStore is an in-memory videos collection with a unique identifier index.
type memStore struct {
	mu        sync.Mutex
	videos    map[string]*domain.Video
	order     []string
	existsErr map[string]error
	insertErr map[string]error
	// hidden identifiers are invisible to VideoExists but collide on insert,
	// as if another writer stored them after the check
	hidden map[string]bool
}

func newMemStore(identifiers ...string) *memStore {
	s := &memStore{videos: map[string]*domain.Video{}}
	for _, id := range identifiers {
		s.videos[id] = &domain.Video{ID: primitive.NewObjectID(), Identifier: id}
	}
	return s
}

func (s *memStore) VideoExists(ctx context.Context, identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.existsErr[identifier]; err != nil {
		return false, err
	}
	_, ok := s.videos[identifier]
	return ok, nil
}

func (s *memStore) InsertVideo(ctx context.Context, video *domain.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertErr[video.Identifier]; err != nil {
		return err
	}
	if _, ok := s.videos[video.Identifier]; ok || s.hidden[video.Identifier] {
		return fmt.Errorf("%w: %s", db.ErrDuplicateVideo, video.Identifier)
	}
	video.ID = primitive.NewObjectID()
	s.videos[video.Identifier] = video
	s.order = append(s.order, video.Identifier)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.videos)
}

func entry(identifier string) domain.CatalogEntry {
	return domain.CatalogEntry{Identifier: identifier}
}

func strPtr(s string) *string { return &s }
