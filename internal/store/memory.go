package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ppiankov/deepguard/internal/model"
)

// MemoryStore keeps records in process memory. Records expire after the verdict TTL.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore creates a memory store. A ttl <= 0 keeps records until purged.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		return &MemoryStore{items: gocache.New(gocache.NoExpiration, 0)}
	}
	return &MemoryStore{items: gocache.New(ttl, ttl/2)}
}

func (s *MemoryStore) Put(ctx context.Context, rec model.Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	s.items.SetDefault(rec.FileID, rec)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, fileID string) (model.Record, error) {
	v, ok := s.items.Get(fileID)
	if !ok {
		return model.Record{}, model.ErrNotFound
	}
	return v.(model.Record), nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]model.Record, error) {
	items := s.items.Items()
	recs := make([]model.Record, 0, len(items))
	for _, item := range items {
		recs = append(recs, item.Object.(model.Record))
	}
	sortNewestFirst(recs)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	for id, item := range s.items.Items() {
		if item.Object.(model.Record).Timestamp.Before(olderThan) {
			s.items.Delete(id)
			removed++
		}
	}
	s.items.DeleteExpired()
	return removed, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
