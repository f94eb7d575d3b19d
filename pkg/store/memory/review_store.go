package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// ReviewConfigStore is the in-memory CodeReviewConfigStore.
type ReviewConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*models.CodeReviewConfig
}

// NewReviewConfigStore creates an empty config store.
func NewReviewConfigStore() *ReviewConfigStore {
	return &ReviewConfigStore{configs: make(map[string]*models.CodeReviewConfig)}
}

var _ store.CodeReviewConfigStore = (*ReviewConfigStore)(nil)

// List returns all review rules ordered by title.
func (s *ReviewConfigStore) List(ctx context.Context) ([]models.CodeReviewConfig, error) {
	s.mu.RLock()
	out := make([]models.CodeReviewConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		cp, err := clone(cfg)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		out = append(out, *cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Get returns one rule by id, or ErrNotFound.
func (s *ReviewConfigStore) Get(ctx context.Context, id string) (*models.CodeReviewConfig, error) {
	s.mu.RLock()
	cfg, ok := s.configs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(cfg)
}

// Save upserts a rule, generating an id for new rules.
func (s *ReviewConfigStore) Save(ctx context.Context, cfg *models.CodeReviewConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cp, err := clone(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.configs[cfg.ID] = cp
	s.mu.Unlock()
	return nil
}

// Delete removes a rule. Deleting an absent rule is a no-op.
func (s *ReviewConfigStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.configs, id)
	s.mu.Unlock()
	return nil
}

// ReviewCacheStore is the in-memory ReviewCacheStore, keyed by the
// derived per-MR document id.
type ReviewCacheStore struct {
	mu     sync.RWMutex
	caches map[string]*models.MergeRequestFingerprintCache
}

// NewReviewCacheStore creates an empty cache store.
func NewReviewCacheStore() *ReviewCacheStore {
	return &ReviewCacheStore{caches: make(map[string]*models.MergeRequestFingerprintCache)}
}

var _ store.ReviewCacheStore = (*ReviewCacheStore)(nil)

// Get returns the cache for the MR. Absent documents yield a fresh
// empty cache, never an error.
func (s *ReviewCacheStore) Get(ctx context.Context, projectID string, mrIID int64) (*models.MergeRequestFingerprintCache, error) {
	s.mu.RLock()
	cache, ok := s.caches[store.ReviewCacheDocID(projectID, mrIID)]
	s.mu.RUnlock()
	if !ok {
		return models.EmptyFingerprintCache(), nil
	}
	return cache.Clone(), nil
}

// Update overwrites the cache document and stamps lastUpdated.
func (s *ReviewCacheStore) Update(ctx context.Context, projectID string, mrIID int64, cache *models.MergeRequestFingerprintCache) error {
	cp := cache.Clone()
	cp.LastUpdated = time.Now().UnixMilli()

	s.mu.Lock()
	s.caches[store.ReviewCacheDocID(projectID, mrIID)] = cp
	s.mu.Unlock()

	cache.LastUpdated = cp.LastUpdated
	return nil
}
