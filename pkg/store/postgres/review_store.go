package postgres

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// ReviewConfigStore is the PostgreSQL CodeReviewConfigStore.
type ReviewConfigStore struct {
	db *stdsql.DB
}

var _ store.CodeReviewConfigStore = (*ReviewConfigStore)(nil)

// List returns all review rules ordered by title.
func (s *ReviewConfigStore) List(ctx context.Context) ([]models.CodeReviewConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM code_review_configs ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query review configs: %w", err)
	}
	defer rows.Close()

	var out []models.CodeReviewConfig
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan review config: %w", err)
		}
		var cfg models.CodeReviewConfig
		if err := json.Unmarshal(doc, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal review config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// Get returns one rule by id, or ErrNotFound.
func (s *ReviewConfigStore) Get(ctx context.Context, id string) (*models.CodeReviewConfig, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM code_review_configs WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review config: %w", err)
	}
	var cfg models.CodeReviewConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review config: %w", err)
	}
	return &cfg, nil
}

// Save upserts a rule, generating an id for new rules.
func (s *ReviewConfigStore) Save(ctx context.Context, cfg *models.CodeReviewConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal review config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO code_review_configs (id, title, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, doc = EXCLUDED.doc`,
		cfg.ID, cfg.Title, doc)
	if err != nil {
		return fmt.Errorf("failed to upsert review config: %w", err)
	}
	return nil
}

// Delete removes a rule. Deleting an absent rule is a no-op.
func (s *ReviewConfigStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM code_review_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review config: %w", err)
	}
	return nil
}

// ReviewCacheStore is the PostgreSQL ReviewCacheStore.
type ReviewCacheStore struct {
	db *stdsql.DB
}

var _ store.ReviewCacheStore = (*ReviewCacheStore)(nil)

// fingerprintCacheDoc is the stored JSON form of the cache; the
// fingerprint set is flattened to an array.
type fingerprintCacheDoc struct {
	LastUpdated  int64    `json:"lastUpdated"`
	Fingerprints []string `json:"fingerprints"`
}

// Get returns the cache for the MR. Absent or malformed documents yield
// a fresh empty cache, never an error.
func (s *ReviewCacheStore) Get(ctx context.Context, projectID string, mrIID int64) (*models.MergeRequestFingerprintCache, error) {
	id := store.ReviewCacheDocID(projectID, mrIID)

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM review_caches WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, stdsql.ErrNoRows) {
		return models.EmptyFingerprintCache(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review cache: %w", err)
	}

	var doc fingerprintCacheDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("Malformed review cache document, starting fresh", "doc_id", id, "error", err)
		return models.EmptyFingerprintCache(), nil
	}
	cache := &models.MergeRequestFingerprintCache{
		LastUpdated:  doc.LastUpdated,
		Fingerprints: make(map[string]struct{}, len(doc.Fingerprints)),
	}
	for _, fp := range doc.Fingerprints {
		cache.Fingerprints[fp] = struct{}{}
	}
	return cache, nil
}

// Update overwrites the cache document and stamps lastUpdated.
func (s *ReviewCacheStore) Update(ctx context.Context, projectID string, mrIID int64, cache *models.MergeRequestFingerprintCache) error {
	id := store.ReviewCacheDocID(projectID, mrIID)
	now := time.Now().UnixMilli()

	doc := fingerprintCacheDoc{
		LastUpdated:  now,
		Fingerprints: make([]string, 0, len(cache.Fingerprints)),
	}
	for fp := range cache.Fingerprints {
		doc.Fingerprints = append(doc.Fingerprints, fp)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal review cache: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_caches (id, last_updated, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET last_updated = EXCLUDED.last_updated, doc = EXCLUDED.doc`,
		id, now, raw)
	if err != nil {
		return fmt.Errorf("failed to upsert review cache: %w", err)
	}
	cache.LastUpdated = now
	return nil
}
