// Package memory provides in-memory implementations of the repository
// interfaces. Used for tests and for DATABASE=memory deployments where
// durability across restarts is not needed. The adapter applies the
// same chunking rules as the document store so chunk invariants hold
// everywhere.
package memory

import (
	"encoding/json"
	"fmt"

	"github.com/typedai/typedai/pkg/store"
)

// New returns a full set of in-memory stores.
func New() *store.Stores {
	return &store.Stores{
		Agents:        NewAgentStore(),
		LlmCalls:      NewLlmCallStore(),
		ReviewConfigs: NewReviewConfigStore(),
		ReviewCaches:  NewReviewCacheStore(),
	}
}

// clone deep-copies a value through its JSON form, mirroring the
// serialization boundary of the document store.
func clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("cloning record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("cloning record: %w", err)
	}
	return out, nil
}
