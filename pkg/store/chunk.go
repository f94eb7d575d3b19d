package store

import (
	"encoding/json"
	"fmt"
)

const (
	// MaxDocSize is the hard per-document size ceiling of the backing
	// store (~1 MiB).
	MaxDocSize = 1 << 20

	// ChunkEnvelope reserves room in each chunk document for the
	// non-message fields (ids, index, serialization overhead).
	ChunkEnvelope = 4 * 1024

	// ChunkCapacity is the message budget of a single chunk document.
	ChunkCapacity = MaxDocSize - ChunkEnvelope
)

// MessageSizer abstracts the serialized-size estimate so chunk
// planning stays independent of any concrete message type.
func messageSize(msg any) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("estimating message size: %w", err)
	}
	return len(data), nil
}

// EstimateSize returns the serialized size of an arbitrary value.
func EstimateSize(v any) (int, error) {
	return messageSize(v)
}

// PlanChunks packs messages greedily into chunks bounded by
// ChunkCapacity, preserving order. Returns nil when everything fits a
// single document (no chunking needed). A single message larger than
// ChunkCapacity fails with MessageTooLargeError.
func PlanChunks[M any](messages []M) ([][]M, error) {
	total := 0
	sizes := make([]int, len(messages))
	for i, msg := range messages {
		n, err := messageSize(msg)
		if err != nil {
			return nil, err
		}
		if n > ChunkCapacity {
			return nil, &MessageTooLargeError{Size: n, Max: ChunkCapacity}
		}
		sizes[i] = n
		total += n
	}
	if total <= ChunkCapacity {
		return nil, nil
	}

	var chunks [][]M
	var current []M
	used := 0
	for i, msg := range messages {
		if used+sizes[i] > ChunkCapacity && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			used = 0
		}
		current = append(current, msg)
		used += sizes[i]
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}
