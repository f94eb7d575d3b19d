package store

import (
	"fmt"
	"regexp"
)

var unsafeDocIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ReviewCacheDocID derives the fingerprint-cache document id from the
// project and MR. Characters outside [A-Za-z0-9_-] in the project id
// are replaced with underscores; purely numeric ids pass unchanged.
func ReviewCacheDocID(projectID string, mrIID int64) string {
	safe := unsafeDocIDChars.ReplaceAllString(projectID, "_")
	return fmt.Sprintf("proj_%s_mr_%d", safe, mrIID)
}

// ChunkDocID derives the document id of chunk index for a chunked LLM
// call. The head record keeps the bare call id.
func ChunkDocID(llmCallID string, index int) string {
	return fmt.Sprintf("%s-c%d", llmCallID, index)
}
