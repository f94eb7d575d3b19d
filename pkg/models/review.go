package models

import "time"

// CodeReviewExample pairs offending code with the comment a reviewer
// would leave on it. Examples are embedded in the review prompt.
type CodeReviewExample struct {
	Code          string `json:"code" yaml:"code"`
	ReviewComment string `json:"reviewComment" yaml:"review_comment"`
}

// CodeReviewFileExtensions restricts a rule to matching file paths.
type CodeReviewFileExtensions struct {
	Include []string `json:"include" yaml:"include"`
}

// CodeReviewRequires restricts a rule to diffs containing one of the
// given literals; avoids wasting LLM calls on irrelevant hunks.
type CodeReviewRequires struct {
	Text []string `json:"text" yaml:"text"`
}

// CodeReviewConfig is one durable review rule.
type CodeReviewConfig struct {
	ID             string                   `json:"id" yaml:"id"`
	Title          string                   `json:"title" yaml:"title"`
	Enabled        bool                     `json:"enabled" yaml:"enabled"`
	Description    string                   `json:"description" yaml:"description"`
	Version        string                   `json:"version,omitempty" yaml:"version"`
	FileExtensions CodeReviewFileExtensions `json:"fileExtensions" yaml:"file_extensions"`
	Requires       CodeReviewRequires       `json:"requires" yaml:"requires"`
	// ProjectPaths holds glob patterns; empty means all projects.
	ProjectPaths []string            `json:"projectPaths,omitempty" yaml:"project_paths"`
	Examples     []CodeReviewExample `json:"examples,omitempty" yaml:"examples"`
}

// MergeRequestFingerprintCache is the per-MR set of fingerprints whose
// review units came back clean. Membership only grows within a single
// review run; the document may be reset externally.
type MergeRequestFingerprintCache struct {
	LastUpdated  int64
	Fingerprints map[string]struct{}
}

// EmptyFingerprintCache returns the sentinel used when the stored
// document is absent or malformed.
func EmptyFingerprintCache() *MergeRequestFingerprintCache {
	return &MergeRequestFingerprintCache{
		LastUpdated:  time.Now().UnixMilli(),
		Fingerprints: map[string]struct{}{},
	}
}

// Has reports fingerprint membership.
func (c *MergeRequestFingerprintCache) Has(fp string) bool {
	_, ok := c.Fingerprints[fp]
	return ok
}

// Add inserts a fingerprint.
func (c *MergeRequestFingerprintCache) Add(fp string) {
	c.Fingerprints[fp] = struct{}{}
}

// Clone copies the cache so a review run can mutate its working set
// without touching the loaded document.
func (c *MergeRequestFingerprintCache) Clone() *MergeRequestFingerprintCache {
	out := &MergeRequestFingerprintCache{
		LastUpdated:  c.LastUpdated,
		Fingerprints: make(map[string]struct{}, len(c.Fingerprints)),
	}
	for fp := range c.Fingerprints {
		out.Fingerprints[fp] = struct{}{}
	}
	return out
}
