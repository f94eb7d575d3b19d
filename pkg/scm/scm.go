// Package scm abstracts the source-control host. The runtime consumes
// the SourceControl interface; GitLab is the shipped implementation.
package scm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by constructors when required settings
// are missing.
var ErrNotConfigured = errors.New("source control is not configured")

// Project is a repository on the source-control host.
type Project struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"pathWithNamespace"`
	Description       string `json:"description,omitempty"`
	DefaultBranch     string `json:"defaultBranch,omitempty"`
}

// DiffRefs are the commit shas a merge request's diffs are computed
// against. Required to anchor a discussion to a line.
type DiffRefs struct {
	BaseSha  string `json:"baseSha"`
	HeadSha  string `json:"headSha"`
	StartSha string `json:"startSha"`
}

// MergeRequest is the host's view of an open change.
type MergeRequest struct {
	ID       int64     `json:"id"`
	IID      int64     `json:"iid"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	DiffRefs *DiffRefs `json:"diffRefs,omitempty"`
}

// Diff is one changed file within a merge request.
type Diff struct {
	OldPath     string `json:"oldPath"`
	NewPath     string `json:"newPath"`
	Patch       string `json:"patch"`
	NewFile     bool   `json:"newFile"`
	RenamedFile bool   `json:"renamedFile"`
	DeletedFile bool   `json:"deletedFile"`
}

// Note is one comment inside a discussion thread.
type Note struct {
	ID       int64  `json:"id"`
	Body     string `json:"body"`
	AuthorID int64  `json:"authorId"`
}

// Discussion is a comment thread on a merge request.
type Discussion struct {
	ID    string `json:"id"`
	Notes []Note `json:"notes"`
}

// Position anchors a discussion to a line of the merge request diff.
type Position struct {
	BaseSha  string
	HeadSha  string
	StartSha string
	OldPath  string
	NewPath  string
	NewLine  int
}

// SourceControl is the full host surface the runtime uses. Project ids
// are passed as strings and may be numeric ids or namespace paths.
type SourceControl interface {
	GetProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, projectID string) (*Project, error)

	// CloneProject clones (or refreshes) the repository into the local
	// workspace and returns the checkout path. branchOrCommit may be
	// empty for the default branch.
	CloneProject(ctx context.Context, pathWithNamespace, branchOrCommit string) (string, error)

	CreateMergeRequest(ctx context.Context, projectID, title, description, sourceBranch, targetBranch string) (*MergeRequest, error)
	GetJobLogs(ctx context.Context, projectID string, jobID int64) (string, error)

	GetMergeRequest(ctx context.Context, projectID string, iid int64) (*MergeRequest, error)
	GetMergeRequestDiffs(ctx context.Context, projectID string, iid int64) ([]Diff, error)
	GetMergeRequestDiscussions(ctx context.Context, projectID string, iid int64) ([]Discussion, error)

	// CreateMergeRequestDiscussion posts a comment, anchored to pos when
	// non-nil.
	CreateMergeRequestDiscussion(ctx context.Context, projectID string, iid int64, body string, pos *Position) error

	// BotUserID identifies the account the runtime posts as, used to
	// recognize its own previous comments. Zero when unknown.
	BotUserID() int64
}
