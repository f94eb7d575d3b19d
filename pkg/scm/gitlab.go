package scm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/typedai/typedai/pkg/workspace"
)

// GitLab implements SourceControl against a GitLab instance.
type GitLab struct {
	client    *gitlab.Client
	host      string
	token     string
	groups    []string
	botUserID int64
}

// NewGitLab builds a client for the given host (e.g. "gitlab.com").
func NewGitLab(host, token string, groups []string, botUserID int64) (*GitLab, error) {
	if host == "" || token == "" {
		return nil, ErrNotConfigured
	}
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(fmt.Sprintf("https://%s/api/v4", host)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &GitLab{
		client:    client,
		host:      host,
		token:     token,
		groups:    groups,
		botUserID: botUserID,
	}, nil
}

// NewGitLabFromEnv reads GITLAB_HOST, GITLAB_TOKEN, GITLAB_GROUPS
// (comma-separated) and GITLAB_BOT_USER_ID.
func NewGitLabFromEnv() (*GitLab, error) {
	var groups []string
	for _, g := range strings.Split(os.Getenv("GITLAB_GROUPS"), ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	var botUserID int64
	if raw := os.Getenv("GITLAB_BOT_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GITLAB_BOT_USER_ID %q: %w", raw, err)
		}
		botUserID = id
	}
	return NewGitLab(os.Getenv("GITLAB_HOST"), os.Getenv("GITLAB_TOKEN"), groups, botUserID)
}

// BotUserID implements SourceControl.
func (g *GitLab) BotUserID() int64 { return g.botUserID }

// pid converts a string project id into the form the API client
// expects: numeric ids as int, anything else as a namespace path.
func pid(projectID string) any {
	if n, err := strconv.Atoi(projectID); err == nil {
		return n
	}
	return projectID
}

// GetProjects lists the projects of the configured groups, following
// pagination.
func (g *GitLab) GetProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	for _, group := range g.groups {
		opts := &gitlab.ListGroupProjectsOptions{
			ListOptions:      gitlab.ListOptions{PerPage: 100},
			IncludeSubGroups: gitlab.Ptr(true),
		}
		for {
			projects, resp, err := g.client.Groups.ListGroupProjects(group, opts, gitlab.WithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("failed to list projects of group %s: %w", group, err)
			}
			for _, p := range projects {
				out = append(out, toProject(p))
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return out, nil
}

// GetProject fetches a single project by id or namespace path.
func (g *GitLab) GetProject(ctx context.Context, projectID string) (*Project, error) {
	p, _, err := g.client.Projects.GetProject(pid(projectID), nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}
	project := toProject(p)
	return &project, nil
}

// CloneProject clones the repository under the workspace's gitlab
// directory, or fetches when the checkout already exists, and checks
// out branchOrCommit when given.
func (g *GitLab) CloneProject(ctx context.Context, pathWithNamespace, branchOrCommit string) (string, error) {
	target := filepath.Join(workspace.SysDir(), "gitlab", workspace.SafePathSegment(pathWithNamespace))

	if _, err := os.Stat(filepath.Join(target, ".git")); err == nil {
		slog.Info("Refreshing existing checkout", "project", pathWithNamespace, "path", target)
		if out, err := g.git(ctx, target, "fetch", "--all", "--prune"); err != nil {
			return "", fmt.Errorf("git fetch failed: %w: %s", err, out)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", fmt.Errorf("failed to create clone dir: %w", err)
		}
		url := fmt.Sprintf("https://oauth2:%s@%s/%s.git", g.token, g.host, pathWithNamespace)
		slog.Info("Cloning project", "project", pathWithNamespace, "path", target)
		if out, err := g.git(ctx, "", "clone", url, target); err != nil {
			return "", fmt.Errorf("git clone failed: %w: %s", err, out)
		}
	}

	if branchOrCommit != "" {
		if out, err := g.git(ctx, target, "checkout", branchOrCommit); err != nil {
			return "", fmt.Errorf("git checkout %s failed: %w: %s", branchOrCommit, err, out)
		}
	}
	return target, nil
}

// git runs a git command in dir. The token is redacted from output.
func (g *GitLab) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	redacted := strings.ReplaceAll(string(out), g.token, "***")
	return redacted, err
}

// CreateMergeRequest opens a merge request and returns its identity.
func (g *GitLab) CreateMergeRequest(ctx context.Context, projectID, title, description, sourceBranch, targetBranch string) (*MergeRequest, error) {
	mr, _, err := g.client.MergeRequests.CreateMergeRequest(pid(projectID), &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(title),
		Description:  gitlab.Ptr(description),
		SourceBranch: gitlab.Ptr(sourceBranch),
		TargetBranch: gitlab.Ptr(targetBranch),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create merge request: %w", err)
	}
	return toMergeRequest(mr), nil
}

// GetJobLogs returns the trace of a CI job.
func (g *GitLab) GetJobLogs(ctx context.Context, projectID string, jobID int64) (string, error) {
	trace, _, err := g.client.Jobs.GetTraceFile(pid(projectID), int(jobID), gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get job %d logs: %w", jobID, err)
	}
	data, err := io.ReadAll(trace)
	if err != nil {
		return "", fmt.Errorf("failed to read job %d logs: %w", jobID, err)
	}
	return string(data), nil
}

// GetMergeRequest fetches a merge request, including its diff refs.
func (g *GitLab) GetMergeRequest(ctx context.Context, projectID string, iid int64) (*MergeRequest, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(pid(projectID), int(iid), nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get merge request %d: %w", iid, err)
	}
	return toMergeRequest(mr), nil
}

// GetMergeRequestDiffs lists the changed files, following pagination.
func (g *GitLab) GetMergeRequestDiffs(ctx context.Context, projectID string, iid int64) ([]Diff, error) {
	opts := &gitlab.ListMergeRequestDiffsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	var out []Diff
	for {
		diffs, resp, err := g.client.MergeRequests.ListMergeRequestDiffs(pid(projectID), int(iid), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list merge request %d diffs: %w", iid, err)
		}
		for _, d := range diffs {
			out = append(out, Diff{
				OldPath:     d.OldPath,
				NewPath:     d.NewPath,
				Patch:       d.Diff,
				NewFile:     d.NewFile,
				RenamedFile: d.RenamedFile,
				DeletedFile: d.DeletedFile,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// GetMergeRequestDiscussions lists comment threads, following
// pagination.
func (g *GitLab) GetMergeRequestDiscussions(ctx context.Context, projectID string, iid int64) ([]Discussion, error) {
	opts := &gitlab.ListMergeRequestDiscussionsOptions{PerPage: 100}
	var out []Discussion
	for {
		discussions, resp, err := g.client.Discussions.ListMergeRequestDiscussions(pid(projectID), int(iid), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list merge request %d discussions: %w", iid, err)
		}
		for _, d := range discussions {
			disc := Discussion{ID: d.ID}
			for _, n := range d.Notes {
				disc.Notes = append(disc.Notes, Note{
					ID:       int64(n.ID),
					Body:     n.Body,
					AuthorID: int64(n.Author.ID),
				})
			}
			out = append(out, disc)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// CreateMergeRequestDiscussion posts a comment, anchored to the diff
// when a position is given.
func (g *GitLab) CreateMergeRequestDiscussion(ctx context.Context, projectID string, iid int64, body string, pos *Position) error {
	opts := &gitlab.CreateMergeRequestDiscussionOptions{Body: gitlab.Ptr(body)}
	if pos != nil {
		opts.Position = &gitlab.PositionOptions{
			PositionType: gitlab.Ptr("text"),
			BaseSHA:      gitlab.Ptr(pos.BaseSha),
			HeadSHA:      gitlab.Ptr(pos.HeadSha),
			StartSHA:     gitlab.Ptr(pos.StartSha),
			OldPath:      gitlab.Ptr(pos.OldPath),
			NewPath:      gitlab.Ptr(pos.NewPath),
			NewLine:      gitlab.Ptr(pos.NewLine),
		}
	}
	_, _, err := g.client.Discussions.CreateMergeRequestDiscussion(pid(projectID), int(iid), opts, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create merge request %d discussion: %w", iid, err)
	}
	return nil
}

func toProject(p *gitlab.Project) Project {
	return Project{
		ID:                int64(p.ID),
		Name:              p.Name,
		PathWithNamespace: p.PathWithNamespace,
		Description:       p.Description,
		DefaultBranch:     p.DefaultBranch,
	}
}

func toMergeRequest(mr *gitlab.MergeRequest) *MergeRequest {
	out := &MergeRequest{
		ID:    int64(mr.ID),
		IID:   int64(mr.IID),
		URL:   mr.WebURL,
		Title: mr.Title,
	}
	if mr.DiffRefs.BaseSha != "" || mr.DiffRefs.HeadSha != "" {
		out.DiffRefs = &DiffRefs{
			BaseSha:  mr.DiffRefs.BaseSha,
			HeadSha:  mr.DiffRefs.HeadSha,
			StartSha: mr.DiffRefs.StartSha,
		}
	}
	return out
}
