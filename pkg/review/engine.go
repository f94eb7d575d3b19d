// Package review implements the merge-request code-review engine:
// rule-by-diff unit enumeration, fingerprint caching so unchanged code
// is never re-reviewed, parallel LLM review calls, and deduplicated
// violation comments posted back to the host.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/typedai/typedai/pkg/llm"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scm"
	"github.com/typedai/typedai/pkg/store"
	"github.com/typedai/typedai/pkg/trace"
)

// MergeRequestHost is the slice of the source-control surface the
// engine consumes.
type MergeRequestHost interface {
	GetMergeRequest(ctx context.Context, projectID string, iid int64) (*scm.MergeRequest, error)
	GetMergeRequestDiffs(ctx context.Context, projectID string, iid int64) ([]scm.Diff, error)
	GetMergeRequestDiscussions(ctx context.Context, projectID string, iid int64) ([]scm.Discussion, error)
	CreateMergeRequestDiscussion(ctx context.Context, projectID string, iid int64, body string, pos *scm.Position) error
	BotUserID() int64
}

// identifierPattern matches the markers embedded in previously posted
// review comments.
var identifierPattern = regexp.MustCompile(`bot-review-id: rule=[^,]+, file=[^,]+, contextHash=[0-9a-f]+`)

const defaultMaxParallel = 5

// Engine reviews merge requests against the stored rules.
type Engine struct {
	host        MergeRequestHost
	reviewer    llm.LLM
	configs     store.CodeReviewConfigStore
	caches      store.ReviewCacheStore
	maxParallel int
}

// NewEngine wires the engine. maxParallel <= 0 takes the default.
func NewEngine(host MergeRequestHost, reviewer llm.LLM, stores *store.Stores, maxParallel int) *Engine {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	return &Engine{
		host:        host,
		reviewer:    reviewer,
		configs:     stores.ReviewConfigs,
		caches:      stores.ReviewCaches,
		maxParallel: maxParallel,
	}
}

// Result summarizes one review run.
type Result struct {
	UnitsTotal       int `json:"unitsTotal"`
	UnitsCached      int `json:"unitsCached"`
	UnitsReviewed    int `json:"unitsReviewed"`
	UnitsSkipped     int `json:"unitsSkipped"`
	ViolationsPosted int `json:"violationsPosted"`
}

// unit is one (diff, rule) pair that passed applicability.
type unit struct {
	rule        models.CodeReviewConfig
	diff        scm.Diff
	code        *preparedCode
	fingerprint string
}

// ReviewMergeRequest runs the full pipeline for one merge request.
// Unit LLM calls run in parallel; result handling is serial so cache
// and comment mutation stay race-free.
func (e *Engine) ReviewMergeRequest(ctx context.Context, projectID string, mrIID int64) (*Result, error) {
	ctx, span := trace.Start(ctx, "review.merge_request",
		trace.String("project_id", projectID), trace.Int("mr_iid", int(mrIID)))
	defer span.End()

	log := slog.With("project_id", projectID, "mr_iid", mrIID)

	mr, err := e.host.GetMergeRequest(ctx, projectID, mrIID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch merge request: %w", err)
	}
	diffs, err := e.host.GetMergeRequestDiffs(ctx, projectID, mrIID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch diffs: %w", err)
	}
	discussions, err := e.host.GetMergeRequestDiscussions(ctx, projectID, mrIID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discussions: %w", err)
	}
	cache, err := e.caches.Get(ctx, projectID, mrIID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprint cache: %w", err)
	}
	rules, err := e.configs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load review rules: %w", err)
	}

	existing := e.scanIdentifiers(discussions)
	result := &Result{}

	// Enumerate applicable units and split cached from pending.
	var pending []unit
	touched := false
	for _, diff := range diffs {
		if diff.DeletedFile {
			continue
		}
		for _, rule := range rules {
			if !rule.Enabled || !applicable(rule, projectID, diff) {
				continue
			}
			result.UnitsTotal++

			code, prepErr := prepareCodeForReview(diff.Patch, diff.NewPath)
			if prepErr != nil {
				log.Error("Failed to prepare code for review",
					"file", diff.NewPath, "rule", rule.Title, "error", prepErr)
				result.UnitsSkipped++
				continue
			}
			fp := unitFingerprint(projectID, mrIID, diff.NewPath, rule.ID, rule.Version, code.WithoutLines)
			if cache.Has(fp) {
				result.UnitsCached++
				touched = true
				continue
			}
			pending = append(pending, unit{rule: rule, diff: diff, code: code, fingerprint: fp})
		}
	}

	// Parallel LLM calls. A nil entry means the unit failed or the
	// response was unusable; it is skipped without a cache write.
	findings := make([][]violation, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for i, u := range pending {
		g.Go(func() error {
			msg, genErr := llm.GenerateWithRetry(gctx, e.reviewer,
				buildReviewMessages(u.rule, u.diff.NewPath, u.code.WithLines),
				llm.GenerateOptions{ID: "code-review", Temperature: 0.2})
			if genErr != nil {
				log.Error("Review LLM call failed",
					"file", u.diff.NewPath, "rule", u.rule.Title, "error", genErr)
				return nil
			}
			findings[i] = parseReviewResponse(msg.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Serial result handling.
	for i, u := range pending {
		if findings[i] == nil {
			result.UnitsSkipped++
			continue
		}
		result.UnitsReviewed++

		if len(findings[i]) == 0 {
			cache.Add(u.fingerprint)
			touched = true
			continue
		}
		for _, v := range findings[i] {
			if e.postViolation(ctx, projectID, mrIID, mr, u, v, existing, log) {
				result.ViolationsPosted++
			}
		}
	}

	if touched {
		if err := e.caches.Update(ctx, projectID, mrIID, cache); err != nil {
			return nil, fmt.Errorf("failed to persist fingerprint cache: %w", err)
		}
	}

	log.Info("Review complete",
		"units", result.UnitsTotal,
		"cached", result.UnitsCached,
		"reviewed", result.UnitsReviewed,
		"violations_posted", result.ViolationsPosted)
	return result, nil
}

// postViolation posts one finding unless an identical one already
// exists. Reports whether a comment was created.
func (e *Engine) postViolation(ctx context.Context, projectID string, mrIID int64, mr *scm.MergeRequest, u unit, v violation, existing map[string]struct{}, log *slog.Logger) bool {
	line, adjusted := u.code.nearestLine(v.LineNumber)
	if adjusted {
		log.Warn("Violation line is not a code line, using next code line",
			"file", u.diff.NewPath, "referenced", v.LineNumber, "used", line)
	}

	hash := contextHash(u.rule.ID, u.diff.NewPath, line, u.code.contextAround(line, 3))
	identifier := violationIdentifier(u.rule.ID, u.diff.NewPath, hash)
	if _, dup := existing[identifier]; dup {
		return false
	}
	existing[identifier] = struct{}{}

	body := fmt.Sprintf("<!-- %s -->\n\n%s", identifier, v.Comment)
	var pos *scm.Position
	if mr.DiffRefs != nil {
		pos = &scm.Position{
			BaseSha:  mr.DiffRefs.BaseSha,
			HeadSha:  mr.DiffRefs.HeadSha,
			StartSha: mr.DiffRefs.StartSha,
			OldPath:  u.diff.OldPath,
			NewPath:  u.diff.NewPath,
			NewLine:  line,
		}
	}
	if err := e.host.CreateMergeRequestDiscussion(ctx, projectID, mrIID, body, pos); err != nil {
		log.Error("Failed to post review comment",
			"file", u.diff.NewPath, "line", line, "error", err)
		return false
	}
	return true
}

// scanIdentifiers collects the violation markers already present in
// the merge request's discussions. When a bot user id is configured,
// only that account's notes are considered.
func (e *Engine) scanIdentifiers(discussions []scm.Discussion) map[string]struct{} {
	botID := e.host.BotUserID()
	out := make(map[string]struct{})
	for _, d := range discussions {
		for _, n := range d.Notes {
			if botID != 0 && n.AuthorID != botID {
				continue
			}
			for _, m := range identifierPattern.FindAllString(n.Body, -1) {
				out[m] = struct{}{}
			}
		}
	}
	return out
}

// applicable tests a rule against a diff: project globs, file
// extensions, and required literals. An empty requires list means no
// content constraint.
func applicable(rule models.CodeReviewConfig, projectPath string, diff scm.Diff) bool {
	if len(rule.ProjectPaths) > 0 {
		matched := false
		for _, pattern := range rule.ProjectPaths {
			if ok, err := doublestar.Match(pattern, projectPath); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	extMatched := false
	for _, ext := range rule.FileExtensions.Include {
		if strings.HasSuffix(diff.NewPath, ext) {
			extMatched = true
			break
		}
	}
	if !extMatched {
		return false
	}

	if len(rule.Requires.Text) > 0 {
		found := false
		for _, literal := range rule.Requires.Text {
			if strings.Contains(diff.Patch, literal) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
