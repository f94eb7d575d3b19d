package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedai/typedai/pkg/llm"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scm"
	"github.com/typedai/typedai/pkg/store/memory"
)

// fakeHost serves canned merge-request data and records posted
// discussions.
type fakeHost struct {
	mr          *scm.MergeRequest
	diffs       []scm.Diff
	discussions []scm.Discussion
	botUserID   int64

	posted []postedComment
}

type postedComment struct {
	body string
	pos  *scm.Position
}

func (f *fakeHost) GetMergeRequest(ctx context.Context, projectID string, iid int64) (*scm.MergeRequest, error) {
	return f.mr, nil
}

func (f *fakeHost) GetMergeRequestDiffs(ctx context.Context, projectID string, iid int64) ([]scm.Diff, error) {
	return f.diffs, nil
}

func (f *fakeHost) GetMergeRequestDiscussions(ctx context.Context, projectID string, iid int64) ([]scm.Discussion, error) {
	return f.discussions, nil
}

func (f *fakeHost) CreateMergeRequestDiscussion(ctx context.Context, projectID string, iid int64, body string, pos *scm.Position) error {
	f.posted = append(f.posted, postedComment{body: body, pos: pos})
	return nil
}

func (f *fakeHost) BotUserID() int64 { return f.botUserID }

// fakeReviewer returns a fixed response and counts calls.
type fakeReviewer struct {
	response string
	calls    int
}

func (f *fakeReviewer) ID() string          { return "fake:reviewer" }
func (f *fakeReviewer) IsConfigured() bool  { return true }
func (f *fakeReviewer) MaxInputTokens() int { return 1_000_000 }

func (f *fakeReviewer) Generate(ctx context.Context, messages []models.LlmMessage, opts llm.GenerateOptions) (*models.LlmMessage, error) {
	f.calls++
	return &models.LlmMessage{Role: models.RoleAssistant, Text: f.response}, nil
}

const tsPatch = `@@ -1,3 +1,4 @@
 export function handler(req: Request) {
+  const data = fetchData()
   return data
 }
`

func seedRule(t *testing.T, stores interface {
	Save(ctx context.Context, cfg *models.CodeReviewConfig) error
}) models.CodeReviewConfig {
	t.Helper()
	rule := models.CodeReviewConfig{
		Title:          "No unawaited fetches",
		Enabled:        true,
		Description:    "fetchData returns a promise and must be awaited",
		Version:        "1",
		FileExtensions: models.CodeReviewFileExtensions{Include: []string{".ts"}},
		Requires:       models.CodeReviewRequires{Text: []string{"fetchData"}},
	}
	require.NoError(t, stores.Save(context.Background(), &rule))
	return rule
}

func newTestHost() *fakeHost {
	return &fakeHost{
		mr: &scm.MergeRequest{
			ID: 1, IID: 101, Title: "Add handler",
			DiffRefs: &scm.DiffRefs{BaseSha: "base", HeadSha: "head", StartSha: "start"},
		},
		diffs: []scm.Diff{{
			OldPath: "src/handler.ts",
			NewPath: "src/handler.ts",
			Patch:   tsPatch,
		}},
		botUserID: 42,
	}
}

// ==== Fingerprint cache across runs ====

func TestReviewWarmCacheSkipsLLM(t *testing.T) {
	stores := memory.New()
	seedRule(t, stores.ReviewConfigs)
	host := newTestHost()
	reviewer := &fakeReviewer{response: `{"thinking": "clean", "violations": []}`}
	engine := NewEngine(host, reviewer, stores, 0)

	ctx := context.Background()

	first, err := engine.ReviewMergeRequest(ctx, "123", 101)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewer.calls)
	assert.Equal(t, 1, first.UnitsReviewed)
	assert.Zero(t, first.ViolationsPosted)

	cache, err := stores.ReviewCaches.Get(ctx, "123", 101)
	require.NoError(t, err)
	require.Len(t, cache.Fingerprints, 1)
	firstUpdated := cache.LastUpdated

	second, err := engine.ReviewMergeRequest(ctx, "123", 101)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewer.calls, "warm cache must not call the LLM")
	assert.Equal(t, 1, second.UnitsCached)
	assert.Zero(t, second.UnitsReviewed)

	cache2, err := stores.ReviewCaches.Get(ctx, "123", 101)
	require.NoError(t, err)
	assert.Equal(t, cache.Fingerprints, cache2.Fingerprints)
	assert.GreaterOrEqual(t, cache2.LastUpdated, firstUpdated)
}

// ==== Violation posting and dedupe ====

func TestReviewPostsViolations(t *testing.T) {
	stores := memory.New()
	seedRule(t, stores.ReviewConfigs)
	host := newTestHost()
	reviewer := &fakeReviewer{
		response: `{"thinking": "missing await", "violations": [{"lineNumber": 2, "comment": "await fetchData() before using it"}]}`,
	}
	engine := NewEngine(host, reviewer, stores, 0)

	result, err := engine.ReviewMergeRequest(context.Background(), "123", 101)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ViolationsPosted)

	require.Len(t, host.posted, 1)
	assert.Contains(t, host.posted[0].body, "<!-- bot-review-id: rule=")
	assert.Contains(t, host.posted[0].body, "await fetchData()")
	require.NotNil(t, host.posted[0].pos)
	assert.Equal(t, "head", host.posted[0].pos.HeadSha)
	assert.Equal(t, 2, host.posted[0].pos.NewLine)

	// Violating units are not cached; a re-run reviews them again but
	// the existing comment suppresses a duplicate post.
	cache, err := stores.ReviewCaches.Get(context.Background(), "123", 101)
	require.NoError(t, err)
	assert.Empty(t, cache.Fingerprints)

	host.discussions = []scm.Discussion{{
		ID:    "d1",
		Notes: []scm.Note{{ID: 1, AuthorID: 42, Body: host.posted[0].body}},
	}}
	again, err := engine.ReviewMergeRequest(context.Background(), "123", 101)
	require.NoError(t, err)
	assert.Zero(t, again.ViolationsPosted)
	assert.Len(t, host.posted, 1)
}

func TestReviewIgnoresOtherUsersComments(t *testing.T) {
	stores := memory.New()
	seedRule(t, stores.ReviewConfigs)
	host := newTestHost()
	// A human pasted the marker; it belongs to another account and must
	// not suppress the bot's comment.
	host.discussions = []scm.Discussion{{
		ID:    "d1",
		Notes: []scm.Note{{ID: 1, AuthorID: 7, Body: "bot-review-id: rule=x, file=y, contextHash=abcdef0123456789"}},
	}}
	reviewer := &fakeReviewer{
		response: `{"thinking": "t", "violations": [{"lineNumber": 2, "comment": "needs await"}]}`,
	}
	engine := NewEngine(host, reviewer, stores, 0)

	result, err := engine.ReviewMergeRequest(context.Background(), "123", 101)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ViolationsPosted)
}

// ==== Applicability and failure isolation ====

func TestReviewApplicability(t *testing.T) {
	stores := memory.New()
	rule := seedRule(t, stores.ReviewConfigs)
	host := newTestHost()

	t.Run("extension mismatch produces no units", func(t *testing.T) {
		host.diffs[0].NewPath = "src/handler.py"
		reviewer := &fakeReviewer{response: `{"thinking": "", "violations": []}`}
		engine := NewEngine(host, reviewer, stores, 0)

		result, err := engine.ReviewMergeRequest(context.Background(), "123", 101)
		require.NoError(t, err)
		assert.Zero(t, result.UnitsTotal)
		assert.Zero(t, reviewer.calls)
		host.diffs[0].NewPath = "src/handler.ts"
	})

	t.Run("missing required literal produces no units", func(t *testing.T) {
		host.diffs[0].Patch = "@@ -1,1 +1,1 @@\n+const x = 1\n"
		reviewer := &fakeReviewer{response: `{"thinking": "", "violations": []}`}
		engine := NewEngine(host, reviewer, stores, 0)

		result, err := engine.ReviewMergeRequest(context.Background(), "123", 101)
		require.NoError(t, err)
		assert.Zero(t, result.UnitsTotal)
		host.diffs[0].Patch = tsPatch
	})

	t.Run("project glob restricts the rule", func(t *testing.T) {
		rule.ProjectPaths = []string{"platform/**"}
		require.NoError(t, stores.ReviewConfigs.Save(context.Background(), &rule))
		reviewer := &fakeReviewer{response: `{"thinking": "", "violations": []}`}
		engine := NewEngine(host, reviewer, stores, 0)

		result, err := engine.ReviewMergeRequest(context.Background(), "other/app", 101)
		require.NoError(t, err)
		assert.Zero(t, result.UnitsTotal)

		result, err = engine.ReviewMergeRequest(context.Background(), "platform/app", 101)
		require.NoError(t, err)
		assert.Equal(t, 1, result.UnitsTotal)
	})
}

func TestReviewUnparseableResponseSkipsUnit(t *testing.T) {
	stores := memory.New()
	seedRule(t, stores.ReviewConfigs)
	host := newTestHost()
	reviewer := &fakeReviewer{response: "I refuse to answer in JSON."}
	engine := NewEngine(host, reviewer, stores, 0)

	result, err := engine.ReviewMergeRequest(context.Background(), "123", 101)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnitsSkipped)
	assert.Zero(t, result.UnitsReviewed)

	// Nothing cached, so the next run retries the unit.
	cache, err := stores.ReviewCaches.Get(context.Background(), "123", 101)
	require.NoError(t, err)
	assert.Empty(t, cache.Fingerprints)
}
