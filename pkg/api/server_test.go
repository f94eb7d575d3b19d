package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedai/typedai/pkg/agent"
	"github.com/typedai/typedai/pkg/config"
	"github.com/typedai/typedai/pkg/llm"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/queue"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
	"github.com/typedai/typedai/pkg/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// plannerStub always completes on the first iteration.
type plannerStub struct{}

func (plannerStub) ID() string          { return "stub:planner" }
func (plannerStub) IsConfigured() bool  { return true }
func (plannerStub) MaxInputTokens() int { return 1_000_000 }

func (plannerStub) Generate(ctx context.Context, messages []models.LlmMessage, opts llm.GenerateOptions) (*models.LlmMessage, error) {
	return &models.LlmMessage{
		Role:  models.RoleAssistant,
		Text:  `{"thinking": "done", "functionCalls": [{"name": "Agent_completed", "parameters": {}}]}`,
		Stats: &models.GenerationStats{Cost: 0.001, LlmID: "stub:planner"},
	}, nil
}

type testEnv struct {
	server *Server
	stores *store.Stores
	pool   *queue.Pool
	http   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores := memory.New()
	cfg := config.Default()
	runner := agent.NewRunner(stores, plannerStub{}, agent.Config{})
	pool := queue.NewPool("test-pod", stores.Agents, queue.Config{WorkerCount: 2})
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(pool.Stop)

	server := NewServer(cfg, stores, runner, pool, nil)
	return &testEnv{server: server, stores: stores, pool: pool, http: server.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.http.ServeHTTP(w, req)
	return w
}

func (e *testEnv) userCtx() context.Context {
	return scope.WithUser(context.Background(), models.User{
		ID: e.server.cfg.User.ID, Name: e.server.cfg.User.Name, Enabled: true,
	})
}

func (e *testEnv) waitForState(t *testing.T, agentID string, want models.AgentState) *models.AgentContext {
	t.Helper()
	var loaded *models.AgentContext
	require.Eventually(t, func() bool {
		a, err := e.stores.Agents.Load(e.userCtx(), agentID)
		if err != nil {
			return false
		}
		loaded = a
		return a.State == want
	}, 5*time.Second, 10*time.Millisecond)
	return loaded
}

// ==== Agent lifecycle over HTTP ====

func TestStartAgentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/agents", StartAgentRequest{
		Name:       "api-agent",
		UserPrompt: "do a thing",
		Functions:  []string{"Agent_completed"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var summary models.AgentContextSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.NotEmpty(t, summary.AgentID)

	done := env.waitForState(t, summary.AgentID, models.StateCompleted)
	assert.Equal(t, "api-agent", done.Name)

	t.Run("shows up in the agent list", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/agents", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Agents []models.AgentContextSummary `json:"agents"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Agents, 1)
		assert.Equal(t, summary.AgentID, resp.Agents[0].AgentID)
	})

	t.Run("terminal agents are absent from running", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/agents/running", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Agents []models.AgentContextSummary `json:"agents"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Agents)
	})

	t.Run("full context is served", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/agents/"+summary.AgentID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var loaded models.AgentContext
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loaded))
		assert.Equal(t, models.StateCompleted, loaded.State)
	})
}

func TestStartAgentValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/agents", map[string]string{"name": "missing prompt"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/agents", StartAgentRequest{
		Name: "bad duration", UserPrompt: "p", WallClockBudget: "soon",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAgentNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/agents/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAgentsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/agents", StartAgentRequest{
		Name: "short-lived", UserPrompt: "p", Functions: []string{"Agent_completed"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var summary models.AgentContextSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	env.waitForState(t, summary.AgentID, models.StateCompleted)

	w = env.do(t, http.MethodDelete, "/api/agents", DeleteAgentsRequest{AgentIDs: []string{summary.AgentID}})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/agents/"+summary.AgentID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ==== Review config CRUD ====

func TestReviewConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)

	created := models.CodeReviewConfig{
		Title:          "No fmt.Println",
		Enabled:        true,
		Description:    "use the structured logger",
		FileExtensions: models.CodeReviewFileExtensions{Include: []string{".go"}},
		Requires:       models.CodeReviewRequires{Text: []string{"fmt.Println"}},
	}
	w := env.do(t, http.MethodPost, "/api/review-configs", created)
	require.Equal(t, http.StatusCreated, w.Code)
	var stored models.CodeReviewConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	require.NotEmpty(t, stored.ID)

	t.Run("list", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/review-configs", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Configs []models.CodeReviewConfig `json:"configs"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Configs, 1)
	})

	t.Run("update", func(t *testing.T) {
		stored.Description = "updated"
		w := env.do(t, http.MethodPut, "/api/review-configs/"+stored.ID, stored)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/api/review-configs/"+stored.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got models.CodeReviewConfig
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "updated", got.Description)
	})

	t.Run("update of a missing rule is 404", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/review-configs/ghost", stored)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/review-configs/"+stored.ID, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(t, http.MethodGet, "/api/review-configs/"+stored.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// ==== Review trigger without source control ====

func TestTriggerReviewUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/reviews/mr", TriggerReviewRequest{ProjectID: "123", MrIID: 1})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ==== Health ====

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
