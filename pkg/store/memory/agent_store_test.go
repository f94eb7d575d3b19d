package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
)

func testUser() models.User {
	return models.User{ID: "u1", Name: "Test User", Email: "u1@example.com", Enabled: true}
}

func testAgent(id string, user models.User) *models.AgentContext {
	return &models.AgentContext{
		AgentID:     id,
		ExecutionID: "exec-" + id,
		User:        user,
		Type:        models.AgentTypeCodegen,
		State:       models.StateAgent,
		Name:        "agent " + id,
		UserPrompt:  "do the thing",
		Functions:   []string{},
		CreatedAt:   1000,
		LastUpdate:  1000,
	}
}

// ==== Save / Load ====

func TestAgentStoreSaveLoad(t *testing.T) {
	s := NewAgentStore()
	ctx := scope.WithUser(context.Background(), testUser())

	t.Run("round trips the full context", func(t *testing.T) {
		a := testAgent("a1", testUser())
		a.Memory = map[string]string{"key": "value"}
		a.Messages = []models.LlmMessage{models.TextMessage(models.RoleUser, "hello")}
		require.NoError(t, s.Save(ctx, a))

		loaded, err := s.Load(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, a.AgentID, loaded.AgentID)
		assert.Equal(t, a.ExecutionID, loaded.ExecutionID)
		assert.Equal(t, "value", loaded.Memory["key"])
		require.Len(t, loaded.Messages, 1)
		assert.Equal(t, "hello", loaded.Messages[0].Text)
	})

	t.Run("load returns a copy", func(t *testing.T) {
		loaded, err := s.Load(ctx, "a1")
		require.NoError(t, err)
		loaded.Name = "mutated"

		again, err := s.Load(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "agent a1", again.Name)
	})

	t.Run("missing agent returns ErrNotFound", func(t *testing.T) {
		_, err := s.Load(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

// ==== Parent / child linking ====

func TestAgentStoreParentChild(t *testing.T) {
	s := NewAgentStore()
	ctx := scope.WithUser(context.Background(), testUser())

	parent := testAgent("parent", testUser())
	require.NoError(t, s.Save(ctx, parent))

	t.Run("saving a child links it into the parent", func(t *testing.T) {
		child := testAgent("child", testUser())
		child.ParentAgentID = "parent"
		require.NoError(t, s.Save(ctx, child))

		loaded, err := s.Load(ctx, "parent")
		require.NoError(t, err)
		assert.Equal(t, []string{"child"}, loaded.ChildAgents)
	})

	t.Run("re-saving a child does not duplicate the link", func(t *testing.T) {
		child, err := s.Load(ctx, "child")
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, child))

		loaded, err := s.Load(ctx, "parent")
		require.NoError(t, err)
		assert.Equal(t, []string{"child"}, loaded.ChildAgents)
	})

	t.Run("saving a child with a missing parent fails", func(t *testing.T) {
		orphan := testAgent("orphan", testUser())
		orphan.ParentAgentID = "ghost"
		err := s.Save(ctx, orphan)
		assert.ErrorIs(t, err, store.ErrParentMissing)

		_, err = s.Load(ctx, "orphan")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

// ==== UpdateState ====

func TestAgentStoreUpdateState(t *testing.T) {
	s := NewAgentStore()
	ctx := scope.WithUser(context.Background(), testUser())

	a := testAgent("a1", testUser())
	require.NoError(t, s.Save(ctx, a))

	require.NoError(t, s.UpdateState(ctx, a, models.StateCompleted))
	assert.Equal(t, models.StateCompleted, a.State)

	loaded, err := s.Load(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, loaded.State)
	assert.Greater(t, loaded.LastUpdate, int64(1000))

	err = s.UpdateState(ctx, testAgent("ghost", testUser()), models.StateError)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// ==== List / ListRunning ====

func TestAgentStoreList(t *testing.T) {
	s := NewAgentStore()
	owner := testUser()
	other := models.User{ID: "u2", Name: "Other", Enabled: true}
	ctx := scope.WithUser(context.Background(), owner)

	mk := func(id string, user models.User, state models.AgentState, lastUpdate int64) {
		a := testAgent(id, user)
		a.State = state
		a.LastUpdate = lastUpdate
		require.NoError(t, s.Save(scope.WithUser(context.Background(), user), a))
	}
	mk("old", owner, models.StateCompleted, 100)
	mk("newer", owner, models.StateAgent, 200)
	mk("newest", owner, models.StateHil, 300)
	mk("foreign", other, models.StateAgent, 400)

	t.Run("list is scoped to the current user, recent first", func(t *testing.T) {
		got, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "newest", got[0].AgentID)
		assert.Equal(t, "newer", got[1].AgentID)
		assert.Equal(t, "old", got[2].AgentID)
	})

	t.Run("listRunning excludes terminal states", func(t *testing.T) {
		got, err := s.ListRunning(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, sum := range got {
			assert.True(t, sum.State.IsExecuting())
		}
	})

	t.Run("listRunning sorts by state then recency", func(t *testing.T) {
		mk("second-agent", owner, models.StateAgent, 50)
		got, err := s.ListRunning(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "newer", got[0].AgentID)
		assert.Equal(t, "second-agent", got[1].AgentID)
		assert.Equal(t, "newest", got[2].AgentID)
	})

	t.Run("unbound context fails", func(t *testing.T) {
		scope.DisableSingleUser()
		_, err := s.List(context.Background())
		assert.ErrorIs(t, err, scope.ErrNotBound)
	})
}

// ==== Delete ====

func TestAgentStoreDelete(t *testing.T) {
	s := NewAgentStore()
	owner := testUser()
	ctx := scope.WithUser(context.Background(), owner)

	mk := func(id string, state models.AgentState, parent string) {
		a := testAgent(id, owner)
		a.State = state
		a.ParentAgentID = parent
		require.NoError(t, s.Save(ctx, a))
	}

	t.Run("deleting a parent cascades to children", func(t *testing.T) {
		mk("p", models.StateCompleted, "")
		mk("c1", models.StateCompleted, "p")
		mk("c2", models.StateCompleted, "p")

		require.NoError(t, s.Delete(ctx, []string{"p"}))
		for _, id := range []string{"p", "c1", "c2"} {
			_, err := s.Load(ctx, id)
			assert.ErrorIs(t, err, store.ErrNotFound, id)
		}
	})

	t.Run("executing agents are skipped", func(t *testing.T) {
		mk("running", models.StateFunctions, "")
		require.NoError(t, s.Delete(ctx, []string{"running"}))
		_, err := s.Load(ctx, "running")
		assert.NoError(t, err)
	})

	t.Run("child agents are skipped", func(t *testing.T) {
		mk("p2", models.StateCompleted, "")
		mk("c3", models.StateCompleted, "p2")
		require.NoError(t, s.Delete(ctx, []string{"c3"}))
		_, err := s.Load(ctx, "c3")
		assert.NoError(t, err)
	})

	t.Run("other users' agents are skipped", func(t *testing.T) {
		other := models.User{ID: "u2", Enabled: true}
		foreign := testAgent("foreign", other)
		foreign.State = models.StateCompleted
		require.NoError(t, s.Save(scope.WithUser(context.Background(), other), foreign))

		require.NoError(t, s.Delete(ctx, []string{"foreign"}))
		_, err := s.Load(ctx, "foreign")
		assert.NoError(t, err)
	})

	t.Run("missing ids are ignored", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, []string{"ghost"}))
	})
}
