// Package scope carries the ambient "current user" and "current agent"
// through nested calls as context values, so tools and stores do not
// need them threaded through every signature.
package scope

import (
	"context"
	"errors"

	"github.com/typedai/typedai/pkg/models"
)

type ctxKey int

const (
	userKey ctxKey = iota
	agentKey
)

// ErrNotBound is returned when no user binding exists and the process
// is not in single-user mode.
var ErrNotBound = errors.New("no user bound to context")

// singleUser is non-nil when AUTH=single_user; set once at boot.
var singleUser *models.User

// EnableSingleUser installs the fallback user returned by CurrentUser
// when no binding is present. Called once during boot.
func EnableSingleUser(u models.User) {
	singleUser = &u
}

// DisableSingleUser removes the fallback. Used by multi-user boot and
// by tests.
func DisableSingleUser() {
	singleUser = nil
}

// WithUser binds a user to the context.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// RunWithUser invokes fn with the user bound.
func RunWithUser(ctx context.Context, u models.User, fn func(ctx context.Context) error) error {
	return fn(WithUser(ctx, u))
}

// WithAgent binds the executing agent to the context. The runner
// establishes this before each iteration.
func WithAgent(ctx context.Context, agent *models.AgentContext) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// CurrentAgent returns the executing agent, or nil when none is bound.
func CurrentAgent(ctx context.Context) *models.AgentContext {
	if a, ok := ctx.Value(agentKey).(*models.AgentContext); ok {
		return a
	}
	return nil
}

// CurrentUser resolves the ambient user: the agent's owner when an
// agent is bound, else the user binding, else the single user in
// single-user mode. Fails with ErrNotBound otherwise.
func CurrentUser(ctx context.Context) (models.User, error) {
	if a := CurrentAgent(ctx); a != nil {
		return a.User, nil
	}
	if u, ok := ctx.Value(userKey).(models.User); ok {
		return u, nil
	}
	if singleUser != nil {
		return *singleUser, nil
	}
	return models.User{}, ErrNotBound
}
