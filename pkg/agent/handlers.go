package agent

import (
	"context"
	"sync"

	"github.com/typedai/typedai/pkg/models"
)

// CompletedHandler is notified when an agent reaches a terminal or
// feedback state. Handlers are registered by name; agents persist the
// name so the binding survives restarts.
type CompletedHandler interface {
	AgentCompleted(ctx context.Context, agent *models.AgentContext) error
}

// CompletedHandlerFunc adapts a function to the interface.
type CompletedHandlerFunc func(ctx context.Context, agent *models.AgentContext) error

// AgentCompleted invokes the wrapped function.
func (f CompletedHandlerFunc) AgentCompleted(ctx context.Context, agent *models.AgentContext) error {
	return f(ctx, agent)
}

var (
	handlersMu sync.RWMutex
	handlers   = map[string]CompletedHandler{}
)

// RegisterCompletedHandler installs a handler under the given name.
func RegisterCompletedHandler(name string, h CompletedHandler) {
	handlersMu.Lock()
	handlers[name] = h
	handlersMu.Unlock()
}

// GetCompletedHandler looks up a registered handler.
func GetCompletedHandler(name string) (CompletedHandler, bool) {
	handlersMu.RLock()
	h, ok := handlers[name]
	handlersMu.RUnlock()
	return h, ok
}
