package syncer

import (
	"context"
	"sync"

	"github.com/stubbs41/collectthemall/backend/internal/store"
)

// Registry owns one orchestrator per signed-in user. Orchestrators are
// constructed on sign-in and torn down on sign-out, so no session state
// leaks across sessions.
type Registry struct {
	store *store.Store

	mu       sync.Mutex
	sessions map[string]*Orchestrator
}

// NewRegistry creates an empty registry over the shared store.
func NewRegistry(st *store.Store) *Registry {
	return &Registry{
		store:    st,
		sessions: make(map[string]*Orchestrator),
	}
}

// SignIn returns the user's orchestrator, creating it and loading the
// initial snapshot on first sign-in. A second sign-in for the same user
// (another device) reuses the live orchestrator and forces a refresh.
func (r *Registry) SignIn(ctx context.Context, userID string) *Orchestrator {
	r.mu.Lock()
	orch, ok := r.sessions[userID]
	if !ok {
		orch = New(r.store)
		r.sessions[userID] = orch
	}
	r.mu.Unlock()

	if ok {
		orch.Refresh(ctx)
		return orch
	}
	orch.SignIn(ctx, userID)
	return orch
}

// Get returns the live orchestrator for a user, or nil when the user has
// no active session.
func (r *Registry) Get(userID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// SignOut tears down the user's orchestrator and clears their snapshot.
func (r *Registry) SignOut(userID string) {
	r.mu.Lock()
	orch, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		orch.SignOut()
	}
}
