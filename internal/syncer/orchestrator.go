// Package syncer mediates between UI-triggered intents and the
// collection store, and between authentication-lifecycle transitions and
// cache freshness.
package syncer

import (
	"context"
	"log"
	"sync"

	"github.com/stubbs41/collectthemall/backend/internal/models"
	"github.com/stubbs41/collectthemall/backend/internal/store"
)

// State is the orchestrator's session lifecycle state.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoading         State = "loading"
	StateReady           State = "ready"
	StateMutating        State = "mutating"
	StateReadyWithError  State = "ready_with_error"
)

// Event is published to subscribers on every state transition. Err is
// set only for ready_with_error.
type Event struct {
	State  State  `json:"state"`
	UserID string `json:"user_id,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Orchestrator owns one client session's lifecycle. Subscribers get an
// explicit event stream; there is no implicit global signaling between
// components.
type Orchestrator struct {
	store *store.Store

	mu      sync.Mutex
	state   State
	userID  string
	subs    map[int]chan Event
	nextSub int
}

// New creates an orchestrator in the unauthenticated state.
func New(st *store.Store) *Orchestrator {
	return &Orchestrator{
		store: st,
		state: StateUnauthenticated,
		subs:  make(map[int]chan Event),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// UserID returns the bound user, or empty when unauthenticated.
func (o *Orchestrator) UserID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.userID
}

// Subscribe registers for state transition events. The returned func
// unsubscribes and closes the channel. Slow subscribers drop events
// rather than blocking transitions.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan Event, 8)
	o.subs[id] = ch

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if sub, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(sub)
		}
	}
}

// transition publishes under o.mu. Unsubscribe closes channels under
// the same lock, so a send never races a close. Sends stay non-blocking.
func (o *Orchestrator) transition(state State, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = state
	event := Event{State: state, UserID: o.userID, Err: errMsg}
	for _, ch := range o.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SignIn binds the session to a user and triggers a full reload.
func (o *Orchestrator) SignIn(ctx context.Context, userID string) *models.Snapshot {
	o.mu.Lock()
	o.userID = userID
	o.mu.Unlock()

	o.transition(StateLoading, "")
	snap := o.store.FetchAll(ctx, userID)
	o.transition(StateReady, "")
	log.Printf("Sync: signed in user %s, loaded %d items", userID, snap.TotalItems())
	return snap
}

// SignOut clears the snapshot and returns to the unauthenticated state.
func (o *Orchestrator) SignOut() {
	o.mu.Lock()
	userID := o.userID
	o.userID = ""
	o.mu.Unlock()

	if userID != "" {
		o.store.Clear(userID)
	}
	o.transition(StateUnauthenticated, "")
}

// Refresh forces a reload regardless of snapshot TTL, e.g. after an
// external redirect completes.
func (o *Orchestrator) Refresh(ctx context.Context) *models.Snapshot {
	userID := o.UserID()
	if userID == "" {
		return models.EmptySnapshot()
	}
	o.transition(StateLoading, "")
	snap := o.store.FetchAll(ctx, userID)
	o.transition(StateReady, "")
	return snap
}

// Snapshot returns the current view, re-fetching if the cache is stale.
func (o *Orchestrator) Snapshot(ctx context.Context) *models.Snapshot {
	return o.store.Snapshot(ctx, o.UserID())
}

// AddCard runs an add mutation through the lifecycle: mutating, then on
// success a full re-fetch back to ready, on failure ready_with_error
// with the snapshot untouched beyond the store's own bookkeeping.
func (o *Orchestrator) AddCard(ctx context.Context, card models.CardRef, ctype models.CollectionType, groupName string) models.AddResult {
	userID := o.UserID()
	if userID == "" {
		return models.AddError(models.ErrKindAuth, "authentication required")
	}

	o.transition(StateMutating, "")
	result := o.store.AddCard(ctx, userID, card, ctype, groupName)
	o.settle(ctx, userID, result.Status == models.AddStatusError, result.Message)
	return result
}

// RemoveCard runs a remove mutation through the lifecycle. A not_found
// result is not an error; the session settles back to ready.
func (o *Orchestrator) RemoveCard(ctx context.Context, cardID string, ctype models.CollectionType, groupName string, decrementOnly bool) models.RemoveResult {
	userID := o.UserID()
	if userID == "" {
		return models.RemoveError(models.ErrKindAuth, "authentication required")
	}

	o.transition(StateMutating, "")
	result := o.store.RemoveCard(ctx, userID, cardID, ctype, groupName, decrementOnly)
	o.settle(ctx, userID, result.Status == models.RemoveStatusError, result.Message)
	return result
}

// CreateGroup, RenameGroup and DeleteGroup wrap the store's group
// lifecycle operations in the same mutating/ready transitions.
func (o *Orchestrator) CreateGroup(ctx context.Context, name, description string) models.GroupResult {
	return o.groupOp(ctx, func(userID string) models.GroupResult {
		return o.store.CreateGroup(ctx, userID, name, description)
	})
}

func (o *Orchestrator) RenameGroup(ctx context.Context, oldName, newName string) models.GroupResult {
	return o.groupOp(ctx, func(userID string) models.GroupResult {
		return o.store.RenameGroup(ctx, userID, oldName, newName)
	})
}

func (o *Orchestrator) DeleteGroup(ctx context.Context, name string) models.GroupResult {
	return o.groupOp(ctx, func(userID string) models.GroupResult {
		return o.store.DeleteGroup(ctx, userID, name)
	})
}

func (o *Orchestrator) groupOp(ctx context.Context, fn func(userID string) models.GroupResult) models.GroupResult {
	userID := o.UserID()
	if userID == "" {
		return models.GroupResult{Status: models.GroupStatusError, Message: "authentication required"}
	}

	o.transition(StateMutating, "")
	result := fn(userID)
	o.settle(ctx, userID, result.Status == models.GroupStatusError, result.Message)
	return result
}

// settle finishes a mutation: successful mutations trigger a full
// re-fetch so the UI re-renders from confirmed state, failed ones leave
// the snapshot alone and surface the error.
func (o *Orchestrator) settle(ctx context.Context, userID string, failed bool, errMsg string) {
	if failed {
		o.transition(StateReadyWithError, errMsg)
		return
	}
	o.store.FetchAll(ctx, userID)
	o.transition(StateReady, "")
}
