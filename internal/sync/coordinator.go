// ABOUTME: Coordinator contract and the run harness shared by implementations
// ABOUTME: One mutex per coordinator serializes pulls and pushes

package sync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/harper/skein/internal/storage"
)

// Coordinator reconciles the local store with one source of truth. The
// boolean results report success; details land in the state machine and the
// log rather than in returned errors, so callers can chain coordinators
// without unwinding.
type Coordinator interface {
	// Pull performs a full reconcile from the remote.
	Pull(ctx context.Context) bool
	// PullFeeds refreshes only the given feeds, bypassing due filters.
	PullFeeds(ctx context.Context, feedIDs []string) bool
	// PullFeed refreshes a single feed.
	PullFeed(ctx context.Context, feedID string) bool
	// Push sends pending local changes to the remote.
	Push(ctx context.Context) bool
	// State returns the current observable state.
	State() SyncState
	// Subscribe registers a state callback and returns its cancel func.
	Subscribe(fn func(SyncState)) (cancel func())
}

// runner is the shared harness: serializes runs, drives the state machine,
// and logs failures.
type runner struct {
	mu     sync.Mutex
	states *stateBroadcast
	log    *slog.Logger
	name   string
	store  storage.Store
}

func newRunner(name string, log *slog.Logger, store storage.Store) *runner {
	if log == nil {
		log = slog.Default()
	}
	return &runner{
		states: newStateBroadcast(),
		log:    log.With("coordinator", name),
		name:   name,
		store:  store,
	}
}

// run executes fn under the coordinator mutex, moving the state machine
// through InProgress to Complete or Error. Failures are also recorded in the
// store so the status survives the process.
func (r *runner) run(fn func() error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states.set(InProgress(0))
	if err := fn(); err != nil {
		r.log.Error("sync failed", "error", err)
		if r.store != nil {
			if serr := r.store.SetLastSyncStatus(StatusError.String()); serr != nil {
				r.log.Warn("recording sync failure failed", "error", serr)
			}
		}
		r.states.set(Errored(err))
		return false
	}
	r.states.set(Complete())
	return true
}

func (r *runner) progress(p float64) {
	r.states.set(InProgress(p))
}

func (r *runner) State() SyncState {
	return r.states.get()
}

func (r *runner) Subscribe(fn func(SyncState)) (cancel func()) {
	return r.states.subscribe(fn)
}
