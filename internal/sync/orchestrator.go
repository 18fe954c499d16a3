// ABOUTME: Orchestrator selecting the authoritative coordinator per call
// ABOUTME: Priority when signed in: GReader > Miniflux > Snapshot > Local

package sync

import "context"

// Backend identifies a sync source of truth.
type Backend int

const (
	BackendLocal Backend = iota
	BackendSnapshot
	BackendMiniflux
	BackendGReader
)

func (b Backend) String() string {
	switch b {
	case BackendGReader:
		return "greader"
	case BackendMiniflux:
		return "miniflux"
	case BackendSnapshot:
		return "snapshot"
	default:
		return "local"
	}
}

// Orchestrator delegates every Coordinator call to whichever backend is
// currently authoritative. resolve is consulted on each call so that signing
// in or out takes effect without rebuilding the engine.
type Orchestrator struct {
	resolve  func() Backend
	greader  Coordinator
	miniflux Coordinator
	snapshot Coordinator
	local    Coordinator
}

// NewOrchestrator builds an orchestrator. local must be non-nil; the other
// coordinators may be nil, in which case selection falls through to the next
// backend in priority order.
func NewOrchestrator(resolve func() Backend, greader, miniflux, snapshot, local Coordinator) *Orchestrator {
	return &Orchestrator{
		resolve:  resolve,
		greader:  greader,
		miniflux: miniflux,
		snapshot: snapshot,
		local:    local,
	}
}

// Active returns the coordinator currently holding authority.
func (o *Orchestrator) Active() Coordinator {
	switch o.resolve() {
	case BackendGReader:
		if o.greader != nil {
			return o.greader
		}
		fallthrough
	case BackendMiniflux:
		if o.miniflux != nil {
			return o.miniflux
		}
		fallthrough
	case BackendSnapshot:
		if o.snapshot != nil {
			return o.snapshot
		}
		fallthrough
	default:
		return o.local
	}
}

func (o *Orchestrator) Pull(ctx context.Context) bool {
	return o.Active().Pull(ctx)
}

func (o *Orchestrator) PullFeeds(ctx context.Context, feedIDs []string) bool {
	return o.Active().PullFeeds(ctx, feedIDs)
}

func (o *Orchestrator) PullFeed(ctx context.Context, feedID string) bool {
	return o.Active().PullFeed(ctx, feedID)
}

func (o *Orchestrator) Push(ctx context.Context) bool {
	return o.Active().Push(ctx)
}

func (o *Orchestrator) State() SyncState {
	return o.Active().State()
}

func (o *Orchestrator) Subscribe(fn func(SyncState)) (cancel func()) {
	return o.Active().Subscribe(fn)
}
