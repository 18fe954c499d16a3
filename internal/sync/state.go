// ABOUTME: Sync state machine shared by all coordinators
// ABOUTME: Idle/InProgress/Complete/Error with progress and subscriber fanout

package sync

import (
	"fmt"
	"sync"
)

// Status is the phase of a coordinator's current or last run.
type Status int

const (
	StatusIdle Status = iota
	StatusInProgress
	StatusComplete
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusInProgress:
		return "InProgress"
	case StatusComplete:
		return "Complete"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// SyncState is the observable state of a coordinator. States are replaced
// wholesale; Progress is meaningful only while InProgress.
type SyncState struct {
	Status   Status
	Progress float64
	Err      error
}

func (s SyncState) String() string {
	switch s.Status {
	case StatusInProgress:
		return fmt.Sprintf("InProgress(%.0f%%)", s.Progress*100)
	case StatusError:
		return fmt.Sprintf("Error(%v)", s.Err)
	default:
		return s.Status.String()
	}
}

// Idle returns the initial state.
func Idle() SyncState { return SyncState{Status: StatusIdle} }

// InProgress returns a running state at the given progress in [0, 1].
func InProgress(progress float64) SyncState {
	return SyncState{Status: StatusInProgress, Progress: progress}
}

// Complete returns the success terminal state.
func Complete() SyncState { return SyncState{Status: StatusComplete} }

// Errored returns the failure terminal state carrying err.
func Errored(err error) SyncState { return SyncState{Status: StatusError, Err: err} }

// stateBroadcast holds the current state and fans out replacements to
// subscribers. Callbacks run synchronously on the publishing goroutine.
type stateBroadcast struct {
	mu     sync.Mutex
	state  SyncState
	subs   map[int]func(SyncState)
	nextID int
}

func newStateBroadcast() *stateBroadcast {
	return &stateBroadcast{
		state: Idle(),
		subs:  make(map[int]func(SyncState)),
	}
}

func (b *stateBroadcast) get() SyncState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *stateBroadcast) set(state SyncState) {
	b.mu.Lock()
	b.state = state
	fns := make([]func(SyncState), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (b *stateBroadcast) subscribe(fn func(SyncState)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
