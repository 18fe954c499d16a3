// ABOUTME: Tests for the sync state machine and subscriber fanout
// ABOUTME: Covers state strings, wholesale replacement, and the runner harness

package sync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStateString(t *testing.T) {
	assert.Equal(t, "Idle", Idle().String())
	assert.Equal(t, "InProgress(30%)", InProgress(0.3).String())
	assert.Equal(t, "Complete", Complete().String())
	assert.Equal(t, "Error(boom)", Errored(errors.New("boom")).String())
}

func TestBroadcastReplacesStateWholesale(t *testing.T) {
	b := newStateBroadcast()
	assert.Equal(t, StatusIdle, b.get().Status)

	b.set(InProgress(0.5))
	assert.Equal(t, 0.5, b.get().Progress)

	// A terminal state carries no stale progress.
	b.set(Complete())
	assert.Equal(t, StatusComplete, b.get().Status)
	assert.Zero(t, b.get().Progress)
}

func TestBroadcastSubscribeAndCancel(t *testing.T) {
	b := newStateBroadcast()

	var seen []SyncState
	cancel := b.subscribe(func(s SyncState) { seen = append(seen, s) })

	b.set(InProgress(0.1))
	b.set(Complete())
	require.Len(t, seen, 2)
	assert.Equal(t, StatusInProgress, seen[0].Status)
	assert.Equal(t, StatusComplete, seen[1].Status)

	cancel()
	b.set(Idle())
	assert.Len(t, seen, 2)
}

func TestRunnerSuccess(t *testing.T) {
	r := newRunner("test", nil, nil)

	var states []Status
	r.Subscribe(func(s SyncState) { states = append(states, s.Status) })

	ok := r.run(func() error {
		r.progress(0.5)
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, StatusComplete, r.State().Status)
	assert.Equal(t, []Status{StatusInProgress, StatusInProgress, StatusComplete}, states)
}

func TestRunnerFailure(t *testing.T) {
	r := newRunner("test", nil, nil)

	boom := errors.New("boom")
	ok := r.run(func() error { return boom })
	assert.False(t, ok)
	assert.Equal(t, StatusError, r.State().Status)
	assert.ErrorIs(t, r.State().Err, boom)
}

func TestRunnerFailureRecordsStatus(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SetLastSyncStatus(StatusComplete.String()))

	r := newRunner("test", nil, st)
	ok := r.run(func() error { return errors.New("boom") })
	assert.False(t, ok)

	meta, err := st.GetSyncMeta()
	require.NoError(t, err)
	assert.Equal(t, StatusError.String(), meta.LastStatus,
		"a failed run must not leave the previous status on record")
}
