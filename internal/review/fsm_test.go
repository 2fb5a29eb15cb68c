package review

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPRNodeFSMHappyPath(t *testing.T) {
	f := NewPRNodeFSM(42)
	require.Equal(t, StatePending, f.State())

	state, err := f.ProcessEvent(StartReviewEvent{})
	require.NoError(t, err)
	require.Equal(t, StateReviewing, state)

	state, err = f.ProcessEvent(ReviewPassEvent{})
	require.NoError(t, err)
	require.Equal(t, StateReviewPassed, state)

	state, err = f.ProcessEvent(StartMergeEvent{})
	require.NoError(t, err)
	require.Equal(t, StateMerging, state)

	state, err = f.ProcessEvent(MergeOKEvent{CommitSHA: "abc123"})
	require.NoError(t, err)
	require.Equal(t, StateMerged, state)

	require.Len(t, f.TransitionHistory(), 4)
}

func TestPRNodeFSMReviewFailure(t *testing.T) {
	f := NewPRNodeFSM(7)
	_, err := f.ProcessEvent(StartReviewEvent{})
	require.NoError(t, err)

	state, err := f.ProcessEvent(ReviewFailEvent{Reason: "test_failed"})
	require.NoError(t, err)
	require.Equal(t, StateReviewFailed, state)
}

func TestPRNodeFSMMergeFailure(t *testing.T) {
	f := NewPRNodeFSM(7)
	_, _ = f.ProcessEvent(StartReviewEvent{})
	_, _ = f.ProcessEvent(ReviewPassEvent{})
	_, _ = f.ProcessEvent(StartMergeEvent{})

	state, err := f.ProcessEvent(MergeFailEvent{Reason: "CI failed"})
	require.NoError(t, err)
	require.Equal(t, StateFailed, state)
}

func TestPRNodeFSMBlockedAndConflict(t *testing.T) {
	blocked := NewPRNodeFSM(1)
	state, err := blocked.ProcessEvent(BlockEvent{DependsOn: []int{2}})
	require.NoError(t, err)
	require.Equal(t, StateBlocked, state)

	conflict := NewPRNodeFSM(2)
	state, err = conflict.ProcessEvent(ConflictEvent{ConflictingFiles: []string{"shared.py"}})
	require.NoError(t, err)
	require.Equal(t, StateConflict, state)
}

func TestPRNodeFSMRejectsInvalidTransitions(t *testing.T) {
	f := NewPRNodeFSM(1)
	_, err := f.ProcessEvent(ReviewPassEvent{})
	require.Error(t, err)
}

// TestPRNodeFSMTerminalStatesAreSticky realizes the invariant that
// transitions from MERGED/FAILED are rejected outright.
func TestPRNodeFSMTerminalStatesAreSticky(t *testing.T) {
	f := NewPRNodeFSM(1)
	_, _ = f.ProcessEvent(StartReviewEvent{})
	_, _ = f.ProcessEvent(ReviewPassEvent{})
	_, _ = f.ProcessEvent(StartMergeEvent{})
	_, _ = f.ProcessEvent(MergeOKEvent{})

	require.Equal(t, StateMerged, f.State())

	_, err := f.ProcessEvent(StartReviewEvent{})
	require.Error(t, err)
}
