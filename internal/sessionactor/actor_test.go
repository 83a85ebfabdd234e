package sessionactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/subscription"
	"github.com/robdel12/orbitdock/internal/transition"
)

func testDeps(persisted *[]transition.PersistOp, notified *[]protocol.SessionSummary) Dependencies {
	return Dependencies{
		Clock: func() time.Time { return time.Unix(1000, 0) },
		Persist: func(op transition.PersistOp) {
			if persisted != nil {
				*persisted = append(*persisted, op)
			}
		},
		Notify: func(s protocol.SessionSummary) {
			if notified != nil {
				*notified = append(*notified, s)
			}
		},
	}
}

func TestSpawn_ProcessesCommandsSequentially(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var persisted []transition.PersistOp
	h := Spawn(ctx, protocol.SessionState{ID: "s1", Status: protocol.SessionActive}, testDeps(&persisted, nil))

	err := h.Send(ctx, Mutate{Input: transition.DiffUpdated{Diff: "diff1"}})
	require.NoError(t, err)
	err = h.Send(ctx, Mutate{Input: transition.PlanUpdated{Plan: "plan1"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := h.Snapshot()
		return snap.Diff == "diff1" && snap.Plan == "plan1" && snap.Revision == 2
	}, time.Second, time.Millisecond)
}

func TestSpawn_SnapshotUpdatesAfterMutation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, protocol.SessionState{ID: "s1", Status: protocol.SessionActive}, testDeps(nil, nil))

	before := h.Snapshot()
	assert.Equal(t, uint64(0), before.Revision)

	require.NoError(t, h.Send(ctx, Mutate{Input: transition.DiffUpdated{Diff: "x"}}))

	require.Eventually(t, func() bool {
		return h.Snapshot().Revision == 1
	}, time.Second, time.Millisecond)
}

func TestHandle_TakeHandle_StopsServicingFurtherCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, protocol.SessionState{ID: "s1", Status: protocol.SessionActive}, testDeps(nil, nil))
	require.NoError(t, h.Send(ctx, Mutate{Input: transition.DiffUpdated{Diff: "before"}}))

	final, err := h.TakeHandle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "before", final.Diff)

	assert.False(t, h.TrySend(Mutate{Input: transition.PlanUpdated{Plan: "after"}}))
}

func TestHandle_Subscribe_NoSubscribeDep_FallsBackToSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, protocol.SessionState{ID: "s1", Status: protocol.SessionActive}, testDeps(nil, nil))
	require.NoError(t, h.Send(ctx, Mutate{Input: transition.DiffUpdated{Diff: "x"}}))

	reply := make(chan SubscribeReply, 1)
	require.NoError(t, h.Send(ctx, Subscribe{Fn: func(subscription.Envelope) {}, Reply: reply}))

	var sub SubscribeReply
	select {
	case sub = <-reply:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribe reply")
	}

	assert.True(t, sub.Result.NeedsSnapshot)
	assert.Equal(t, "x", sub.State.Diff)
}

func TestHandle_Subscribe_CapturesStateAtCommandOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn(ctx, protocol.SessionState{ID: "s1", Status: protocol.SessionActive}, testDeps(nil, nil))
	require.NoError(t, h.Send(ctx, Mutate{Input: transition.DiffUpdated{Diff: "before-subscribe"}}))

	reply := make(chan SubscribeReply, 1)
	require.NoError(t, h.Send(ctx, Subscribe{Fn: func(subscription.Envelope) {}, Reply: reply}))
	require.NoError(t, h.Send(ctx, Mutate{Input: transition.DiffUpdated{Diff: "after-subscribe"}}))

	var sub SubscribeReply
	select {
	case sub = <-reply:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribe reply")
	}

	assert.Equal(t, "before-subscribe", sub.State.Diff)
}

func TestHandle_ProcessEvent_RoutesThroughTransition(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notified []protocol.SessionSummary
	h := Spawn(ctx, protocol.SessionState{ID: "s1", Status: protocol.SessionActive}, testDeps(nil, &notified))

	require.NoError(t, h.Send(ctx, ProcessEvent{Input: transition.EndRequested{Reason: "connector closed"}}))

	require.Eventually(t, func() bool {
		return h.Snapshot().Status == protocol.SessionEnded
	}, time.Second, time.Millisecond)
}
