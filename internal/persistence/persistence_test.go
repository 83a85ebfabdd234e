package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/storage"
	"github.com/robdel12/orbitdock/internal/transition"
)

func openTestWriter(t *testing.T) *Writer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orbitdock.db")
	s, err := storage.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewWriter(s)
}

func TestWriter_RunsCommandsInOrder(t *testing.T) {
	w := openTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	now := time.Unix(1000, 0).UTC()
	st := protocol.SessionState{ID: "sess-1", Provider: protocol.ProviderCodex, Status: protocol.SessionActive, StartedAt: now, LastActivityAt: now}
	require.NoError(t, w.Submit(ctx, SessionCreate{State: st}))

	st.Revision = 5
	require.NoError(t, w.Submit(ctx, SessionUpdate{State: st}))
	require.NoError(t, w.Submit(ctx, SetCustomName{SessionID: "sess-1", Name: "my session"}))

	assert.Eventually(t, func() bool {
		got, err := w.store.GetSession(ctx, "sess-1")
		return err == nil && got.Revision == 5 && got.CustomName == "my session"
	}, time.Second, 10*time.Millisecond)
}

func TestFromPersistOp_TranslatesEachVariant(t *testing.T) {
	msg := protocol.Message{ID: "m1", SessionID: "sess-1"}
	cmd, ok := fromPersistOp(transition.PersistOp{MessageAppend: &msg})
	require.True(t, ok)
	assert.Equal(t, MessageCreate{Message: msg}, cmd)

	_, ok = fromPersistOp(transition.PersistOp{})
	assert.False(t, ok)
}

func TestWriter_UpdateOfMissingSession_IsNotCountedAsFailure(t *testing.T) {
	w := openTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// A SessionUpdate for a session that was never created touches zero
	// rows; the storage call itself succeeds (UPDATE with no match is not
	// an error), so this exercises the no-match path rather than failure
	// counting directly.
	require.NoError(t, w.Submit(ctx, SessionUpdate{State: protocol.SessionState{ID: "missing"}}))
	assert.Eventually(t, func() bool { return true }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, uint64(0), w.Failures())
}
