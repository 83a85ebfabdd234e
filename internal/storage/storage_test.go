package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdel12/orbitdock/internal/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orbitdock.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSession(id string) protocol.SessionState {
	now := time.Unix(1000, 0).UTC()
	return protocol.SessionState{
		ID:          id,
		Provider:    protocol.ProviderCodex,
		ProjectPath: "/tmp/p",
		Status:      protocol.SessionActive,
		WorkStatus:  protocol.WorkWaiting,
		StartedAt:   now,
		LastActivityAt: now,
	}
}

func TestStore_CreateAndGetSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := testSession("sess-1")
	require.NoError(t, s.CreateSession(ctx, st))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, protocol.ProviderCodex, got.Provider)
	assert.Equal(t, "/tmp/p", got.ProjectPath)
}

func TestStore_CreateSession_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := testSession("sess-1")
	require.NoError(t, s.CreateSession(ctx, st))
	st.ProjectPath = "/tmp/other"
	require.NoError(t, s.CreateSession(ctx, st)) // second create is a no-op

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/p", got.ProjectPath)
}

func TestStore_UpdateSession_Overwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := testSession("sess-1")
	require.NoError(t, s.CreateSession(ctx, st))

	st.WorkStatus = protocol.WorkWorking
	st.Revision = 3
	require.NoError(t, s.UpdateSession(ctx, st))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.WorkWorking, got.WorkStatus)
	assert.Equal(t, uint64(3), got.Revision)
}

func TestStore_AppendMessage_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	msg := protocol.Message{ID: "m1", SessionID: "sess-1", Type: protocol.MessageUser, Content: "hi", Timestamp: time.Unix(1, 0).UTC()}
	require.NoError(t, s.AppendMessage(ctx, msg))
	msg.Content = "changed"
	require.NoError(t, s.AppendMessage(ctx, msg)) // second append is a no-op

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi", got.Messages[0].Content)
}

func TestStore_UpdateMessage_PatchesOnlyGivenFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))
	msg := protocol.Message{ID: "m1", SessionID: "sess-1", Type: protocol.MessageAssistant, Content: "partial", Timestamp: time.Unix(1, 0).UTC()}
	require.NoError(t, s.AppendMessage(ctx, msg))

	newContent := "final"
	inner := &newContent
	require.NoError(t, s.UpdateMessage(ctx, "sess-1", "m1", protocol.MessageChanges{Content: &inner}))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "final", got.Messages[0].Content)
}

func TestStore_CreateApproval_ThenResolve_ClearsPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	req := protocol.ApprovalRequest{ID: "a1", SessionID: "sess-1", Type: protocol.ApprovalExec, Command: "rm -rf /"}
	require.NoError(t, s.CreateApproval(ctx, req))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got.PendingApproval)
	assert.Equal(t, "a1", got.PendingApproval.ID)

	item := protocol.ApprovalHistoryItem{
		ID: "h1", SessionID: "sess-1", RequestID: "a1", Type: protocol.ApprovalExec,
		Command: "rm -rf /", Decision: protocol.DecisionDeny,
		CreatedAt: time.Unix(1, 0).UTC(), DecidedAt: time.Unix(2, 0).UTC(),
	}
	require.NoError(t, s.ResolveApproval(ctx, item))

	got, err = s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got.PendingApproval)

	history, err := s.ListApprovalHistory(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, protocol.DecisionDeny, history[0].Decision)
}

func TestStore_ListSummaries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))
	require.NoError(t, s.CreateSession(ctx, testSession("sess-2")))

	summaries, err := s.ListSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}
