package transition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdel12/orbitdock/internal/protocol"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func baseState() protocol.SessionState {
	return protocol.SessionState{
		ID:     "sess-1",
		Status: protocol.SessionActive,
	}
}

func TestApply_MessageCreated_AppendsAndBumpsRevision(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))

	next, effects := Apply(state, MessageCreated{Message: protocol.Message{ID: "m1", Content: "hi"}}, now)

	require.Len(t, next.Messages, 1)
	assert.Equal(t, "m1", next.Messages[0].ID)
	assert.Equal(t, uint64(1), next.Revision)
	require.Len(t, effects, 2)
	_, isPersist := effects[0].(Persist)
	assert.True(t, isPersist)
}

func TestApply_MessageUpdated_UnknownID_IsNoop(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))

	next, effects := Apply(state, MessageUpdated{MessageID: "missing"}, now)

	assert.Equal(t, state, next)
	assert.Nil(t, effects)
}

func TestApply_ApprovalRequested_ReplacesExisting(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))

	state, _ = Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a1", Type: protocol.ApprovalExec}}, now)
	require.NotNil(t, state.PendingApproval)
	assert.Equal(t, "a1", state.PendingApproval.ID)

	state, _ = Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a2", Type: protocol.ApprovalPatch}}, now)
	assert.Equal(t, "a2", state.PendingApproval.ID)
}

func TestApply_ApprovalDecided_MismatchedID_IsNoop(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))
	state, _ = Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a1"}}, now)

	next, effects := Apply(state, ApprovalDecided{RequestID: "wrong", Decision: protocol.DecisionApprove}, now)

	assert.Equal(t, state, next)
	assert.Nil(t, effects)
}

func TestApply_ApprovalDecided_Deny_SetsWaiting(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))
	state, _ = Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a1", Type: protocol.ApprovalExec}}, now)

	next, effects := Apply(state, ApprovalDecided{RequestID: "a1", Decision: protocol.DecisionDeny}, now)

	assert.Nil(t, next.PendingApproval)
	assert.Equal(t, protocol.WorkWaiting, next.WorkStatus)
	require.Len(t, effects, 3)
}

func TestApply_ApprovalDecided_Approve_SetsWorking(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))
	state, _ = Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a1", Type: protocol.ApprovalExec}}, now)

	next, _ := Apply(state, ApprovalDecided{RequestID: "a1", Decision: protocol.DecisionApprove}, now)

	assert.Nil(t, next.PendingApproval)
	assert.Equal(t, protocol.WorkWorking, next.WorkStatus)
}

func TestApply_EndedSession_IgnoresFurtherInputs(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))
	state, _ = Apply(state, EndRequested{Reason: "done"}, now)
	require.Equal(t, protocol.SessionEnded, state.Status)

	next, effects := Apply(state, UserMessageSubmitted{Content: "still here?"}, now)

	assert.Equal(t, state, next)
	assert.Nil(t, effects)
}

func TestApply_TurnAborted_SetsWaiting(t *testing.T) {
	state := baseState()
	state.WorkStatus = protocol.WorkWorking
	now := fixedClock(time.Unix(100, 0))

	next, _ := Apply(state, TurnAborted{Reason: "interrupted"}, now)

	assert.Equal(t, protocol.WorkWaiting, next.WorkStatus)
}

func TestApply_TurnAborted_AppendsSystemMessageAndEmits(t *testing.T) {
	state := baseState()
	state.WorkStatus = protocol.WorkWorking
	now := fixedClock(time.Unix(100, 0))

	next, effects := Apply(state, TurnAborted{Reason: "interrupted"}, now)

	require.Len(t, next.Messages, 1)
	assert.Equal(t, protocol.MessageToolResult, next.Messages[0].Type)
	assert.Equal(t, protocol.RoleSystem, next.Messages[0].Role)
	assert.Equal(t, "interrupted", next.Messages[0].Content)

	var sawMessageAppend, sawMessageBroadcast bool
	for _, eff := range effects {
		switch e := eff.(type) {
		case Persist:
			if e.Op.MessageAppend != nil {
				sawMessageAppend = true
				assert.Equal(t, "interrupted", e.Op.MessageAppend.Content)
			}
		case Broadcast:
			if e.Event.MessageAppended != nil {
				sawMessageBroadcast = true
			}
		}
	}
	assert.True(t, sawMessageAppend, "expected a MessageAppend persist effect")
	assert.True(t, sawMessageBroadcast, "expected a MessageAppended broadcast effect")
}

func TestApply_TokensUpdated_EmitsDedicatedEvent(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))
	usage := protocol.TokenUsage{InputTokens: 10, OutputTokens: 20, CachedTokens: 5, ContextWindow: 1000}

	next, effects := Apply(state, TokensUpdated{Tokens: usage}, now)

	assert.Equal(t, usage, next.Tokens)
	require.Len(t, effects, 2)
	broadcast, ok := effects[1].(Broadcast)
	require.True(t, ok)
	require.NotNil(t, broadcast.Event.TokensUpdated)
	assert.Equal(t, usage, *broadcast.Event.TokensUpdated)
}

func TestApply_DiffUpdated_CarriesNewDiffInStateChange(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))

	next, effects := Apply(state, DiffUpdated{Diff: "diff --git a b"}, now)

	assert.Equal(t, "diff --git a b", next.Diff)
	broadcast, ok := effects[1].(Broadcast)
	require.True(t, ok)
	require.NotNil(t, broadcast.Event.StateChanged)
	require.NotNil(t, broadcast.Event.StateChanged.Diff)
	assert.Equal(t, "diff --git a b", *broadcast.Event.StateChanged.Diff)
}

func TestApply_PlanUpdated_CarriesNewPlanInStateChange(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))

	next, effects := Apply(state, PlanUpdated{Plan: "1. do the thing"}, now)

	assert.Equal(t, "1. do the thing", next.Plan)
	broadcast, ok := effects[1].(Broadcast)
	require.True(t, ok)
	require.NotNil(t, broadcast.Event.StateChanged)
	require.NotNil(t, broadcast.Event.StateChanged.Plan)
	assert.Equal(t, "1. do the thing", *broadcast.Event.StateChanged.Plan)
}

func TestApply_ApprovalRequested_WhilePending_SynthesizesReplacedMessage(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))
	state, _ = Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a1", Type: protocol.ApprovalExec}}, now)

	next, effects := Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a2", Type: protocol.ApprovalPatch}}, now)

	require.Len(t, next.Messages, 1)
	assert.Equal(t, protocol.MessageToolResult, next.Messages[0].Type)
	assert.Equal(t, protocol.RoleSystem, next.Messages[0].Role)
	assert.Contains(t, next.Messages[0].Content, "replaced")

	var sawReplacedMessage, sawApprovalCreate, sawApprovalBroadcast bool
	for _, eff := range effects {
		switch e := eff.(type) {
		case Persist:
			if e.Op.MessageAppend != nil && e.Op.MessageAppend.ID == next.Messages[0].ID {
				sawReplacedMessage = true
			}
			if e.Op.ApprovalCreate != nil && e.Op.ApprovalCreate.ID == "a2" {
				sawApprovalCreate = true
			}
		case Broadcast:
			if e.Event.ApprovalRequested != nil && e.Event.ApprovalRequested.ID == "a2" {
				sawApprovalBroadcast = true
			}
		}
	}
	assert.True(t, sawReplacedMessage, "expected a Persist{MessageAppend} for the synthesized replaced-approval message")
	assert.True(t, sawApprovalCreate, "expected a Persist{ApprovalCreate} for the new pending approval")
	assert.True(t, sawApprovalBroadcast, "expected a Broadcast carrying the new ApprovalRequested event")
}

func TestApply_ApprovalRequested_NoExistingPending_NoReplacedMessage(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))

	next, effects := Apply(state, ApprovalRequested{Request: protocol.ApprovalRequest{ID: "a1", Type: protocol.ApprovalExec}}, now)

	assert.Empty(t, next.Messages)
	require.Len(t, effects, 3)
	persist, ok := effects[0].(Persist)
	require.True(t, ok)
	require.NotNil(t, persist.Op.ApprovalCreate)
	assert.Equal(t, "a1", persist.Op.ApprovalCreate.ID)
}

func TestApply_MessageCreated_FirstUserMessage_SeedsSummaryAndRequestsNaming(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))

	next, effects := Apply(state, MessageCreated{Message: protocol.Message{
		ID: "m1", Type: protocol.MessageUser, Content: "fix the login bug",
	}}, now)

	assert.Equal(t, "fix the login bug", next.SummaryCandidate)
	var sawSetSummary, sawRequestNaming bool
	for _, eff := range effects {
		switch e := eff.(type) {
		case Persist:
			if e.Op.SetSummary != nil && e.Op.SetSummary.Summary == "fix the login bug" {
				sawSetSummary = true
			}
		case RequestNaming:
			if e.SessionID == state.ID {
				sawRequestNaming = true
			}
		}
	}
	assert.True(t, sawSetSummary, "expected a Persist{SetSummary} effect")
	assert.True(t, sawRequestNaming, "expected a RequestNaming effect when CustomName is unset")
}

func TestApply_MessageCreated_FirstUserMessage_CustomNameSet_SkipsNaming(t *testing.T) {
	state := baseState()
	state.CustomName = "my session"
	now := fixedClock(time.Unix(100, 0))

	_, effects := Apply(state, MessageCreated{Message: protocol.Message{
		ID: "m1", Type: protocol.MessageUser, Content: "fix the login bug",
	}}, now)

	for _, eff := range effects {
		if _, isNaming := eff.(RequestNaming); isNaming {
			t.Fatal("did not expect RequestNaming once CustomName is already set")
		}
	}
}

func TestApply_MessageCreated_SecondUserMessage_DoesNotReseedSummary(t *testing.T) {
	state := baseState()
	now := fixedClock(time.Unix(100, 0))
	state, _ = Apply(state, MessageCreated{Message: protocol.Message{
		ID: "m1", Type: protocol.MessageUser, Content: "first",
	}}, now)

	next, effects := Apply(state, MessageCreated{Message: protocol.Message{
		ID: "m2", Type: protocol.MessageUser, Content: "second",
	}}, now)

	assert.Equal(t, "first", next.SummaryCandidate)
	for _, eff := range effects {
		if p, isPersist := eff.(Persist); isPersist {
			assert.Nil(t, p.Op.SetSummary)
		}
	}
}

func TestApply_SimpleMutations_TouchStateAndBumpRevision(t *testing.T) {
	now := fixedClock(time.Unix(200, 0))

	cases := []struct {
		name  string
		input Input
		check func(t *testing.T, s protocol.SessionState)
	}{
		{"ModelSet", ModelSet{Model: "gpt-5"}, func(t *testing.T, s protocol.SessionState) {
			assert.Equal(t, "gpt-5", s.Model)
		}},
		{"TranscriptPathSet", TranscriptPathSet{Path: "/tmp/t.jsonl"}, func(t *testing.T, s protocol.SessionState) {
			assert.Equal(t, "/tmp/t.jsonl", s.TranscriptPath)
		}},
		{"ProjectNameSet", ProjectNameSet{Name: "orbitdock"}, func(t *testing.T, s protocol.SessionState) {
			assert.Equal(t, "orbitdock", s.ProjectName)
		}},
		{"CodexModeSet", CodexModeSet{Mode: "auto"}, func(t *testing.T, s protocol.SessionState) {
			assert.Equal(t, "auto", s.CodexMode)
		}},
		{"ForkedFromSet", ForkedFromSet{SourceSessionID: "sess-0"}, func(t *testing.T, s protocol.SessionState) {
			assert.Equal(t, "sess-0", s.ForkedFromSessionID)
		}},
		{"LastToolSet", LastToolSet{Tool: "bash"}, func(t *testing.T, s protocol.SessionState) {
			assert.Equal(t, "bash", s.LastTool)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := baseState()
			next, effects := Apply(state, tc.input, now)

			tc.check(t, next)
			assert.Equal(t, uint64(1), next.Revision)
			require.Len(t, effects, 2)
			_, isPersist := effects[0].(Persist)
			assert.True(t, isPersist)
			_, isBroadcast := effects[1].(Broadcast)
			assert.True(t, isBroadcast)
		})
	}
}

func TestApply_ConfigUpdated_OnlySetsProvidedFields(t *testing.T) {
	state := baseState()
	state.ApprovalPolicy = "manual"
	state.SandboxMode = "restricted"
	now := fixedClock(time.Unix(200, 0))

	policy := "auto"
	next, _ := Apply(state, ConfigUpdated{ApprovalPolicy: &policy}, now)

	assert.Equal(t, "auto", next.ApprovalPolicy)
	assert.Equal(t, "restricted", next.SandboxMode, "SandboxMode left untouched when nil")
}
