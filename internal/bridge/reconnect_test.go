package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdel12/orbitdock/internal/protocol"
)

func fastPolicy(maxRetries uint64) backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), maxRetries)
}

func TestRunWithReconnect_RetriesDialUntilSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle := spawnActor(ctx)
	b := New("sess-1", handle, &fakeConnector{})

	attempts := 0
	events := make(chan ConnectorEvent, 1)
	events <- MessageCreated{Message: protocol.Message{ID: "m1", Type: protocol.MessageUser, Content: "hi"}}
	close(events)

	dial := func(ctx context.Context) (<-chan ConnectorEvent, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("socket not ready")
		}
		return events, nil
	}

	b.RunWithReconnect(ctx, dial, fastPolicy(5))

	assert.Equal(t, 3, attempts)
	require.Eventually(t, func() bool {
		return len(handle.Snapshot().Messages) == 1
	}, time.Second, time.Millisecond)
}

func TestRunWithReconnect_GivesUpAndReportsConnectorErrored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle := spawnActor(ctx)
	b := New("sess-1", handle, &fakeConnector{})

	dialErr := errors.New("connector process never came up")
	dial := func(ctx context.Context) (<-chan ConnectorEvent, error) {
		return nil, dialErr
	}

	b.RunWithReconnect(ctx, dial, fastPolicy(2))

	require.Eventually(t, func() bool {
		msgs := handle.Snapshot().Messages
		return len(msgs) == 1 && msgs[0].IsError
	}, time.Second, time.Millisecond)

	msg := handle.Snapshot().Messages[0]
	assert.Contains(t, msg.Content, "connector unreachable")
	assert.Contains(t, msg.Content, dialErr.Error())
}

func TestRunWithReconnect_ContextCancelledBeforeDialStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handle := spawnActor(context.Background())
	b := New("sess-1", handle, &fakeConnector{})

	dialed := false
	dial := func(ctx context.Context) (<-chan ConnectorEvent, error) {
		dialed = true
		return nil, nil
	}

	b.RunWithReconnect(ctx, dial, fastPolicy(5))

	assert.False(t, dialed, "dial should not run once ctx is already done")
}
