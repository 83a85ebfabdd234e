package bridge

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/robdel12/orbitdock/internal/transition"
)

func connectorUnreachable(err error) transition.Input {
	return transition.ConnectorErrored{Message: "connector unreachable: " + err.Error()}
}

// Dial opens a fresh connector event stream, e.g. attaching to a Claude
// hook stream or spawning a Codex process. A Dial failure is transient by
// assumption (the connector process hasn't come up yet, a socket isn't
// ready); RunWithReconnect retries it with backoff rather than failing
// the session outright.
type Dial func(ctx context.Context) (<-chan ConnectorEvent, error)

// NewReconnectPolicy returns the backoff policy RunWithReconnect uses
// between failed Dial attempts: exponential with the library's defaults,
// capped so a down connector is retried for minutes, not forever.
func NewReconnectPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

// RunWithReconnect dials and runs the bridge's event loop, retrying Dial
// with policy on failure. A clean stream closure (Run returning after the
// connector closed its channel) is not retried: that path has already
// reported SessionEndedByConnector and ending the session is final.
func (b *Bridge) RunWithReconnect(ctx context.Context, dial Dial, policy backoff.BackOff) {
	for {
		if ctx.Err() != nil {
			return
		}

		events, err := dial(ctx)
		if err != nil {
			wait := policy.NextBackOff()
			if wait == backoff.Stop {
				b.log.Error().Err(err).Msg("connector unreachable, giving up")
				b.forward(ctx, connectorUnreachable(err))
				return
			}
			b.log.Warn().Err(err).Dur("backoff", wait).Msg("dial failed, retrying")
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		policy.Reset()
		b.Run(ctx, events)
		return
	}
}
