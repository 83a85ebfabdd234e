package sessionactor

import (
	"context"

	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/subscription"
	"github.com/robdel12/orbitdock/internal/transition"
)

// apply dispatches one Command against state, returning the folded state
// and the union of effects produced. Queries never change state or
// produce effects; they are answered directly and fall through empty.
func apply(state protocol.SessionState, cmd Command, deps Dependencies) (protocol.SessionState, []transition.Effect) {
	switch c := cmd.(type) {
	case GetSnapshot:
		c.Reply <- state
		return state, nil

	case Subscribe:
		result := subscription.SubscribeResult{NeedsSnapshot: true}
		if deps.Subscribe != nil {
			result = deps.Subscribe(state.ID, c.SinceRevision, c.Fn)
		}
		c.Reply <- SubscribeReply{State: state, Result: result}
		return state, nil

	case Mutate:
		return transition.Apply(state, c.Input, deps.Clock)

	case ApplyDelta:
		var all []transition.Effect
		for _, in := range c.Inputs {
			var effects []transition.Effect
			state, effects = transition.Apply(state, in, deps.Clock)
			all = append(all, effects...)
		}
		return state, all

	case EndLocally:
		return transition.Apply(state, transition.EndRequested{Reason: c.Reason}, deps.Clock)

	case SetCustomNameAndNotify:
		return transition.Apply(state, transition.CustomNameSet{Name: c.Name}, deps.Clock)

	case ProcessEvent:
		return transition.Apply(state, c.Input, deps.Clock)

	default:
		return state, nil
	}
}

// TakeHandle drains the actor goroutine and hands its final state back,
// used when a session transfers from direct to passive integration and
// the actor loop itself must stop owning the state. After TakeHandle
// returns, the Handle's command channel is no longer serviced.
func (h *Handle) TakeHandle(ctx context.Context) (protocol.SessionState, error) {
	reply := make(chan protocol.SessionState)
	select {
	case h.commands <- takeHandle{reply: reply}:
	case <-ctx.Done():
		return protocol.SessionState{}, ctx.Err()
	case <-h.done:
		return protocol.SessionState{}, ErrActorStopped
	}
	select {
	case state := <-reply:
		<-h.done
		return state, nil
	case <-ctx.Done():
		return protocol.SessionState{}, ctx.Err()
	}
}
