package step

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/inngest/inngestgo/internal"
	"github.com/inngest/inngestgo/internal/event"
	"github.com/inngest/inngestgo/internal/sdkrequest"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []any
}

func (f *fakeSender) Send(ctx context.Context, evt any) (string, error) {
	f.sent = append(f.sent, evt)
	return "evt_1", nil
}

func (f *fakeSender) SendMany(ctx context.Context, evts []any) ([]string, error) {
	f.sent = append(f.sent, evts...)
	return []string{"evt_1", "evt_2"}, nil
}

func TestSend(t *testing.T) {
	evt := event.Event{
		Name: "billing/invoice.created",
		Data: map[string]any{"amount": 100},
	}

	t.Run("sends through the context sender as a step", func(t *testing.T) {
		sender := &fakeSender{}
		ctx, mgr := newManager(&sdkrequest.Request{})
		ctx = internal.ContextWithEventSender(ctx, sender)

		id, err := Send(ctx, "notify", evt)
		require.NoError(t, err)
		require.Equal(t, "evt_1", id)
		require.Len(t, sender.sent, 1)

		// The send is recorded as a completed step.
		ops := mgr.Ops()
		require.Len(t, ops, 1)
		require.Equal(t, sdkrequest.OpcodeStepPlanned, ops[0].Op)
		require.JSONEq(t, `{"data": "evt_1"}`, string(ops[0].Data))
	})

	t.Run("a memoized send does not publish again", func(t *testing.T) {
		sender := &fakeSender{}
		op := sdkrequest.UnhashedOp{ID: "notify"}
		ctx, _ := newManager(&sdkrequest.Request{
			Steps: map[string]json.RawMessage{
				op.MustHash(): []byte(`{"data": "evt_1"}`),
			},
		})
		ctx = internal.ContextWithEventSender(ctx, sender)

		id, err := Send(ctx, "notify", evt)
		require.NoError(t, err)
		require.Equal(t, "evt_1", id)
		require.Empty(t, sender.sent)
	})

	t.Run("fails without a sender in context", func(t *testing.T) {
		ctx, _ := newManager(&sdkrequest.Request{})
		_, err := Send(ctx, "notify", evt)
		require.ErrorContains(t, err, "no event sender")
	})
}
