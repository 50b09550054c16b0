package step

import (
	"context"
	"errors"

	"github.com/inngest/inngestgo/internal"
	"github.com/inngest/inngestgo/internal/event"
)

// Send sends an event to Inngest as a memoized step, so that replays of the
// run do not publish the event again.  Returns the event ID.
func Send[D any, U any](
	ctx context.Context,
	id string,
	evt event.GenericEvent[D, U],
) (string, error) {
	return Run(ctx, id, func(ctx context.Context) (string, error) {
		sender, ok := internal.EventSenderFromContext(ctx)
		if !ok {
			return "", errors.New("no event sender found in context")
		}

		return sender.Send(ctx, evt)
	})
}

// SendMany sends a batch of events to Inngest as a single memoized step.
// Returns the event IDs.
func SendMany[D any, U any](
	ctx context.Context,
	id string,
	events []event.GenericEvent[D, U],
) ([]string, error) {
	return Run(ctx, id, func(ctx context.Context) ([]string, error) {
		sender, ok := internal.EventSenderFromContext(ctx)
		if !ok {
			return nil, errors.New("no event sender found in context")
		}

		many := make([]any, len(events))
		for i, evt := range events {
			many[i] = evt
		}
		return sender.SendMany(ctx, many)
	})
}
