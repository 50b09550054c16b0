package step

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inngest/inngestgo/internal/sdkrequest"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// ErrEventNotReceived is returned when a WaitForEvent call times out.  It
// indicates that a matching event was not received before the timeout.
var ErrEventNotReceived = fmt.Errorf("event not received")

type WaitForEventOpts struct {
	// Name represents the optional step name.
	Name string
	// Event is the name of the event to wait for.
	Event string
	// Timeout is how long to wait.  We must always timebound event listeners.
	Timeout time.Duration
	// If is an optional expression which must evaluate to true for the event
	// to match, eg. "async.data.order_id == event.data.order_id".
	If *string
}

// WaitForEvent pauses the run until a matching event is received, or until the
// timeout passes.  The wait is handled by the executor: the step is reported
// at the end of the current attempt and its result arrives on the next one,
// where the matched event (or ErrEventNotReceived on timeout) is returned.
//
// Within the attempt that first plans the wait the zero value is returned;
// the handler must not rely on it.
func WaitForEvent[T any](ctx context.Context, id string, opts WaitForEventOpts) (T, error) {
	mgr := preflight(ctx)

	args := map[string]any{
		"event":   opts.Event,
		"timeout": str2duration.String(opts.Timeout),
	}
	if opts.If != nil {
		args["if"] = *opts.If
	}
	if opts.Name == "" {
		opts.Name = id
	}

	op := mgr.NewOp(sdkrequest.OpcodeWaitForEvent, id, args)

	if val, ok := mgr.Step(op); ok {
		var output T
		if val == nil || bytes.Equal(val, []byte("null")) {
			// A null value means the timeout passed without a matching event.
			return output, ErrEventNotReceived
		}
		if err := json.Unmarshal(val, &output); err != nil {
			err = fmt.Errorf("error unmarshalling wait for event value in '%s': %w", id, err)
			mgr.SetErr(err)
			return output, err
		}
		return output, nil
	}

	mgr.AppendOp(sdkrequest.GeneratorOpcode{
		ID:          op.MustHash(),
		Op:          op.Op,
		Name:        id,
		DisplayName: &opts.Name,
		Opts:        op.Opts,
	})
	var output T
	return output, nil
}
