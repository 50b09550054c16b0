package step

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdkerrors "github.com/inngest/inngestgo/errors"
	"github.com/inngest/inngestgo/internal/fn"
	"github.com/inngest/inngestgo/internal/sdkrequest"
	str2duration "github.com/xhit/go-str2duration/v2"
)

type InvokeOpts struct {
	// Function is the target function.
	Function fn.ServableFunction

	// Data is the data to pass to the invoked function.
	Data map[string]any

	// User is the user data to pass to the invoked function.
	User any

	// Timeout is an optional duration specifying when the invoked function
	// will be considered timed out.
	Timeout time.Duration
}

// Invoke another Inngest function, returning the value it returns.  The
// invocation is handled by the executor and its result arrives on the next
// attempt, following the same deferral rules as WaitForEvent.
func Invoke[T any](ctx context.Context, id string, opts InvokeOpts) (T, error) {
	return InvokeByID[T](ctx, id, InvokeByIDOpts{
		AppID:      opts.Function.AppID(),
		FunctionID: opts.Function.ID(),
		Data:       opts.Data,
		User:       opts.User,
		Timeout:    opts.Timeout,
	})
}

type InvokeByIDOpts struct {
	// AppID is the target function's app ID.
	AppID string

	// FunctionID is the target function's ID, without the app ID prefix.
	FunctionID string

	// Data is the data to pass to the invoked function.
	Data map[string]any

	// User is the user data to pass to the invoked function.
	User any

	// Timeout is an optional duration specifying when the invoked function
	// will be considered timed out.
	Timeout time.Duration
}

func (o InvokeByIDOpts) validate() error {
	var err error
	if o.AppID == "" {
		err = errors.Join(err, fmt.Errorf("appID is required"))
	}
	if o.FunctionID == "" {
		err = errors.Join(err, fmt.Errorf("functionID is required"))
	}
	return err
}

// InvokeByID invokes another Inngest function using its ID.  Returns the value
// returned from that function.
//
// If the invoked function can't be found or otherwise errors, the step fails
// permanently and the recorded error is returned on replay.
func InvokeByID[T any](ctx context.Context, id string, opts InvokeByIDOpts) (T, error) {
	var output T

	mgr := preflight(ctx)
	if err := opts.validate(); err != nil {
		mgr.SetErr(err)
		return output, err
	}
	fnID := fmt.Sprintf("%s-%s", opts.AppID, opts.FunctionID)

	args := map[string]any{
		"function_id": fnID,
		"payload": map[string]any{
			"data": opts.Data,
			"user": opts.User,
		},
	}
	if opts.Timeout > 0 {
		args["timeout"] = str2duration.String(opts.Timeout)
	}

	op := mgr.NewOp(sdkrequest.OpcodeInvokeFunction, id, args)
	if val, ok := mgr.Step(op); ok {
		var valMap map[string]json.RawMessage
		if err := json.Unmarshal(val, &valMap); err != nil {
			err = fmt.Errorf("error unmarshalling invoke value for '%s': %w", fnID, err)
			mgr.SetErr(err)
			return output, err
		}

		if data, ok := valMap["data"]; ok {
			if err := json.Unmarshal(data, &output); err != nil {
				err = fmt.Errorf("error unmarshalling invoke data for '%s': %w", fnID, err)
				mgr.SetErr(err)
				return output, err
			}
			return output, nil
		}

		if errorVal, ok := valMap["error"]; ok {
			var errObj struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(errorVal, &errObj); err != nil {
				err = fmt.Errorf("error unmarshalling invoke error for '%s': %w", fnID, err)
				mgr.SetErr(err)
				return output, err
			}

			return output, sdkerrors.NoRetryError(fmt.Errorf("%s", errObj.Message))
		}

		err := fmt.Errorf("error parsing invoke value for '%s'; unknown shape", fnID)
		mgr.SetErr(err)
		return output, err
	}

	mgr.AppendOp(sdkrequest.GeneratorOpcode{
		ID:          op.MustHash(),
		Op:          op.Op,
		Name:        id,
		DisplayName: &id,
		Opts:        op.Opts,
	})
	return output, nil
}
