package step

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/inngest/inngestgo/errors"
	"github.com/inngest/inngestgo/internal/sdkrequest"
)

type response struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

// Run executes the given function as a memoized step.  On replay the recorded
// result is returned without running f again; if the step previously failed
// permanently, the recorded error is returned as an errors.StepError.
//
// New steps run inline and their result is immediately usable.  The exception
// is an attempt in which a sleep, wait, or invocation was already planned (or
// in which the executor disabled immediate execution): then the step is only
// reported to the executor and the zero value is returned, with the real
// result arriving on the next attempt.
//
// An inline result is recorded by the executor only when the attempt ends with
// deferred work (a 206 response).  When the attempt fails instead, the result
// is not recorded and a retried attempt runs f again.  An error from f is
// returned to the handler unchanged.
func Run[T any](
	ctx context.Context,
	id string,
	f func(ctx context.Context) (T, error),
) (T, error) {
	mgr := preflight(ctx)
	op := mgr.NewOp(sdkrequest.OpcodeStepPlanned, id, nil)

	if val, ok := mgr.Step(op); ok {
		// This step already ran within a previous attempt.  Create a new
		// empty type T to unmarshal the memoized state into.
		ft := reflect.TypeOf(f)
		v := reflect.New(ft.Out(0)).Interface()

		unwrapped := response{}
		if err := json.Unmarshal(val, &unwrapped); err == nil {
			// Check for memoized step errors first.
			if len(unwrapped.Error) > 0 {
				serr := errors.StepError{}
				if err := json.Unmarshal(unwrapped.Error, &serr); err != nil {
					err = fmt.Errorf("error unmarshalling error for step '%s': %w", id, err)
					mgr.SetErr(err)
					val, _ := reflect.ValueOf(v).Elem().Interface().(T)
					return val, err
				}
				val, _ := reflect.ValueOf(v).Elem().Interface().(T)
				return val, serr
			}

			// Step state is wrapped in a 'data' object as per the SDK spec.
			// Older state may hold the value without wrapping; in that case
			// unmarshal the raw value below.
			if len(unwrapped.Data) > 0 {
				val = unwrapped.Data
			}
		}

		if err := json.Unmarshal(val, v); err != nil {
			err = fmt.Errorf("error unmarshalling state for step '%s': %w", id, err)
			mgr.SetErr(err)
			val, _ := reflect.ValueOf(v).Elem().Interface().(T)
			return val, err
		}
		val, _ := reflect.ValueOf(v).Elem().Interface().(T)
		return val, nil
	}

	if mgr.MustDefer() {
		// Immediate execution is off for the rest of this attempt; report the
		// step so the executor can schedule it, and return the zero value.
		// The memoized result is available on the next attempt.
		mgr.AppendOp(sdkrequest.GeneratorOpcode{
			ID:          op.MustHash(),
			Op:          sdkrequest.OpcodeStepPlanned,
			Name:        id,
			DisplayName: &id,
		})
		var out T
		return out, nil
	}

	result, err := f(ctx)
	if err != nil {
		// Let the error propagate to the handler, which may recover from it
		// or let it surface as the attempt's failure.
		return result, err
	}

	// Spec RFC: always wrap the response in a data object.
	byt, err := json.Marshal(map[string]any{
		"data": result,
	})
	if err != nil {
		err = fmt.Errorf("unable to marshal run response for '%s': %w", id, err)
		mgr.SetErr(err)
		return result, err
	}

	mgr.AppendOp(sdkrequest.GeneratorOpcode{
		ID:          op.MustHash(),
		Op:          sdkrequest.OpcodeStepPlanned,
		Name:        id,
		DisplayName: &id,
		Data:        byt,
	})
	return result, nil
}
