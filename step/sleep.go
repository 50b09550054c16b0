package step

import (
	"context"
	"time"

	"github.com/inngest/inngestgo/internal/sdkrequest"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Sleep pauses the run for the given duration.  The sleep is handled by the
// executor, not the process: the current attempt ends once the handler
// returns, and a new attempt resumes after the duration with this step
// memoized.  Code after a new Sleep within the same attempt must not rely on
// steps that have not yet run.
func Sleep(ctx context.Context, id string, duration time.Duration) {
	mgr := preflight(ctx)
	op := mgr.NewOp(sdkrequest.OpcodeSleep, id, nil)
	if _, ok := mgr.Step(op); ok {
		// We've already slept.
		return
	}
	mgr.AppendOp(sdkrequest.GeneratorOpcode{
		ID:          op.MustHash(),
		Op:          sdkrequest.OpcodeSleep,
		Name:        id,
		DisplayName: &id,
		Opts: map[string]any{
			"duration": str2duration.String(duration),
		},
	})
}

// SleepUntil pauses the run until the given time, following the same deferral
// rules as Sleep.
func SleepUntil(ctx context.Context, id string, until time.Time) {
	mgr := preflight(ctx)
	op := mgr.NewOp(sdkrequest.OpcodeSleep, id, nil)
	if _, ok := mgr.Step(op); ok {
		// We've already slept.
		return
	}
	mgr.AppendOp(sdkrequest.GeneratorOpcode{
		ID:          op.MustHash(),
		Op:          sdkrequest.OpcodeSleep,
		Name:        id,
		DisplayName: &id,
		Opts: map[string]any{
			"duration": str2duration.String(time.Until(until)),
		},
	})
}
