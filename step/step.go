// Package step provides the tools for writing durable functions: individually
// identified, memoized units of work driven by the Inngest executor.
//
// Step results are memoized across attempts.  A step which already ran within
// a previous attempt returns its recorded result without running again;
// sleeps, waits, and invocations are always deferred to the executor and
// return their results on the following attempt.
package step

import (
	"context"

	"github.com/inngest/inngestgo/internal/sdkrequest"
)

// preflight returns the invocation manager for the current call.  Step tooling
// is only usable within a function handler; calling a step outside of one is a
// programming error and panics.
func preflight(ctx context.Context) *sdkrequest.InvocationManager {
	if mgr, ok := sdkrequest.Manager(ctx); ok {
		return mgr
	}
	panic("step tooling called outside of an Inngest function handler")
}
