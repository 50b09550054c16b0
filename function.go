package inngestgo

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/inngest/inngestgo/internal/fn"
)

// FunctionOpts configures a function: its identifiers, retry counts, and flow
// control.
type FunctionOpts = fn.FunctionOpts

// ServableFunction is a function which can be served by a client's handler and
// registered with Inngest.
type ServableFunction = fn.ServableFunction

// Aliases for flow-control option types.
type (
	Concurrency      = fn.Concurrency
	ConcurrencyScope = fn.ConcurrencyScope
	Debounce         = fn.Debounce
	Priority         = fn.Priority
	Singleton        = fn.Singleton
	SingletonMode    = fn.SingletonMode
	Timeouts         = fn.Timeouts
)

const (
	ConcurrencyScopeFn      = fn.ConcurrencyScopeFn
	ConcurrencyScopeEnv     = fn.ConcurrencyScopeEnv
	ConcurrencyScopeAccount = fn.ConcurrencyScopeAccount

	SingletonModeSkip   = fn.SingletonModeSkip
	SingletonModeCancel = fn.SingletonModeCancel
)

// SDKFunction is a handler for a durable function.  T is the event type the
// function is triggered with.
//
// The returned value is serialized as the function's result once the run
// completes.  Errors control retries: see NoRetryError and RetryAtError.
type SDKFunction[T any] func(ctx context.Context, input Input[T]) (any, error)

// CreateFunction creates a new function, validating its options and
// registering it with the given client's handler.  The function runs whenever
// one of its triggers matches.
func CreateFunction[T any](
	c Client,
	fc FunctionOpts,
	trigger fn.Triggerable,
	f SDKFunction[T],
) (ServableFunction, error) {
	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid function options: %w", err)
	}
	triggers := trigger.Triggers()
	if len(triggers) == 0 {
		return nil, fmt.Errorf("at least one trigger is required")
	}

	sf := servableFunc{
		appID:    c.AppID(),
		fc:       fc,
		triggers: triggers,
		zero:     *new(T),
		f:        f,
	}

	cc, ok := c.(*apiClient)
	if !ok {
		return nil, fmt.Errorf("unknown client implementation %T", c)
	}
	if err := cc.h.registerFunc(sf); err != nil {
		return nil, err
	}
	return sf, nil
}

type servableFunc struct {
	appID    string
	fc       FunctionOpts
	triggers []fn.Trigger
	zero     any
	f        any
}

func (s servableFunc) ID() string {
	if s.fc.ID != "" {
		return s.fc.ID
	}
	return slug.Make(s.fc.Name)
}

func (s servableFunc) AppID() string {
	return s.appID
}

func (s servableFunc) FullyQualifiedID() string {
	return fmt.Sprintf("%s-%s", s.AppID(), s.ID())
}

func (s servableFunc) Name() string {
	if s.fc.Name == "" {
		return s.ID()
	}
	return s.fc.Name
}

func (s servableFunc) Config() FunctionOpts {
	return s.fc
}

func (s servableFunc) Triggers() []fn.Trigger {
	return s.triggers
}

func (s servableFunc) ZeroEvent() any {
	return s.zero
}

func (s servableFunc) Func() any {
	return s.f
}
