package fn

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// ServableFunction defines a function which can be called by an HTTP handler
// and registered with Inngest.
type ServableFunction interface {
	// ID returns the function's ID, unique within its app.
	ID() string

	// AppID returns the ID of the app this function belongs to.
	AppID() string

	// FullyQualifiedID returns "<app id>-<function id>", the identifier
	// Inngest uses for the function.
	FullyQualifiedID() string

	// Name returns the function's display name.
	Name() string

	// Config returns the validated options the function was created with.
	Config() FunctionOpts

	// Triggers returns the triggers for this function.  Every function has at
	// least one.
	Triggers() []Trigger

	// ZeroEvent returns a new zero value of the event type the handler's
	// Input expects.  The handler's request data is unmarshalled into this
	// type before the handler is called.
	ZeroEvent() any

	// Func returns the handler, a func of type SDKFunction[T].
	Func() any
}

// Trigger is a single event or cron trigger in its wire format.
type Trigger struct {
	Event      *string `json:"event,omitempty"`
	Expression *string `json:"expression,omitempty"`
	Cron       *string `json:"cron,omitempty"`
}

func (t Trigger) Triggers() []Trigger {
	return []Trigger{t}
}

// MultipleTriggers runs a function on any of a set of triggers.
type MultipleTriggers []Trigger

func (m MultipleTriggers) Triggers() []Trigger {
	return m
}

// Triggerable is a single trigger or a set of triggers for a function.
type Triggerable interface {
	Triggers() []Trigger
}

// FunctionOpts represents the options available to configure functions.  This
// includes concurrency, retry, and flow-control settings.
type FunctionOpts struct {
	// ID is the function ID, unique within the app.  When empty, the ID is
	// derived from the name.
	ID string
	// Name is a human-readable name displayed in the Inngest UI.
	Name string
	// Description is an optional description shown alongside the function.
	Description string

	// Retries sets the number of retries after the first failed attempt,
	// defaulting to 3.
	Retries *int

	// Concurrency limits how many runs execute at once, optionally keyed and
	// scoped.  Up to two limits may be stacked.
	Concurrency []Concurrency
	// Debounce delays execution until a period without new matching events
	// has passed.
	Debounce *Debounce
	// Priority adjusts the position of runs in the queue via a server-side
	// evaluated expression.
	Priority *Priority
	// Singleton ensures at most one run of the function at a time.
	Singleton *Singleton
	// Idempotency is an expression keying runs, preventing duplicate runs
	// within a 24 hour window.
	Idempotency *string
	// Timeouts bound how long runs may wait to start and how long they may
	// execute.
	Timeouts *Timeouts
}

// GetRetries returns the configured retry count, applying the default of 3.
func (f FunctionOpts) GetRetries() int {
	if f.Retries == nil {
		return 3
	}
	return *f.Retries
}

const (
	minTimedDuration = time.Second
	maxTimedDuration = 7 * 24 * time.Hour

	maxPriorityLen = 1000
)

// priorityChars restricts priority expressions to the characters the server's
// expression engine accepts.
var priorityChars = regexp.MustCompile(`^[a-zA-Z0-9_\s.,:?'"\-+*/%()<>=!&|\[\]]+$`)

// Validate checks every configured option, returning an error describing the
// first invalid field.  Functions with invalid options must not be created.
func (f FunctionOpts) Validate() error {
	if f.ID == "" && f.Name == "" {
		return fmt.Errorf("a function ID or name is required")
	}
	if f.Retries != nil && *f.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if len(f.Concurrency) > 2 {
		return fmt.Errorf("a maximum of 2 concurrency limits are allowed, got %d", len(f.Concurrency))
	}
	for _, c := range f.Concurrency {
		if err := c.validate(); err != nil {
			return err
		}
	}
	if f.Debounce != nil {
		if err := f.Debounce.validate(); err != nil {
			return err
		}
	}
	if f.Priority != nil {
		if err := f.Priority.validate(); err != nil {
			return err
		}
	}
	if f.Singleton != nil {
		if err := f.Singleton.validate(); err != nil {
			return err
		}
	}
	return nil
}

// ConcurrencyScope is the scope a concurrency limit applies over.
type ConcurrencyScope string

const (
	ConcurrencyScopeFn      ConcurrencyScope = "fn"
	ConcurrencyScopeEnv     ConcurrencyScope = "env"
	ConcurrencyScopeAccount ConcurrencyScope = "account"
)

// Concurrency is a single concurrency limit.  A limit of 0 means unlimited.
type Concurrency struct {
	Limit int              `json:"limit"`
	Key   *string          `json:"key,omitempty"`
	Scope ConcurrencyScope `json:"scope,omitempty"`
}

func (c Concurrency) validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("concurrency limit must not be negative")
	}
	switch c.Scope {
	case "", ConcurrencyScopeFn, ConcurrencyScopeEnv, ConcurrencyScopeAccount:
		return nil
	default:
		return fmt.Errorf("invalid concurrency scope %q", c.Scope)
	}
}

// Debounce delays function runs until an interval without matching events has
// passed.  Periods must be between 1 second and 7 days.
type Debounce struct {
	// Key is an optional expression grouping events into debounce buckets.
	Key *string `json:"key,omitempty"`
	// Period is the interval to wait after the last matching event.
	Period time.Duration `json:"period"`
	// Timeout optionally bounds the total debounce time.
	Timeout *time.Duration `json:"timeout,omitempty"`
}

func (d Debounce) validate() error {
	if d.Period < minTimedDuration || d.Period > maxTimedDuration {
		return fmt.Errorf("debounce period must be between 1s and 7d")
	}
	if d.Timeout != nil && (*d.Timeout < minTimedDuration || *d.Timeout > maxTimedDuration) {
		return fmt.Errorf("debounce timeout must be between 1s and 7d")
	}
	return nil
}

func (d Debounce) MarshalJSON() ([]byte, error) {
	out := map[string]string{
		"period": str2duration.String(d.Period),
	}
	if d.Key != nil {
		out["key"] = *d.Key
	}
	if d.Timeout != nil {
		out["timeout"] = str2duration.String(*d.Timeout)
	}
	return json.Marshal(out)
}

// Priority adjusts queue priority per run.  Run is an expression evaluated
// server-side to an integer between -600 and 600.
type Priority struct {
	Run *string `json:"run,omitempty"`
}

func (p Priority) validate() error {
	if p.Run == nil || *p.Run == "" {
		return fmt.Errorf("a priority run expression is required")
	}
	if len(*p.Run) > maxPriorityLen {
		return fmt.Errorf("priority run expressions must be at most %d characters", maxPriorityLen)
	}
	if !priorityChars.MatchString(*p.Run) {
		return fmt.Errorf("priority run expression contains invalid characters")
	}
	return nil
}

// SingletonMode controls what happens to a new run when one is in progress.
type SingletonMode string

const (
	// SingletonModeSkip skips the new run.
	SingletonModeSkip SingletonMode = "skip"
	// SingletonModeCancel cancels the in-progress run and starts the new one.
	SingletonModeCancel SingletonMode = "cancel"
)

// Singleton ensures at most one run of a function executes at a time,
// optionally keyed by an expression.
type Singleton struct {
	Key  *string       `json:"key,omitempty"`
	Mode SingletonMode `json:"mode"`
}

func (s Singleton) validate() error {
	switch s.Mode {
	case SingletonModeSkip, SingletonModeCancel:
		return nil
	default:
		return fmt.Errorf("invalid singleton mode %q", s.Mode)
	}
}

// Timeouts bound run scheduling and execution.
type Timeouts struct {
	// Start is the maximum time a run may wait in the queue before starting.
	Start *time.Duration
	// Finish is the maximum time a run may take after starting, including
	// time spent waiting and sleeping.
	Finish *time.Duration
}

func (t Timeouts) MarshalJSON() ([]byte, error) {
	out := map[string]string{}
	if t.Start != nil {
		out["start"] = str2duration.String(*t.Start)
	}
	if t.Finish != nil {
		out["finish"] = str2duration.String(*t.Finish)
	}
	return json.Marshal(out)
}
