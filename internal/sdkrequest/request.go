package sdkrequest

import "encoding/json"

// Request is the envelope sent by the Inngest executor on each call to the
// serve handler.  It carries the triggering event(s), the memoized step
// results from previous attempts, and the call context.
type Request struct {
	// Event is the fully serialized event that triggered the function.
	Event json.RawMessage `json:"event"`

	// Events are the fully serialized events, when the function consumes a
	// batch of events at once.
	Events []json.RawMessage `json:"events"`

	// Steps is the memoized step data from previous attempts, keyed by
	// hashed step ID.
	Steps map[string]json.RawMessage `json:"steps"`

	// CallCtx is context for the given function call.
	CallCtx CallCtx `json:"ctx"`

	// Version indicates the version used to manage the request context.  A
	// value of -1 means that the function is starting and has no version.
	Version int `json:"version"`

	// UseAPI tells the SDK to retrieve event and step data from the API
	// instead of expecting it in the request body.  Parsed for forwards
	// compatibility; not acted on.
	UseAPI bool `json:"use_api"`
}

// CallCtx represents context for individual function calls.
type CallCtx struct {
	// Env is the name of the environment that the function runs in.
	Env string `json:"env"`

	// FunctionID is the fully qualified ID of the function to run.
	FunctionID string `json:"fn_id"`

	// RunID is the ULID of the current run.
	RunID string `json:"run_id"`

	// StepID is the ID of the step to run, when targeting a single step.
	StepID string `json:"step_id"`

	// Attempt is the zero-indexed attempt number.
	Attempt int `json:"attempt"`

	// DisableImmediateExecution tells the SDK to plan newly discovered steps
	// instead of executing them within this request.
	DisableImmediateExecution bool `json:"disable_immediate_execution"`

	// UseAPI mirrors Request.UseAPI for newer executor versions.
	UseAPI bool `json:"use_api"`

	// Stack is the function stack at the time of the invocation.
	Stack *FunctionStack `json:"stack"`
}

// FunctionStack carries the ordered hashed step IDs completed so far.
type FunctionStack struct {
	Stack   []string `json:"stack"`
	Current int      `json:"current"`
}

func (f FunctionStack) MarshalJSON() ([]byte, error) {
	if f.Stack == nil {
		f.Stack = make([]string, 0)
	}

	type alias FunctionStack // Avoid infinite recursion
	return json.Marshal(alias(f))
}
