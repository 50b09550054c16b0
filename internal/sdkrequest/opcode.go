package sdkrequest

import "encoding/json"

// Opcode is the name of a step operation reported back to the executor.
type Opcode string

const (
	// OpcodeStepPlanned reports a step discovered within the current attempt.
	// When the step ran inline, the opcode also carries its result data.
	OpcodeStepPlanned Opcode = "StepPlanned"
	// OpcodeSleep defers the run until a duration has elapsed.
	OpcodeSleep Opcode = "Sleep"
	// OpcodeWaitForEvent defers the run until a matching event arrives, or a
	// timeout passes.
	OpcodeWaitForEvent Opcode = "WaitForEvent"
	// OpcodeInvokeFunction defers the run until another function, invoked with
	// its own event, completes.
	OpcodeInvokeFunction Opcode = "InvokeFunction"
)

// GeneratorOpcode is a single entry within the plan returned to the executor
// at the end of an attempt.
type GeneratorOpcode struct {
	// ID is the hashed step ID.
	ID string `json:"id"`

	// Op is the opcode for this entry.
	Op Opcode `json:"op"`

	// Name is the unhashed step ID, as given in the handler.
	Name string `json:"name"`

	// DisplayName is the step name shown in the Inngest UI.  This defaults
	// to the unhashed step ID.
	DisplayName *string `json:"displayName,omitempty"`

	// Opts carry op-specific options, eg. sleep durations or event matching
	// expressions.
	Opts any `json:"opts,omitempty"`

	// Data is the serialized result of a step which ran inline, wrapped in a
	// `{"data": ...}` object.
	Data json.RawMessage `json:"data,omitempty"`
}

// Deferred reports whether this opcode requires the executor to schedule
// further work before the run can progress: every op except an inline-executed
// step carrying its data.
func (g GeneratorOpcode) Deferred() bool {
	return g.Op != OpcodeStepPlanned || len(g.Data) == 0
}
