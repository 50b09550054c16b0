package sdkrequest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

type ctxKeyType struct{}

var ctxKey = ctxKeyType{}

// SetManager stores the given invocation manager within context, making it
// available to the step tooling for the duration of a call.
func SetManager(ctx context.Context, m *InvocationManager) context.Context {
	return context.WithValue(ctx, ctxKey, m)
}

// Manager returns the invocation manager for the current call, if any.
func Manager(ctx context.Context) (*InvocationManager, bool) {
	m, ok := ctx.Value(ctxKey).(*InvocationManager)
	return m, ok
}

// InvocationManager is the per-call state of the step engine: the memoized
// step data supplied in the request, the occurrence counters which derive
// hashed step IDs, and the accumulated plan reported back to the executor.
//
// A manager is created for a single request and discarded with the response.
// It is safe for concurrent use so that handlers may run steps from multiple
// goroutines, though plan order then depends on the handler's own scheduling.
type InvocationManager struct {
	l sync.Mutex

	request *Request
	// indexes counts occurrences of each unhashed step ID within this
	// attempt, making duplicate IDs hash to stable, distinct values.
	indexes map[string]uint
	ops     []GeneratorOpcode
	// deferred is set once any appended op requires the executor, at which
	// point newly discovered steps must no longer execute inline.
	deferred bool
	err      error
}

// NewManager creates an invocation manager seeded with the memoized state of
// the given request.
func NewManager(request *Request) *InvocationManager {
	if request.Steps == nil {
		request.Steps = map[string]json.RawMessage{}
	}
	return &InvocationManager{
		request: request,
		indexes: map[string]uint{},
	}
}

// Request returns the request this manager was seeded from.
func (m *InvocationManager) Request() *Request {
	return m.request
}

// SetErr records an unrecoverable engine error, eg. corrupt memoized state.
func (m *InvocationManager) SetErr(err error) {
	m.l.Lock()
	defer m.l.Unlock()
	m.err = err
}

// Err returns the engine error recorded via SetErr, if any.
func (m *InvocationManager) Err() error {
	m.l.Lock()
	defer m.l.Unlock()
	return m.err
}

// NewOp assigns the next occurrence index for the given unhashed step ID and
// returns the op ready for hashing.  Every step call consumes an index,
// whether or not the step is memoized.
func (m *InvocationManager) NewOp(op Opcode, id string, opts map[string]any) UnhashedOp {
	m.l.Lock()
	defer m.l.Unlock()
	n := m.indexes[id]
	m.indexes[id]++
	return UnhashedOp{
		ID:   id,
		Op:   op,
		Opts: opts,
		Pos:  n,
	}
}

// Step returns the memoized data for the given op, if present.
func (m *InvocationManager) Step(op UnhashedOp) (json.RawMessage, bool) {
	m.l.Lock()
	defer m.l.Unlock()
	val, ok := m.request.Steps[op.MustHash()]
	return val, ok
}

// AppendOp adds a plan entry in call order.
func (m *InvocationManager) AppendOp(op GeneratorOpcode) {
	m.l.Lock()
	defer m.l.Unlock()
	m.ops = append(m.ops, op)
	if op.Deferred() {
		m.deferred = true
	}
}

// Ops returns the accumulated plan entries in append order.
func (m *InvocationManager) Ops() []GeneratorOpcode {
	m.l.Lock()
	defer m.l.Unlock()
	return m.ops
}

// MustDefer reports whether newly discovered steps must be planned instead of
// executed inline: either the executor asked for planning via
// disable_immediate_execution, or a deferred op was already emitted within
// this attempt.
func (m *InvocationManager) MustDefer() bool {
	m.l.Lock()
	defer m.l.Unlock()
	return m.deferred || m.request.CallCtx.DisableImmediateExecution
}

// UnhashedOp is a step op before its hashed ID is derived.
type UnhashedOp struct {
	// ID is the unhashed step ID given in the handler.
	ID string
	// Op is the opcode this step reports.
	Op Opcode
	// Opts are op-specific options carried into the plan entry.
	Opts map[string]any
	// Pos is the zero-indexed occurrence of ID within this attempt.
	Pos uint
}

// Hash returns the hashed step ID: the hex SHA-1 of the unhashed ID for its
// first occurrence, then of "<id>:0", "<id>:1", and so on for duplicates.
// The off-by-one is part of the wire protocol and must not change.
func (u UnhashedOp) Hash() (string, error) {
	input := u.ID
	if u.Pos > 0 {
		input = fmt.Sprintf("%s:%d", u.ID, u.Pos-1)
	}
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:]), nil
}

// MustHash returns the hashed step ID, panicking on failure.  Hashing only
// fails if the hash implementation itself fails, which cannot happen with the
// stdlib.
func (u UnhashedOp) MustHash() string {
	h, err := u.Hash()
	if err != nil {
		panic(fmt.Errorf("error hashing step op: %w", err))
	}
	return h
}
