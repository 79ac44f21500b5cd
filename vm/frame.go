package vm

import (
	"github.com/vela-lang/vela/code"
	"github.com/vela-lang/vela/object"
)

// Frame represents an execution frame used to track the state of a single
// function invocation in the virtual machine.
//
// Unlike an implementation that overlays a function's locals on the shared
// operand stack via a base pointer, each frame here owns its own Locals
// vector, sized to the function's NumLocals when the frame is created. This
// keeps a frame's state self-contained and trivially inspectable by debug
// tooling, at the cost of one extra slice allocation per call.
type Frame struct {
	// cl is a reference to the closure executing in this frame: its compiled
	// function plus any free variables captured at construction time.
	cl *object.Closure

	// ip is the instruction pointer that tracks the current instruction being executed within the frame.
	ip int

	// Locals holds this invocation's local variable slots, pre-sized to the
	// closure's NumLocals. Positional arguments occupy slots 0..arity-1.
	Locals []object.Object
}

// NewFrame creates a new execution frame for the given closure, pre-sizing
// its locals vector to the closure's declared NumLocals.
func NewFrame(cl *object.Closure) *Frame {
	return &Frame{
		cl:     cl,
		ip:     -1,
		Locals: make([]object.Object, cl.Fn.NumLocals),
	}
}

// Instructions retrieves the bytecode instructions of the compiled function associated with the current frame.
func (f *Frame) Instructions() code.Instructions {
	return f.cl.Fn.Instructions
}
