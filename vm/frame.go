package vm

import (
	"fmt"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

// FrameState tracks a frame through its lifecycle. Suspended frames belong
// to generators parked on a yield.
type FrameState uint8

const (
	FrameCreated FrameState = iota
	FrameRunning
	FrameSuspended
	FrameFinished
)

func (s FrameState) String() string {
	switch s {
	case FrameCreated:
		return "created"
	case FrameRunning:
		return "running"
	case FrameSuspended:
		return "suspended"
	case FrameFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type blockKind uint8

const (
	blockLoop blockKind = iota
	blockExcept
	blockFinally
)

func (k blockKind) String() string {
	switch k {
	case blockLoop:
		return "loop"
	case blockExcept:
		return "except"
	case blockFinally:
		return "finally"
	default:
		return "unknown"
	}
}

// block records an active control structure: where to jump on exit and the
// value stack depth to restore when unwinding through it.
type block struct {
	kind   blockKind
	target int // instruction offset of the handler or exit
	level  int // stack depth at entry
}

// Frame is one activation record. Each frame owns its value stack, local
// slots, cell variables, and block stack; nothing is shared with other
// frames except via closure cells.
type Frame struct {
	code     *bytecode.Code
	fn       *object.Object // function object, nil for module frames
	globals  *object.Object // dict object
	registry *object.Registry

	ip     int
	stack  []*object.Object
	locals []*object.Object // parallel to code local names; nil = unbound
	cells  []*object.Object // cell objects: cell vars then free vars
	blocks []block

	state  FrameState
	parent *Frame // caller, for traceback accumulation

	// pendingExc is an exception saved while a finally block runs.
	pendingExc *object.Object
}

func newFrame(r *object.Registry, code *bytecode.Code, fn, globals *object.Object, parent *Frame) *Frame {
	f := &Frame{
		code:     code,
		registry: r,
		locals:   make([]*object.Object, code.LocalCount()),
		parent:   parent,
		state:    FrameCreated,
	}
	if fn != nil {
		f.fn = fn.Incref()
	}
	if globals != nil {
		f.globals = globals.Incref()
	}
	return f
}

// Code returns the frame's code unit.
func (f *Frame) Code() *bytecode.Code { return f.code }

// State returns the frame's lifecycle state.
func (f *Frame) State() FrameState { return f.state }

// push takes ownership of a strong reference.
func (f *Frame) push(o *object.Object) {
	f.stack = append(f.stack, o)
}

// pop transfers the top reference to the caller.
func (f *Frame) pop() *object.Object {
	n := len(f.stack)
	o := f.stack[n-1]
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	return o
}

// top returns the top of stack as a borrowed reference.
func (f *Frame) top() *object.Object {
	return f.stack[len(f.stack)-1]
}

// peek returns the value n slots below the top, borrowed.
func (f *Frame) peek(n int) *object.Object {
	return f.stack[len(f.stack)-1-n]
}

// popN transfers the top n references to the caller, in stack order
// (deepest first).
func (f *Frame) popN(n int) []*object.Object {
	start := len(f.stack) - n
	out := make([]*object.Object, n)
	copy(out, f.stack[start:])
	for i := start; i < len(f.stack); i++ {
		f.stack[i] = nil
	}
	f.stack = f.stack[:start]
	return out
}

// truncateStack releases references above the given depth.
func (f *Frame) truncateStack(level int) {
	for i := len(f.stack) - 1; i >= level; i-- {
		f.stack[i].Decref()
		f.stack[i] = nil
	}
	f.stack = f.stack[:level]
}

// setLocal stores into a local slot, releasing any previous binding.
func (f *Frame) setLocal(idx int, o *object.Object) {
	if prev := f.locals[idx]; prev != nil {
		prev.Decref()
	}
	f.locals[idx] = o
}

// location returns the source location of the current instruction.
func (f *Frame) location() errz.SourceLocation {
	ip := f.ip
	if ip >= f.code.InstructionCount() {
		ip = f.code.InstructionCount() - 1
	}
	if ip < 0 {
		return errz.SourceLocation{Filename: f.code.Filename()}
	}
	return f.code.LocationAt(ip)
}

// stackFrame renders the frame for a traceback.
func (f *Frame) stackFrame() errz.StackFrame {
	loc := f.location()
	return errz.StackFrame{
		Function: f.code.Name(),
		Location: loc,
	}
}

// release drops every reference the frame holds. Called when the frame
// finishes or its generator is finalized.
func (f *Frame) release() {
	f.truncateStack(0)
	for i, local := range f.locals {
		if local != nil {
			local.Decref()
			f.locals[i] = nil
		}
	}
	for i, cell := range f.cells {
		if cell != nil {
			cell.Decref()
			f.cells[i] = nil
		}
	}
	if f.pendingExc != nil {
		f.pendingExc.Decref()
		f.pendingExc = nil
	}
	if f.fn != nil {
		f.fn.Decref()
		f.fn = nil
	}
	if f.globals != nil {
		f.globals.Decref()
		f.globals = nil
	}
	f.blocks = nil
	f.state = FrameFinished
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame(%s ip=%d sp=%d state=%s)", f.code.Name(), f.ip, len(f.stack), f.state)
}
