package object

import (
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/serpent/errz"
)

// Exception is the payload of a raised exception: a kind from the error
// taxonomy, a message, the constructor arguments, and the traceback
// accumulated as frames unwind.
type Exception struct {
	kind    errz.ErrorKind
	message string
	args    []*Object
	frames  []errz.StackFrame
	cause   *Object // explicit "raise ... from" cause
	context *Object // exception active when this one was raised
}

func (e *Exception) PayloadKind() string { return "exception" }

// Kind returns the exception's kind.
func (e *Exception) Kind() errz.ErrorKind { return e.kind }

// Message returns the exception message.
func (e *Exception) Message() string { return e.message }

// Args returns the constructor arguments as borrowed references.
func (e *Exception) Args() []*Object { return e.args }

// Frames returns the traceback, innermost frame first.
func (e *Exception) Frames() []errz.StackFrame { return e.frames }

// AddFrame appends a traceback frame as the exception propagates outward.
func (e *Exception) AddFrame(frame errz.StackFrame) {
	e.frames = append(e.frames, frame)
}

// Cause returns the explicit cause, if any, as a borrowed reference.
func (e *Exception) Cause() *Object { return e.cause }

// SetCause records an explicit cause, taking a strong reference.
func (e *Exception) SetCause(cause *Object) {
	if e.cause != nil {
		e.cause.Decref()
	}
	if cause != nil {
		cause.Incref()
	}
	e.cause = cause
}

// Context returns the implicitly chained exception, if any.
func (e *Exception) Context() *Object { return e.context }

// SetContext records the exception that was active when this one was
// raised, taking a strong reference.
func (e *Exception) SetContext(ctx *Object) {
	if e.context != nil {
		e.context.Decref()
	}
	if ctx != nil {
		ctx.Incref()
	}
	e.context = ctx
}

// Traverse visits held references for the cycle collector.
func (e *Exception) Traverse(visit func(*Object)) {
	for _, a := range e.args {
		visit(a)
	}
	if e.cause != nil {
		visit(e.cause)
	}
	if e.context != nil {
		visit(e.context)
	}
}

// Finalize releases held references.
func (e *Exception) Finalize() error {
	for _, a := range e.args {
		a.Decref()
	}
	e.args = nil
	if e.cause != nil {
		e.cause.Decref()
		e.cause = nil
	}
	if e.context != nil {
		e.context.Decref()
		e.context = nil
	}
	return nil
}

func (e *Exception) String() string {
	if e.message == "" {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// RaisedError adapts a raised exception object to the Go error interface so
// it can flow through ordinary error returns. It owns a strong reference to
// the exception object; Release drops it.
type RaisedError struct {
	value *Object
}

// NewRaisedError wraps an exception object, taking a strong reference.
func NewRaisedError(value *Object) *RaisedError {
	value.Incref()
	return &RaisedError{value: value}
}

// Value returns the exception object as a borrowed reference.
func (e *RaisedError) Value() *Object { return e.value }

// Exception returns the exception payload.
func (e *RaisedError) Exception() *Exception {
	exc, _ := PayloadOf[*Exception](e.value)
	return exc
}

// Kind returns the exception's kind, or ErrRuntime if the payload is not an
// exception.
func (e *RaisedError) Kind() errz.ErrorKind {
	if exc := e.Exception(); exc != nil {
		return exc.Kind()
	}
	return errz.ErrRuntime
}

// Release drops the error's reference to the exception object.
func (e *RaisedError) Release() {
	if e.value != nil {
		e.value.Decref()
		e.value = nil
	}
}

func (e *RaisedError) Error() string {
	if exc := e.Exception(); exc != nil {
		return exc.String()
	}
	return "exception"
}

// AsRaised extracts a RaisedError from an error chain.
func AsRaised(err error) (*RaisedError, bool) {
	var raised *RaisedError
	if errors.As(err, &raised) {
		return raised, true
	}
	return nil, false
}
