package errz

import (
	"bytes"
	"fmt"
	"strings"
)

// ErrorKind represents the category of an error. Each kind corresponds to a
// language-level exception type that user code can catch.
type ErrorKind int

const (
	// ErrRuntime indicates a general runtime error.
	ErrRuntime ErrorKind = iota
	// ErrType indicates a type mismatch or invalid operation on a type.
	ErrType
	// ErrAttribute indicates a missing or invalid attribute.
	ErrAttribute
	// ErrName indicates an undefined variable.
	ErrName
	// ErrValue indicates an invalid value for an operation.
	ErrValue
	// ErrIndex indicates a sequence index out of range.
	ErrIndex
	// ErrKey indicates a missing mapping key.
	ErrKey
	// ErrZeroDivision indicates division or modulo by zero.
	ErrZeroDivision
	// ErrStopIteration indicates an exhausted iterator.
	ErrStopIteration
	// ErrRecursion indicates the recursion limit was exceeded.
	ErrRecursion
	// ErrMemory indicates a resource exhaustion condition.
	ErrMemory
	// ErrImport indicates an error importing a module.
	ErrImport
	// ErrSyntax indicates a syntax error in a compiled artifact.
	ErrSyntax
)

// String returns the language-level name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrRuntime:
		return "RuntimeError"
	case ErrType:
		return "TypeError"
	case ErrAttribute:
		return "AttributeError"
	case ErrName:
		return "NameError"
	case ErrValue:
		return "ValueError"
	case ErrIndex:
		return "IndexError"
	case ErrKey:
		return "KeyError"
	case ErrZeroDivision:
		return "ZeroDivisionError"
	case ErrStopIteration:
		return "StopIteration"
	case ErrRecursion:
		return "RecursionError"
	case ErrMemory:
		return "MemoryError"
	case ErrImport:
		return "ImportError"
	case ErrSyntax:
		return "SyntaxError"
	default:
		return "Error"
	}
}

// KindFromName maps a language-level exception name back to its kind.
// Unknown names map to ErrRuntime.
func KindFromName(name string) ErrorKind {
	for k := ErrRuntime; k <= ErrSyntax; k++ {
		if k.String() == name {
			return k
		}
	}
	return ErrRuntime
}

// StructuredError is a rich error type with source locations and stack
// traces for actionable diagnostics.
type StructuredError struct {
	Message  string
	Kind     ErrorKind
	Location SourceLocation
	Stack    []StackFrame
	Cause    error
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
	}
	return fmt.Sprintf("%s: %s (%d:%d)", e.Kind.String(), e.Message, e.Location.Line, e.Location.Column)
}

// Unwrap returns the underlying cause of the error.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// FriendlyErrorMessage returns a human-friendly error message with visual
// context including source snippets and stack traces.
func (e *StructuredError) FriendlyErrorMessage() string {
	var msg bytes.Buffer
	if e.Location.IsZero() {
		msg.WriteString(fmt.Sprintf("%s: %s\n", e.Kind.String(), e.Message))
	} else {
		msg.WriteString(fmt.Sprintf("%s: %s (%d:%d)\n", e.Kind.String(), e.Message, e.Location.Line, e.Location.Column))
	}
	if e.Location.Source != "" {
		msg.WriteString(" | ")
		msg.WriteString(e.Location.Source)
		msg.WriteString("\n")
		if e.Location.Column > 0 {
			msg.WriteString(" | ")
			msg.WriteString(strings.Repeat(" ", e.Location.Column-1))
			msg.WriteString("^\n")
		}
	}
	if len(e.Stack) > 0 {
		msg.WriteString("\n")
		msg.WriteString(FormatStackTrace(e.Stack))
	}
	return msg.String()
}

// NewStructuredError creates a new StructuredError with the given parameters.
func NewStructuredError(kind ErrorKind, message string, loc SourceLocation, stack []StackFrame) *StructuredError {
	return &StructuredError{
		Message:  message,
		Kind:     kind,
		Location: loc,
		Stack:    stack,
	}
}

// NewStructuredErrorf creates a new StructuredError with a formatted message.
func NewStructuredErrorf(kind ErrorKind, loc SourceLocation, stack []StackFrame, format string, args ...any) *StructuredError {
	return &StructuredError{
		Message:  fmt.Sprintf(format, args...),
		Kind:     kind,
		Location: loc,
		Stack:    stack,
	}
}

// WithCause wraps the error with a cause.
func (e *StructuredError) WithCause(cause error) *StructuredError {
	e.Cause = cause
	return e
}

// GetStack returns the stack frames of the error.
func (e *StructuredError) GetStack() []StackFrame {
	return e.Stack
}

// GetLocation returns the source location of the error.
func (e *StructuredError) GetLocation() SourceLocation {
	return e.Location
}
