package errz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpan(t *testing.T) {
	s := NewSpan(10, 20)
	assert.Equal(t, uint32(10), s.Len())
	assert.True(t, s.Contains(10))
	assert.True(t, s.Contains(19))
	assert.False(t, s.Contains(20))
	assert.False(t, s.Contains(9))
	assert.Equal(t, "10..20", s.String())
}

func TestSpanInverted(t *testing.T) {
	// End before start collapses to an empty span at start
	s := NewSpan(20, 10)
	assert.Equal(t, uint32(0), s.Len())
	assert.False(t, s.Contains(20))
}

func TestSpanCover(t *testing.T) {
	a := NewSpan(5, 10)
	b := NewSpan(8, 30)
	c := a.Cover(b)
	assert.Equal(t, uint32(5), c.Start)
	assert.Equal(t, uint32(30), c.End)
}

func TestSourceLocation(t *testing.T) {
	loc := SourceLocation{Filename: "main.sp", Line: 3, Column: 7}
	assert.Equal(t, "main.sp:3:7", loc.String())
	assert.False(t, loc.IsZero())
	assert.True(t, SourceLocation{}.IsZero())

	noFile := SourceLocation{Line: 3, Column: 7}
	assert.Equal(t, "3:7", noFile.String())
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrRuntime, "RuntimeError"},
		{ErrType, "TypeError"},
		{ErrAttribute, "AttributeError"},
		{ErrName, "NameError"},
		{ErrValue, "ValueError"},
		{ErrIndex, "IndexError"},
		{ErrKey, "KeyError"},
		{ErrZeroDivision, "ZeroDivisionError"},
		{ErrStopIteration, "StopIteration"},
		{ErrRecursion, "RecursionError"},
		{ErrMemory, "MemoryError"},
		{ErrImport, "ImportError"},
		{ErrSyntax, "SyntaxError"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
		assert.Equal(t, tt.kind, KindFromName(tt.want))
	}
	assert.Equal(t, ErrRuntime, KindFromName("NoSuchError"))
}

func TestStructuredError(t *testing.T) {
	loc := SourceLocation{Line: 2, Column: 5}
	err := NewStructuredErrorf(ErrType, loc, nil, "unsupported operand type: %s", "str")
	assert.Equal(t, "TypeError: unsupported operand type: str (2:5)", err.Error())

	noLoc := NewStructuredError(ErrValue, "bad value", SourceLocation{}, nil)
	assert.Equal(t, "ValueError: bad value", noLoc.Error())
}

func TestStructuredErrorCause(t *testing.T) {
	cause := errors.New("underlying")
	err := NewStructuredError(ErrImport, "no module named spam", SourceLocation{}, nil).WithCause(cause)
	require.ErrorIs(t, err, cause)
}

func TestFriendlyErrorMessage(t *testing.T) {
	loc := SourceLocation{Line: 1, Column: 3, Source: "x + y"}
	stack := []StackFrame{
		{Function: "add", Location: loc},
		{Function: "<module>", Location: SourceLocation{Line: 4, Column: 1}},
	}
	err := NewStructuredError(ErrType, "unsupported operand", loc, stack)
	msg := err.FriendlyErrorMessage()
	assert.Contains(t, msg, "TypeError: unsupported operand (1:3)")
	assert.Contains(t, msg, "| x + y")
	assert.Contains(t, msg, "^")
	assert.Contains(t, msg, "at add (1:3)")
	assert.Contains(t, msg, "at <module> (4:1)")
}

func TestFormatStackTraceEmpty(t *testing.T) {
	assert.Equal(t, "", FormatStackTrace(nil))
}
