package object

import (
	"fmt"
	"strconv"
)

// Str is the payload of an immutable string.
type Str struct {
	value string
}

func (s *Str) PayloadKind() string { return "str" }

// Value returns the underlying string.
func (s *Str) Value() string { return s.value }

// Len returns the length in bytes.
func (s *Str) Len() int { return len(s.value) }

func (s *Str) String() string { return s.value }

// Repr returns the quoted source form.
func (s *Str) Repr() string { return strconv.Quote(s.value) }

// Bytes is the payload of an immutable byte string.
type Bytes struct {
	value []byte
}

func (b *Bytes) PayloadKind() string { return "bytes" }

// Value returns the underlying bytes. Callers must not mutate them.
func (b *Bytes) Value() []byte { return b.value }

// Len returns the length in bytes.
func (b *Bytes) Len() int { return len(b.value) }

func (b *Bytes) String() string { return fmt.Sprintf("b%s", strconv.Quote(string(b.value))) }
