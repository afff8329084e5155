package object

import (
	"github.com/deepnoodle-ai/serpent/bytecode"
)

// CodePayload exposes a compiled code unit as a first-class object, so
// MakeFunction can load it as a constant and tooling can introspect it.
type CodePayload struct {
	code *bytecode.Code
}

func (c *CodePayload) PayloadKind() string { return "code" }

// Code returns the underlying compiled code.
func (c *CodePayload) Code() *bytecode.Code { return c.code }
