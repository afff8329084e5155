package bytecode

import (
	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

// Label identifies a jump target allocated by a Builder. Labels are resolved
// to absolute instruction offsets exactly once, at assembly time; the mapping
// is retained on the Code object for disassembly and verification.
type Label uint16

// Params describes the parameters a code object's frame binds on call.
// Positional defaults and keyword-only defaults live on the function object,
// not here, because they are evaluated at function-definition time.
type Params struct {
	// Positional lists positional parameter names, in declaration order.
	Positional []string

	// VarArgs is the *args parameter name. Empty with HasVarArgs set means
	// an unnamed catch-all that discards extra positional arguments.
	VarArgs    string
	HasVarArgs bool

	// KwOnly lists keyword-only parameter names.
	KwOnly []string

	// KwArgs is the **kwargs parameter name.
	KwArgs    string
	HasKwArgs bool
}

// Count returns the number of local slots the parameters occupy.
func (p Params) Count() int {
	n := len(p.Positional) + len(p.KwOnly)
	if p.HasVarArgs {
		n++
	}
	if p.HasKwArgs {
		n++
	}
	return n
}

// Equal reports structural equality with another Params.
func (p Params) Equal(other Params) bool {
	if len(p.Positional) != len(other.Positional) ||
		len(p.KwOnly) != len(other.KwOnly) ||
		p.VarArgs != other.VarArgs ||
		p.HasVarArgs != other.HasVarArgs ||
		p.KwArgs != other.KwArgs ||
		p.HasKwArgs != other.HasKwArgs {
		return false
	}
	for i := range p.Positional {
		if p.Positional[i] != other.Positional[i] {
			return false
		}
	}
	for i := range p.KwOnly {
		if p.KwOnly[i] != other.KwOnly[i] {
			return false
		}
	}
	return true
}

// Code represents a compiled code block (module body or function body).
// It is immutable after creation and safe for concurrent use.
type Code struct {
	id          string
	name        string
	filename    string
	firstLine   int
	isGenerator bool

	instructions []op.Code
	constants    []Constant
	names        []string
	varNames     []string
	freeNames    []string
	cellNames    []string
	params       Params

	// Source map: one location per instruction word for error reporting
	locations []errz.SourceLocation

	// Jump labels resolved at assembly time: label -> instruction offset
	labels map[Label]int
}

// CodeParams contains parameters for creating a new Code.
type CodeParams struct {
	ID           string
	Name         string
	Filename     string
	FirstLine    int
	IsGenerator  bool
	Instructions []op.Code
	Constants    []Constant
	Names        []string
	VarNames     []string
	FreeNames    []string
	CellNames    []string
	Params       Params
	Locations    []errz.SourceLocation
	Labels       map[Label]int
}

// NewCode creates a new immutable Code from the given parameters.
// Input slices and maps are copied; the Code has no mutation methods.
func NewCode(params CodeParams) *Code {
	labels := make(map[Label]int, len(params.Labels))
	for l, offset := range params.Labels {
		labels[l] = offset
	}
	return &Code{
		id:           params.ID,
		name:         params.Name,
		filename:     params.Filename,
		firstLine:    params.FirstLine,
		isGenerator:  params.IsGenerator,
		instructions: copyInstructions(params.Instructions),
		constants:    copyConstants(params.Constants),
		names:        copyStrings(params.Names),
		varNames:     copyStrings(params.VarNames),
		freeNames:    copyStrings(params.FreeNames),
		cellNames:    copyStrings(params.CellNames),
		params:       params.Params,
		locations:    copyLocations(params.Locations),
		labels:       labels,
	}
}

// ID returns the unique identifier for this code block.
func (c *Code) ID() string {
	return c.id
}

// Name returns the human-readable owner name (function or module name).
func (c *Code) Name() string {
	return c.name
}

// Filename returns the source path this code was compiled from.
func (c *Code) Filename() string {
	return c.filename
}

// FirstLine returns the 1-based line number of the first source line.
func (c *Code) FirstLine() int {
	return c.firstLine
}

// IsGenerator returns true if frames for this code suspend on yield.
func (c *Code) IsGenerator() bool {
	return c.isGenerator
}

// InstructionCount returns the number of instruction words.
func (c *Code) InstructionCount() int {
	return len(c.instructions)
}

// InstructionAt returns the instruction word at the given index.
func (c *Code) InstructionAt(index int) op.Code {
	return c.instructions[index]
}

// Instructions returns a copy of the instruction stream.
func (c *Code) Instructions() []op.Code {
	return copyInstructions(c.instructions)
}

// ConstantCount returns the number of constants.
func (c *Code) ConstantCount() int {
	return len(c.constants)
}

// ConstantAt returns the constant at the given index.
func (c *Code) ConstantAt(index int) Constant {
	return c.constants[index]
}

// NameCount returns the number of names (attribute and global names).
func (c *Code) NameCount() int {
	return len(c.names)
}

// NameAt returns the name at the given index.
func (c *Code) NameAt(index int) string {
	return c.names[index]
}

// LocalCount returns the number of local variable slots.
func (c *Code) LocalCount() int {
	return len(c.varNames)
}

// LocalNameAt returns the local variable name at the given index.
// Returns an empty string if the index is out of range.
func (c *Code) LocalNameAt(index int) string {
	if index < 0 || index >= len(c.varNames) {
		return ""
	}
	return c.varNames[index]
}

// FreeCount returns the number of free (closed-over) variables.
func (c *Code) FreeCount() int {
	return len(c.freeNames)
}

// FreeNameAt returns the free variable name at the given index.
func (c *Code) FreeNameAt(index int) string {
	if index < 0 || index >= len(c.freeNames) {
		return ""
	}
	return c.freeNames[index]
}

// CellCount returns the number of cell variables captured by closures.
func (c *Code) CellCount() int {
	return len(c.cellNames)
}

// CellNameAt returns the cell variable name at the given index.
func (c *Code) CellNameAt(index int) string {
	if index < 0 || index >= len(c.cellNames) {
		return ""
	}
	return c.cellNames[index]
}

// Params returns the parameter metadata for this code.
func (c *Code) Params() Params {
	return c.params
}

// LocationAt returns the source location for the instruction word at the
// given index. Out-of-range indices return a zero location.
func (c *Code) LocationAt(ip int) errz.SourceLocation {
	if ip < 0 || ip >= len(c.locations) {
		return errz.SourceLocation{}
	}
	return c.locations[ip]
}

// LocationCount returns the number of recorded source locations.
func (c *Code) LocationCount() int {
	return len(c.locations)
}

// LabelCount returns the number of jump labels.
func (c *Code) LabelCount() int {
	return len(c.labels)
}

// LabelTarget returns the resolved instruction offset for the given label.
func (c *Code) LabelTarget(l Label) (int, bool) {
	offset, ok := c.labels[l]
	return offset, ok
}

// Labels returns a copy of the label map.
func (c *Code) Labels() map[Label]int {
	labels := make(map[Label]int, len(c.labels))
	for l, offset := range c.labels {
		labels[l] = offset
	}
	return labels
}

// Flatten returns this code and all nested code constants, parents first.
func (c *Code) Flatten() []*Code {
	codes := []*Code{c}
	for _, constant := range c.constants {
		if cc, ok := constant.(CodeConst); ok {
			codes = append(codes, cc.Code.Flatten()...)
		}
	}
	return codes
}

// Equal reports structural equality with another Code: instructions,
// constants, names, parameter metadata, labels, and metadata all match.
func (c *Code) Equal(other *Code) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	if c.id != other.id ||
		c.name != other.name ||
		c.filename != other.filename ||
		c.firstLine != other.firstLine ||
		c.isGenerator != other.isGenerator {
		return false
	}
	if len(c.instructions) != len(other.instructions) {
		return false
	}
	for i := range c.instructions {
		if c.instructions[i] != other.instructions[i] {
			return false
		}
	}
	if len(c.constants) != len(other.constants) {
		return false
	}
	for i := range c.constants {
		if !c.constants[i].Equal(other.constants[i]) {
			return false
		}
	}
	if !stringsEqual(c.names, other.names) ||
		!stringsEqual(c.varNames, other.varNames) ||
		!stringsEqual(c.freeNames, other.freeNames) ||
		!stringsEqual(c.cellNames, other.cellNames) {
		return false
	}
	if !c.params.Equal(other.params) {
		return false
	}
	if len(c.labels) != len(other.labels) {
		return false
	}
	for l, offset := range c.labels {
		if otherOffset, ok := other.labels[l]; !ok || otherOffset != offset {
			return false
		}
	}
	if len(c.locations) != len(other.locations) {
		return false
	}
	for i := range c.locations {
		if c.locations[i] != other.locations[i] {
			return false
		}
	}
	return true
}
