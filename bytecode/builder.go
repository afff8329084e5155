package bytecode

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

// Builder assembles an instruction stream into an immutable Code object.
// It allocates jump labels, resolves them to absolute offsets exactly once
// at assembly time, and interns constants per-Code.
//
// The Builder is the in-repo stand-in for a compiler backend: the VM itself
// only ever consumes the Code objects it produces.
type Builder struct {
	name        string
	filename    string
	firstLine   int
	isGenerator bool
	params      Params

	instructions []op.Code
	locations    []errz.SourceLocation
	constants    []Constant
	names        []string
	varNames     []string
	freeNames    []string
	cellNames    []string

	labelTargets []int // index = label, value = instruction offset (-1 unset)
	fixups       []fixup

	loc errz.SourceLocation // sticky location applied to emitted words
}

type fixup struct {
	pos   int // operand word index to patch
	label Label
}

// BuilderParams configures a new Builder.
type BuilderParams struct {
	Name        string
	Filename    string
	FirstLine   int
	IsGenerator bool
	Params      Params
}

// NewBuilder creates a Builder for one code unit. Parameter names occupy the
// first local slots, in binding order: positional, *args, keyword-only,
// **kwargs.
func NewBuilder(params BuilderParams) *Builder {
	b := &Builder{
		name:        params.Name,
		filename:    params.Filename,
		firstLine:   params.FirstLine,
		isGenerator: params.IsGenerator,
		params:      params.Params,
	}
	b.varNames = append(b.varNames, params.Params.Positional...)
	if params.Params.HasVarArgs {
		name := params.Params.VarArgs
		if name == "" {
			name = "*"
		}
		b.varNames = append(b.varNames, name)
	}
	b.varNames = append(b.varNames, params.Params.KwOnly...)
	if params.Params.HasKwArgs {
		name := params.Params.KwArgs
		if name == "" {
			name = "**"
		}
		b.varNames = append(b.varNames, name)
	}
	return b
}

// SetLocation sets the source location applied to subsequently emitted
// instructions. The location is sticky until changed.
func (b *Builder) SetLocation(loc errz.SourceLocation) {
	b.loc = loc
}

// Offset returns the current instruction offset.
func (b *Builder) Offset() int {
	return len(b.instructions)
}

// Emit appends an opcode and its operand words, returning the offset of the
// opcode word.
func (b *Builder) Emit(opcode op.Code, operands ...uint16) int {
	offset := len(b.instructions)
	b.instructions = append(b.instructions, opcode)
	b.locations = append(b.locations, b.loc)
	for _, operand := range operands {
		b.instructions = append(b.instructions, op.Code(operand))
		b.locations = append(b.locations, b.loc)
	}
	return offset
}

// EmitJump appends a jump instruction whose operand will be patched with the
// label's absolute offset at assembly time.
func (b *Builder) EmitJump(opcode op.Code, label Label) int {
	offset := b.Emit(opcode, 0)
	b.fixups = append(b.fixups, fixup{pos: offset + 1, label: label})
	return offset
}

// NewLabel allocates a new, unresolved jump label.
func (b *Builder) NewLabel() Label {
	b.labelTargets = append(b.labelTargets, -1)
	return Label(len(b.labelTargets) - 1)
}

// SetLabel resolves the label to the current instruction offset. A label may
// be resolved at most once.
func (b *Builder) SetLabel(label Label) error {
	if int(label) >= len(b.labelTargets) {
		return fmt.Errorf("unknown label %d", label)
	}
	if b.labelTargets[label] != -1 {
		return fmt.Errorf("label %d already set (offset %d)", label, b.labelTargets[label])
	}
	b.labelTargets[label] = len(b.instructions)
	return nil
}

// Constant interns the given constant and returns its pool index. Structural
// equality determines interning, so equal constants share one slot.
func (b *Builder) Constant(c Constant) uint16 {
	for i, existing := range b.constants {
		if existing.Equal(c) {
			return uint16(i)
		}
	}
	b.constants = append(b.constants, c)
	return uint16(len(b.constants) - 1)
}

// Name interns an attribute or global name and returns its index.
func (b *Builder) Name(name string) uint16 {
	for i, existing := range b.names {
		if existing == name {
			return uint16(i)
		}
	}
	b.names = append(b.names, name)
	return uint16(len(b.names) - 1)
}

// Local interns a local variable name and returns its slot index.
func (b *Builder) Local(name string) uint16 {
	for i, existing := range b.varNames {
		if existing == name {
			return uint16(i)
		}
	}
	b.varNames = append(b.varNames, name)
	return uint16(len(b.varNames) - 1)
}

// FreeVar interns a free (closed-over) variable name and returns its index.
func (b *Builder) FreeVar(name string) uint16 {
	for i, existing := range b.freeNames {
		if existing == name {
			return uint16(i)
		}
	}
	b.freeNames = append(b.freeNames, name)
	return uint16(len(b.freeNames) - 1)
}

// CellVar interns a cell variable name and returns its index.
func (b *Builder) CellVar(name string) uint16 {
	for i, existing := range b.cellNames {
		if existing == name {
			return uint16(i)
		}
	}
	b.cellNames = append(b.cellNames, name)
	return uint16(len(b.cellNames) - 1)
}

// Assemble resolves all jump labels and produces the immutable Code object.
// Unresolved labels and out-of-range offsets are assembly errors.
func (b *Builder) Assemble() (*Code, error) {
	labels := make(map[Label]int, len(b.labelTargets))
	for i, target := range b.labelTargets {
		if target == -1 {
			// Allocated but never placed. Only an error if referenced.
			continue
		}
		labels[Label(i)] = target
	}
	for _, f := range b.fixups {
		target := b.labelTargets[f.label]
		if target == -1 {
			return nil, fmt.Errorf("jump to unresolved label %d at offset %d", f.label, f.pos-1)
		}
		if target > len(b.instructions) {
			return nil, fmt.Errorf("label %d target %d beyond instruction stream (%d)",
				f.label, target, len(b.instructions))
		}
		b.instructions[f.pos] = op.Code(target)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code id: %w", err)
	}
	return NewCode(CodeParams{
		ID:           id.String(),
		Name:         b.name,
		Filename:     b.filename,
		FirstLine:    b.firstLine,
		IsGenerator:  b.isGenerator,
		Instructions: b.instructions,
		Constants:    b.constants,
		Names:        b.names,
		VarNames:     b.varNames,
		FreeNames:    b.freeNames,
		CellNames:    b.cellNames,
		Params:       b.params,
		Locations:    b.locations,
		Labels:       labels,
	}), nil
}
