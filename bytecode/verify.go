package bytecode

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/deepnoodle-ai/serpent/op"
)

// Verify checks a Code object for well-formedness: known opcodes, complete
// operands, jump targets that land on instruction boundaries and appear in
// the label map, and a source map sized to the instruction stream. Nested
// code constants are verified recursively. All findings are aggregated, so
// one pass reports every defect.
//
// The compiler is trusted never to produce malformed code, but the VM
// refuses to execute anything Verify rejects rather than risk corruption.
func Verify(c *Code) error {
	var result *multierror.Error
	for _, code := range c.Flatten() {
		if err := verifyOne(code); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func verifyOne(c *Code) error {
	var result *multierror.Error

	name := c.Name()
	if name == "" {
		name = "<anonymous>"
	}

	count := c.InstructionCount()
	if c.LocationCount() != count {
		result = multierror.Append(result, fmt.Errorf(
			"%s: source map has %d entries for %d instruction words",
			name, c.LocationCount(), count))
	}

	// First pass: find instruction boundaries and validate operand counts.
	boundaries := make(map[int]bool, count)
	for ip := 0; ip < count; {
		boundaries[ip] = true
		opcode := c.InstructionAt(ip)
		info := op.GetInfo(opcode)
		if info.Name == "" {
			result = multierror.Append(result, fmt.Errorf(
				"%s: unknown opcode %d at offset %d", name, opcode, ip))
			ip++
			continue
		}
		if ip+1+info.OperandCount > count {
			result = multierror.Append(result, fmt.Errorf(
				"%s: truncated %s at offset %d (wants %d operands)",
				name, info.Name, ip, info.OperandCount))
			return result.ErrorOrNil()
		}
		ip += 1 + info.OperandCount
	}

	// Known label targets, for checking that jumps go through the label map.
	labelOffsets := make(map[int]bool, c.LabelCount())
	for label, offset := range c.Labels() {
		if offset < 0 || offset > count {
			result = multierror.Append(result, fmt.Errorf(
				"%s: label %d resolves to offset %d outside stream of %d words",
				name, label, offset, count))
			continue
		}
		labelOffsets[offset] = true
	}

	// Second pass: validate jump targets.
	for ip := 0; ip < count; {
		opcode := c.InstructionAt(ip)
		info := op.GetInfo(opcode)
		if info.Name == "" {
			ip++
			continue
		}
		if info.IsJump && ip+1 < count {
			target := int(c.InstructionAt(ip + 1))
			if target > count {
				result = multierror.Append(result, fmt.Errorf(
					"%s: %s at offset %d jumps to %d, beyond stream of %d words",
					name, info.Name, ip, target, count))
			} else if target < count && !boundaries[target] {
				result = multierror.Append(result, fmt.Errorf(
					"%s: %s at offset %d jumps into the middle of an instruction (%d)",
					name, info.Name, ip, target))
			} else if !labelOffsets[target] {
				result = multierror.Append(result, fmt.Errorf(
					"%s: %s at offset %d jumps to %d, which is not in the label map",
					name, info.Name, ip, target))
			}
		}
		ip += 1 + info.OperandCount
	}

	return result.ErrorOrNil()
}
