// Package dis disassembles compiled code for inspection.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/op"
)

// Instruction is one decoded instruction, ready for display.
type Instruction struct {
	Offset   int
	Opcode   string
	Operands []uint16
	Info     string
}

// Disassemble decodes a code unit into display instructions. A jump operand
// pointing outside the instruction stream is an error.
func Disassemble(code *bytecode.Code) ([]Instruction, error) {
	var out []Instruction
	count := code.InstructionCount()
	ip := 0
	for ip < count {
		offset := ip
		opcode := code.InstructionAt(ip)
		ip++
		info := op.GetInfo(opcode)
		if info.Name == "" {
			return nil, fmt.Errorf("invalid opcode %d at offset %d", opcode, offset)
		}
		if ip+info.OperandCount > count {
			return nil, fmt.Errorf("truncated operands for %s at offset %d", info.Name, offset)
		}
		operands := make([]uint16, info.OperandCount)
		for i := range operands {
			operands[i] = uint16(code.InstructionAt(ip))
			ip++
		}
		inst := Instruction{Offset: offset, Opcode: info.Name, Operands: operands}
		if len(operands) > 0 {
			detail, err := operandInfo(code, opcode, info, operands[0], count)
			if err != nil {
				return nil, err
			}
			inst.Info = detail
		}
		out = append(out, inst)
	}
	return out, nil
}

// DisassembleAll decodes a code unit and every nested code constant,
// keyed by the code unit's qualified name.
func DisassembleAll(code *bytecode.Code) (map[string][]Instruction, error) {
	out := make(map[string][]Instruction)
	for _, c := range code.Flatten() {
		instructions, err := Disassemble(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		out[c.Name()] = instructions
	}
	return out, nil
}

func operandInfo(code *bytecode.Code, opcode op.Code, info op.Info, operand uint16, count int) (string, error) {
	if info.IsJump {
		target := int(operand)
		if target < 0 || target >= count {
			return "", fmt.Errorf("%s at offset %d jumps outside the instruction stream (%d)",
				info.Name, target, count)
		}
		return fmt.Sprintf("-> %d", target), nil
	}
	switch opcode {
	case op.LoadConst:
		if int(operand) < code.ConstantCount() {
			return code.ConstantAt(int(operand)).String(), nil
		}
	case op.LoadGlobal, op.LoadName, op.StoreGlobal, op.StoreName,
		op.DeleteGlobal, op.DeleteName, op.LoadAttr, op.StoreAttr,
		op.DeleteAttr, op.ImportName, op.ImportFrom:
		if int(operand) < code.NameCount() {
			return code.NameAt(int(operand)), nil
		}
	case op.LoadFast, op.StoreFast, op.DeleteFast:
		if int(operand) < code.LocalCount() {
			return code.LocalNameAt(int(operand)), nil
		}
	case op.BinaryOp:
		return op.BinaryOpType(operand).String(), nil
	case op.CompareOp:
		return op.CompareOpType(operand).String(), nil
	case op.UnaryOp:
		return op.UnaryOpType(operand).String(), nil
	}
	return "", nil
}

var (
	opcodeColor = color.New(color.FgCyan)
	infoColor   = color.New(color.FgYellow)
)

// Print renders instructions as an aligned table.
func Print(instructions []Instruction, w io.Writer) {
	widths := []int{len("OFFSET"), len("OPCODE"), len("OPERANDS"), len("INFO")}
	rows := make([][4]string, len(instructions))
	for i, inst := range instructions {
		operands := make([]string, len(inst.Operands))
		for j, o := range inst.Operands {
			operands[j] = fmt.Sprintf("%d", o)
		}
		rows[i] = [4]string{
			fmt.Sprintf("%d", inst.Offset),
			inst.Opcode,
			strings.Join(operands, ", "),
			inst.Info,
		}
		for j, cell := range rows[i] {
			if len(cell) > widths[j] {
				widths[j] = len(cell)
			}
		}
	}

	border := fmt.Sprintf("+-%s-+-%s-+-%s-+-%s-+\n",
		strings.Repeat("-", widths[0]), strings.Repeat("-", widths[1]),
		strings.Repeat("-", widths[2]), strings.Repeat("-", widths[3]))
	fmt.Fprint(w, border)
	fmt.Fprintf(w, "| %*s | %-*s | %*s | %-*s |\n",
		widths[0], "OFFSET", widths[1], "OPCODE", widths[2], "OPERANDS", widths[3], "INFO")
	fmt.Fprint(w, border)
	for _, row := range rows {
		fmt.Fprintf(w, "| %*s | %s | %*s | %s |\n",
			widths[0], row[0],
			opcodeColor.Sprintf("%-*s", widths[1], row[1]),
			widths[2], row[2],
			infoColor.Sprintf("%-*s", widths[3], row[3]))
	}
	fmt.Fprint(w, border)
}

// Fprint disassembles a code unit and writes the table in one step.
func Fprint(w io.Writer, code *bytecode.Code) error {
	instructions, err := Disassemble(code)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s:\n", code.Name())
	Print(instructions, w)
	return nil
}
