package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a listing of the whole chunk to w under a
// "== name ==" header.
func (c *Chunk) Disassemble(w io.Writer, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < c.Len(); {
		offset = c.DisassembleInstruction(w, offset)
	}
}

// DisassembleString returns the listing produced by Disassemble.
func (c *Chunk) DisassembleString(name string) string {
	var sb strings.Builder
	c.Disassemble(&sb, name)
	return sb.String()
}

// DisassembleInstruction writes the instruction at offset to w and returns
// the offset of the next instruction.
func (c *Chunk) DisassembleInstruction(w io.Writer, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	line := c.Line(offset)
	if offset > 0 && line == c.Line(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	code := c.Code()
	op := Opcode(code[offset])
	info, ok := GetOpcodeInfo(op)
	if !ok {
		fmt.Fprintf(w, "Unknown opcode %d\n", code[offset])
		return offset + 1
	}
	if offset+info.OperandLen >= len(code) && info.OperandLen > 0 {
		fmt.Fprintf(w, "%-16s <truncated>\n", info.Name)
		return len(code)
	}

	switch op {
	case OpConstant, OpConstantLong:
		idx, width := c.ConstantIndex(offset)
		fmt.Fprintf(w, "%-16s %4d '", info.Name, idx)
		if idx < len(c.Constants()) {
			Print(w, c.Constant(idx))
		}
		fmt.Fprint(w, "'\n")
		return offset + width
	case OpStackExpr:
		e := DecodeStackExpr(code[offset+1 : offset+8])
		fmt.Fprintf(w, "%-16s %s\n", info.Name, e)
		return offset + op.InstructionLen()
	default:
		fmt.Fprintf(w, "%s\n", info.Name)
		return offset + op.InstructionLen()
	}
}
