package bytecode

import (
	"fmt"
	"strings"
)

// StackOp is the operation a stack expression applies to its range.
type StackOp byte

const (
	StackDrop  StackOp = iota // remove the selected elements
	StackMove                 // '>' move to the other stack
	StackCopy                 // '<' copy to the other stack
	StackDup                  // '~' duplicate onto the same stack
	StackSet                  // '=' pop the top and store it into the range
	StackPrint                // '.' print the selected elements
)

var stackOpNames = [...]string{
	StackDrop:  "drop",
	StackMove:  "move",
	StackCopy:  "copy",
	StackDup:   "dup",
	StackSet:   "set",
	StackPrint: "print",
}

func (op StackOp) String() string {
	if int(op) < len(stackOpNames) {
		return stackOpNames[op]
	}
	return fmt.Sprintf("StackOp(%d)", op)
}

const (
	stackModeReturn = 0x80
	stackModeOp     = 0x7f

	// RangeBottom as a range end selects everything down to the bottom of
	// the stack.
	RangeBottom = 0xffffff
)

// StackExpr is a decoded stack expression. From and To are distances from
// the top of the stack with From <= To.
type StackExpr struct {
	Op     StackOp
	Return bool // operate on the return stack
	From   uint32
	To     uint32
}

// All reports whether the expression selects the entire stack.
func (e StackExpr) All() bool {
	return e.From == 0 && e.To == RangeBottom
}

// Encode returns the seven operand bytes of an OpStackExpr instruction.
func (e StackExpr) Encode() [7]byte {
	var b [7]byte
	b[0] = byte(e.Op) & stackModeOp
	if e.Return {
		b[0] |= stackModeReturn
	}
	putUint24(b[1:4], e.From)
	putUint24(b[4:7], e.To)
	return b
}

// DecodeStackExpr decodes the operands of an OpStackExpr instruction.
func DecodeStackExpr(b []byte) StackExpr {
	if len(b) < 7 {
		panic("bytecode: truncated stack expression")
	}
	return StackExpr{
		Op:     StackOp(b[0] & stackModeOp),
		Return: b[0]&stackModeReturn != 0,
		From:   uint24(b[1:4]),
		To:     uint24(b[4:7]),
	}
}

func (e StackExpr) String() string {
	var sb strings.Builder
	if e.Return {
		sb.WriteString("r ")
	}
	switch {
	case e.All():
		sb.WriteString("*")
	case e.To == RangeBottom:
		fmt.Fprintf(&sb, "%d~", e.From)
	case e.From == e.To:
		fmt.Fprintf(&sb, "%d", e.From)
	default:
		fmt.Fprintf(&sb, "%d..%d", e.From, e.To)
	}
	sb.WriteString(" ")
	sb.WriteString(e.Op.String())
	return sb.String()
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
