package bytecode

import "fmt"

// Opcode is the leading byte of an instruction. The numeric values are the
// serialized encoding.
type Opcode byte

const (
	OpReturn       Opcode = 0x00 // Pop the result and stop
	OpConstant     Opcode = 0x01 // Push constant: OpConstant <index:u8>
	OpConstantLong Opcode = 0x02 // Push constant: OpConstantLong <index:u24le>
	OpClear        Opcode = 0x03 // Empty the data stack
	OpPeriod       Opcode = 0x04 // Print the top of the data stack
	OpPop          Opcode = 0x05 // Move return stack top to the data stack (R>)
	OpPush         Opcode = 0x06 // Move data stack top to the return stack (>R)
	OpDump         Opcode = 0x07 // Print the whole data stack (.S)
	OpDumpRStack   Opcode = 0x08 // Print the whole return stack (.R)
	OpStackExpr    Opcode = 0x09 // OpStackExpr <mode:u8> <from:u24le> <to:u24le>
)

// MaxShortConstant is the largest index OpConstant can encode.
const MaxShortConstant = 0xff

// MaxConstant is the largest index OpConstantLong can encode.
const MaxConstant = 0xffffff

// OpcodeInfo describes an opcode.
type OpcodeInfo struct {
	Name       string
	OperandLen int // Bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpReturn:       {"OP_RETURN", 0},
	OpConstant:     {"OP_CONSTANT", 1},
	OpConstantLong: {"OP_CONSTANT_LONG", 3},
	OpClear:        {"OP_CLEAR", 0},
	OpPeriod:       {"OP_PERIOD", 0},
	OpPop:          {"OP_POP", 0},
	OpPush:         {"OP_PUSH", 0},
	OpDump:         {"OP_DUMP_STACK", 0},
	OpDumpRStack:   {"OP_DUMP_RSTACK", 0},
	OpStackExpr:    {"OP_STACK_EXPR", 7},
}

// GetOpcodeInfo returns metadata for an opcode, and false if the opcode is
// not defined.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// OperandLen returns the number of operand bytes for op.
func (op Opcode) OperandLen() int {
	return opcodeInfoTable[op].OperandLen
}

// InstructionLen returns the encoded length of an instruction starting
// with op.
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsConstant reports whether op loads a constant.
func (op Opcode) IsConstant() bool {
	return op == OpConstant || op == OpConstantLong
}

// AllOpcodes returns every defined opcode in encoding order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := OpReturn; op <= OpStackExpr; op++ {
		ops = append(ops, op)
	}
	return ops
}
