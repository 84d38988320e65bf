package bytecode

import "testing"

func TestOpcodeValues(t *testing.T) {
	// The numeric values are the serialized encoding.
	tests := []struct {
		op   Opcode
		want byte
	}{
		{OpReturn, 0},
		{OpConstant, 1},
		{OpConstantLong, 2},
		{OpClear, 3},
		{OpPeriod, 4},
		{OpPop, 5},
		{OpPush, 6},
		{OpDump, 7},
		{OpDumpRStack, 8},
		{OpStackExpr, 9},
	}
	for _, tt := range tests {
		if byte(tt.op) != tt.want {
			t.Errorf("%v = %d, want %d", tt.op, byte(tt.op), tt.want)
		}
	}
}

func TestAllOpcodesHaveInfo(t *testing.T) {
	ops := AllOpcodes()
	if len(ops) != len(opcodeInfoTable) {
		t.Errorf("AllOpcodes() has %d entries, table has %d", len(ops), len(opcodeInfoTable))
	}
	for _, op := range ops {
		info, ok := GetOpcodeInfo(op)
		if !ok {
			t.Errorf("opcode %d has no info", op)
			continue
		}
		if info.Name == "" {
			t.Errorf("opcode %d has an empty name", op)
		}
		if op.String() != info.Name {
			t.Errorf("%d.String() = %q, want %q", op, op.String(), info.Name)
		}
	}
}

func TestInstructionLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpReturn, 1},
		{OpConstant, 2},
		{OpConstantLong, 4},
		{OpPeriod, 1},
		{OpStackExpr, 8},
	}
	for _, tt := range tests {
		if got := tt.op.InstructionLen(); got != tt.want {
			t.Errorf("%v.InstructionLen() = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	if _, ok := GetOpcodeInfo(0x42); ok {
		t.Error("GetOpcodeInfo(0x42) reported a known opcode")
	}
	if got := Opcode(0x42).String(); got != "UNKNOWN(0x42)" {
		t.Errorf("String() = %q, want %q", got, "UNKNOWN(0x42)")
	}
	if OpConstant.IsConstant() != true || OpPeriod.IsConstant() {
		t.Error("IsConstant misclassified an opcode")
	}
}
