package bytecode

import (
	"errors"
	"sort"

	"github.com/chazu/fth/pkg/buffer"
)

// ErrTooManyConstants is returned when a constant index no longer fits the
// long load form.
var ErrTooManyConstants = errors.New("too many constants in one chunk")

// LineStart marks the first byte of a run of code compiled from one source
// line.
type LineStart struct {
	Offset int
	Line   int
}

// Chunk is one compiled unit. It is written only by the compiler and is
// read-only while a VM runs it.
type Chunk struct {
	Name string

	code      buffer.Buffer[byte]
	constants buffer.Buffer[Value]
	lines     buffer.Buffer[LineStart]
}

// NewChunk creates an empty chunk.
func NewChunk(name string) *Chunk {
	return &Chunk{Name: name}
}

// Write appends one byte compiled from the given source line.
func (c *Chunk) Write(b byte, line int) {
	if last, ok := c.lines.Last(); !ok || last.Line != line {
		c.lines.Append(LineStart{Offset: c.code.Len(), Line: line})
	}
	c.code.Append(b)
}

// WriteOp appends an opcode.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the constant pool and returns its index. The
// chunk takes ownership of object values.
func (c *Chunk) AddConstant(v Value) int {
	c.constants.Append(v)
	return c.constants.Len() - 1
}

// WriteConstant adds v to the pool and emits the load for it.
func (c *Chunk) WriteConstant(v Value, line int) (int, error) {
	if c.constants.Len() > MaxConstant {
		return 0, ErrTooManyConstants
	}
	idx := c.AddConstant(v)
	return idx, c.WriteLoad(idx, line)
}

// WriteLoad emits the load instruction for an existing constant index,
// choosing the short form while the index fits in a byte.
func (c *Chunk) WriteLoad(idx, line int) error {
	switch {
	case idx < 0 || idx > MaxConstant:
		return ErrTooManyConstants
	case idx <= MaxShortConstant:
		c.WriteOp(OpConstant, line)
		c.Write(byte(idx), line)
	default:
		c.WriteOp(OpConstantLong, line)
		c.Write(byte(idx), line)
		c.Write(byte(idx>>8), line)
		c.Write(byte(idx>>16), line)
	}
	return nil
}

// WriteStackExpr emits an OpStackExpr instruction.
func (c *Chunk) WriteStackExpr(e StackExpr, line int) {
	c.WriteOp(OpStackExpr, line)
	for _, b := range e.Encode() {
		c.Write(b, line)
	}
}

// ConstantIndex decodes the constant load at offset and returns the index
// and the instruction's encoded width. It panics if the instruction at
// offset is not a constant load.
func (c *Chunk) ConstantIndex(offset int) (idx, width int) {
	code := c.code.Items()
	switch Opcode(code[offset]) {
	case OpConstant:
		return int(code[offset+1]), 2
	case OpConstantLong:
		return int(uint24(code[offset+1 : offset+4])), 4
	default:
		panic("bytecode: not a constant load at offset")
	}
}

// Constant returns the constant at index i.
func (c *Chunk) Constant(i int) Value {
	return c.constants.At(i)
}

// Line returns the source line of the byte at offset, or 0 if the chunk has
// no line information for it.
func (c *Chunk) Line(offset int) int {
	lines := c.lines.Items()
	i := sort.Search(len(lines), func(i int) bool {
		return lines[i].Offset > offset
	})
	if i == 0 {
		return 0
	}
	return lines[i-1].Line
}

// Code returns the instruction stream.
func (c *Chunk) Code() []byte {
	return c.code.Items()
}

// Constants returns the constant pool.
func (c *Chunk) Constants() []Value {
	return c.constants.Items()
}

// Lines returns the run-length line table.
func (c *Chunk) Lines() []LineStart {
	return c.lines.Items()
}

// Len returns the length of the instruction stream.
func (c *Chunk) Len() int {
	return c.code.Len()
}

// Free releases owned constants and all storage. The chunk is empty
// afterwards and may be reused.
func (c *Chunk) Free() {
	for _, v := range c.constants.Items() {
		if o, ok := v.(Object); ok {
			o.Release()
		}
	}
	c.code.Free()
	c.constants.Free()
	c.lines.Free()
}
