package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// WireVersion is the serialized chunk format version. Increment when making
// incompatible changes.
const WireVersion uint16 = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireChunk struct {
	Version   uint16         `cbor:"1,keyasint"`
	Name      string         `cbor:"2,keyasint,omitempty"`
	Code      []byte         `cbor:"3,keyasint"`
	Constants []wireConstant `cbor:"4,keyasint,omitempty"`
	Lines     []wireLine     `cbor:"5,keyasint,omitempty"`
}

type wireConstant struct {
	Kind   Kind    `cbor:"1,keyasint"`
	Bool   bool    `cbor:"2,keyasint,omitempty"`
	Int    uint64  `cbor:"3,keyasint,omitempty"`
	Num    float64 `cbor:"4,keyasint,omitempty"`
	String []byte  `cbor:"5,keyasint,omitempty"`
}

type wireLine struct {
	Offset int `cbor:"1,keyasint"`
	Line   int `cbor:"2,keyasint"`
}

// MarshalChunk serializes a Chunk to canonical CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	w := wireChunk{
		Version: WireVersion,
		Name:    c.Name,
		Code:    c.Code(),
	}
	for _, v := range c.Constants() {
		wc, err := toWireConstant(v)
		if err != nil {
			return nil, err
		}
		w.Constants = append(w.Constants, wc)
	}
	for _, l := range c.Lines() {
		w.Lines = append(w.Lines, wireLine{Offset: l.Offset, Line: l.Line})
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes. String constants in
// the result are owned by the returned chunk.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var w wireChunk
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	if w.Version != WireVersion {
		return nil, fmt.Errorf("bytecode: chunk version %d, want %d", w.Version, WireVersion)
	}

	c := NewChunk(w.Name)
	copy(c.code.Reserve(len(w.Code)), w.Code)
	for i, wc := range w.Constants {
		v, err := fromWireConstant(wc)
		if err != nil {
			c.Free()
			return nil, fmt.Errorf("bytecode: constant %d: %w", i, err)
		}
		c.constants.Append(v)
	}
	if err := c.verify(); err != nil {
		c.Free()
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	prev := -1
	for _, l := range w.Lines {
		if l.Offset <= prev || l.Offset >= len(w.Code) {
			c.Free()
			return nil, fmt.Errorf("bytecode: bad line table entry at offset %d", l.Offset)
		}
		prev = l.Offset
		c.lines.Append(LineStart{Offset: l.Offset, Line: l.Line})
	}
	return c, nil
}

// verify checks that the code stream decodes into whole instructions,
// refers only to existing constants and ends with OpReturn.
func (c *Chunk) verify() error {
	code := c.Code()
	if len(code) == 0 {
		return errors.New("empty code")
	}
	last := OpReturn
	for offset := 0; offset < len(code); {
		op := Opcode(code[offset])
		info, ok := GetOpcodeInfo(op)
		if !ok {
			return fmt.Errorf("unknown opcode %d at offset %d", code[offset], offset)
		}
		if offset+op.InstructionLen() > len(code) {
			return fmt.Errorf("truncated %s at offset %d", info.Name, offset)
		}
		switch op {
		case OpConstant, OpConstantLong:
			if idx, _ := c.ConstantIndex(offset); idx >= c.constants.Len() {
				return fmt.Errorf("constant %d out of range at offset %d", idx, offset)
			}
		case OpStackExpr:
			e := DecodeStackExpr(code[offset+1 : offset+op.InstructionLen()])
			if int(e.Op) >= len(stackOpNames) || e.From > e.To {
				return fmt.Errorf("bad stack expression at offset %d", offset)
			}
		}
		last = op
		offset += op.InstructionLen()
	}
	if last != OpReturn {
		return errors.New("code does not end with OP_RETURN")
	}
	return nil
}

func toWireConstant(v Value) (wireConstant, error) {
	switch v := v.(type) {
	case Nil:
		return wireConstant{Kind: KindNil}, nil
	case Bool:
		return wireConstant{Kind: KindBool, Bool: bool(v)}, nil
	case Integer:
		return wireConstant{Kind: KindInteger, Int: uint64(v)}, nil
	case Number:
		return wireConstant{Kind: KindNumber, Num: float64(v)}, nil
	case *String:
		return wireConstant{Kind: KindObject, String: v.Bytes()}, nil
	default:
		return wireConstant{}, fmt.Errorf("bytecode: cannot serialize %T constant", v)
	}
}

func fromWireConstant(wc wireConstant) (Value, error) {
	switch wc.Kind {
	case KindNil:
		return NilValue, nil
	case KindBool:
		return Bool(wc.Bool), nil
	case KindInteger:
		return Integer(wc.Int), nil
	case KindNumber:
		return Number(wc.Num), nil
	case KindObject:
		return NewString(wc.String), nil
	default:
		return nil, fmt.Errorf("unknown constant kind %d", wc.Kind)
	}
}
