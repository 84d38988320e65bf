package bytecode

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Kind identifies a Value variant.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInteger
	KindNumber
	KindObject
)

var kindNames = map[Kind]string{
	KindNil:     "nil",
	KindBool:    "bool",
	KindInteger: "integer",
	KindNumber:  "number",
	KindObject:  "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a runtime value. The set of implementations is closed.
type Value interface {
	Kind() Kind
	value()
}

// Nil is the absent value.
type Nil struct{}

// Bool is a boolean value.
type Bool bool

// Integer is an unsigned 64-bit integer value.
type Integer uint64

// Number is a 64-bit floating point value.
type Number float64

func (Nil) Kind() Kind     { return KindNil }
func (Bool) Kind() Kind    { return KindBool }
func (Integer) Kind() Kind { return KindInteger }
func (Number) Kind() Kind  { return KindNumber }

func (Nil) value()     {}
func (Bool) value()    {}
func (Integer) value() {}
func (Number) value()  {}

// NilValue is the single Nil value.
var NilValue Value = Nil{}

// IsNil reports whether v is Nil. A nil interface also counts.
func IsNil(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Nil)
	return ok
}

// AsBool returns the payload of a Bool.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}

// AsInteger returns the payload of an Integer.
func AsInteger(v Value) (uint64, bool) {
	i, ok := v.(Integer)
	return uint64(i), ok
}

// AsNumber returns the payload of a Number.
func AsNumber(v Value) (float64, bool) {
	n, ok := v.(Number)
	return float64(n), ok
}

// AsObject returns v as an Object.
func AsObject(v Value) (Object, bool) {
	o, ok := v.(Object)
	return o, ok
}

// AsString returns v as a *String.
func AsString(v Value) (*String, bool) {
	s, ok := v.(*String)
	return s, ok
}

// Format renders v the way the VM prints it.
func Format(v Value) string {
	switch v := v.(type) {
	case nil, Nil:
		return "NIL"
	case Bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case Integer:
		return strconv.FormatUint(uint64(v), 10)
	case Number:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case *String:
		return `"` + v.Text() + `"`
	default:
		panic(fmt.Sprintf("bytecode: cannot format %T", v))
	}
}

// Print writes Format(v) to w.
func Print(w io.Writer, v Value) error {
	_, err := io.WriteString(w, Format(v))
	return err
}

// Equal reports whether a and b are the same variant with the same
// payload. Strings compare by content and numbers by bit pattern.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case nil, Nil:
		return IsNil(b)
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb
	case Integer:
		bi, ok := b.(Integer)
		return ok && a == bi
	case Number:
		bn, ok := b.(Number)
		return ok && math.Float64bits(float64(a)) == math.Float64bits(float64(bn))
	case *String:
		bs, ok := b.(*String)
		return ok && bytes.Equal(a.Bytes(), bs.Bytes())
	}
	return false
}
