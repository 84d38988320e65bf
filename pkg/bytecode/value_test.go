package bytecode

import (
	"bytes"
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"nil", NilValue, "NIL"},
		{"nil interface", nil, "NIL"},
		{"true", Bool(true), "TRUE"},
		{"false", Bool(false), "FALSE"},
		{"zero", Integer(0), "0"},
		{"integer", Integer(42), "42"},
		{"max integer", Integer(math.MaxUint64), "18446744073709551615"},
		{"number", Number(3.5), "3.5"},
		{"whole number", Number(2), "2"},
		{"small number", Number(0.1), "0.1"},
		{"large number", Number(1e21), "1e+21"},
		{"string", NewStringFromText("hi"), `"hi"`},
		{"empty string", NewStringFromText(""), `""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.v); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
			var buf bytes.Buffer
			if err := Print(&buf, tt.v); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("Print() wrote %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestAccessors(t *testing.T) {
	if b, ok := AsBool(Bool(true)); !ok || !b {
		t.Errorf("AsBool(true) = %v, %v", b, ok)
	}
	if _, ok := AsBool(Integer(1)); ok {
		t.Error("AsBool(Integer) succeeded")
	}
	if i, ok := AsInteger(Integer(7)); !ok || i != 7 {
		t.Errorf("AsInteger(7) = %v, %v", i, ok)
	}
	if _, ok := AsInteger(Number(7)); ok {
		t.Error("AsInteger(Number) succeeded")
	}
	if n, ok := AsNumber(Number(1.5)); !ok || n != 1.5 {
		t.Errorf("AsNumber(1.5) = %v, %v", n, ok)
	}
	if _, ok := AsNumber(Integer(1)); ok {
		t.Error("AsNumber(Integer) succeeded")
	}
	s := NewStringFromText("x")
	if got, ok := AsString(s); !ok || got != s {
		t.Error("AsString failed on a string")
	}
	if _, ok := AsObject(Integer(1)); ok {
		t.Error("AsObject(Integer) succeeded")
	}
	if !ObjectIs(s, ObjString) {
		t.Error("ObjectIs(string, ObjString) = false")
	}
	if ObjectIs(Nil{}, ObjString) {
		t.Error("ObjectIs(nil, ObjString) = true")
	}
	if !IsNil(NilValue) || IsNil(Bool(false)) {
		t.Error("IsNil misclassified a value")
	}
}

func TestKinds(t *testing.T) {
	tests := []struct {
		v    Value
		want Kind
	}{
		{NilValue, KindNil},
		{Bool(false), KindBool},
		{Integer(0), KindInteger},
		{Number(0), KindNumber},
		{NewStringFromText(""), KindObject},
	}
	for _, tt := range tests {
		if got := tt.v.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %v, want %v", tt.v, got, tt.want)
		}
	}
	if KindNumber.String() != "number" {
		t.Errorf("KindNumber.String() = %q", KindNumber.String())
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{NilValue, NilValue, true},
		{Integer(1), Integer(1), true},
		{Integer(1), Number(1), false},
		{Number(0.5), Number(0.5), true},
		{Number(0), Number(math.Copysign(0, -1)), false},
		{Bool(true), Bool(true), true},
		{Bool(true), Bool(false), false},
		{NewStringFromText("a"), NewStringFromText("a"), true},
		{NewStringFromText("a"), NewStringFromText("b"), false},
		{NewStringFromText("1"), Integer(1), false},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", Format(tt.a), Format(tt.b), got, tt.want)
		}
	}
}

func TestStringOwnership(t *testing.T) {
	src := []byte("hello world")
	owned := NewString(src[:5])
	src[0] = 'j'
	if owned.Text() != "hello" {
		t.Errorf("owned string changed with its source: %q", owned.Text())
	}
	if !owned.Owned() {
		t.Error("NewString result is not owned")
	}

	borrowed := BorrowString(src, 6, 5)
	if borrowed.Owned() {
		t.Error("BorrowString result is owned")
	}
	if borrowed.Text() != "world" || borrowed.Len() != 5 {
		t.Errorf("borrowed = %q (len %d), want %q", borrowed.Text(), borrowed.Len(), "world")
	}

	owned.Release()
	owned.Release()
	if owned.Len() != 0 {
		t.Errorf("Len() after Release = %d, want 0", owned.Len())
	}
	borrowed.Release()
	if borrowed.Len() != 5 {
		t.Errorf("borrowed Len() after Release = %d, want 5", borrowed.Len())
	}
}
