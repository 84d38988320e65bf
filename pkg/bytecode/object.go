package bytecode

import "fmt"

// ObjectKind identifies a heap object variant.
type ObjectKind uint8

const (
	ObjString ObjectKind = iota
)

func (k ObjectKind) String() string {
	switch k {
	case ObjString:
		return "string"
	default:
		return fmt.Sprintf("ObjectKind(%d)", k)
	}
}

// Object is a Value that refers to heap data with a single owner.
type Object interface {
	Value
	ObjectKind() ObjectKind
	// Release drops the object's storage if the object owns it. Calling it
	// more than once is harmless.
	Release()
}

// ObjectIs reports whether v is an Object of the given kind.
func ObjectIs(v Value, kind ObjectKind) bool {
	o, ok := v.(Object)
	return ok && o.ObjectKind() == kind
}

// String is a byte string object. It either owns a private copy of its
// bytes or borrows them from a longer-lived buffer such as the source text.
type String struct {
	data     []byte
	owned    bool
	released bool
}

// NewString returns an owned string holding a copy of b.
func NewString(b []byte) *String {
	data := make([]byte, len(b))
	copy(data, b)
	return &String{data: data, owned: true}
}

// NewStringFromText returns an owned string holding s.
func NewStringFromText(s string) *String {
	return &String{data: []byte(s), owned: true}
}

// BorrowString returns a string viewing n bytes of src starting at begin.
// The caller must keep src alive and unmodified for the string's lifetime.
func BorrowString(src []byte, begin, n int) *String {
	return &String{data: src[begin : begin+n : begin+n]}
}

func (*String) Kind() Kind             { return KindObject }
func (*String) value()                 {}
func (*String) ObjectKind() ObjectKind { return ObjString }

// Len returns the length in bytes.
func (s *String) Len() int {
	return len(s.data)
}

// Bytes returns the string's bytes. The slice must not be modified.
func (s *String) Bytes() []byte {
	return s.data
}

// Text returns the string's contents as a Go string.
func (s *String) Text() string {
	return string(s.data)
}

// Owned reports whether the string owns its buffer.
func (s *String) Owned() bool {
	return s.owned
}

// Released reports whether Release has been called.
func (s *String) Released() bool {
	return s.released
}

func (s *String) Release() {
	if s.released {
		return
	}
	s.released = true
	if s.owned {
		s.data = nil
	}
}

func (s *String) String() string {
	return Format(s)
}
