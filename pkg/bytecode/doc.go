// Package bytecode defines the compiled form of fth programs and the values
// they manipulate.
//
// # Values
//
// Value is a closed sum type with the variants Nil, Bool, Integer, Number
// and Object. The only Object variant today is *String. Payloads are read
// through a type switch or one of the As* helpers, so a value can never be
// read through the wrong variant.
//
// Strings are either owned (a private copy of their bytes) or borrowed (a
// view into the source text). Release drops an owned buffer and is a no-op
// for borrowed ones; the Chunk that holds a string constant is its single
// owner and releases it in Free.
//
// # Chunks
//
// A Chunk is one compiled unit:
//
//   - Code: the instruction stream. Every instruction is one opcode byte
//     followed by zero or more operand bytes.
//   - Constants: the literal pool, indexed in insertion order.
//   - Lines: one LineStart per run of consecutive bytes that came from the
//     same source line, searched with a binary search.
//
// Constant loads use OpConstant with a 1-byte index while the index is
// below 256 and OpConstantLong with a 3-byte little-endian index after
// that. The threshold is part of the encoding and must not change.
//
// # Serialization
//
// MarshalChunk and UnmarshalChunk convert a chunk to and from canonical
// CBOR so compiled units can be cached on disk.
package bytecode
