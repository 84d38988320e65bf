package compiler

import (
	"fmt"

	"github.com/chazu/fth/pkg/bytecode"
)

// Stack expressions follow a '$' and select a range of one stack and an
// operation to apply to it:
//
//	expr  := ['r' | 'R'] [range] [op]
//	range := '*' | N | N '~'
//	op    := '>' | '<' | '~' | '=' | '.'
//
// N counts from the top of the stack (0 is the top). "N~" selects from N
// down to the bottom; a '~' right after N only means that when another op
// character follows it, so "$1~" duplicates element 1. A missing range
// selects the whole stack and a missing op drops the selection.
var stackOps = map[byte]bytecode.StackOp{
	'>': bytecode.StackMove,
	'<': bytecode.StackCopy,
	'~': bytecode.StackDup,
	'=': bytecode.StackSet,
	'.': bytecode.StackPrint,
}

// ParseStackExpr parses the body of a stack expression (the text after
// the '$').
func ParseStackExpr(s string) (bytecode.StackExpr, error) {
	e := bytecode.StackExpr{Op: bytecode.StackDrop, From: 0, To: bytecode.RangeBottom}
	i := 0

	if i < len(s) && (s[i] == 'r' || s[i] == 'R') {
		e.Return = true
		i++
	}

	switch {
	case i < len(s) && s[i] == '*':
		i++
	case i < len(s) && isDigit(rune(s[i])):
		n := uint32(0)
		for i < len(s) && isDigit(rune(s[i])) {
			n = n*10 + uint32(s[i]-'0')
			if n >= bytecode.RangeBottom {
				return e, fmt.Errorf("stack index out of range in '$%s'", s)
			}
			i++
		}
		e.From, e.To = n, n
		if i+1 < len(s) && s[i] == '~' {
			if _, ok := stackOps[s[i+1]]; ok {
				e.To = bytecode.RangeBottom
				i++
			}
		}
	}

	if i < len(s) {
		op, ok := stackOps[s[i]]
		if !ok {
			return e, fmt.Errorf("unexpected character '%c' in stack expression '$%s'", s[i], s)
		}
		e.Op = op
		i++
	}

	if i < len(s) {
		return e, fmt.Errorf("unexpected character '%c' in stack expression '$%s'", s[i], s)
	}
	return e, nil
}
