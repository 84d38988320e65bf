package vm

import (
	"github.com/chazu/fth/pkg/buffer"
	"github.com/chazu/fth/pkg/bytecode"
)

// selection resolves an expression's range against a stack of depth n to
// the half-open index interval [lo, hi), counted from the bottom.
func selection(e bytecode.StackExpr, n int) (lo, hi int, err error) {
	if e.All() {
		return 0, n, nil
	}
	from, to := int(e.From), int(e.To)
	if from >= n {
		return 0, 0, ErrOutOfRange
	}
	to = min(to, n-1)
	return n - 1 - to, n - from, nil
}

// stackExpr applies a stack expression. Selected values keep their order,
// deepest first, wherever they are copied to.
func (vm *VM) stackExpr(e bytecode.StackExpr) error {
	s, other := &vm.stack, &vm.rstack
	if e.Return {
		s, other = other, s
	}

	if e.Op == bytecode.StackSet {
		v, ok := s.Pop()
		if !ok {
			if e.Return {
				return ErrReturnStackUnderflow
			}
			return ErrStackUnderflow
		}
		lo, hi, err := selection(e, s.Len())
		if err != nil {
			return err
		}
		for i := lo; i < hi; i++ {
			s.Set(i, v)
		}
		return nil
	}

	lo, hi, err := selection(e, s.Len())
	if err != nil {
		return err
	}

	switch e.Op {
	case bytecode.StackDrop:
		removeRange(s, lo, hi)
	case bytecode.StackMove:
		appendRange(other, s, lo, hi)
		removeRange(s, lo, hi)
	case bytecode.StackCopy:
		appendRange(other, s, lo, hi)
	case bytecode.StackDup:
		appendRange(s, s, lo, hi)
	case bytecode.StackPrint:
		vm.dump(vm.opts.Output, s.Items()[lo:hi])
	default:
		panic("vm: unknown stack operation " + e.Op.String())
	}
	return nil
}

func appendRange(dst, src *buffer.Buffer[bytecode.Value], lo, hi int) {
	for i := lo; i < hi; i++ {
		dst.Append(src.At(i))
	}
}

func removeRange(b *buffer.Buffer[bytecode.Value], lo, hi int) {
	if lo == 0 && hi == b.Len() {
		b.Clear()
		return
	}
	for i := hi - 1; i >= lo; i-- {
		b.RemoveAt(i)
	}
}
