package vm

import (
	"github.com/chazu/fth/pkg/bytecode"
)

// Push pushes v onto the data stack.
func (vm *VM) Push(v bytecode.Value) {
	vm.stack.Append(v)
}

// Pop removes and returns the top of the data stack.
func (vm *VM) Pop() (bytecode.Value, error) {
	v, ok := vm.stack.Pop()
	if !ok {
		return nil, ErrStackUnderflow
	}
	return v, nil
}

// At returns the data stack element at index, counting from the bottom.
func (vm *VM) At(index int) (bytecode.Value, error) {
	if index < 0 || index >= vm.stack.Len() {
		return nil, ErrOutOfRange
	}
	return vm.stack.At(index), nil
}

// Peek returns the data stack element distance places below the top.
func (vm *VM) Peek(distance int) (bytecode.Value, error) {
	return vm.At(vm.stack.Len() - 1 - distance)
}

// Depth returns the number of values on the data stack.
func (vm *VM) Depth() int {
	return vm.stack.Len()
}

// RDepth returns the number of values on the return stack.
func (vm *VM) RDepth() int {
	return vm.rstack.Len()
}

// Stack returns a copy of the data stack, bottom first.
func (vm *VM) Stack() []bytecode.Value {
	return append([]bytecode.Value(nil), vm.stack.Items()...)
}

// ReturnStack returns a copy of the return stack, bottom first.
func (vm *VM) ReturnStack() []bytecode.Value {
	return append([]bytecode.Value(nil), vm.rstack.Items()...)
}
