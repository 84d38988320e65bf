package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/chazu/fth/compiler"
	"github.com/chazu/fth/pkg/bytecode"
)

// Exec compiles src and runs it. A compile error leaves the stacks
// untouched; nothing from a failed compilation is executed.
func (vm *VM) Exec(src string) error {
	return vm.exec(src, vm.id.String())
}

// ExecFile reads and runs the file at path. I/O failures are reported as
// compile errors.
func (vm *VM) ExecFile(path string) error {
	vm.begin()
	f, err := os.Open(path)
	if err != nil {
		return vm.fail(CompileError, 0, fmt.Errorf("failed to open '%s': %w", path, err))
	}
	defer f.Close()

	src, err := io.ReadAll(f)
	if err != nil {
		return vm.fail(CompileError, 0, fmt.Errorf("failed to read '%s': %w", path, err))
	}
	return vm.exec(string(src), path)
}

func (vm *VM) exec(src, name string) error {
	vm.begin()
	opts := append([]compiler.Option{compiler.WithName(name)}, vm.opts.Compiler...)
	chunk, err := compiler.Compile(src, opts...)
	if err != nil {
		line := 0
		if cerr, ok := err.(*compiler.Error); ok {
			line = cerr.Line
		}
		return vm.fail(CompileError, line, err)
	}
	defer chunk.Free()
	return vm.Interpret(chunk)
}

// Interpret runs a compiled chunk. The chunk is only borrowed; the caller
// keeps ownership and may run it again.
func (vm *VM) Interpret(chunk *bytecode.Chunk) error {
	vm.begin()
	vm.chunk = chunk
	vm.pc = 0
	vm.state = Running
	log.Debugf("vm %s: running %q (%d bytes)", vm.id, chunk.Name, chunk.Len())

	err := vm.run()
	vm.chunk = nil
	if err != nil {
		return err
	}

	vm.stack.Clear()
	vm.rstack.Clear()
	vm.state = Halted
	vm.last = Ok
	log.Debugf("vm %s: %q returned %s", vm.id, chunk.Name, bytecode.Format(vm.result))
	return nil
}

func (vm *VM) begin() {
	vm.err = nil
	vm.result = nil
	vm.last = Ok
}

// fail halts the VM with an error. Runtime errors also empty both stacks.
func (vm *VM) fail(result Result, line int, err error) error {
	if result == RuntimeError {
		vm.stack.Clear()
		vm.rstack.Clear()
	}
	vm.state = Halted
	vm.last = result
	vm.err = &Error{Result: result, Line: line, Err: err}
	log.Debugf("vm %s: %s: %s", vm.id, result, vm.err)
	return vm.err
}

func (vm *VM) runtimeError(offset int, err error) error {
	return vm.fail(RuntimeError, vm.chunk.Line(offset), err)
}

// run is the dispatch loop.
func (vm *VM) run() error {
	chunk := vm.chunk
	code := chunk.Code()
	for {
		if vm.pc >= len(code) {
			panic(fmt.Sprintf("vm: ran past the end of chunk %q", chunk.Name))
		}
		if vm.opts.Trace != nil {
			vm.traceInstruction()
		}

		start := vm.pc
		op := bytecode.Opcode(code[vm.pc])
		vm.pc++

		switch op {
		case bytecode.OpReturn:
			v, ok := vm.stack.Pop()
			if !ok {
				return vm.runtimeError(start, ErrStackUnderflow)
			}
			vm.result = detach(v)
			return nil

		case bytecode.OpConstant, bytecode.OpConstantLong:
			idx, width := chunk.ConstantIndex(start)
			vm.stack.Append(chunk.Constant(idx))
			vm.pc = start + width

		case bytecode.OpClear:
			vm.stack.Clear()

		case bytecode.OpPeriod:
			v, ok := vm.stack.Last()
			if !ok {
				return vm.runtimeError(start, ErrStackUnderflow)
			}
			vm.print(v)
			io.WriteString(vm.opts.Output, "\n")

		case bytecode.OpPush:
			v, ok := vm.stack.Pop()
			if !ok {
				return vm.runtimeError(start, ErrStackUnderflow)
			}
			vm.rstack.Append(v)

		case bytecode.OpPop:
			v, ok := vm.rstack.Pop()
			if !ok {
				return vm.runtimeError(start, ErrReturnStackUnderflow)
			}
			vm.stack.Append(v)

		case bytecode.OpDump:
			vm.dump(vm.opts.Output, vm.stack.Items())

		case bytecode.OpDumpRStack:
			vm.dump(vm.opts.Output, vm.rstack.Items())

		case bytecode.OpStackExpr:
			if vm.pc+7 > len(code) {
				panic(fmt.Sprintf("vm: truncated stack expression at offset %d", start))
			}
			e := bytecode.DecodeStackExpr(code[vm.pc : vm.pc+7])
			vm.pc += 7
			if err := vm.stackExpr(e); err != nil {
				return vm.runtimeError(start, err)
			}

		default:
			panic(fmt.Sprintf("vm: unknown opcode %d at offset %d", byte(op), start))
		}
	}
}

// detach copies a string result so it outlives the chunk it came from.
func detach(v bytecode.Value) bytecode.Value {
	if s, ok := bytecode.AsString(v); ok {
		return bytecode.NewString(s.Bytes())
	}
	return v
}

func (vm *VM) print(v bytecode.Value) {
	bytecode.Print(vm.opts.Output, v)
}

// dump writes each value as "[ v ]" followed by a newline.
func (vm *VM) dump(w io.Writer, values []bytecode.Value) {
	for _, v := range values {
		io.WriteString(w, "[ ")
		bytecode.Print(w, v)
		io.WriteString(w, " ]")
	}
	io.WriteString(w, "\n")
}

func (vm *VM) traceInstruction() {
	w := vm.opts.Trace
	io.WriteString(w, "          ")
	for _, v := range vm.stack.Items() {
		io.WriteString(w, "[ ")
		bytecode.Print(w, v)
		io.WriteString(w, " ]")
	}
	io.WriteString(w, "\n")
	vm.chunk.DisassembleInstruction(w, vm.pc)
}
