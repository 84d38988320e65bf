package vm

import (
	"io"
	"os"

	"github.com/chazu/fth/compiler"
	"github.com/chazu/fth/pkg/buffer"
	"github.com/chazu/fth/pkg/bytecode"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("fth.vm")

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options configure a VM.
type Options struct {
	// Output receives everything the program prints. Defaults to stdout.
	Output io.Writer
	// Trace, when set, receives the stack and the disassembled instruction
	// before every dispatch.
	Trace io.Writer
	// StackCapacity preallocates both stacks.
	StackCapacity int
	// Compiler options used by Exec and ExecFile.
	Compiler []compiler.Option
}

// Option modifies Options.
type Option func(*Options)

// WithOutput sets the program output writer.
func WithOutput(w io.Writer) Option {
	return func(o *Options) { o.Output = w }
}

// WithTrace enables execution tracing to w. A nil writer disables it.
func WithTrace(w io.Writer) Option {
	return func(o *Options) { o.Trace = w }
}

// WithStackCapacity preallocates room for n values on each stack.
func WithStackCapacity(n int) Option {
	return func(o *Options) { o.StackCapacity = n }
}

// WithCompilerOptions appends options passed to the compiler.
func WithCompilerOptions(opts ...compiler.Option) Option {
	return func(o *Options) { o.Compiler = append(o.Compiler, opts...) }
}

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

// State is the VM's position in its run cycle.
type State int

const (
	Ready State = iota
	Running
	Halted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

// VM executes compiled chunks against a data stack and a return stack.
type VM struct {
	id   uuid.UUID
	opts Options

	// chunk is borrowed for the duration of one run.
	chunk *bytecode.Chunk
	pc    int

	stack  buffer.Buffer[bytecode.Value]
	rstack buffer.Buffer[bytecode.Value]

	state  State
	last   Result
	err    *Error
	result bytecode.Value
}

// New creates a VM in the Ready state with empty stacks.
func New(opts ...Option) *VM {
	o := Options{Output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Output == nil {
		o.Output = io.Discard
	}
	vm := &VM{
		id:   uuid.New(),
		opts: o,
	}
	vm.allocStacks()
	log.Debugf("vm %s created", vm.id)
	return vm
}

func (vm *VM) allocStacks() {
	if n := vm.opts.StackCapacity; n > 0 {
		vm.stack = *buffer.New[bytecode.Value](n)
		vm.rstack = *buffer.New[bytecode.Value](n)
	}
}

// ID returns the VM's instance ID.
func (vm *VM) ID() uuid.UUID {
	return vm.id
}

// State returns the run state and, once Halted, the result of the last run.
func (vm *VM) State() (State, Result) {
	return vm.state, vm.last
}

// Result returns the value returned by the last successful run, or nil.
func (vm *VM) Result() bytecode.Value {
	return vm.result
}

// Err returns the error of the last run, or nil if it succeeded.
func (vm *VM) Err() error {
	if vm.err == nil {
		return nil
	}
	return vm.err
}

// SetOutput redirects program output.
func (vm *VM) SetOutput(w io.Writer) {
	vm.opts.Output = w
}

// SetTrace enables or disables tracing.
func (vm *VM) SetTrace(w io.Writer) {
	vm.opts.Trace = w
}

// Reset empties both stacks and returns the VM to Ready.
func (vm *VM) Reset() {
	vm.stack.Clear()
	vm.rstack.Clear()
	vm.chunk = nil
	vm.pc = 0
	vm.state = Ready
	vm.last = Ok
	vm.err = nil
	vm.result = nil
}

// Close releases the VM's storage. The VM must not be used afterwards.
func (vm *VM) Close() error {
	vm.Reset()
	vm.stack.Free()
	vm.rstack.Free()
	log.Debugf("vm %s closed", vm.id)
	return nil
}
