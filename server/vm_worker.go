package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/fth/vm"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("vm worker stopped")

// vmRequest represents a unit of work to be executed on the VM goroutine.
type vmRequest struct {
	fn   func(*vm.VM) any
	done chan vmResult
}

// vmResult holds the return value from a VM operation.
type vmResult struct {
	value any
	err   error
}

// VMWorker serializes all VM access through a single goroutine.
// A VM is single-threaded; every handler must go through the worker.
type VMWorker struct {
	vm       *vm.VM
	requests chan vmRequest
	quit     chan struct{}
	stop     sync.Once
}

// NewVMWorker creates a VMWorker and starts the processing goroutine.
func NewVMWorker(v *vm.VM) *VMWorker {
	w := &VMWorker{
		vm:       v,
		requests: make(chan vmRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes VM requests sequentially on a dedicated goroutine.
func (w *VMWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the VM, recovering from panics. A panic
// leaves the VM in an unknown state, so it is reset.
func (w *VMWorker) execute(fn func(*vm.VM) any) vmResult {
	var result vmResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
				w.vm.Reset()
			}
		}()
		result.value = fn(w.vm)
	}()
	return result
}

// Do submits a function for execution on the VM goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *VMWorker) Do(fn func(*vm.VM) any) (any, error) {
	req := vmRequest{
		fn:   fn,
		done: make(chan vmResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *VMWorker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
