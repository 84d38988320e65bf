// Package vm implements the fth virtual machine.
//
// This package contains:
//   - The data and return stacks and the embedding API over them
//   - The dispatch loop for compiled chunks
//   - Stack-expression evaluation
//   - Execution tracing
//
// A VM is not safe for concurrent use. Drive each instance from a single
// goroutine; the server package does this with a worker.
package vm
