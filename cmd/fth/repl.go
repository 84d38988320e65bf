package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/fth/compiler"
	"github.com/chazu/fth/pkg/bytecode"
)

const replHelp = `REPL commands:
  :help, :h, :?     Show this help
  :stack, :s        Show both stacks
  :clear            Clear both stacks
  :trace            Toggle instruction tracing
  :disasm           Toggle disassembly of each line
  :words            List the built-in words
  exit, quit        Leave the REPL
`

func (r *runner) repl(in io.Reader) {
	fmt.Fprintln(r.out, "fth REPL (type 'exit' or Ctrl-D to quit, ':help' for commands)")
	fmt.Fprintln(r.out)

	scanner := bufio.NewScanner(in)
	tracing := false
	for {
		fmt.Fprint(r.out, ">> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if strings.HasPrefix(line, ":") {
			r.handleCommand(line, &tracing)
			continue
		}

		if err := r.runLine(line); err != nil {
			fmt.Fprintf(r.errOut, "Error: %v\n", err)
		}
	}
	fmt.Fprintln(r.out)
}

// runLine compiles and runs one line.
func (r *runner) runLine(line string) error {
	chunk, err := compiler.Compile(line, r.compileOpts("repl")...)
	if err != nil {
		return err
	}
	defer chunk.Free()
	if r.disasm {
		chunk.Disassemble(r.out, "repl")
	}

	if err := r.vm.Interpret(chunk); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "=> %s\n", bytecode.Format(r.vm.Result()))
	return nil
}

func (r *runner) handleCommand(line string, tracing *bool) {
	cmd := strings.Fields(line)[0]
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprint(r.out, replHelp)
	case ":stack", ":s":
		fmt.Fprint(r.out, "data:   ")
		printValues(r.out, r.vm.Stack())
		fmt.Fprint(r.out, "return: ")
		printValues(r.out, r.vm.ReturnStack())
	case ":clear":
		r.vm.Reset()
	case ":trace":
		*tracing = !*tracing
		if *tracing {
			r.vm.SetTrace(r.errOut)
		} else {
			r.vm.SetTrace(nil)
		}
		fmt.Fprintf(r.out, "trace %s\n", onOff(*tracing))
	case ":disasm":
		r.disasm = !r.disasm
		fmt.Fprintf(r.out, "disassembly %s\n", onOff(r.disasm))
	case ":words":
		fmt.Fprintln(r.out, strings.Join(compiler.OperatorWords(), " "))
	default:
		fmt.Fprintf(r.errOut, "Unknown command: %s (try :help)\n", cmd)
	}
}

func printValues(w io.Writer, values []bytecode.Value) {
	for _, v := range values {
		fmt.Fprintf(w, "[ %s ]", bytecode.Format(v))
	}
	fmt.Fprintln(w)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
