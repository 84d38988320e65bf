package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/fth/compiler"
	"github.com/chazu/fth/pkg/bytecode"
	"github.com/chazu/fth/store"
	"github.com/chazu/fth/vm"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// ---------------------------------------------------------------------------
// Exit codes
// ---------------------------------------------------------------------------

func TestExitCode(t *testing.T) {
	_, statErr := os.Stat(filepath.Join(t.TempDir(), "missing.fth"))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"compiler error", &compiler.Error{Line: 1, Msg: "bad"}, exitCompile},
		{"vm compile error", &vm.Error{Result: vm.CompileError, Err: errors.New("x")}, exitCompile},
		{"vm runtime error", &vm.Error{Result: vm.RuntimeError, Line: 1, Err: vm.ErrStackUnderflow}, exitRuntime},
		{"file error", &vm.Error{Result: vm.CompileError, Err: fmt.Errorf("failed to open: %w", statErr)}, exitIO},
		{"plain path error", statErr, exitIO},
		{"other", errors.New("boom"), exitInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode = %d, want %d", got, tc.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Running sources
// ---------------------------------------------------------------------------

func TestRunExpression(t *testing.T) {
	code, out, errOut := runCLI(t, "", "-e", "1 2 .S")
	if code != exitOK {
		t.Fatalf("exit = %d, stderr %q", code, errOut)
	}
	if out != "[ 1 ][ 2 ]\n2\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		src  string
		code int
		msg  string
	}{
		{"R>", exitRuntime, "Error: line 1: return stack underflow"},
		{"1\nbogus", exitCompile, "Error: line 2: unexpected token 'bogus'"},
	}

	for _, tc := range tests {
		code, _, errOut := runCLI(t, "", "-e", tc.src)
		if code != tc.code {
			t.Errorf("%q: exit = %d, want %d", tc.src, code, tc.code)
		}
		if !strings.Contains(errOut, tc.msg) {
			t.Errorf("%q: stderr = %q, want %q", tc.src, errOut, tc.msg)
		}
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.fth")
	if err := os.WriteFile(path, []byte("# sum\n3 4 .S\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runCLI(t, "", path)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr %q", code, errOut)
	}
	if out != "[ 3 ][ 4 ]\n4\n" {
		t.Errorf("stdout = %q", out)
	}

	code, _, _ = runCLI(t, "", filepath.Join(t.TempDir(), "missing.fth"))
	if code != exitIO {
		t.Errorf("missing file exit = %d, want %d", code, exitIO)
	}
}

func TestRunDisassemble(t *testing.T) {
	code, out, _ := runCLI(t, "", "-disasm", "-e", "7")
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	want := "== -e ==\n0000    1 OP_CONSTANT         0 '7'\n0002    | OP_RETURN\n7\n"
	if out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
}

func TestRunCached(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	for i := 0; i < 2; i++ {
		code, out, errOut := runCLI(t, "", "-cache", dbPath, "-e", `"a" "b"`)
		if code != exitOK {
			t.Fatalf("run %d: exit = %d, stderr %q", i, code, errOut)
		}
		if out != "\"b\"\n" {
			t.Errorf("run %d: stdout = %q", i, out)
		}
	}

	cache, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	if n, err := cache.Len(); err != nil || n != 1 {
		t.Errorf("cache Len = %d, %v, want 1", n, err)
	}
}

func TestRunCorruptCacheEntry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	cache, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	bad := bytecode.NewChunk("-e")
	bad.WriteOp(bytecode.OpConstant, 1)
	bad.Write(9, 1)
	bad.WriteOp(bytecode.OpReturn, 1)
	if err := cache.Put("1", bad); err != nil {
		t.Fatal(err)
	}
	cache.Close()

	code, out, errOut := runCLI(t, "", "-cache", dbPath, "-e", "1")
	if code != exitOK {
		t.Fatalf("exit = %d, stderr %q", code, errOut)
	}
	if out != "1\n" {
		t.Errorf("stdout = %q, want the recompiled result", out)
	}
}

func TestUsageFlags(t *testing.T) {
	if code, _, _ := runCLI(t, "", "-h"); code != exitOK {
		t.Errorf("-h exit = %d, want %d", code, exitOK)
	}
	if code, _, _ := runCLI(t, "", "-nope"); code != exitUsage {
		t.Errorf("unknown flag exit = %d, want %d", code, exitUsage)
	}
}

// ---------------------------------------------------------------------------
// REPL
// ---------------------------------------------------------------------------

func TestREPL(t *testing.T) {
	input := strings.Join([]string{
		"1 2 .S",
		"",
		"bogus",
		":words",
		":disasm",
		"5",
		":frob",
		":trace",
		"6",
		"exit",
		"99",
	}, "\n")

	code, out, errOut := runCLI(t, input)
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}

	for _, want := range []string{
		"[ 1 ][ 2 ]\n=> 2\n",
		strings.Join(compiler.OperatorWords(), " "),
		"disassembly on",
		"== repl ==",
		"=> 5\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "=> 99") {
		t.Error("input after exit was evaluated")
	}
	if !strings.Contains(errOut, "unexpected token 'bogus'") {
		t.Errorf("stderr = %q, want the compile error", errOut)
	}
	if !strings.Contains(errOut, "OP_CONSTANT") {
		t.Errorf("stderr = %q, want the trace", errOut)
	}
	if !strings.Contains(errOut, "Unknown command: :frob") {
		t.Errorf("stderr = %q, want the unknown command", errOut)
	}
}
