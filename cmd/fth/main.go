// fth CLI - the main entry point for running fth programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/chazu/fth/compiler"
	"github.com/chazu/fth/manifest"
	"github.com/chazu/fth/pkg/bytecode"
	"github.com/chazu/fth/server"
	"github.com/chazu/fth/store"
	"github.com/chazu/fth/vm"

	_ "github.com/tliron/commonlog/simple"
)

// Exit codes.
const (
	exitOK       = 0
	exitUsage    = 64
	exitCompile  = 65
	exitRuntime  = 70
	exitInternal = 71
	exitIO       = 74
)

var log = commonlog.GetLogger("fth")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("fth", flag.ContinueOnError)
	flags.SetOutput(stderr)
	verbose := flags.Bool("v", false, "Verbose output")
	expr := flags.String("e", "", "Execute the given source text")
	trace := flags.Bool("trace", false, "Trace every instruction to stderr")
	disasm := flags.Bool("disasm", false, "Print the disassembly before running")
	cachePath := flags.String("cache", "", "Compiled chunk cache database")
	lspMode := flags.Bool("lsp", false, "Start the language server on stdio")
	interactive := flags.Bool("i", false, "Start interactive REPL after running files")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: fth [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Runs fth source files, or starts a REPL when none are given.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  fth                    # Start REPL\n")
		fmt.Fprintf(stderr, "  fth prog.fth           # Run a file\n")
		fmt.Fprintf(stderr, "  fth -e '1 2 .S'        # Run source text\n")
		fmt.Fprintf(stderr, "  fth -disasm prog.fth   # Show bytecode, then run\n")
		fmt.Fprintf(stderr, "  fth -lsp               # Start the language server\n")
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIO
	}

	verbosity := cfg.Log.Verbosity
	if *verbose {
		verbosity++
	}
	var logPath *string
	if p := cfg.LogPath(); p != "" {
		logPath = &p
	}
	commonlog.Configure(verbosity, logPath)

	if *lspMode {
		lsp := server.NewLSP(vm.New(vm.WithOutput(io.Discard)))
		if err := lsp.Run(); err != nil {
			fmt.Fprintf(stderr, "Language server error: %v\n", err)
			return exitIO
		}
		return exitOK
	}

	compileOpts := []compiler.Option{
		compiler.WithDedup(cfg.Dedup()),
		compiler.WithBorrowedStrings(cfg.Compiler.BorrowStrings),
	}
	opts := []vm.Option{
		vm.WithOutput(stdout),
		vm.WithStackCapacity(cfg.VM.StackCapacity),
		vm.WithCompilerOptions(compileOpts...),
	}
	if *trace || cfg.VM.Trace {
		opts = append(opts, vm.WithTrace(stderr))
	}
	r := &runner{
		vm:      vm.New(opts...),
		compile: compileOpts,
		out:     stdout,
		errOut:  stderr,
		disasm:  *disasm || cfg.Compiler.Disassemble,
	}
	defer r.vm.Close()

	if *cachePath == "" {
		*cachePath = cfg.CachePath()
	}
	if *cachePath != "" {
		cache, err := store.Open(*cachePath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitIO
		}
		defer cache.Close()
		r.cache = cache
	}

	paths := flags.Args()
	if len(paths) == 0 && *expr == "" && !*interactive {
		if entry := cfg.EntryPath(); entry != "" {
			paths = []string{entry}
		}
	}

	for _, path := range paths {
		if code := r.report(r.runFile(path)); code != exitOK {
			return code
		}
	}
	if *expr != "" {
		if code := r.report(r.runSource("-e", *expr)); code != exitOK {
			return code
		}
	}

	if *interactive || (len(paths) == 0 && *expr == "") {
		r.repl(stdin)
	}
	return exitOK
}

func loadConfig() (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	log.Debugf("loaded %s from %s", manifest.FileName, m.Dir)
	return m, nil
}

// runner executes sources against one VM.
type runner struct {
	vm      *vm.VM
	cache   *store.Cache
	compile []compiler.Option
	out     io.Writer
	errOut  io.Writer
	disasm  bool
}

func (r *runner) compileOpts(name string) []compiler.Option {
	return append(slices.Clone(r.compile), compiler.WithName(name))
}

// runFile runs a file, going through the compiler directly when the
// cache or disassembly needs the chunk.
func (r *runner) runFile(path string) error {
	if r.cache == nil && !r.disasm {
		return r.vm.ExecFile(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return r.runSource(path, string(src))
}

func (r *runner) runSource(name, src string) error {
	if r.cache == nil && !r.disasm {
		return r.vm.Exec(src)
	}

	chunk, err := r.load(name, src)
	if err != nil {
		return err
	}
	defer chunk.Free()

	if r.disasm {
		chunk.Disassemble(r.out, name)
	}
	return r.vm.Interpret(chunk)
}

// load returns the compiled chunk for src, from the cache when possible.
func (r *runner) load(name, src string) (*bytecode.Chunk, error) {
	if r.cache != nil {
		chunk, ok, err := r.cache.Get(src)
		if err != nil {
			log.Warningf("cache: %s", err)
		} else if ok {
			return chunk, nil
		}
	}

	chunk, err := compiler.Compile(src, r.compileOpts(name)...)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Put(src, chunk); err != nil {
			log.Warningf("cache: %s", err)
		}
	}
	return chunk, nil
}

// report prints the result of a successful run or the error, and returns
// the matching exit code.
func (r *runner) report(err error) int {
	if err == nil {
		fmt.Fprintln(r.out, bytecode.Format(r.vm.Result()))
		return exitOK
	}
	fmt.Fprintf(r.errOut, "Error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return exitIO
	}
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		return exitCompile
	}
	var verr *vm.Error
	if errors.As(err, &verr) {
		switch verr.Result {
		case vm.CompileError:
			return exitCompile
		case vm.RuntimeError:
			return exitRuntime
		}
	}
	return exitInternal
}
