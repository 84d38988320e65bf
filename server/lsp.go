package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/fth/compiler"
	"github.com/chazu/fth/pkg/bytecode"
	"github.com/chazu/fth/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "fth-lsp"

// CommandRun executes a document on the server's VM.
const CommandRun = "fth.run"

var log = commonlog.GetLogger("fth.server")

// wordDocs documents the operator words for hover.
var wordDocs = map[compiler.TokenType]string{
	compiler.TokenPeriod:     "Print the top of the data stack without removing it.",
	compiler.TokenDump:       "Print every value on the data stack, bottom first.",
	compiler.TokenDumpRStack: "Print every value on the return stack, bottom first.",
	compiler.TokenPush:       "Move the top of the data stack to the return stack.",
	compiler.TokenPop:        "Move the top of the return stack to the data stack.",
	compiler.TokenColon:      "Reserved for word definitions.",
	compiler.TokenStackClear: "Clear the data stack.",
}

// LspServer bridges LSP editor features to an fth VM via VMWorker.
type LspServer struct {
	worker *VMWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server wrapping the given VM.
func NewLSP(v *vm.VM) *LspServer {
	worker := NewVMWorker(v)
	s := &LspServer{
		worker:  worker,
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,

		WorkspaceExecuteCommand: s.workspaceExecuteCommand,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("fth LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", ">"},
	}

	capabilities.HoverProvider = true
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandRun},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Info("fth LSP initialized")
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	log.Info("fth LSP shutting down")
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(word), nil
}

func (s *LspServer) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if params.Command != CommandRun {
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
	if len(params.Arguments) == 0 {
		return nil, errors.New("fth.run needs a document URI")
	}
	uri, ok := params.Arguments[0].(string)
	if !ok {
		return nil, fmt.Errorf("fth.run: bad argument %v", params.Arguments[0])
	}
	text, ok := s.document(protocol.DocumentUri(uri))
	if !ok {
		return nil, fmt.Errorf("fth.run: %s is not open", uri)
	}

	msg, err := s.run(text)
	if err != nil {
		return nil, err
	}
	go ctx.Notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: msg,
	})
	return msg, nil
}

// run executes text on the worker's VM and returns its output followed by
// the result or the error.
func (s *LspServer) run(text string) (string, error) {
	result, err := s.worker.Do(func(v *vm.VM) any {
		var out bytes.Buffer
		v.SetOutput(&out)
		defer v.SetOutput(io.Discard)

		if err := v.Exec(text); err != nil {
			fmt.Fprintf(&out, "error: %s", err)
		} else {
			fmt.Fprintf(&out, "=> %s", bytecode.Format(v.Result()))
		}
		return out.String()
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// complete lists the operator words starting with prefix.
func complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	upper := strings.ToUpper(prefix)
	for _, w := range compiler.OperatorWords() {
		if !strings.HasPrefix(w, upper) {
			continue
		}
		kind := protocol.CompletionItemKindOperator
		detail := wordDocs[compiler.LookupWord(w)]
		word := w
		items = append(items, protocol.CompletionItem{
			Label:      word,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &word,
		})
	}
	return items
}

// hover describes the word under the cursor.
func hover(word string) *protocol.Hover {
	tok := compiler.NewLexer(word).NextToken()

	var b strings.Builder
	switch tok.Type {
	case compiler.TokenInteger, compiler.TokenNumber:
		chunk, err := compiler.Compile(word)
		if err != nil {
			fmt.Fprintf(&b, "**%s**\n\n%s", word, err)
			break
		}
		v := chunk.Constant(0)
		fmt.Fprintf(&b, "**%s** %s literal", bytecode.Format(v), v.Kind())
		chunk.Free()
	case compiler.TokenStackExpr:
		e, err := compiler.ParseStackExpr(tok.Literal)
		if err != nil {
			fmt.Fprintf(&b, "**%s**\n\n%s", word, err)
			break
		}
		stack := "data"
		if e.Return {
			stack = "return"
		}
		fmt.Fprintf(&b, "**%s** stack expression\n\n`%s` on the %s stack", word, e, stack)
	default:
		doc, ok := wordDocs[tok.Type]
		if !ok {
			return nil
		}
		fmt.Fprintf(&b, "**%s**\n\n%s", word, doc)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text and reports the first error, if any, at its
// source position.
func diagnose(text string) []protocol.Diagnostic {
	chunk, err := compiler.Compile(text)
	if err == nil {
		chunk.Free()
		return []protocol.Diagnostic{}
	}

	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		return []protocol.Diagnostic{errorDiagnostic(protocol.Range{}, err.Error())}
	}

	line := protocol.UInteger(max(cerr.Line-1, 0))
	start := protocol.UInteger(max(cerr.Column-1, 0))
	end := start + protocol.UInteger(wordLen(text, cerr.Line, cerr.Column))
	return []protocol.Diagnostic{errorDiagnostic(protocol.Range{
		Start: protocol.Position{Line: line, Character: start},
		End:   protocol.Position{Line: line, Character: end},
	}, cerr.Msg)}
}

func errorDiagnostic(r protocol.Range, msg string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lspName
	return protocol.Diagnostic{
		Range:    r,
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// wordLen returns the rune length of the word starting at the given
// 1-based line and column.
func wordLen(text string, line, col int) int {
	lines := strings.Split(text, "\n")
	if line < 1 || line > len(lines) {
		return 0
	}
	runes := []rune(lines[line-1])
	n := 0
	for i := col - 1; i >= 0 && i < len(runes) && !compiler.IsDelimiter(runes[i]); i++ {
		n++
	}
	return n
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	// Walk backwards from cursor to find the start of the word
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if compiler.IsDelimiter(r) {
			break
		}
		start -= size
	}

	return line[start:col]
}

// extractWord returns the full word under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	// Find start
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if compiler.IsDelimiter(r) {
			break
		}
		start -= size
	}

	// Find end
	end := col
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if compiler.IsDelimiter(r) {
			break
		}
		end += size
	}

	return line[start:end]
}

// lineAt returns the line at pos and the cursor's byte offset within it.
func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))
	return line, col, true
}

func boolPtr(b bool) *bool {
	return &b
}
