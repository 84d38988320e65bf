package compiler

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/chazu/fth/pkg/bytecode"
	"github.com/chazu/fth/pkg/critbit"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("fth.compiler")

// Literal length ceilings.
const (
	MaxIntegerLiteral = 20
	MaxNumberLiteral  = 512
)

// Error is a compile error. Compilation stops at the first one.
type Error struct {
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Options control compilation.
type Options struct {
	// Name labels the chunk in listings and traces.
	Name string
	// DedupConstants makes identical literals share one constant slot.
	// Off by default: every literal normally gets its own pool entry, in
	// source order.
	DedupConstants bool
	// BorrowStrings makes string constants view the source text instead
	// of copying it.
	BorrowStrings bool
}

// DefaultOptions returns the options Compile starts from.
func DefaultOptions() Options {
	return Options{}
}

// Option modifies Options.
type Option func(*Options)

// WithName sets the chunk name.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithDedup enables or disables constant deduplication.
func WithDedup(on bool) Option {
	return func(o *Options) { o.DedupConstants = on }
}

// WithBorrowedStrings enables or disables borrowed string constants.
func WithBorrowedStrings(on bool) Option {
	return func(o *Options) { o.BorrowStrings = on }
}

// Compiler translates a token stream into a chunk in a single pass.
type Compiler struct {
	lexer    *Lexer
	source   []byte
	chunk    *bytecode.Chunk
	previous Token
	current  Token
	opts     Options

	// literal key hash -> constant index
	constants *critbit.Map
}

// NewCompiler creates a compiler for src.
func NewCompiler(src string, opts ...Option) *Compiler {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Compiler{
		lexer: NewLexer(src),
		chunk: bytecode.NewChunk(o.Name),
		opts:  o,
	}
	if o.BorrowStrings {
		c.source = []byte(src)
	}
	if o.DedupConstants {
		c.constants = critbit.New(16)
	}
	return c
}

// Compile compiles src into a chunk ending in OpReturn. On error no chunk
// is returned.
func Compile(src string, opts ...Option) (*bytecode.Chunk, error) {
	return NewCompiler(src, opts...).Compile()
}

// Compile runs the compiler. It may only be called once.
func (c *Compiler) Compile() (*bytecode.Chunk, error) {
	if err := c.compile(); err != nil {
		log.Debugf("compile %q failed: %s", c.opts.Name, err)
		c.chunk.Free()
		return nil, err
	}
	log.Debugf("compiled %q: %d bytes, %d constants", c.opts.Name, c.chunk.Len(), len(c.chunk.Constants()))
	return c.chunk, nil
}

func (c *Compiler) advance() {
	c.previous = c.current
	c.current = c.lexer.NextToken()
}

func (c *Compiler) compile() error {
	c.advance()
	for {
		switch c.current.Type {
		case TokenError:
			return c.errorAt(c.current, c.current.Literal)
		case TokenEOF:
			c.chunk.WriteOp(bytecode.OpReturn, c.current.Pos.Line)
			return nil
		}
		c.advance()
		if err := c.word(c.previous); err != nil {
			return err
		}
	}
}

// word emits the code for one token.
func (c *Compiler) word(tok Token) error {
	line := tok.Pos.Line
	switch tok.Type {
	case TokenInteger:
		return c.integer(tok)
	case TokenNumber:
		return c.number(tok)
	case TokenString:
		return c.stringLit(tok)
	case TokenStackClear:
		c.chunk.WriteOp(bytecode.OpClear, line)
	case TokenStackExpr:
		e, err := ParseStackExpr(tok.Literal)
		if err != nil {
			return c.errorAt(tok, err.Error())
		}
		c.chunk.WriteStackExpr(e, line)
	case TokenPeriod:
		c.chunk.WriteOp(bytecode.OpPeriod, line)
	case TokenDump:
		c.chunk.WriteOp(bytecode.OpDump, line)
	case TokenDumpRStack:
		c.chunk.WriteOp(bytecode.OpDumpRStack, line)
	case TokenPush:
		c.chunk.WriteOp(bytecode.OpPush, line)
	case TokenPop:
		c.chunk.WriteOp(bytecode.OpPop, line)
	default:
		return c.errorAt(tok, fmt.Sprintf("unexpected token '%s'", tok.Literal))
	}
	return nil
}

func (c *Compiler) integer(tok Token) error {
	if len(tok.Literal) > MaxIntegerLiteral {
		return c.errorAt(tok, "integer literal too long")
	}
	n, err := strconv.ParseUint(tok.Literal, 10, 64)
	if err != nil {
		return c.errorAt(tok, "integer literal out of range")
	}
	return c.constant(tok, bytecode.Integer(n))
}

func (c *Compiler) number(tok Token) error {
	if len(tok.Literal) > MaxNumberLiteral {
		return c.errorAt(tok, "number literal too long")
	}
	f, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		return c.errorAt(tok, "number literal out of range")
	}
	return c.constant(tok, bytecode.Number(f))
}

func (c *Compiler) stringLit(tok Token) error {
	var s *bytecode.String
	if c.opts.BorrowStrings {
		// The literal starts one byte after the opening quote.
		s = bytecode.BorrowString(c.source, tok.Pos.Offset+1, len(tok.Literal))
	} else {
		s = bytecode.NewStringFromText(tok.Literal)
	}
	return c.constant(tok, s)
}

// constant emits a load of v, reusing an equal earlier constant when
// deduplication is on.
func (c *Compiler) constant(tok Token, v bytecode.Value) error {
	line := tok.Pos.Line
	if c.constants == nil {
		_, err := c.chunk.WriteConstant(v, line)
		return c.wrap(tok, err)
	}

	key := constantKey(v)
	if idx, ok := c.constants.Get(key); ok && bytecode.Equal(c.chunk.Constant(int(idx)), v) {
		if o, isObj := v.(bytecode.Object); isObj {
			o.Release()
		}
		return c.wrap(tok, c.chunk.WriteLoad(int(idx), line))
	}

	idx, err := c.chunk.WriteConstant(v, line)
	if err != nil {
		return c.wrap(tok, err)
	}
	if !c.constants.Has(key) {
		if err := c.constants.Set(key, uint64(idx)); err != nil {
			log.Debugf("constant table full: %s", err)
		}
	}
	return nil
}

func (c *Compiler) wrap(tok Token, err error) error {
	if err == nil {
		return nil
	}
	return c.errorAt(tok, err.Error())
}

func (c *Compiler) errorAt(tok Token, msg string) error {
	return &Error{Line: tok.Pos.Line, Column: tok.Pos.Column, Msg: msg}
}

// constantKey hashes a literal's kind and payload.
func constantKey(v bytecode.Value) uint64 {
	var buf [9]byte
	buf[0] = byte(v.Kind())
	switch v := v.(type) {
	case bytecode.Integer:
		binary.LittleEndian.PutUint64(buf[1:], uint64(v))
	case bytecode.Number:
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(float64(v)))
	case *bytecode.String:
		return critbit.HashBytes(append(buf[:1], v.Bytes()...))
	}
	return critbit.HashBytes(buf[:])
}
