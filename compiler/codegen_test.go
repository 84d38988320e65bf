package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/fth/pkg/bytecode"
)

func mustCompile(t *testing.T, src string, opts ...Option) *bytecode.Chunk {
	t.Helper()
	chunk, err := Compile(src, opts...)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", src, err)
	}
	return chunk
}

func compileError(t *testing.T, src string) *Error {
	t.Helper()
	chunk, err := Compile(src)
	if err == nil {
		t.Fatalf("Compile(%q) succeeded, want error", src)
	}
	if chunk != nil {
		t.Errorf("Compile(%q) returned a chunk alongside an error", src)
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("Compile(%q) error = %T, want *Error", src, err)
	}
	return cerr
}

func TestCompileEmpty(t *testing.T) {
	for _, src := range []string{"", "   ", "# only a comment\n"} {
		chunk := mustCompile(t, src)
		if !bytes.Equal(chunk.Code(), []byte{byte(bytecode.OpReturn)}) {
			t.Errorf("Compile(%q) code = %v, want [OP_RETURN]", src, chunk.Code())
		}
		if len(chunk.Constants()) != 0 {
			t.Errorf("Compile(%q) constants = %v, want none", src, chunk.Constants())
		}
	}
}

func TestCompileLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want bytecode.Value
	}{
		{"42", bytecode.Integer(42)},
		{"0", bytecode.Integer(0)},
		{"18446744073709551615", bytecode.Integer(18446744073709551615)},
		{"3.5", bytecode.Number(3.5)},
		{"2.", bytecode.Number(2)},
		{`"hi"`, bytecode.NewStringFromText("hi")},
	}

	for _, tc := range tests {
		chunk := mustCompile(t, tc.src)
		want := []byte{byte(bytecode.OpConstant), 0, byte(bytecode.OpReturn)}
		if !bytes.Equal(chunk.Code(), want) {
			t.Errorf("Compile(%q) code = %v, want %v", tc.src, chunk.Code(), want)
		}
		if len(chunk.Constants()) != 1 || !bytecode.Equal(chunk.Constant(0), tc.want) {
			t.Errorf("Compile(%q) constants = %v, want [%v]", tc.src, chunk.Constants(), tc.want)
		}
	}
}

func TestCompileOperators(t *testing.T) {
	tests := []struct {
		src  string
		want []byte
	}{
		{"$", []byte{byte(bytecode.OpClear)}},
		{".", []byte{byte(bytecode.OpPeriod)}},
		{".s .S", []byte{byte(bytecode.OpDump), byte(bytecode.OpDump)}},
		{".r", []byte{byte(bytecode.OpDumpRStack)}},
		{">R r>", []byte{byte(bytecode.OpPush), byte(bytecode.OpPop)}},
		{"$r1~<", append([]byte{byte(bytecode.OpStackExpr)}, encodeExpr(bytecode.StackExpr{
			Op: bytecode.StackCopy, Return: true, From: 1, To: bytecode.RangeBottom,
		})...)},
	}

	for _, tc := range tests {
		chunk := mustCompile(t, tc.src)
		want := append(tc.want, byte(bytecode.OpReturn))
		if !bytes.Equal(chunk.Code(), want) {
			t.Errorf("Compile(%q) code = %v, want %v", tc.src, chunk.Code(), want)
		}
	}
}

func encodeExpr(e bytecode.StackExpr) []byte {
	b := e.Encode()
	return b[:]
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		msg  string
	}{
		{`1 "abc`, 1, "unterminated string"},
		{"1\n2\nfoo", 3, "unexpected token 'foo'"},
		{"( 1 )", 1, "unexpected token '('"},
		{":", 1, "unexpected token ':'"},
		{"1.2.3", 1, "unexpected second '.' in number literal"},
		{"$2x", 1, "unexpected character 'x' in stack expression '$2x'"},
		{"18446744073709551616", 1, "integer literal out of range"},
		{"123456789012345678901", 1, "integer literal too long"},
		{"1" + strings.Repeat("0", 511) + ".0", 1, "number literal too long"},
	}

	for _, tc := range tests {
		err := compileError(t, tc.src)
		if err.Line != tc.line {
			t.Errorf("Compile(%q) error line = %d, want %d", tc.src, err.Line, tc.line)
		}
		if err.Msg != tc.msg {
			t.Errorf("Compile(%q) error = %q, want %q", tc.src, err.Msg, tc.msg)
		}
	}
}

func TestCompileErrorString(t *testing.T) {
	err := compileError(t, "1\nbogus")
	if got := err.Error(); got != "line 2: unexpected token 'bogus'" {
		t.Errorf("Error() = %q", got)
	}
	if err.Column != 1 {
		t.Errorf("Column = %d, want 1", err.Column)
	}
}

func TestCompileLongConstants(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&src, "%d ", i)
	}
	chunk := mustCompile(t, src.String())

	if n := len(chunk.Constants()); n != 300 {
		t.Fatalf("constants = %d, want 300", n)
	}
	// 256 short loads, 44 long loads, one return.
	if want := 256*2 + 44*4 + 1; chunk.Len() != want {
		t.Errorf("code length = %d, want %d", chunk.Len(), want)
	}

	offset := 0
	for i := 0; i < 300; i++ {
		idx, width := chunk.ConstantIndex(offset)
		if idx != i {
			t.Fatalf("load %d decodes index %d", i, idx)
		}
		wantWidth := 2
		if i > bytecode.MaxShortConstant {
			wantWidth = 4
		}
		if width != wantWidth {
			t.Errorf("load %d width = %d, want %d", i, width, wantWidth)
		}
		if got, _ := bytecode.AsInteger(chunk.Constant(idx)); got != uint64(i) {
			t.Errorf("constant %d = %d", idx, got)
		}
		offset += width
	}
	if bytecode.Opcode(chunk.Code()[offset]) != bytecode.OpReturn {
		t.Errorf("last instruction = %v, want OP_RETURN", bytecode.Opcode(chunk.Code()[offset]))
	}
}

func TestCompileDedup(t *testing.T) {
	src := `1 2 1 "a" "a" 2.5 2.5 "b" 1`
	chunk := mustCompile(t, src, WithDedup(true))
	consts := chunk.Constants()
	want := []bytecode.Value{
		bytecode.Integer(1),
		bytecode.Integer(2),
		bytecode.NewStringFromText("a"),
		bytecode.Number(2.5),
		bytecode.NewStringFromText("b"),
	}
	if len(consts) != len(want) {
		t.Fatalf("constants = %v, want %v", consts, want)
	}
	for i := range want {
		if !bytecode.Equal(consts[i], want[i]) {
			t.Errorf("constant[%d] = %v, want %v", i, consts[i], want[i])
		}
	}

	var loads []int
	for offset := 0; bytecode.Opcode(chunk.Code()[offset]) != bytecode.OpReturn; {
		idx, width := chunk.ConstantIndex(offset)
		loads = append(loads, idx)
		offset += width
	}
	wantLoads := []int{0, 1, 0, 2, 2, 3, 3, 4, 0}
	if fmt.Sprint(loads) != fmt.Sprint(wantLoads) {
		t.Errorf("loads = %v, want %v", loads, wantLoads)
	}
}

func TestCompileDedupDistinguishesKinds(t *testing.T) {
	// The integer 1 and the number 1.0 must not share a slot.
	chunk := mustCompile(t, "1 1.0 1", WithDedup(true))
	if n := len(chunk.Constants()); n != 2 {
		t.Errorf("constants = %v, want 2 entries", chunk.Constants())
	}
}

func TestCompileWithoutDedup(t *testing.T) {
	chunk := mustCompile(t, "7 7 7", WithDedup(false))
	if n := len(chunk.Constants()); n != 3 {
		t.Errorf("constants = %d, want 3", n)
	}
}

func TestCompileKeepsEveryLiteralByDefault(t *testing.T) {
	chunk := mustCompile(t, "1 1")
	want := []byte{
		byte(bytecode.OpConstant), 0,
		byte(bytecode.OpConstant), 1,
		byte(bytecode.OpReturn),
	}
	if !bytes.Equal(chunk.Code(), want) {
		t.Errorf("code = %v, want %v", chunk.Code(), want)
	}
	if n := len(chunk.Constants()); n != 2 {
		t.Errorf("constants = %d, want 2", n)
	}
}

func TestCompileLines(t *testing.T) {
	chunk := mustCompile(t, "1\n\n2 .\n\"multi\nline\" 3\n")

	tests := []struct {
		offset int
		line   int
	}{
		{0, 1}, {1, 1}, // 1
		{2, 3}, {3, 3}, // 2
		{4, 3},         // .
		{5, 4}, {6, 4}, // "multi..."
		{7, 5}, {8, 5}, // 3
		{9, 6}, // return on the EOF line
	}
	for _, tc := range tests {
		if got := chunk.Line(tc.offset); got != tc.line {
			t.Errorf("Line(%d) = %d, want %d", tc.offset, got, tc.line)
		}
	}

	prev := 0
	for _, ls := range chunk.Lines() {
		if ls.Line <= prev {
			t.Errorf("line table not increasing: %v", chunk.Lines())
		}
		prev = ls.Line
	}
}

func TestCompileBorrowedStrings(t *testing.T) {
	chunk := mustCompile(t, `1 "borrowed" "borrowed"`, WithBorrowedStrings(true))
	s, ok := bytecode.AsString(chunk.Constant(1))
	if !ok {
		t.Fatalf("constant 1 = %v, want string", chunk.Constant(1))
	}
	if s.Owned() {
		t.Error("borrowed string reports owned")
	}
	if s.Text() != "borrowed" {
		t.Errorf("Text() = %q", s.Text())
	}
	if len(chunk.Constants()) != 3 {
		t.Errorf("constants = %v, want 3 entries", chunk.Constants())
	}

	chunk.Free()
	if !s.Released() || s.Text() != "borrowed" {
		t.Errorf("after Free: released=%v text=%q", s.Released(), s.Text())
	}
}

func TestCompileOwnedStrings(t *testing.T) {
	chunk := mustCompile(t, `"owned"`)
	s, _ := bytecode.AsString(chunk.Constant(0))
	if !s.Owned() {
		t.Error("string constant not owned")
	}
	chunk.Free()
	if !s.Released() || s.Len() != 0 {
		t.Errorf("after Free: released=%v len=%d", s.Released(), s.Len())
	}
}

func TestCompileName(t *testing.T) {
	chunk := mustCompile(t, "1", WithName("script"))
	if chunk.Name != "script" {
		t.Errorf("Name = %q, want script", chunk.Name)
	}
}

func TestCompileDisassembly(t *testing.T) {
	chunk := mustCompile(t, "1 2.5\n\"s\" $1~>\n.S")
	got := chunk.DisassembleString("test")
	want := strings.Join([]string{
		"== test ==",
		"0000    1 OP_CONSTANT         0 '1'",
		"0002    | OP_CONSTANT         1 '2.5'",
		"0004    2 OP_CONSTANT         2 '\"s\"'",
		"0006    | OP_STACK_EXPR    1~ move",
		"0014    3 OP_DUMP_STACK",
		"0015    | OP_RETURN",
		"",
	}, "\n")
	if got != want {
		t.Errorf("disassembly:\n%s\nwant:\n%s", got, want)
	}
}

func TestConstantKey(t *testing.T) {
	keys := map[uint64]string{}
	for _, v := range []bytecode.Value{
		bytecode.Integer(0),
		bytecode.Integer(1),
		bytecode.Number(0),
		bytecode.Number(1),
		bytecode.NewStringFromText(""),
		bytecode.NewStringFromText("1"),
	} {
		k := constantKey(v)
		if prev, dup := keys[k]; dup {
			t.Errorf("constantKey(%v) collides with %s", v, prev)
		}
		keys[k] = bytecode.Format(v)
	}
	if constantKey(bytecode.NewStringFromText("x")) != constantKey(bytecode.NewStringFromText("x")) {
		t.Error("equal strings hash differently")
	}
}
