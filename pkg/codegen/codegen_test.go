package codegen

import (
	"errors"
	"strings"
	"testing"

	"hackvm/pkg/vm"
)

// assertContains checks if the generated code contains the expected substring.
func assertContains(t *testing.T, code, expected string) {
	t.Helper()
	if !strings.Contains(code, expected) {
		t.Errorf("Expected code to contain %q, but it didn't.\nCode:\n%s", expected, code)
	}
}

// emitAll decodes and emits each line, failing the test on the first error.
func emitAll(t *testing.T, cw *CodeWriter, lines ...string) {
	t.Helper()
	for _, line := range lines {
		cmd, err := vm.Decode(line)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", line, err)
		}
		if err := cw.Emit(cmd); err != nil {
			t.Fatalf("Emit(%q) failed: %v", line, err)
		}
	}
}

func generate(t *testing.T, unit string, lines ...string) string {
	t.Helper()
	var sb strings.Builder
	cw := NewCodeWriter(&sb)
	cw.SetUnit(unit)
	emitAll(t, cw, lines...)
	return sb.String()
}

func TestWriteAdd(t *testing.T) {
	code := generate(t, "Test", "push argument 2", "push local 10", "add")

	expected := `// push argument 2
@2
D=A
@ARG
A=D+M
D=M
@SP
A=M
M=D
@SP
M=M+1
// push local 10
@10
D=A
@LCL
A=D+M
D=M
@SP
A=M
M=D
@SP
M=M+1
// add
@SP
M=M-1
A=M
D=M
@SP
A=M-1
M=D+M
`
	if code != expected {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", code, expected)
	}
}

func TestConstantAdd(t *testing.T) {
	code := generate(t, "Test", "push constant 7", "push constant 8", "add")

	blocks := strings.Count(code, "// ")
	if blocks != 3 {
		t.Fatalf("expected 3 comment-tagged blocks, got %d:\n%s", blocks, code)
	}
	expected := `// push constant 7
@7
D=A
@SP
A=M
M=D
@SP
M=M+1
// push constant 8
@8
D=A
@SP
A=M
M=D
@SP
M=M+1
// add
@SP
M=M-1
A=M
D=M
@SP
A=M-1
M=D+M
`
	if code != expected {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", code, expected)
	}
}

func TestArithmeticTemplates(t *testing.T) {
	tests := []struct {
		op   string
		last string
	}{
		{"sub", "M=M-D"},
		{"and", "M=D&M"},
		{"or", "M=D|M"},
		{"neg", "M=-M"},
		{"not", "M=!M"},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			code := generate(t, "Test", tc.op)
			lines := strings.Split(strings.TrimSpace(code), "\n")
			if lines[0] != "// "+tc.op {
				t.Errorf("first line = %q; want comment", lines[0])
			}
			if got := lines[len(lines)-1]; got != tc.last {
				t.Errorf("last instruction = %q; want %q", got, tc.last)
			}
			// Unary operators never move the stack pointer.
			if tc.op == "neg" || tc.op == "not" {
				if strings.Contains(code, "M=M-1") {
					t.Errorf("unary %s must not pop:\n%s", tc.op, code)
				}
			}
		})
	}
}

func TestComparisonLabels(t *testing.T) {
	t.Run("same function", func(t *testing.T) {
		code := generate(t, "Main",
			"function Main.main 0",
			"push constant 1", "push constant 2", "eq",
			"push constant 1", "push constant 2", "gt",
		)
		assertContains(t, code, "(Main.main$EQ_TRUE$0)")
		assertContains(t, code, "(Main.main$EQ_FALSE$0)")
		assertContains(t, code, "(Main.main$EQ_END$0)")
		assertContains(t, code, "(Main.main$GT_TRUE$1)")
		assertContains(t, code, "(Main.main$GT_FALSE$1)")
		assertContains(t, code, "(Main.main$GT_END$1)")
		assertContains(t, code, "D;JEQ")
		assertContains(t, code, "D;JGT")
	})

	t.Run("repeated operator", func(t *testing.T) {
		code := generate(t, "Main", "function F 0", "lt", "lt")
		assertContains(t, code, "(F$LT_TRUE$0)")
		assertContains(t, code, "(F$LT_TRUE$1)")
	})

	t.Run("different functions", func(t *testing.T) {
		code := generate(t, "Main", "function A.f 0", "eq", "function B.g 0", "eq")
		assertContains(t, code, "(A.f$EQ_TRUE$0)")
		assertContains(t, code, "(B.g$EQ_TRUE$0)")
	})

	t.Run("top level", func(t *testing.T) {
		code := generate(t, "Main", "lt")
		assertContains(t, code, "(LT_TRUE$0)")
		assertContains(t, code, "@LT_END$0")
		assertContains(t, code, "D;JLT")
	})

	t.Run("ordered comparisons check signs", func(t *testing.T) {
		code := generate(t, "Main", "function F 0", "gt", "lt", "eq")
		assertContains(t, code, "(F$GT_XNEG$0)")
		assertContains(t, code, "(F$GT_SAME$0)")
		assertContains(t, code, "(F$LT_XNEG$1)")
		assertContains(t, code, "(F$LT_SAME$1)")
		// x >= 0 > y decides gt as true and lt as false without subtracting
		assertContains(t, code, "@F$GT_SAME$0\nD;JGE\n@F$GT_TRUE$0\n0;JMP")
		assertContains(t, code, "@F$LT_SAME$1\nD;JGE\n@F$LT_FALSE$1\n0;JMP")
		assertContains(t, code, "@F$LT_SAME$1\nD;JLT\n@F$LT_TRUE$1\n0;JMP")
		// eq is exact under wrap-around and needs no sign checks
		if strings.Contains(code, "EQ_XNEG") || strings.Contains(code, "EQ_SAME") {
			t.Errorf("eq must not emit sign checks:\n%s", code)
		}
	})

	t.Run("labels declared once", func(t *testing.T) {
		code := generate(t, "Main", "function F 0", "eq", "gt", "lt", "eq")
		seen := map[string]bool{}
		for _, line := range strings.Split(code, "\n") {
			if strings.HasPrefix(line, "(") {
				if seen[line] {
					t.Errorf("label %s declared twice", line)
				}
				seen[line] = true
			}
		}
		if len(seen) != 17 { // function entry, 4 triples, 2 sign-check pairs
			t.Errorf("expected 17 labels, got %d", len(seen))
		}
	})
}

func TestPushPopSegments(t *testing.T) {
	tests := []struct {
		line     string
		contains []string
	}{
		{"push this 3", []string{"@3", "@THIS", "A=D+M"}},
		{"push that 1", []string{"@THAT", "A=D+M"}},
		{"pop argument 1", []string{"@ARG", "D=D+M", "@R13", "M=D", "@R13\nA=M\nM=D"}},
		{"pop that 6", []string{"@THAT", "@R13"}},
		{"push temp 6", []string{"@11\nD=M"}},
		{"pop temp 0", []string{"@5\nM=D"}},
		{"push pointer 0", []string{"@THIS\nD=M"}},
		{"push pointer 1", []string{"@THAT\nD=M"}},
		{"pop pointer 0", []string{"D=M\n@THIS\nM=D"}},
		{"pop pointer 1", []string{"D=M\n@THAT\nM=D"}},
		{"push static 3", []string{"@Foo.3\nD=M"}},
		{"pop static 8", []string{"@Foo.8\nM=D"}},
		{"push constant 32767", []string{"@32767\nD=A"}},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			code := generate(t, "Foo", tc.line)
			assertContains(t, code, "// "+tc.line+"\n")
			for _, want := range tc.contains {
				assertContains(t, code, want)
			}
		})
	}
}

func TestPopStagesAddressBeforeMovingSP(t *testing.T) {
	code := generate(t, "Foo", "pop local 2")
	stage := strings.Index(code, "@R13\nM=D")
	pop := strings.Index(code, "@SP\nM=M-1")
	if stage < 0 || pop < 0 || stage > pop {
		t.Errorf("address must be staged in R13 before SP moves:\n%s", code)
	}
}

func TestInvalidGeneration(t *testing.T) {
	tests := []struct {
		name string
		emit func(cw *CodeWriter) error
	}{
		{"pop constant", func(cw *CodeWriter) error { return cw.WritePushPop(false, vm.SegConstant, 17) }},
		{"push pointer 2", func(cw *CodeWriter) error { return cw.WritePushPop(true, vm.SegPointer, 2) }},
		{"pop pointer 5", func(cw *CodeWriter) error { return cw.WritePushPop(false, vm.SegPointer, 5) }},
		{"constant too large", func(cw *CodeWriter) error { return cw.WritePushPop(true, vm.SegConstant, 32768) }},
		{"unknown segment", func(cw *CodeWriter) error { return cw.WritePushPop(true, vm.Segment(42), 0) }},
		{"unknown operator", func(cw *CodeWriter) error { return cw.WriteArithmetic(vm.Op(42)) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var sb strings.Builder
			cw := NewCodeWriter(&sb)
			cw.SetUnit("Foo")
			err := tc.emit(cw)
			if !errors.Is(err, vm.ErrInvalidCommand) {
				t.Fatalf("expected ErrInvalidCommand, got %v", err)
			}
			if sb.Len() != 0 {
				t.Errorf("nothing should be written on error, got:\n%s", sb.String())
			}
		})
	}
}

func TestPushThenPopConstant(t *testing.T) {
	var sb strings.Builder
	cw := NewCodeWriter(&sb)
	cw.SetUnit("Foo")
	if err := cw.WritePushPop(true, vm.SegConstant, 17); err != nil {
		t.Fatalf("push constant 17 failed: %v", err)
	}
	if err := cw.WritePushPop(false, vm.SegConstant, 17); !errors.Is(err, vm.ErrInvalidCommand) {
		t.Errorf("pop constant 17 = %v; want ErrInvalidCommand", err)
	}
}

func TestStaticOutsideUnit(t *testing.T) {
	var sb strings.Builder
	cw := NewCodeWriter(&sb)
	if err := cw.WritePushPop(true, vm.SegStatic, 0); !errors.Is(err, vm.ErrInvalidCommand) {
		t.Errorf("static without unit = %v; want ErrInvalidCommand", err)
	}
}

func TestStaticUsesCurrentUnit(t *testing.T) {
	var sb strings.Builder
	cw := NewCodeWriter(&sb)
	cw.SetUnit("Class1")
	emitAll(t, cw, "push static 0")
	cw.SetUnit("Class2")
	emitAll(t, cw, "push static 0")
	code := sb.String()
	assertContains(t, code, "@Class1.0")
	assertContains(t, code, "@Class2.0")
}

func TestStateSnapshot(t *testing.T) {
	var sb strings.Builder
	cw := NewCodeWriter(&sb)
	cw.SetUnit("Main")
	st := cw.State()
	if st.Function != "" || st.NextCall != 1 || st.Unit != "Main" {
		t.Errorf("unexpected initial state %+v", st)
	}
	emitAll(t, cw, "function Main.main 0", "eq", "call Foo 0")
	st = cw.State()
	if st.Function != "Main.main" || st.NextCall != 2 || st.NextCompare != 1 {
		t.Errorf("unexpected state %+v", st)
	}
	emitAll(t, cw, "function Main.other 0")
	st = cw.State()
	if st.Function != "Main.other" || st.NextCall != 1 || st.NextCompare != 0 {
		t.Errorf("function must reset counters, got %+v", st)
	}
}

func TestBlockIsImmutable(t *testing.T) {
	b, err := arithmeticBlock(State{}, vm.OpAdd)
	if err != nil {
		t.Fatal(err)
	}
	lines := b.Lines()
	lines[0] = "clobbered"
	if b.Lines()[0] == "clobbered" {
		t.Error("Lines must return a copy")
	}
	if b.Comment() != "add" {
		t.Errorf("Comment() = %q; want add", b.Comment())
	}
}

// chunkWriter records each Write call separately.
type chunkWriter struct {
	chunks []string
	failAt int
}

var errSink = errors.New("sink full")

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.failAt > 0 && len(w.chunks)+1 == w.failAt {
		return 0, errSink
	}
	w.chunks = append(w.chunks, string(p))
	return len(p), nil
}

func TestEachBlockIsOneWrite(t *testing.T) {
	w := &chunkWriter{}
	cw := NewCodeWriter(w)
	cw.SetUnit("Main")
	emitAll(t, cw, "function Main.main 2", "push constant 1", "call Foo 1", "eq", "return")
	if len(w.chunks) != 5 {
		t.Fatalf("expected 5 writes, got %d", len(w.chunks))
	}
	for _, c := range w.chunks {
		if !strings.HasPrefix(c, "// ") || !strings.HasSuffix(c, "\n") {
			t.Errorf("write is not a whole block: %q", c)
		}
	}
}

func TestWriteErrorPropagates(t *testing.T) {
	w := &chunkWriter{failAt: 2}
	cw := NewCodeWriter(w)
	if err := cw.WriteLabel("A"); err != nil {
		t.Fatal(err)
	}
	err := cw.WriteGoto("A")
	if !errors.Is(err, errSink) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(w.chunks) != 1 {
		t.Errorf("expected only the first block to be written, got %d", len(w.chunks))
	}
}
