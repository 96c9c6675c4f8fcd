// Package codegen lowers decoded VM commands to Hack assembly.
//
// Each command becomes one Block: a "// <command>" comment line followed by a
// fixed instruction template. A CodeWriter carries the state that scopes
// labels across commands (current unit, current function, per-function call
// and comparison counters) and appends every block to its sink in one write.
package codegen

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"hackvm/pkg/vm"
)

const (
	// StackBase is the initial stack pointer set by the bootstrap code.
	StackBase = 256
	// TempBase is the RAM address of temp 0.
	TempBase = 5
	// MaxConstant is the largest value an A-instruction can load.
	MaxConstant = 32767
	// BootstrapFunction is called by the bootstrap code.
	BootstrapFunction = "Sys.init"

	// frameSize is the number of words a call saves: return address, LCL,
	// ARG, THIS, THAT.
	frameSize = 5
	// firstCall is the call counter value after every function declaration.
	firstCall = 1

	addrScratch = "R13"
	retScratch  = "R14"
	cmpScratch  = "R15"
)

// segmentBase maps pointer-based segments to their base-pointer symbols.
var segmentBase = map[vm.Segment]string{
	vm.SegLocal:    "LCL",
	vm.SegArgument: "ARG",
	vm.SegThis:     "THIS",
	vm.SegThat:     "THAT",
}

// pointerBase maps pointer 0/1 to the base-pointer symbol it aliases.
var pointerBase = [2]string{"THIS", "THAT"}

// ErrBootstrap is returned when WriteInit is called twice or after other code.
var ErrBootstrap = errors.New("bootstrap must be emitted once, before any other code")

// State is the cross-command translation state.
type State struct {
	Unit        string // qualifies static symbols as Unit.index
	Function    string // qualifies labels as Function$label; empty before any function
	NextCall    int    // index of the next return-address label in Function
	NextCompare int    // index of the next comparison label triple in Function
}

// qualify scopes a label to the current function, or leaves it bare when no
// function has been declared yet.
func (s State) qualify(label string) string {
	if s.Function == "" {
		return label
	}
	return s.Function + "$" + label
}

// Block is the immutable assembly for one command.
type Block struct {
	comment string
	lines   []string
}

// Comment returns the source text the block was generated from.
func (b Block) Comment() string { return b.comment }

// Lines returns a copy of the block's instructions.
func (b Block) Lines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// String renders the block as newline-terminated assembly text.
func (b Block) String() string {
	var sb strings.Builder
	sb.WriteString("// ")
	sb.WriteString(b.comment)
	sb.WriteByte('\n')
	for _, l := range b.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// blockBuilder accumulates the instructions of one template.
type blockBuilder struct {
	lines []string
}

func (bb *blockBuilder) line(format string, args ...any) {
	bb.lines = append(bb.lines, fmt.Sprintf(format, args...))
}

func (bb *blockBuilder) label(name string) {
	bb.line("(%s)", name)
}

// pushD pushes the D register onto the stack.
func (bb *blockBuilder) pushD() {
	bb.line("@SP")
	bb.line("A=M")
	bb.line("M=D")
	bb.line("@SP")
	bb.line("M=M+1")
}

// popD pops the stack top into D.
func (bb *blockBuilder) popD() {
	bb.line("@SP")
	bb.line("M=M-1")
	bb.line("A=M")
	bb.line("D=M")
}

func (bb *blockBuilder) build(comment string) Block {
	return Block{comment: comment, lines: bb.lines}
}

// CodeWriter emits Hack assembly for a stream of VM commands. It is not safe
// for concurrent use; one CodeWriter serves one translation run.
type CodeWriter struct {
	out     io.Writer
	state   State
	written int // blocks emitted so far
	booted  bool
}

// NewCodeWriter returns a CodeWriter appending to out.
func NewCodeWriter(out io.Writer) *CodeWriter {
	return &CodeWriter{
		out:   out,
		state: State{NextCall: firstCall},
	}
}

// State returns a snapshot of the translation state.
func (cw *CodeWriter) State() State {
	return cw.state
}

// SetUnit marks the start of a new translation unit.
func (cw *CodeWriter) SetUnit(name string) {
	cw.state.Unit = name
}

// Emit lowers cmd. Empty commands produce no output.
func (cw *CodeWriter) Emit(cmd vm.Command) error {
	switch c := cmd.(type) {
	case vm.Empty:
		return nil
	case vm.Arithmetic:
		return cw.WriteArithmetic(c.Op)
	case vm.Push:
		return cw.WritePushPop(true, c.Segment, c.Index)
	case vm.Pop:
		return cw.WritePushPop(false, c.Segment, c.Index)
	case vm.Label:
		return cw.WriteLabel(c.Name)
	case vm.Goto:
		return cw.WriteGoto(c.Name)
	case vm.IfGoto:
		return cw.WriteIf(c.Name)
	case vm.Function:
		return cw.WriteFunction(c.Name, c.NLocals)
	case vm.Call:
		return cw.WriteCall(c.Name, c.NArgs)
	case vm.Return:
		return cw.WriteReturn()
	case nil:
		return errors.New("codegen: nil command")
	default:
		return vm.Invalid(cmd.String(), "unhandled command kind %s", cmd.Kind())
	}
}

// write appends b to the sink in a single Write call.
func (cw *CodeWriter) write(b Block) error {
	if _, err := io.WriteString(cw.out, b.String()); err != nil {
		return fmt.Errorf("write %q: %w", b.comment, err)
	}
	cw.written++
	return nil
}
