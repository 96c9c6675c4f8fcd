package vm

import "fmt"

// Kind identifies the category of a decoded VM command.
type Kind int

const (
	KindEmpty Kind = iota // blank or comment-only line

	KindArithmetic
	KindPush
	KindPop
	KindLabel
	KindGoto
	KindIfGoto
	KindFunction
	KindCall
	KindReturn
)

var kindNames = [...]string{
	KindEmpty:      "empty",
	KindArithmetic: "arithmetic",
	KindPush:       "push",
	KindPop:        "pop",
	KindLabel:      "label",
	KindGoto:       "goto",
	KindIfGoto:     "if-goto",
	KindFunction:   "function",
	KindCall:       "call",
	KindReturn:     "return",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Op is an arithmetic or logical stack operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpNeg
	OpEq
	OpGt
	OpLt
	OpAnd
	OpOr
	OpNot
)

var opNames = [...]string{
	OpAdd: "add",
	OpSub: "sub",
	OpNeg: "neg",
	OpEq:  "eq",
	OpGt:  "gt",
	OpLt:  "lt",
	OpAnd: "and",
	OpOr:  "or",
	OpNot: "not",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// StackDelta is the net change in stack depth caused by op.
func (op Op) StackDelta() int {
	switch op {
	case OpNeg, OpNot:
		return 0
	default:
		return -1
	}
}

// IsComparison reports whether op pushes a truth value.
func (op Op) IsComparison() bool {
	return op == OpEq || op == OpGt || op == OpLt
}

// Segment names one of the eight virtual memory segments.
type Segment int

const (
	SegLocal Segment = iota
	SegArgument
	SegThis
	SegThat
	SegTemp
	SegConstant
	SegPointer
	SegStatic
)

var segmentNames = [...]string{
	SegLocal:    "local",
	SegArgument: "argument",
	SegThis:     "this",
	SegThat:     "that",
	SegTemp:     "temp",
	SegConstant: "constant",
	SegPointer:  "pointer",
	SegStatic:   "static",
}

func (s Segment) String() string {
	if int(s) >= 0 && int(s) < len(segmentNames) {
		return segmentNames[s]
	}
	return fmt.Sprintf("Segment(%d)", int(s))
}

// Command is a decoded VM instruction. The set of implementations is closed:
// Arithmetic, Push, Pop, Label, Goto, IfGoto, Function, Call, Return and Empty.
type Command interface {
	Kind() Kind
	String() string
	command()
}

type Arithmetic struct {
	Op Op
}

type Push struct {
	Segment Segment
	Index   int
}

type Pop struct {
	Segment Segment
	Index   int
}

type Label struct {
	Name string
}

type Goto struct {
	Name string
}

type IfGoto struct {
	Name string
}

// Function declares an entry point with NLocals zeroed local slots.
type Function struct {
	Name    string
	NLocals int
}

// Call invokes Name after NArgs arguments were pushed by the caller.
type Call struct {
	Name  string
	NArgs int
}

type Return struct{}

type Empty struct{}

func (Arithmetic) Kind() Kind { return KindArithmetic }
func (Push) Kind() Kind       { return KindPush }
func (Pop) Kind() Kind        { return KindPop }
func (Label) Kind() Kind      { return KindLabel }
func (Goto) Kind() Kind       { return KindGoto }
func (IfGoto) Kind() Kind     { return KindIfGoto }
func (Function) Kind() Kind   { return KindFunction }
func (Call) Kind() Kind       { return KindCall }
func (Return) Kind() Kind     { return KindReturn }
func (Empty) Kind() Kind      { return KindEmpty }

func (c Arithmetic) String() string { return c.Op.String() }
func (c Push) String() string       { return fmt.Sprintf("push %s %d", c.Segment, c.Index) }
func (c Pop) String() string        { return fmt.Sprintf("pop %s %d", c.Segment, c.Index) }
func (c Label) String() string      { return "label " + c.Name }
func (c Goto) String() string       { return "goto " + c.Name }
func (c IfGoto) String() string     { return "if-goto " + c.Name }
func (c Function) String() string   { return fmt.Sprintf("function %s %d", c.Name, c.NLocals) }
func (c Call) String() string       { return fmt.Sprintf("call %s %d", c.Name, c.NArgs) }
func (Return) String() string       { return "return" }
func (Empty) String() string        { return "" }

func (Arithmetic) command() {}
func (Push) command()       {}
func (Pop) command()        {}
func (Label) command()      {}
func (Goto) command()       {}
func (IfGoto) command()     {}
func (Function) command()   {}
func (Call) command()       {}
func (Return) command()     {}
func (Empty) command()      {}
