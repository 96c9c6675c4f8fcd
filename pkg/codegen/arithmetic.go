package codegen

import (
	"fmt"
	"strings"

	"hackvm/pkg/vm"
)

// binaryOps holds the final instruction combining x (M) and y (D).
var binaryOps = map[vm.Op]string{
	vm.OpAdd: "M=D+M",
	vm.OpSub: "M=M-D",
	vm.OpAnd: "M=D&M",
	vm.OpOr:  "M=D|M",
}

var unaryOps = map[vm.Op]string{
	vm.OpNeg: "M=-M",
	vm.OpNot: "M=!M",
}

// compareJumps holds the jump taken when x-y satisfies the comparison.
var compareJumps = map[vm.Op]string{
	vm.OpEq: "JEQ",
	vm.OpGt: "JGT",
	vm.OpLt: "JLT",
}

// compareLabels returns the true, false and end labels of comparison number n.
func compareLabels(st State, op vm.Op, n int) (string, string, string) {
	prefix := strings.ToUpper(op.String())
	return st.qualify(fmt.Sprintf("%s_TRUE$%d", prefix, n)),
		st.qualify(fmt.Sprintf("%s_FALSE$%d", prefix, n)),
		st.qualify(fmt.Sprintf("%s_END$%d", prefix, n))
}

// signLabels returns the labels of the sign checks of ordered comparison n:
// x negative, and both operands of the same sign.
func signLabels(st State, op vm.Op, n int) (string, string) {
	prefix := strings.ToUpper(op.String())
	return st.qualify(fmt.Sprintf("%s_XNEG$%d", prefix, n)),
		st.qualify(fmt.Sprintf("%s_SAME$%d", prefix, n))
}

func arithmeticBlock(st State, op vm.Op) (Block, error) {
	var bb blockBuilder
	text := vm.Arithmetic{Op: op}.String()

	if instr, ok := binaryOps[op]; ok {
		bb.popD()
		bb.line("@SP")
		bb.line("A=M-1")
		bb.line("%s", instr)
		return bb.build(text), nil
	}

	if instr, ok := unaryOps[op]; ok {
		bb.line("@SP")
		bb.line("A=M-1")
		bb.line("%s", instr)
		return bb.build(text), nil
	}

	if jump, ok := compareJumps[op]; ok {
		n := st.NextCompare
		isTrue, isFalse, end := compareLabels(st, op, n)
		bb.popD()
		if op != vm.OpEq {
			// x-y overflows when the signs differ; the sign of x decides then.
			xNeg, same := signLabels(st, op, n)
			onXPos, onXNeg := isFalse, isFalse
			if op == vm.OpGt {
				onXPos = isTrue
			} else {
				onXNeg = isTrue
			}
			bb.line("@%s", cmpScratch)
			bb.line("M=D")
			bb.line("@SP")
			bb.line("A=M-1")
			bb.line("D=M")
			bb.line("@%s", xNeg)
			bb.line("D;JLT")
			bb.line("@%s", cmpScratch)
			bb.line("D=M")
			bb.line("@%s", same)
			bb.line("D;JGE")
			bb.line("@%s", onXPos)
			bb.line("0;JMP")
			bb.label(xNeg)
			bb.line("@%s", cmpScratch)
			bb.line("D=M")
			bb.line("@%s", same)
			bb.line("D;JLT")
			bb.line("@%s", onXNeg)
			bb.line("0;JMP")
			bb.label(same)
			bb.line("@%s", cmpScratch)
			bb.line("D=M")
		}
		bb.line("@SP")
		bb.line("A=M-1")
		bb.line("D=M-D")
		bb.line("@%s", isTrue)
		bb.line("D;%s", jump)
		bb.line("@%s", isFalse)
		bb.line("0;JMP")
		bb.label(isTrue)
		bb.line("@SP")
		bb.line("A=M-1")
		bb.line("M=-1")
		bb.line("@%s", end)
		bb.line("0;JMP")
		bb.label(isFalse)
		bb.line("@SP")
		bb.line("A=M-1")
		bb.line("M=0")
		bb.label(end)
		return bb.build(text), nil
	}

	return Block{}, vm.Invalid(text, "unsupported operator")
}

// WriteArithmetic emits an arithmetic, logical or comparison operator.
func (cw *CodeWriter) WriteArithmetic(op vm.Op) error {
	b, err := arithmeticBlock(cw.state, op)
	if err != nil {
		return err
	}
	if op.IsComparison() {
		cw.state.NextCompare++
	}
	return cw.write(b)
}
