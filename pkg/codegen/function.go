package codegen

import (
	"fmt"

	"hackvm/pkg/vm"
)

// savedRegisters is the order in which a call pushes the caller's base
// pointers. A return restores them in reverse.
var savedRegisters = [...]string{"LCL", "ARG", "THIS", "THAT"}

func functionBlock(name string, nLocals int) Block {
	var bb blockBuilder
	bb.label(name)
	for i := 0; i < nLocals; i++ {
		bb.line("@0")
		bb.line("D=A")
		bb.pushD()
	}
	return bb.build(vm.Function{Name: name, NLocals: nLocals}.String())
}

// returnLabel is the return address of call number n in the current function.
func returnLabel(st State, n int) string {
	return st.qualify(fmt.Sprintf("ret.%d", n))
}

func callBlock(st State, name string, nArgs int) Block {
	var bb blockBuilder
	ret := returnLabel(st, st.NextCall)

	bb.line("@%s", ret)
	bb.line("D=A")
	bb.pushD()
	for _, reg := range savedRegisters {
		bb.line("@%s", reg)
		bb.line("D=M")
		bb.pushD()
	}

	// ARG = SP - nArgs - 5
	bb.line("@SP")
	bb.line("D=M")
	bb.line("@%d", nArgs+frameSize)
	bb.line("D=D-A")
	bb.line("@ARG")
	bb.line("M=D")

	// LCL = SP
	bb.line("@SP")
	bb.line("D=M")
	bb.line("@LCL")
	bb.line("M=D")

	bb.line("@%s", name)
	bb.line("0;JMP")
	bb.label(ret)
	return bb.build(vm.Call{Name: name, NArgs: nArgs}.String())
}

func returnBlock() Block {
	var bb blockBuilder

	// The return address sits at LCL-5. It is saved first: with no
	// arguments the caller's ARG slot is the same cell.
	bb.line("@LCL")
	bb.line("D=M")
	bb.line("@%d", frameSize)
	bb.line("A=D-A")
	bb.line("D=M")
	bb.line("@%s", retScratch)
	bb.line("M=D")

	// *ARG = pop()
	bb.popD()
	bb.line("@ARG")
	bb.line("A=M")
	bb.line("M=D")

	// SP = ARG + 1
	bb.line("@ARG")
	bb.line("D=M+1")
	bb.line("@SP")
	bb.line("M=D")

	// THAT, THIS, ARG, LCL = *(LCL-1) .. *(LCL-4). LCL is addressed until
	// its own restore, which comes last.
	for i := len(savedRegisters) - 1; i >= 0; i-- {
		offset := len(savedRegisters) - i
		if offset == 1 {
			bb.line("@LCL")
			bb.line("A=M-1")
		} else {
			bb.line("@%d", offset)
			bb.line("D=A")
			bb.line("@LCL")
			bb.line("A=M-D")
		}
		bb.line("D=M")
		bb.line("@%s", savedRegisters[i])
		bb.line("M=D")
	}

	bb.line("@%s", retScratch)
	bb.line("A=M")
	bb.line("0;JMP")
	return bb.build(vm.Return{}.String())
}

// WriteFunction declares name and zeroes its nLocals local slots. It becomes
// the scope of subsequent labels and resets the call and comparison counters.
func (cw *CodeWriter) WriteFunction(name string, nLocals int) error {
	cw.state.Function = name
	cw.state.NextCall = firstCall
	cw.state.NextCompare = 0
	return cw.write(functionBlock(name, nLocals))
}

// WriteCall saves the caller's frame, repositions ARG and LCL for the callee,
// jumps to name and declares the return address right after the jump.
func (cw *CodeWriter) WriteCall(name string, nArgs int) error {
	b := callBlock(cw.state, name, nArgs)
	cw.state.NextCall++
	return cw.write(b)
}

// WriteReturn copies the return value to the caller's stack top, restores the
// caller's frame and jumps to the saved return address.
func (cw *CodeWriter) WriteReturn() error {
	return cw.write(returnBlock())
}

// WriteInit emits the bootstrap code: SP = 256 followed by call Sys.init 0.
// It must precede every other block and may run only once.
func (cw *CodeWriter) WriteInit() error {
	if cw.booted || cw.written > 0 {
		return ErrBootstrap
	}
	cw.booted = true

	var bb blockBuilder
	bb.line("@%d", StackBase)
	bb.line("D=A")
	bb.line("@SP")
	bb.line("M=D")
	if err := cw.write(bb.build("bootstrap")); err != nil {
		return err
	}
	return cw.WriteCall(BootstrapFunction, 0)
}
