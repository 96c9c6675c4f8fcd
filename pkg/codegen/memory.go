package codegen

import (
	"fmt"

	"hackvm/pkg/vm"
)

func pushBlock(st State, seg vm.Segment, index int) (Block, error) {
	var bb blockBuilder
	text := vm.Push{Segment: seg, Index: index}.String()

	switch seg {
	case vm.SegLocal, vm.SegArgument, vm.SegThis, vm.SegThat:
		bb.line("@%d", index)
		bb.line("D=A")
		bb.line("@%s", segmentBase[seg])
		bb.line("A=D+M")
		bb.line("D=M")
	case vm.SegTemp:
		bb.line("@%d", TempBase+index)
		bb.line("D=M")
	case vm.SegConstant:
		if index > MaxConstant {
			return Block{}, vm.Invalid(text, "constant %d exceeds %d", index, MaxConstant)
		}
		bb.line("@%d", index)
		bb.line("D=A")
	case vm.SegPointer:
		sym, err := pointerSymbol(text, index)
		if err != nil {
			return Block{}, err
		}
		bb.line("@%s", sym)
		bb.line("D=M")
	case vm.SegStatic:
		sym, err := staticSymbol(st, text, index)
		if err != nil {
			return Block{}, err
		}
		bb.line("@%s", sym)
		bb.line("D=M")
	default:
		return Block{}, vm.Invalid(text, "unknown segment")
	}

	bb.pushD()
	return bb.build(text), nil
}

func popBlock(st State, seg vm.Segment, index int) (Block, error) {
	var bb blockBuilder
	text := vm.Pop{Segment: seg, Index: index}.String()

	switch seg {
	case vm.SegLocal, vm.SegArgument, vm.SegThis, vm.SegThat:
		// The address is staged in a scratch cell since popping clobbers D and A.
		bb.line("@%d", index)
		bb.line("D=A")
		bb.line("@%s", segmentBase[seg])
		bb.line("D=D+M")
		bb.line("@%s", addrScratch)
		bb.line("M=D")
		bb.popD()
		bb.line("@%s", addrScratch)
		bb.line("A=M")
		bb.line("M=D")
	case vm.SegTemp:
		bb.popD()
		bb.line("@%d", TempBase+index)
		bb.line("M=D")
	case vm.SegConstant:
		return Block{}, vm.Invalid(text, "cannot pop into the constant segment")
	case vm.SegPointer:
		sym, err := pointerSymbol(text, index)
		if err != nil {
			return Block{}, err
		}
		bb.popD()
		bb.line("@%s", sym)
		bb.line("M=D")
	case vm.SegStatic:
		sym, err := staticSymbol(st, text, index)
		if err != nil {
			return Block{}, err
		}
		bb.popD()
		bb.line("@%s", sym)
		bb.line("M=D")
	default:
		return Block{}, vm.Invalid(text, "unknown segment")
	}

	return bb.build(text), nil
}

func pointerSymbol(text string, index int) (string, error) {
	if index != 0 && index != 1 {
		return "", vm.Invalid(text, "pointer index must be 0 or 1, got %d", index)
	}
	return pointerBase[index], nil
}

func staticSymbol(st State, text string, index int) (string, error) {
	if st.Unit == "" {
		return "", vm.Invalid(text, "static segment used outside a translation unit")
	}
	return fmt.Sprintf("%s.%d", st.Unit, index), nil
}

// WritePushPop emits a push (isPush) or pop between the stack and a segment.
func (cw *CodeWriter) WritePushPop(isPush bool, seg vm.Segment, index int) error {
	var (
		b   Block
		err error
	)
	if isPush {
		b, err = pushBlock(cw.state, seg, index)
	} else {
		b, err = popBlock(cw.state, seg, index)
	}
	if err != nil {
		return err
	}
	return cw.write(b)
}
