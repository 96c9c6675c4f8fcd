package codegen

import "hackvm/pkg/vm"

// WriteLabel declares name, scoped to the current function.
func (cw *CodeWriter) WriteLabel(name string) error {
	var bb blockBuilder
	bb.label(cw.state.qualify(name))
	return cw.write(bb.build(vm.Label{Name: name}.String()))
}

// WriteGoto jumps unconditionally to name.
func (cw *CodeWriter) WriteGoto(name string) error {
	var bb blockBuilder
	bb.line("@%s", cw.state.qualify(name))
	bb.line("0;JMP")
	return cw.write(bb.build(vm.Goto{Name: name}.String()))
}

// WriteIf pops the stack top and jumps to name when it is true (-1).
// False (0) falls through.
func (cw *CodeWriter) WriteIf(name string) error {
	var bb blockBuilder
	bb.popD()
	bb.line("@%s", cw.state.qualify(name))
	bb.line("D;JNE")
	return cw.write(bb.build(vm.IfGoto{Name: name}.String()))
}
