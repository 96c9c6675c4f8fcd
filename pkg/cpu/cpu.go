package cpu

import (
	"errors"
	"fmt"
)

const (
	ROMSize = 32768
	RAMSize = 24577 // data memory, screen and the keyboard register

	ScreenBase   = 0x4000
	ScreenWords  = 8192
	ScreenWidth  = 512
	ScreenHeight = 256
	KBD          = 0x6000
)

// Fixed RAM cells of the VM calling convention.
const (
	SP   = 0
	LCL  = 1
	ARG  = 2
	THIS = 3
	THAT = 4
)

var (
	ErrProgramTooLarge   = errors.New("program too large for ROM")
	ErrAddressOutOfRange = errors.New("RAM address out of range")
	ErrStepLimit         = errors.New("step limit reached before halt")
)

// CPU is a Hack computer: 32K words of ROM, a D and an A register, and data
// memory with the screen and keyboard mapped at ScreenBase and KBD.
type CPU struct {
	ROM [ROMSize]uint16
	RAM [RAMSize]uint16

	A  uint16
	D  uint16
	PC uint16

	// Halted is set when the program enters the "(END) @END 0;JMP" idle
	// loop, or when a fault is recorded in Fault.
	Halted bool
	Fault  error

	Steps uint64

	programSize int
}

func NewCPU() *CPU {
	return &CPU{}
}

// Load copies program into ROM starting at address 0 and resets the CPU.
func (c *CPU) Load(program []uint16) error {
	if len(program) > ROMSize {
		return fmt.Errorf("%w: %d words > %d", ErrProgramTooLarge, len(program), ROMSize)
	}
	c.ROM = [ROMSize]uint16{}
	copy(c.ROM[:], program)
	c.programSize = len(program)
	c.Reset()
	return nil
}

// Reset clears the registers and the halt state. RAM is left untouched.
func (c *CPU) Reset() {
	c.A, c.D, c.PC = 0, 0, 0
	c.Halted = false
	c.Fault = nil
	c.Steps = 0
}

// Peek returns RAM[addr] as a signed word.
func (c *CPU) Peek(addr int) int16 {
	return int16(c.RAM[addr])
}

// Poke stores a signed word in RAM[addr].
func (c *CPU) Poke(addr int, val int16) {
	c.RAM[addr] = uint16(val)
}

// SetKey sets the keyboard register; 0 means no key is pressed.
func (c *CPU) SetKey(code uint16) {
	c.RAM[KBD] = code
}

// Stack returns the words between base and the current stack pointer.
func (c *CPU) Stack(base int) []int16 {
	top := int(c.RAM[SP])
	if top < base || top > RAMSize {
		return nil
	}
	out := make([]int16, 0, top-base)
	for addr := base; addr < top; addr++ {
		out = append(out, int16(c.RAM[addr]))
	}
	return out
}

func (c *CPU) fault(err error) {
	c.Fault = err
	c.Halted = true
}

// alu implements the Hack ALU. ctrl holds zx nx zy ny f no, high bit first.
func alu(x, y uint16, ctrl uint16) uint16 {
	if ctrl&0b100000 != 0 {
		x = 0
	}
	if ctrl&0b010000 != 0 {
		x = ^x
	}
	if ctrl&0b001000 != 0 {
		y = 0
	}
	if ctrl&0b000100 != 0 {
		y = ^y
	}
	var out uint16
	if ctrl&0b000010 != 0 {
		out = x + y
	} else {
		out = x & y
	}
	if ctrl&0b000001 != 0 {
		out = ^out
	}
	return out
}

// jumps reports whether out satisfies the jump condition bits j1 j2 j3
// (less than, equal, greater than zero).
func jumps(out uint16, cond uint16) bool {
	v := int16(out)
	return (cond&0b100 != 0 && v < 0) ||
		(cond&0b010 != 0 && v == 0) ||
		(cond&0b001 != 0 && v > 0)
}

func (c *CPU) Step() {
	if c.Halted {
		return
	}
	if int(c.PC) >= ROMSize {
		c.fault(fmt.Errorf("program counter 0x%04X past ROM", c.PC))
		return
	}

	pc := c.PC
	instr := c.ROM[pc]
	c.Steps++

	// A-instruction
	if instr&0x8000 == 0 {
		c.A = instr
		c.PC++
		return
	}

	// C-instruction: 111a cccc ccdd djjj
	useM := instr&0x1000 != 0
	ctrl := (instr >> 6) & 0x3F
	dest := (instr >> 3) & 0x7
	cond := instr & 0x7

	y := c.A
	if useM {
		if int(c.A) >= RAMSize {
			c.fault(fmt.Errorf("%w: read 0x%04X at PC 0x%04X", ErrAddressOutOfRange, c.A, pc))
			return
		}
		y = c.RAM[c.A]
	}
	out := alu(c.D, y, ctrl)

	// M and the jump target use the A value from before this instruction.
	addr := c.A
	if dest&0b001 != 0 {
		if int(addr) >= RAMSize {
			c.fault(fmt.Errorf("%w: write 0x%04X at PC 0x%04X", ErrAddressOutOfRange, addr, pc))
			return
		}
		c.RAM[addr] = out
	}
	if dest&0b100 != 0 {
		c.A = out
	}
	if dest&0b010 != 0 {
		c.D = out
	}

	if jumps(out, cond) {
		target := addr
		if cond == 0b111 && target == pc-1 && pc > 0 && c.ROM[pc-1] == target {
			c.Halted = true
		}
		c.PC = target
		return
	}
	c.PC++
}

// Run steps until the program halts.
func (c *CPU) Run() {
	for !c.Halted {
		c.Step()
	}
}

// RunFor steps until the program halts or maxSteps instructions have run.
func (c *CPU) RunFor(maxSteps uint64) error {
	for i := uint64(0); i < maxSteps; i++ {
		if c.Halted {
			return c.Fault
		}
		c.Step()
	}
	if c.Halted {
		return c.Fault
	}
	return fmt.Errorf("%w (%d steps, PC=0x%04X)", ErrStepLimit, maxSteps, c.PC)
}

// RunUntilDone runs until the program halts or leaves the loaded program.
func (c *CPU) RunUntilDone() {
	for {
		if c.Halted || int(c.PC) >= c.programSize {
			break
		}
		c.Step()
	}
}
