package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// VariableBase is the RAM address of the first assembler-allocated variable.
const VariableBase = 16

// MaxAddress is the largest value an A-instruction can carry.
const MaxAddress = 0x7FFF

var predefinedSymbols = map[string]uint16{
	"SP":     0,
	"LCL":    1,
	"ARG":    2,
	"THIS":   3,
	"THAT":   4,
	"SCREEN": 0x4000,
	"KBD":    0x6000,
}

func init() {
	for i := 0; i < 16; i++ {
		predefinedSymbols[fmt.Sprintf("R%d", i)] = uint16(i)
	}
}

// compCodes holds the a-bit and the six ALU control bits of each computation.
var compCodes = map[string]uint16{
	"0":   0b0101010,
	"1":   0b0111111,
	"-1":  0b0111010,
	"D":   0b0001100,
	"A":   0b0110000,
	"!D":  0b0001101,
	"!A":  0b0110001,
	"-D":  0b0001111,
	"-A":  0b0110011,
	"D+1": 0b0011111,
	"A+1": 0b0110111,
	"D-1": 0b0001110,
	"A-1": 0b0110010,
	"D+A": 0b0000010,
	"D-A": 0b0010011,
	"A-D": 0b0000111,
	"D&A": 0b0000000,
	"D|A": 0b0010101,
	"M":   0b1110000,
	"!M":  0b1110001,
	"-M":  0b1110011,
	"M+1": 0b1110111,
	"M-1": 0b1110010,
	"D+M": 0b1000010,
	"D-M": 0b1010011,
	"M-D": 0b1000111,
	"D&M": 0b1000000,
	"D|M": 0b1010101,

	// commutative spellings
	"A+D": 0b0000010,
	"A&D": 0b0000000,
	"A|D": 0b0010101,
	"M+D": 0b1000010,
	"M&D": 0b1000000,
	"M|D": 0b1010101,
	"1+D": 0b0011111,
	"1+A": 0b0110111,
	"1+M": 0b1110111,
}

var jumpCodes = map[string]uint16{
	"":    0b000,
	"JGT": 0b001,
	"JEQ": 0b010,
	"JGE": 0b011,
	"JLT": 0b100,
	"JNE": 0b101,
	"JLE": 0b110,
	"JMP": 0b111,
}

type Assembler struct {
	symbols map[string]uint16
	nextVar uint16
}

type lineKind int

const (
	lineNone lineKind = iota
	lineLabel
	lineA
	lineC
)

type parsedLine struct {
	lineNo int
	kind   lineKind
	symbol string // label name or A-instruction operand
	dest   string
	comp   string
	jump   string
}

func NewAssembler() *Assembler {
	a := &Assembler{
		symbols: make(map[string]uint16, len(predefinedSymbols)),
		nextVar: VariableBase,
	}
	for k, v := range predefinedSymbols {
		a.symbols[k] = v
	}
	return a
}

// Assemble translates Hack assembly into machine words. The returned source
// map takes a ROM address to its 1-based source line.
func Assemble(code string) ([]uint16, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]uint16, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	parsed, err := a.pass1(lines)
	if err != nil {
		return nil, nil, err
	}

	return a.pass2(parsed)
}

// pass1 parses every line and binds labels to ROM addresses.
func (a *Assembler) pass1(lines []string) ([]parsedLine, error) {
	var address uint32
	parsed := make([]parsedLine, 0, len(lines))

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}

		switch p.kind {
		case lineNone:
			continue
		case lineLabel:
			if _, exists := a.symbols[p.symbol]; exists {
				return nil, fmt.Errorf("duplicate label '%s' on line %d", p.symbol, lineNo)
			}
			if address > MaxAddress {
				return nil, fmt.Errorf("label '%s' on line %d points past addressable ROM", p.symbol, lineNo)
			}
			a.symbols[p.symbol] = uint16(address)
		default:
			address++
			if address > MaxAddress+1 {
				return nil, fmt.Errorf("program too large near line %d", lineNo)
			}
		}
		parsed = append(parsed, p)
	}

	return parsed, nil
}

func (a *Assembler) pass2(parsed []parsedLine) ([]uint16, map[uint16]int, error) {
	program := make([]uint16, 0, len(parsed))
	sourceMap := make(map[uint16]int)

	for _, p := range parsed {
		switch p.kind {
		case lineA:
			val, err := a.resolve(p.symbol, p.lineNo)
			if err != nil {
				return nil, nil, err
			}
			sourceMap[uint16(len(program))] = p.lineNo
			program = append(program, val)

		case lineC:
			instr, err := encodeC(p)
			if err != nil {
				return nil, nil, err
			}
			sourceMap[uint16(len(program))] = p.lineNo
			program = append(program, instr)
		}
	}

	return program, sourceMap, nil
}

// resolve returns the value of an A-instruction operand, allocating a new
// variable for an unknown symbol.
func (a *Assembler) resolve(token string, lineNo int) (uint16, error) {
	if token[0] >= '0' && token[0] <= '9' {
		value, err := strconv.ParseUint(token, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid constant '%s' on line %d", token, lineNo)
		}
		if value > MaxAddress {
			return 0, fmt.Errorf("constant out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}

	if addr, ok := a.symbols[token]; ok {
		return addr, nil
	}
	if a.nextVar > MaxAddress {
		return 0, fmt.Errorf("out of variable space at '%s' on line %d", token, lineNo)
	}
	addr := a.nextVar
	a.symbols[token] = addr
	a.nextVar++
	return addr, nil
}

// Symbol returns the address bound to name after Assemble.
func (a *Assembler) Symbol(name string) (uint16, bool) {
	addr, ok := a.symbols[name]
	return addr, ok
}

func encodeC(p parsedLine) (uint16, error) {
	comp, ok := compCodes[p.comp]
	if !ok {
		return 0, fmt.Errorf("invalid computation '%s' on line %d", p.comp, p.lineNo)
	}
	dest, err := destBits(p.dest, p.lineNo)
	if err != nil {
		return 0, err
	}
	jump, ok := jumpCodes[p.jump]
	if !ok {
		return 0, fmt.Errorf("invalid jump '%s' on line %d", p.jump, p.lineNo)
	}
	return 0b111<<13 | comp<<6 | dest<<3 | jump, nil
}

// destBits accepts the destination registers in any order, e.g. AM or MA.
func destBits(dest string, lineNo int) (uint16, error) {
	var bits uint16
	for _, r := range dest {
		var bit uint16
		switch r {
		case 'A':
			bit = 0b100
		case 'D':
			bit = 0b010
		case 'M':
			bit = 0b001
		default:
			return 0, fmt.Errorf("invalid destination '%s' on line %d", dest, lineNo)
		}
		if bits&bit != 0 {
			return 0, fmt.Errorf("repeated register in destination '%s' on line %d", dest, lineNo)
		}
		bits |= bit
	}
	return bits, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := stripComments(raw)
	line = strings.Join(strings.Fields(line), "")
	if line == "" {
		return p, nil
	}

	switch line[0] {
	case '(':
		if !strings.HasSuffix(line, ")") {
			return p, fmt.Errorf("unterminated label on line %d", lineNo)
		}
		name := line[1 : len(line)-1]
		if !isIdentifier(name) {
			return p, fmt.Errorf("invalid label '%s' on line %d", name, lineNo)
		}
		p.kind = lineLabel
		p.symbol = name
		return p, nil

	case '@':
		operand := line[1:]
		if operand == "" {
			return p, fmt.Errorf("missing operand on line %d", lineNo)
		}
		if !isNumber(operand) && !isIdentifier(operand) {
			return p, fmt.Errorf("invalid symbol '%s' on line %d", operand, lineNo)
		}
		p.kind = lineA
		p.symbol = operand
		return p, nil
	}

	p.kind = lineC
	rest := line
	if eq := strings.IndexByte(rest, '='); eq >= 0 {
		p.dest = rest[:eq]
		rest = rest[eq+1:]
		if p.dest == "" {
			return p, fmt.Errorf("empty destination on line %d", lineNo)
		}
	}
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		p.jump = rest[semi+1:]
		rest = rest[:semi]
		if p.jump == "" {
			return p, fmt.Errorf("empty jump on line %d", lineNo)
		}
	}
	p.comp = rest
	if p.comp == "" {
		return p, fmt.Errorf("missing computation on line %d", lineNo)
	}
	return p, nil
}

func stripComments(line string) string {
	if cut := strings.Index(line, "//"); cut >= 0 {
		return line[:cut]
	}
	return line
}

func isNumber(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// isIdentifier accepts Hack symbols: letters, digits, '_', '.', '$' and ':',
// not starting with a digit.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_.$:", r) {
			return false
		}
	}

	return true
}

// Format renders machine words as .hack text: one 16-digit binary word per line.
func Format(program []uint16) string {
	var sb strings.Builder
	sb.Grow(len(program) * 17)
	for _, w := range program {
		fmt.Fprintf(&sb, "%016b\n", w)
	}
	return sb.String()
}
