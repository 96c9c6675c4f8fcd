package vm

import (
	"strconv"
	"strings"
	"unicode"
)

var arithmeticOps = map[string]Op{
	"add": OpAdd,
	"sub": OpSub,
	"neg": OpNeg,
	"eq":  OpEq,
	"gt":  OpGt,
	"lt":  OpLt,
	"and": OpAnd,
	"or":  OpOr,
	"not": OpNot,
}

var segments = map[string]Segment{
	"local":    SegLocal,
	"argument": SegArgument,
	"this":     SegThis,
	"that":     SegThat,
	"temp":     SegTemp,
	"constant": SegConstant,
	"pointer":  SegPointer,
	"static":   SegStatic,
}

// operandCount is the number of tokens each keyword expects after itself.
var operandCount = map[string]int{
	"push":     2,
	"pop":      2,
	"label":    1,
	"goto":     1,
	"if-goto":  1,
	"function": 2,
	"call":     2,
	"return":   0,
}

// Decode converts one trimmed, comment-stripped source line into a Command.
// A blank line decodes to Empty. Keywords are matched case-sensitively.
func Decode(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Empty{}, nil
	}
	keyword, operands := fields[0], fields[1:]

	if op, ok := arithmeticOps[keyword]; ok {
		if len(operands) != 0 {
			return nil, Invalid(line, "%s takes no operands, got %d", keyword, len(operands))
		}
		return Arithmetic{Op: op}, nil
	}

	want, ok := operandCount[keyword]
	if !ok {
		return nil, Invalid(line, "unknown keyword %q", keyword)
	}
	if len(operands) < want {
		return nil, Invalid(line, "%s expects %d operands, got %d", keyword, want, len(operands))
	}
	if len(operands) > want {
		return nil, Invalid(line, "unexpected operand %q", operands[want])
	}

	switch keyword {
	case "push", "pop":
		seg, ok := segments[operands[0]]
		if !ok {
			return nil, Invalid(line, "unknown segment %q", operands[0])
		}
		index, err := parseIndex(operands[1])
		if err != nil {
			return nil, Invalid(line, "%v", err)
		}
		if keyword == "push" {
			return Push{Segment: seg, Index: index}, nil
		}
		return Pop{Segment: seg, Index: index}, nil

	case "label", "goto", "if-goto":
		name := operands[0]
		if !isSymbol(name) {
			return nil, Invalid(line, "invalid label name %q", name)
		}
		if isReturnLabel(name) {
			return nil, Invalid(line, "label name %q is reserved for return addresses", name)
		}
		switch keyword {
		case "label":
			return Label{Name: name}, nil
		case "goto":
			return Goto{Name: name}, nil
		default:
			return IfGoto{Name: name}, nil
		}

	case "function", "call":
		name := operands[0]
		if !isSymbol(name) {
			return nil, Invalid(line, "invalid function name %q", name)
		}
		if isReturnLabel(name) {
			return nil, Invalid(line, "function name %q is reserved for return addresses", name)
		}
		n, err := parseIndex(operands[1])
		if err != nil {
			return nil, Invalid(line, "%v", err)
		}
		if keyword == "function" {
			return Function{Name: name, NLocals: n}, nil
		}
		return Call{Name: name, NArgs: n}, nil

	case "return":
		return Return{}, nil
	}

	return nil, Invalid(line, "unknown keyword %q", keyword)
}

// parseIndex accepts a base-10 non-negative integer made of ASCII digits only.
func parseIndex(token string) (int, error) {
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, &strconv.NumError{Func: "parseIndex", Num: token, Err: strconv.ErrSyntax}
		}
	}
	return strconv.Atoi(token)
}

// isSymbol reports whether s is a legal VM symbol: letters, digits, '_', '.'
// and ':', not starting with a digit.
func isSymbol(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != ':' {
			return false
		}
	}
	return true
}

// isReturnLabel reports whether name has the form ret.<digits> used for
// generated return-address labels.
func isReturnLabel(name string) bool {
	n, ok := strings.CutPrefix(name, "ret.")
	if !ok || n == "" {
		return false
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
