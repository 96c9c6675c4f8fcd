package vm

import (
	"errors"
	"fmt"
)

// ErrInvalidCommand is the only domain error of the translator. Every
// InvalidCommandError matches it under errors.Is.
var ErrInvalidCommand = errors.New("invalid command")

// InvalidCommandError describes a source line that cannot be decoded or
// lowered. Unit and Line are filled in by the caller that knows them.
type InvalidCommandError struct {
	Unit   string
	Line   int // 1-based, 0 when unknown
	Text   string
	Reason string
}

func (e *InvalidCommandError) Error() string {
	where := ""
	switch {
	case e.Unit != "" && e.Line > 0:
		where = fmt.Sprintf("%s:%d: ", e.Unit, e.Line)
	case e.Unit != "":
		where = e.Unit + ": "
	case e.Line > 0:
		where = fmt.Sprintf("line %d: ", e.Line)
	}
	return fmt.Sprintf("%sinvalid command %q: %s", where, e.Text, e.Reason)
}

func (e *InvalidCommandError) Is(target error) bool {
	return target == ErrInvalidCommand
}

// Invalid builds an InvalidCommandError for text.
func Invalid(text, format string, args ...any) *InvalidCommandError {
	return &InvalidCommandError{Text: text, Reason: fmt.Sprintf(format, args...)}
}
