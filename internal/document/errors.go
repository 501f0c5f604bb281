package document

import (
	"encoding/json"
	"fmt"

	"github.com/thoreinstein/cfgmerge/internal/errors"
)

// SyntaxError describes why a file could not be used as a JSON object.
type SyntaxError struct {
	// Msg is the parser diagnostic.
	Msg string

	// Line and Column locate the error, 1-based. Zero when unknown.
	Line   int
	Column int
}

// Error returns the diagnostic with its position, if known.
func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: line %d column %d", e.Msg, e.Line, e.Column)
}

func newSyntaxError(data []byte, err error) *SyntaxError {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		line, col := position(data, se.Offset)
		return &SyntaxError{Msg: se.Error(), Line: line, Column: col}
	}
	return &SyntaxError{Msg: err.Error()}
}

// position converts a byte offset into a 1-based line and column.
// json.SyntaxError.Offset points just past the offending byte.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col = 1, 1
	for i := int64(0); i < offset-1; i++ {
		if data[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
