package problem

import "fmt"

// MalformedProblemError is returned when the counts or the fields of a
// problem description are inconsistent.
type MalformedProblemError struct {
	// Line is the line number starting from one, zero if the error is
	// not bound to a line.
	Line int
	Msg  string
}

func (e *MalformedProblemError) Error() string {
	if e.Line == 0 {
		return "malformed problem: " + e.Msg
	}
	return fmt.Sprintf("malformed problem at line %d: %s", e.Line, e.Msg)
}

func malformed(line int, format string, args ...interface{}) error {
	return &MalformedProblemError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
