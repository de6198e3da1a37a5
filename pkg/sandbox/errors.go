package sandbox

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

var (
	// ErrUndefinedCode is returned for empty code when undefined code is not allowed.
	ErrUndefinedCode = errors.New("undefined code")

	// ErrTimeout is returned when a call runs longer than the configured timeout.
	ErrTimeout = errors.New("evaluation timed out")

	// ErrNotAFunction is returned when a custom workflow function is not a function expression.
	ErrNotAFunction = errors.New("expression is not a function")
)

var stackPosition = regexp.MustCompile(regexp.QuoteMeta(programName) + `:(\d+):(\d+)`)

// EvalError describes a compile or runtime failure with the offending source line.
type EvalError struct {
	Message  string
	Function string
	Caller   string
	Line     int
	Column   int
	Excerpt  string
	Err      error
}

func (e *EvalError) Error() string {
	var b strings.Builder

	if e.Caller != "" {
		b.WriteString(e.Caller)
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Line, e.Column)
	}

	if e.Excerpt != "" {
		b.WriteString("\n")
		b.WriteString(e.Excerpt)
	}

	return b.String()
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// newEvalError locates err in source. Positions reported by goja are one line ahead
// because the source always starts on the second line of the parsed text.
func newEvalError(err error, source, caller string) *EvalError {
	evalErr := &EvalError{
		Message:  err.Error(),
		Function: signature(source),
		Caller:   caller,
		Err:      err,
	}

	var (
		syntaxErrors parser.ErrorList
		syntaxError  *parser.Error
		exception    *goja.Exception
	)

	switch {
	case errors.As(err, &syntaxErrors) && len(syntaxErrors) > 0:
		evalErr.Message = syntaxErrors[0].Message
		evalErr.Line = syntaxErrors[0].Position.Line - 1
		evalErr.Column = syntaxErrors[0].Position.Column
	case errors.As(err, &syntaxError):
		evalErr.Message = syntaxError.Message
		evalErr.Line = syntaxError.Position.Line - 1
		evalErr.Column = syntaxError.Position.Column
	case errors.As(err, &exception):
		if value := exception.Value(); value != nil {
			evalErr.Message = value.String()
		}

		if match := stackPosition.FindStringSubmatch(exception.String()); match != nil {
			evalErr.Line, _ = strconv.Atoi(match[1])
			evalErr.Line--
			evalErr.Column, _ = strconv.Atoi(match[2])
		}
	}

	evalErr.Excerpt = excerpt(source, evalErr.Line, evalErr.Column)

	return evalErr
}

func excerpt(source string, line, column int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}

	text := lines[line-1]

	if column < 1 {
		column = 1
	}

	if column > len(text)+1 {
		column = len(text) + 1
	}

	return text + "\n" + strings.Repeat(" ", column-1) + "^"
}

func signature(source string) string {
	first, _, _ := strings.Cut(source, "\n")

	const maxSignature = 80
	if len(first) > maxSignature {
		return first[:maxSignature] + "..."
	}

	return first
}
