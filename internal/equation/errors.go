package equation

import (
	"errors"
	"fmt"
)

// Sentinel errors for equation validation and evaluation.
var (
	ErrSyntax      = errors.New("invalid equation")
	ErrEvaluation  = errors.New("equation evaluation failed")
	ErrNonPositive = errors.New("equation produced a non-positive position")
)

// SyntaxError reports an equation rejected at validation time.
// Offset is the byte offset in Text where the problem was found, or -1.
type SyntaxError struct {
	Text    string
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%v %q: %s", ErrSyntax, e.Text, e.Message)
	}
	return fmt.Sprintf("%v %q at offset %d: %s", ErrSyntax, e.Text, e.Offset, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// EvaluationError reports a runtime failure evaluating a validated equation,
// such as division by zero.
type EvaluationError struct {
	Position int64
	Message  string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%v for position %d: %s", ErrEvaluation, e.Position, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return ErrEvaluation
}

// NonPositiveError reports an evaluation whose truncated result is <= 0.
type NonPositiveError struct {
	Position int64
	Result   int64
}

func (e *NonPositiveError) Error() string {
	return fmt.Sprintf("%v: %d -> %d", ErrNonPositive, e.Position, e.Result)
}

func (e *NonPositiveError) Unwrap() error {
	return ErrNonPositive
}
