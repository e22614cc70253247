// Package equation validates and evaluates user-supplied position equations.
//
// An equation is an arithmetic expression over the single variable x, the
// 1-based VCF position. The grammar allows number literals, x, unary and
// binary + - * /, parentheses and the conditional form
// "<expr> if <a> <cmp> <b> else <expr>". Nothing else is evaluated: names
// other than x, function calls and attribute access are rejected after parsing.
package equation

import (
	"fmt"
	"math"
	"strings"
)

// Variable is the only name an equation may reference.
const Variable = "x"

// DefaultPreviewPositions are the sample positions used by Preview when none are given.
var DefaultPreviewPositions = []int64{100, 1000, 10000, 100000}

// Equation is a validated position equation. It is immutable and safe for
// concurrent use.
type Equation struct {
	text string
	root node
}

// Validate parses text and checks that it only uses allowed constructs.
// The returned error is a *SyntaxError.
func Validate(text string) (*Equation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SyntaxError{Text: text, Offset: -1, Message: "equation is empty"}
	}

	root, err := parse(text)
	if err != nil {
		return nil, err
	}

	err = walk(root, func(n node) error {
		switch n := n.(type) {
		case *identNode:
			if n.name != Variable {
				return &SyntaxError{Text: text, Offset: n.pos,
					Message: fmt.Sprintf("unknown name %q (only %q is allowed)", n.name, Variable)}
			}
		case *callNode:
			return &SyntaxError{Text: text, Offset: n.pos, Message: "function calls are not allowed"}
		case *attrNode:
			return &SyntaxError{Text: text, Offset: n.pos, Message: "attribute access is not allowed"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Equation{text: text, root: root}, nil
}

// String returns the equation text as given to Validate.
func (e *Equation) String() string {
	return e.text
}

// Evaluate applies the equation to pos. The result is truncated toward zero.
// Runtime failures return *EvaluationError; a truncated result <= 0 returns
// *NonPositiveError.
func (e *Equation) Evaluate(pos int64) (int64, error) {
	v, err := e.root.eval(float64(pos))
	if err != nil {
		return 0, &EvaluationError{Position: pos, Message: err.Error()}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &EvaluationError{Position: pos, Message: fmt.Sprintf("result is %v", v)}
	}

	t := math.Trunc(v)
	// 2^63 is exactly representable; anything at or beyond it overflows int64.
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0, &EvaluationError{Position: pos, Message: fmt.Sprintf("result %g is out of range", v)}
	}

	n := int64(t)
	if n <= 0 {
		return 0, &NonPositiveError{Position: pos, Result: n}
	}
	return n, nil
}

// Sample is the outcome of evaluating an equation at one position.
type Sample struct {
	Position int64
	Result   int64
	Err      error
}

// Preview evaluates the equation at each position, or at
// DefaultPreviewPositions when none are given.
func (e *Equation) Preview(positions ...int64) []Sample {
	if len(positions) == 0 {
		positions = DefaultPreviewPositions
	}
	samples := make([]Sample, len(positions))
	for i, p := range positions {
		r, err := e.Evaluate(p)
		samples[i] = Sample{Position: p, Result: r, Err: err}
	}
	return samples
}
