package equation

import (
	"fmt"
	"math"
)

// node is an arithmetic expression evaluated against the position variable.
type node interface {
	eval(x float64) (float64, error)
}

type numberNode struct {
	value float64
}

type identNode struct {
	name string
	pos  int
}

type unaryNode struct {
	negate  bool
	operand node
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

// compareNode is only valid as the condition of a ternaryNode.
type compareNode struct {
	op          tokenKind
	left, right node
}

type ternaryNode struct {
	then node
	cond *compareNode
	els  node
}

// callNode and attrNode are produced by the parser so validation can reject
// them by kind. They never evaluate.
type callNode struct {
	fn   node
	args []node
	pos  int
}

type attrNode struct {
	target node
	name   string
	pos    int
}

var errDivisionByZero = fmt.Errorf("division by zero")

func (n *numberNode) eval(float64) (float64, error) { return n.value, nil }

func (n *identNode) eval(x float64) (float64, error) {
	if n.name != Variable {
		return 0, fmt.Errorf("unbound identifier %q", n.name)
	}
	return x, nil
}

func (n *unaryNode) eval(x float64) (float64, error) {
	v, err := n.operand.eval(x)
	if err != nil {
		return 0, err
	}
	if n.negate {
		return -v, nil
	}
	return v, nil
}

func (n *binaryNode) eval(x float64) (float64, error) {
	l, err := n.left.eval(x)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(x)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case tokPlus:
		return l + r, nil
	case tokMinus:
		return l - r, nil
	case tokStar:
		return l * r, nil
	case tokSlash:
		if r == 0 {
			return 0, errDivisionByZero
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown operator %d", n.op)
}

func (n *compareNode) test(x float64) (bool, error) {
	l, err := n.left.eval(x)
	if err != nil {
		return false, err
	}
	r, err := n.right.eval(x)
	if err != nil {
		return false, err
	}
	switch n.op {
	case tokLess:
		return l < r, nil
	case tokLessEq:
		return l <= r, nil
	case tokGreater:
		return l > r, nil
	case tokGreaterEq:
		return l >= r, nil
	case tokEqual:
		return l == r, nil
	case tokNotEqual:
		return l != r, nil
	}
	return false, fmt.Errorf("unknown comparison %d", n.op)
}

// Only the selected branch is evaluated, so "1 / x if x != 0 else 1" is safe.
func (n *ternaryNode) eval(x float64) (float64, error) {
	ok, err := n.cond.test(x)
	if err != nil {
		return 0, err
	}
	if ok {
		return n.then.eval(x)
	}
	return n.els.eval(x)
}

func (n *callNode) eval(float64) (float64, error) {
	return math.NaN(), fmt.Errorf("function calls are not allowed")
}

func (n *attrNode) eval(float64) (float64, error) {
	return math.NaN(), fmt.Errorf("attribute access is not allowed")
}

// walk visits every node of the tree, including comparison operands.
func walk(n node, visit func(node) error) error {
	if err := visit(n); err != nil {
		return err
	}
	switch n := n.(type) {
	case *unaryNode:
		return walk(n.operand, visit)
	case *binaryNode:
		if err := walk(n.left, visit); err != nil {
			return err
		}
		return walk(n.right, visit)
	case *ternaryNode:
		if err := walk(n.then, visit); err != nil {
			return err
		}
		if err := walk(n.cond.left, visit); err != nil {
			return err
		}
		if err := walk(n.cond.right, visit); err != nil {
			return err
		}
		return walk(n.els, visit)
	case *callNode:
		if err := walk(n.fn, visit); err != nil {
			return err
		}
		for _, a := range n.args {
			if err := walk(a, visit); err != nil {
				return err
			}
		}
	case *attrNode:
		return walk(n.target, visit)
	}
	return nil
}
