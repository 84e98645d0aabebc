package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"asynccalc/internal/models"
	"asynccalc/internal/parser"
)

// NumberValidation selects how non-finite values are treated during evaluation.
type NumberValidation int

const (
	// Strict rejects NaN and infinities wherever they appear.
	Strict NumberValidation = iota
	// Lenient lets IEEE-754 special values propagate.
	Lenient
)

func (v NumberValidation) String() string {
	if v == Lenient {
		return "lenient"
	}
	return "strict"
}

// ParseNumberValidation reads "strict" or "lenient", ignoring case.
func ParseNumberValidation(s string) (NumberValidation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	}
	return Strict, fmt.Errorf("unknown number validation %q", s)
}

// ArithmeticError is an evaluation failure attributed to one node of the tree.
type ArithmeticError struct {
	Code    string
	Message string
	Offset  int
	Length  int
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("arithmetic error at offset %d: %s", e.Offset, e.Message)
}

var functions = map[string]func(float64) float64{
	"ln":    math.Log,
	"log":   math.Log10,
	"log2":  math.Log2,
	"exp":   math.Exp,
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
}

// Calculate evaluates the tree rooted at node. ctx is consulted before the walk and
// between the operands of the root only, so a running evaluation is never interrupted
// deep inside the tree.
func Calculate(ctx context.Context, node parser.Node, validation NumberValidation) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e := evaluator{ctx: ctx, validation: validation}
	return e.eval(node, 0)
}

type evaluator struct {
	ctx        context.Context
	validation NumberValidation
}

func (e *evaluator) eval(node parser.Node, depth int) (float64, error) {
	switch n := node.(type) {
	case *parser.NumberNode:
		v, err := strconv.ParseFloat(n.Text, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, &ArithmeticError{
				Code:    models.ArithmeticErrorCode,
				Message: fmt.Sprintf("invalid number %q", n.Text),
				Offset:  n.Pos,
				Length:  len(n.Text),
			}
		}
		return e.check(v, "number literal", n.Pos, len(n.Text))

	case *parser.UnaryNode:
		var fn func(float64) float64
		if n.Op.IsFunction() {
			var ok bool
			if fn, ok = functions[string(n.Op)]; !ok {
				return 0, &ArithmeticError{
					Code:    models.UnknownFunctionErrorCode,
					Message: fmt.Sprintf("unknown function %q", n.Op),
					Offset:  n.Pos,
					Length:  len(n.Op),
				}
			}
		}

		x, err := e.eval(n.Operand, depth+1)
		if err != nil {
			return 0, err
		}
		if err := e.checkpoint(depth); err != nil {
			return 0, err
		}

		var v float64
		switch {
		case fn != nil:
			v = fn(x)
		case n.Op == parser.OpSubtract:
			v = -x
		default:
			v = x
		}
		return e.check(v, string(n.Op), n.Pos, len(n.Op))

	case *parser.BinaryNode:
		l, err := e.eval(n.Left, depth+1)
		if err != nil {
			return 0, err
		}
		if err := e.checkpoint(depth); err != nil {
			return 0, err
		}
		r, err := e.eval(n.Right, depth+1)
		if err != nil {
			return 0, err
		}
		if err := e.checkpoint(depth); err != nil {
			return 0, err
		}

		var v float64
		switch n.Op {
		case parser.OpAdd:
			v = l + r
		case parser.OpSubtract:
			v = l - r
		case parser.OpMultiply:
			v = l * r
		case parser.OpDivide:
			v = l / r
		case parser.OpPower:
			v = math.Pow(l, r)
		default:
			return 0, fmt.Errorf("unsupported binary operator %q", n.Op)
		}
		return e.check(v, string(n.Op), n.Pos, len(n.Op))
	}
	return 0, fmt.Errorf("unsupported node %T", node)
}

func (e *evaluator) checkpoint(depth int) error {
	if depth != 0 {
		return nil
	}
	return e.ctx.Err()
}

func (e *evaluator) check(v float64, what string, offset, length int) (float64, error) {
	if e.validation == Strict && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return 0, &ArithmeticError{
			Code:    models.ArithmeticErrorCode,
			Message: fmt.Sprintf("%s produced %v", what, v),
			Offset:  offset,
			Length:  length,
		}
	}
	return v, nil
}
