package parser

import "fmt"

// OpType names an operator. Symbolic operators use their token text; function
// applications use the function name.
type OpType string

const (
	OpAdd      OpType = "+"
	OpSubtract OpType = "-"
	OpMultiply OpType = "*"
	OpDivide   OpType = "/"
	OpPower    OpType = "^"
)

// IsFunction reports whether op is a named function rather than a symbol.
func (op OpType) IsFunction() bool {
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpPower:
		return false
	}
	return true
}

// NodeFactory builds the parser output. The same grammar drives every projection.
type NodeFactory[T any] interface {
	Number(text string, offset int) T
	UnaryOp(op OpType, offset int, operand T) T
	BinaryOp(op OpType, offset int, left, right T) T
}

// Node is an element of an evaluation tree. Trees are never shared or mutated after parsing.
type Node interface {
	Offset() int
}

type NumberNode struct {
	Text string
	Pos  int
}

type UnaryNode struct {
	Op      OpType
	Pos     int
	Operand Node
}

type BinaryNode struct {
	Op    OpType
	Pos   int
	Left  Node
	Right Node
}

func (n *NumberNode) Offset() int { return n.Pos }
func (n *UnaryNode) Offset() int  { return n.Pos }
func (n *BinaryNode) Offset() int { return n.Pos }

// TreeFactory builds Node trees.
type TreeFactory struct{}

func (TreeFactory) Number(text string, offset int) Node {
	return &NumberNode{Text: text, Pos: offset}
}

func (TreeFactory) UnaryOp(op OpType, offset int, operand Node) Node {
	return &UnaryNode{Op: op, Pos: offset, Operand: operand}
}

func (TreeFactory) BinaryOp(op OpType, offset int, left, right Node) Node {
	return &BinaryNode{Op: op, Pos: offset, Left: left, Right: right}
}

// StringFactory renders a fully parenthesized form, handy for debugging and tests.
type StringFactory struct{}

func (StringFactory) Number(text string, _ int) string {
	return text
}

func (StringFactory) UnaryOp(op OpType, _ int, operand string) string {
	if op.IsFunction() {
		return fmt.Sprintf("%s(%s)", op, operand)
	}
	return fmt.Sprintf("(%s%s)", op, operand)
}

func (StringFactory) BinaryOp(op OpType, _ int, left, right string) string {
	return fmt.Sprintf("(%s %s %s)", left, op, right)
}
