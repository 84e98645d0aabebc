package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynccalc/internal/models"
)

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple addition", input: "2+2", expected: "(2 + 2)"},
		{name: "multiplication binds tighter", input: "2+3*4", expected: "(2 + (3 * 4))"},
		{name: "left associative", input: "10-5-2", expected: "((10 - 5) - 2)"},
		{name: "division chain", input: "8/4/2", expected: "((8 / 4) / 2)"},
		{name: "parentheses", input: "(2+3)*4", expected: "((2 + 3) * 4)"},
		{name: "nested parentheses", input: "2*((3+2)*2)", expected: "(2 * ((3 + 2) * 2))"},
		{name: "exponent right associative", input: "2^3^2", expected: "(2 ^ (3 ^ 2))"},
		{name: "unary minus below exponent", input: "-2^2", expected: "(-(2 ^ 2))"},
		{name: "unary minus above multiplication", input: "-2*3", expected: "((-2) * 3)"},
		{name: "negative exponent", input: "2^-1", expected: "(2 ^ (-1))"},
		{name: "double unary", input: "--3", expected: "(-(-3))"},
		{name: "unary plus", input: "+4", expected: "(+4)"},
		{name: "function", input: "20.0 * ln(10) / 0.1", expected: "((20.0 * ln(10)) / 0.1)"},
		{name: "function then exponent", input: "cos(0)^2", expected: "(cos(0) ^ 2)"},
		{name: "function argument", input: "sqrt(3*3+4*4)", expected: "sqrt(((3 * 3) + (4 * 4)))"},
		{name: "whitespace", input: " 0 + 6 - 1 + (2*100) ", expected: "(((0 + 6) - 1) + (2 * 100))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse[string](tt.input, StringFactory{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		code   string
		offset int
		length int
	}{
		{name: "empty", input: "", code: models.UnexpectedEndErrorCode, offset: 0, length: 0},
		{name: "blank", input: "   ", code: models.UnexpectedEndErrorCode, offset: 3, length: 0},
		{name: "dangling operator", input: "3*6+", code: models.UnexpectedEndErrorCode, offset: 4, length: 0},
		{name: "missing close paren", input: "(2+2", code: models.UnbalancedParenthesesErrorCode, offset: 4, length: 0},
		{name: "extra close paren", input: "2+2)", code: models.UnbalancedParenthesesErrorCode, offset: 3, length: 1},
		{name: "empty parens", input: "()", code: models.UnexpectedTokenErrorCode, offset: 1, length: 1},
		{name: "trailing number", input: "(1) 2", code: models.UnexpectedTokenErrorCode, offset: 4, length: 1},
		{name: "bare identifier", input: "2+pi", code: models.UnexpectedTokenErrorCode, offset: 2, length: 2},
		{name: "identifier without call", input: "2+a*3", code: models.UnexpectedTokenErrorCode, offset: 2, length: 1},
		{name: "unknown character", input: "2 % 3", code: models.InvalidTokenErrorCode, offset: 2, length: 1},
		{name: "malformed number", input: "1+2e", code: models.InvalidTokenErrorCode, offset: 2, length: 2},
		{name: "double operator", input: "2**3", code: models.UnexpectedTokenErrorCode, offset: 2, length: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse[Node](tt.input, TreeFactory{})
			require.Error(t, err)

			var syntaxErr *SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
			assert.Equal(t, tt.code, syntaxErr.Code)
			assert.Equal(t, tt.offset, syntaxErr.Offset)
			assert.Equal(t, tt.length, syntaxErr.Length)
		})
	}
}

func TestParseTree(t *testing.T) {
	node, err := Parse[Node]("1 + ln(2)", TreeFactory{})
	require.NoError(t, err)

	bin, ok := node.(*BinaryNode)
	require.True(t, ok)
	assert.Equal(t, OpAdd, bin.Op)
	assert.Equal(t, 2, bin.Offset())

	left, ok := bin.Left.(*NumberNode)
	require.True(t, ok)
	assert.Equal(t, "1", left.Text)

	fn, ok := bin.Right.(*UnaryNode)
	require.True(t, ok)
	assert.Equal(t, OpType("ln"), fn.Op)
	assert.True(t, fn.Op.IsFunction())
	assert.Equal(t, 4, fn.Offset())
}

func TestParseDeepNesting(t *testing.T) {
	input := ""
	for i := 0; i < 1000; i++ {
		input += "("
	}
	_, err := Parse[Node](input+"1", TreeFactory{})
	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Contains(t, syntaxErr.Message, "nested too deeply")
}
