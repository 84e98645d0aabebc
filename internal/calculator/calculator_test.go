package calculator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynccalc/internal/models"
	"asynccalc/internal/parser"
)

func TestCalc(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "simple addition", input: "2+2", want: 4},
		{name: "parentheses", input: "(2+2)*2", want: 8},
		{name: "division", input: "4/2", want: 2},
		{name: "multiplication before addition", input: "2+3*4", want: 14},
		{name: "multiplication before subtraction", input: "10-5*2", want: 0},
		{name: "division before addition", input: "8/4+3", want: 5},
		{name: "mixed priorities", input: "2+3*4-6/2", want: 11},
		{name: "left to right", input: "2*3*4/2", want: 12},
		{name: "nested parentheses", input: "2*((3+2)*2)", want: 20},
		{name: "exponent", input: "2^10", want: 1024},
		{name: "exponent right associative", input: "2^3^2", want: 512},
		{name: "unary minus", input: "-2^2", want: -4},
		{name: "negative exponent", input: "2^-1", want: 0.5},
		{name: "scientific notation", input: "1.5e3 + 1E-1", want: 1500.1},
		{name: "function", input: "sqrt(3*3+4*4)", want: 5},
		{name: "trigonometry", input: "cos(0) + sin(0)", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calc(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalcLogarithmExpression(t *testing.T) {
	got, err := Calc("20.0 * ln(10) / 0.1")
	require.NoError(t, err)
	assert.InDelta(t, 20.0*math.Log(10)/0.1, got, 1e-9)
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		validation NumberValidation
		code       string
		offset     int
		length     int
	}{
		{name: "dangling operator", input: "3*6+", code: models.UnexpectedEndErrorCode, offset: 4, length: 0},
		{name: "invalid character", input: "2+a", code: models.UnexpectedTokenErrorCode, offset: 2, length: 1},
		{name: "mismatched parentheses", input: "(2+2", code: models.UnbalancedParenthesesErrorCode, offset: 4, length: 0},
		{name: "malformed number", input: "1e+", code: models.InvalidTokenErrorCode, offset: 0, length: 3},
		{name: "division by zero", input: "1/0", code: models.ArithmeticErrorCode, offset: 1, length: 1},
		{name: "nan", input: "2 * (0/0)", code: models.ArithmeticErrorCode, offset: 6, length: 1},
		{name: "literal overflow", input: "1e999 - 1", code: models.ArithmeticErrorCode, offset: 0, length: 5},
		{name: "logarithm of zero", input: "1 + ln(0)", code: models.ArithmeticErrorCode, offset: 4, length: 2},
		{name: "unknown function", input: "1 + foo(2)", code: models.UnknownFunctionErrorCode, offset: 4, length: 3},
		{name: "unknown function lenient", input: "bar(1)", validation: Lenient, code: models.UnknownFunctionErrorCode, offset: 0, length: 3},
	}

	calc := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, details := calc.Evaluate(context.Background(), tt.input, tt.validation)
			require.NotNil(t, details)
			assert.Equal(t, tt.code, details.ErrorCode)
			require.NotNil(t, details.Offset)
			require.NotNil(t, details.Length)
			assert.Equal(t, tt.offset, *details.Offset)
			assert.Equal(t, tt.length, *details.Length)
		})
	}
}

func TestEvaluateLenientPropagatesSpecialValues(t *testing.T) {
	calc := NewCalculator()

	v, details := calc.Evaluate(context.Background(), "1/0", Lenient)
	require.Nil(t, details)
	assert.True(t, math.IsInf(v, 1))

	v, details = calc.Evaluate(context.Background(), "-1/0", Lenient)
	require.Nil(t, details)
	assert.True(t, math.IsInf(v, -1))

	v, details = calc.Evaluate(context.Background(), "0/0 + 1", Lenient)
	require.Nil(t, details)
	assert.True(t, math.IsNaN(v))

	v, details = calc.Evaluate(context.Background(), "1 / (1e999)", Lenient)
	require.Nil(t, details)
	assert.Equal(t, 0.0, v)
}

func TestEvaluateCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCalculator().Calculate(ctx, "2+2", Strict)
	assert.ErrorIs(t, err, context.Canceled)

	_, details := NewCalculator().Evaluate(ctx, "2+2", Strict)
	require.NotNil(t, details)
	assert.Equal(t, models.InternalErrorCode, details.ErrorCode)
	assert.Nil(t, details.Offset)
}

type foreignNode struct {
	parser.NumberNode
}

func TestCalculateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deep, err := parser.Parse[parser.Node]("(1+2)*3", parser.TreeFactory{})
	require.NoError(t, err)
	v, err := Calculate(ctx, deep, Strict)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	cancel()
	_, err = Calculate(ctx, deep, Strict)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateUnsupportedNode(t *testing.T) {
	_, err := Calculate(context.Background(), &foreignNode{}, Strict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported node")
}

func TestEvaluateConcurrently(t *testing.T) {
	calc := NewCalculator()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, details := calc.Evaluate(context.Background(), fmt.Sprintf("%d * (2 + 3)", i), Strict)
			assert.Nil(t, details)
			assert.Equal(t, float64(i*5), v)
		}(i)
	}
	wg.Wait()
}

func TestParseNumberValidation(t *testing.T) {
	v, err := ParseNumberValidation(" Lenient ")
	require.NoError(t, err)
	assert.Equal(t, Lenient, v)
	assert.Equal(t, "lenient", v.String())

	v, err = ParseNumberValidation("strict")
	require.NoError(t, err)
	assert.Equal(t, Strict, v)

	_, err = ParseNumberValidation("loose")
	assert.Error(t, err)
}
