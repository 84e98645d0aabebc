package calculator

import (
	"context"
	"errors"

	"asynccalc/internal/models"
	"asynccalc/internal/parser"
)

// Calculator runs tokenize, parse and evaluate for a single expression. It keeps no state
// between calls and is safe for concurrent use.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calc evaluates expr in Strict mode and returns the raw engine error on failure.
func Calc(expr string) (float64, error) {
	return NewCalculator().Calculate(context.Background(), expr, Strict)
}

// Calculate evaluates expr and returns the engine error unchanged.
func (c *Calculator) Calculate(ctx context.Context, expr string, validation NumberValidation) (float64, error) {
	node, err := parser.Parse[parser.Node](expr, parser.TreeFactory{})
	if err != nil {
		return 0, err
	}
	return Calculate(ctx, node, validation)
}

// Evaluate evaluates expr and converts any failure into error details.
func (c *Calculator) Evaluate(ctx context.Context, expr string, validation NumberValidation) (float64, *models.CalculationErrorDetails) {
	v, err := c.Calculate(ctx, expr, validation)
	if err != nil {
		return 0, Details(err)
	}
	return v, nil
}

// Details maps an engine error to the form stored with a failed calculation.
func Details(err error) *models.CalculationErrorDetails {
	var syntaxErr *parser.SyntaxError
	if errors.As(err, &syntaxErr) {
		return models.NewErrorDetails(syntaxErr.Code, syntaxErr.Offset, syntaxErr.Length)
	}
	var arithErr *ArithmeticError
	if errors.As(err, &arithErr) {
		return models.NewErrorDetails(arithErr.Code, arithErr.Offset, arithErr.Length)
	}
	return &models.CalculationErrorDetails{ErrorCode: models.InternalErrorCode}
}
