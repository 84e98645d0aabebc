package parser

import (
	"errors"
	"fmt"
	"iter"

	"asynccalc/internal/models"
)

const (
	precAdditive = iota + 1
	precMultiplicative
	precUnary
	precExponent
)

const maxDepth = 256

// SyntaxError is a tokenization or parse failure located in the source text.
type SyntaxError struct {
	Code    string
	Message string
	Offset  int
	Length  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Message)
}

// Parse builds the projection of text chosen by factory. Parsing is a single pass with one
// token of lookahead.
func Parse[T any](text string, factory NodeFactory[T]) (T, error) {
	next, stop := iter.Pull2(EnumerateTokens(text, false))
	defer stop()

	p := &parser[T]{factory: factory, next: next, end: len(text)}

	var zero T
	if err := p.advance(); err != nil {
		return zero, err
	}
	if p.tok.Type == TokenEnd {
		return zero, p.fail(models.UnexpectedEndErrorCode, "empty expression")
	}

	result, err := p.parseExpression(precAdditive)
	if err != nil {
		return zero, err
	}

	switch p.tok.Type {
	case TokenEnd:
		return result, nil
	case TokenCloseParen:
		return zero, p.fail(models.UnbalancedParenthesesErrorCode, "unmatched ')'")
	default:
		return zero, p.fail(models.UnexpectedTokenErrorCode, fmt.Sprintf("unexpected %s after expression", p.tok.Type))
	}
}

type parser[T any] struct {
	factory NodeFactory[T]
	next    func() (Token, error, bool)
	tok     Token
	end     int
	depth   int
}

func (p *parser[T]) advance() error {
	tok, err, ok := p.next()
	if !ok {
		p.tok = Token{Type: TokenEnd, Offset: p.end}
		return nil
	}
	if err != nil {
		var tokErr *TokenizeError
		if errors.As(err, &tokErr) {
			return &SyntaxError{
				Code:    models.InvalidTokenErrorCode,
				Message: tokErr.Token.Err,
				Offset:  tokErr.Token.Offset,
				Length:  tokErr.Token.Length,
			}
		}
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser[T]) fail(code, msg string) *SyntaxError {
	return &SyntaxError{Code: code, Message: msg, Offset: p.tok.Offset, Length: p.tok.Length}
}

func (p *parser[T]) parseExpression(minPrec int) (T, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return left, err
	}

	for {
		op, prec, ok := infix(p.tok.Type)
		if !ok || prec < minPrec {
			return left, nil
		}
		offset := p.tok.Offset
		if err := p.advance(); err != nil {
			return left, err
		}

		nextMin := prec + 1
		if op == OpPower {
			nextMin = prec
		}
		right, err := p.parseExpression(nextMin)
		if err != nil {
			return right, err
		}
		left = p.factory.BinaryOp(op, offset, left, right)
	}
}

func (p *parser[T]) parsePrefix() (T, error) {
	var zero T

	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return zero, p.fail(models.UnexpectedTokenErrorCode, "expression is nested too deeply")
	}

	tok := p.tok
	switch tok.Type {
	case TokenNumber:
		if err := p.advance(); err != nil {
			return zero, err
		}
		return p.factory.Number(tok.Text, tok.Offset), nil

	case TokenPlus, TokenMinus:
		if err := p.advance(); err != nil {
			return zero, err
		}
		operand, err := p.parseExpression(precUnary)
		if err != nil {
			return zero, err
		}
		return p.factory.UnaryOp(OpType(tok.Text), tok.Offset, operand), nil

	case TokenOpenParen:
		return p.parseGroup()

	case TokenIdentifier:
		if err := p.advance(); err != nil {
			return zero, err
		}
		if p.tok.Type != TokenOpenParen {
			return zero, &SyntaxError{
				Code:    models.UnexpectedTokenErrorCode,
				Message: fmt.Sprintf("unknown identifier %q", tok.Text),
				Offset:  tok.Offset,
				Length:  tok.Length,
			}
		}
		arg, err := p.parseGroup()
		if err != nil {
			return zero, err
		}
		return p.factory.UnaryOp(OpType(tok.Text), tok.Offset, arg), nil

	case TokenEnd:
		return zero, p.fail(models.UnexpectedEndErrorCode, "unexpected end of expression")

	default:
		return zero, p.fail(models.UnexpectedTokenErrorCode, fmt.Sprintf("unexpected %s", tok.Type))
	}
}

// parseGroup parses "( expression )" starting at the opening parenthesis.
func (p *parser[T]) parseGroup() (T, error) {
	var zero T
	if err := p.advance(); err != nil {
		return zero, err
	}
	inner, err := p.parseExpression(precAdditive)
	if err != nil {
		return zero, err
	}
	switch p.tok.Type {
	case TokenCloseParen:
		if err := p.advance(); err != nil {
			return zero, err
		}
		return inner, nil
	case TokenEnd:
		return zero, p.fail(models.UnbalancedParenthesesErrorCode, "missing ')'")
	default:
		return zero, p.fail(models.UnexpectedTokenErrorCode, fmt.Sprintf("expected ')', found %s", p.tok.Type))
	}
}

func infix(tt TokenType) (OpType, int, bool) {
	switch tt {
	case TokenPlus:
		return OpAdd, precAdditive, true
	case TokenMinus:
		return OpSubtract, precAdditive, true
	case TokenMultiply:
		return OpMultiply, precMultiplicative, true
	case TokenDivide:
		return OpDivide, precMultiplicative, true
	case TokenExponent:
		return OpPower, precExponent, true
	}
	return "", 0, false
}
