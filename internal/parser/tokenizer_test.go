package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, text string, allowErrors bool) ([]Token, error) {
	t.Helper()
	var tokens []Token
	for tok, err := range EnumerateTokens(text, allowErrors) {
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func TestEnumerateTokensNumbers(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
		length int
		err    string
	}{
		{name: "integer", input: "333", offset: 0, length: 3},
		{name: "leading space", input: " 15.3", offset: 1, length: 4},
		{name: "trailing dot", input: "1.+", offset: 0, length: 2},
		{name: "exponent", input: "2.5e-3", offset: 0, length: 6},
		{name: "exponent without digits", input: "1e ", offset: 0, length: 2, err: "digits in exponent expected"},
		{name: "exponent sign without digits", input: "1E+)", offset: 0, length: 3, err: "digits in exponent expected"},
		{name: "trailing letter", input: "1u ", offset: 0, length: 1, err: "number must not end with a letter/digit"},
		{name: "trailing underscore", input: "12_", offset: 0, length: 2, err: "number must not end with a letter/digit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := collect(t, tt.input, true)
			require.NoError(t, err)
			require.NotEmpty(t, tokens)

			tok := tokens[0]
			assert.Equal(t, TokenNumber, tok.Type)
			assert.Equal(t, tt.offset, tok.Offset)
			assert.Equal(t, tt.length, tok.Length)
			assert.Equal(t, tt.input[tt.offset:tt.offset+tt.length], tok.Text)
			assert.Equal(t, tt.err, tok.Err)
		})
	}
}

func TestEnumerateTokensTrailingDotThenPlus(t *testing.T) {
	tokens, err := collect(t, "1.+", false)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "1.", tokens[0].Text)
	assert.Equal(t, TokenPlus, tokens[1].Type)
	assert.Equal(t, 2, tokens[1].Offset)
}

func TestEnumerateTokensSequence(t *testing.T) {
	tokens, err := collect(t, "(15+5)*10", false)
	require.NoError(t, err)

	want := []struct {
		tt   TokenType
		text string
	}{
		{TokenOpenParen, "("},
		{TokenNumber, "15"},
		{TokenPlus, "+"},
		{TokenNumber, "5"},
		{TokenCloseParen, ")"},
		{TokenMultiply, "*"},
		{TokenNumber, "10"},
	}
	require.Len(t, tokens, len(want))
	for i, w := range want {
		assert.Equal(t, w.tt, tokens[i].Type, "token %d", i)
		assert.Equal(t, w.text, tokens[i].Text, "token %d", i)
	}
}

func TestEnumerateTokensIdentifiersAndOperators(t *testing.T) {
	tokens, err := collect(t, "ln(x_1) ^ -2 / _pi", false)
	require.NoError(t, err)

	types := make([]TokenType, 0, len(tokens))
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenIdentifier, TokenOpenParen, TokenIdentifier, TokenCloseParen,
		TokenExponent, TokenMinus, TokenNumber, TokenDivide, TokenIdentifier,
	}, types)
	assert.Equal(t, "x_1", tokens[2].Text)
	assert.Equal(t, "_pi", tokens[8].Text)
}

func TestEnumerateTokensUnknownCharacter(t *testing.T) {
	tokens, err := collect(t, "2 # 3 €", true)
	require.NoError(t, err)
	require.Len(t, tokens, 4)

	assert.Equal(t, TokenError, tokens[1].Type)
	assert.Equal(t, "#", tokens[1].Text)
	assert.Equal(t, 2, tokens[1].Offset)
	assert.Equal(t, 1, tokens[1].Length)

	assert.Equal(t, TokenError, tokens[3].Type)
	assert.Equal(t, "€", tokens[3].Text, "multi-byte characters form a single error token")
}

func TestEnumerateTokensStopsOnError(t *testing.T) {
	tokens, err := collect(t, "1 + 2u + 3", false)
	require.Error(t, err)

	var tokErr *TokenizeError
	require.ErrorAs(t, err, &tokErr)
	assert.Equal(t, "2", tokErr.Token.Text)
	assert.Equal(t, 4, tokErr.Token.Offset)
	assert.Len(t, tokens, 2)
}

func TestEnumerateTokensIsRestartableAndLazy(t *testing.T) {
	seq := EnumerateTokens("1 + 2 * 3", false)

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)

	var all []string
	for tok := range seq {
		all = append(all, tok.Text)
	}
	assert.Equal(t, []string{"1", "+", "2", "*", "3"}, all)
}

func TestNumberLiteralRoundTrip(t *testing.T) {
	literals := []string{"0", "7", "42", "3.14", "10.", "1e10", "6.02E+23", "9.1e-31", "000.5"}
	for _, lit := range literals {
		text := " ( " + lit + " ) "
		tokens, err := collect(t, text, false)
		require.NoError(t, err, lit)
		require.Len(t, tokens, 3, lit)
		tok := tokens[1]
		assert.Equal(t, lit, text[tok.Offset:tok.Offset+tok.Length])
	}
}
