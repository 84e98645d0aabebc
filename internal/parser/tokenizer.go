package parser

import (
	"fmt"
	"iter"
	"unicode"
	"unicode/utf8"
)

type TokenType int

const (
	TokenNumber TokenType = iota
	TokenIdentifier
	TokenPlus
	TokenMinus
	TokenMultiply
	TokenDivide
	TokenExponent
	TokenOpenParen
	TokenCloseParen
	TokenEnd
	TokenError
)

var tokenNames = [...]string{
	TokenNumber:     "number",
	TokenIdentifier: "identifier",
	TokenPlus:       "'+'",
	TokenMinus:      "'-'",
	TokenMultiply:   "'*'",
	TokenDivide:     "'/'",
	TokenExponent:   "'^'",
	TokenOpenParen:  "'('",
	TokenCloseParen: "')'",
	TokenEnd:        "end of expression",
	TokenError:      "invalid character",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var singleCharTokens = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMultiply,
	'/': TokenDivide,
	'^': TokenExponent,
	'(': TokenOpenParen,
	')': TokenCloseParen,
}

// Token is a lexeme of an expression. Malformed tokens keep their span and carry Err.
type Token struct {
	Type   TokenType
	Offset int
	Length int
	Text   string
	Err    string
}

// IsError reports whether the token is malformed.
func (t Token) IsError() bool {
	return t.Err != ""
}

// TokenizeError is produced when a malformed token is met and errors are not allowed.
type TokenizeError struct {
	Token Token
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("invalid token %q at offset %d: %s", e.Token.Text, e.Token.Offset, e.Token.Err)
}

// EnumerateTokens lazily splits text into tokens. Each iteration rescans text from the
// start. With allowErrors the malformed tokens are yielded inline; otherwise the first one
// is yielded together with a *TokenizeError and the sequence ends.
func EnumerateTokens(text string, allowErrors bool) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		s := scanner{text: text}
		for {
			tok, ok := s.next()
			if !ok {
				return
			}
			if tok.IsError() && !allowErrors {
				yield(tok, &TokenizeError{Token: tok})
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

type scanner struct {
	text string
	pos  int
}

func (s *scanner) next() (Token, bool) {
	for s.pos < len(s.text) && isSpace(s.text[s.pos]) {
		s.pos++
	}
	if s.pos >= len(s.text) {
		return Token{}, false
	}

	start := s.pos
	c := s.text[start]
	if tt, ok := singleCharTokens[c]; ok {
		s.pos++
		return s.token(tt, start, ""), true
	}
	if isDigit(c) {
		return s.scanNumber(), true
	}

	r, size := utf8.DecodeRuneInString(s.text[start:])
	if r == '_' || unicode.IsLetter(r) {
		return s.scanIdentifier(), true
	}
	s.pos += size
	return s.token(TokenError, start, "unexpected character"), true
}

func (s *scanner) scanNumber() Token {
	start := s.pos
	s.skipDigits()
	if s.peek() == '.' {
		s.pos++
		s.skipDigits()
	}
	if c := s.peek(); c == 'e' || c == 'E' {
		s.pos++
		if c := s.peek(); c == '+' || c == '-' {
			s.pos++
		}
		if !isDigit(s.peek()) {
			return s.token(TokenNumber, start, "digits in exponent expected")
		}
		s.skipDigits()
	}
	if r, _ := utf8.DecodeRuneInString(s.text[s.pos:]); isIdentPart(r) {
		return s.token(TokenNumber, start, "number must not end with a letter/digit")
	}
	return s.token(TokenNumber, start, "")
}

func (s *scanner) scanIdentifier() Token {
	start := s.pos
	for s.pos < len(s.text) {
		r, size := utf8.DecodeRuneInString(s.text[s.pos:])
		if !isIdentPart(r) {
			break
		}
		s.pos += size
	}
	return s.token(TokenIdentifier, start, "")
}

func (s *scanner) skipDigits() {
	for isDigit(s.peek()) {
		s.pos++
	}
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.text) {
		return 0
	}
	return s.text[s.pos]
}

func (s *scanner) token(tt TokenType, start int, errMsg string) Token {
	return Token{
		Type:   tt,
		Offset: start,
		Length: s.pos - start,
		Text:   s.text[start:s.pos],
		Err:    errMsg,
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
