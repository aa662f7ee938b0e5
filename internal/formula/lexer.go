// Package formula parses and evaluates the arithmetic expressions used to
// derive metrics from category and account totals.
//
// The grammar is deliberately small:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = ("+" | "-") unary | primary
//	primary = number | identifier | "(" expr ")"
package formula

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

var (
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrDivisionByZero    = errors.New("division by zero")
)

// SyntaxError reports a malformed expression at a byte offset.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	pos  int
	text string
	num  float64
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func tokenize(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			toks = append(toks, token{kind: tokOp, pos: i, text: string(r)})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, pos: i, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, pos: i, text: ")"})
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			text := string(rs[start:i])
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("bad number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, pos: start, text: text, num: f})
		case isIdentStart(r):
			start := i
			for i < len(rs) && isIdentPart(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, pos: start, text: string(rs[start:i])})
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(rs)})
	return toks, nil
}
