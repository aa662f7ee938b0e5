package formula

import (
	"fmt"
	"math"
)

type node interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

type identNode string

func (n identNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownIdentifier, string(n))
	}
	return v, nil
}

type unaryNode struct {
	op rune
	x  node
}

func (n unaryNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.x.eval(vars)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

type binaryNode struct {
	op   rune
	l, r node
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.l.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	default:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	}
}

// Expr is a parsed expression, safe for repeated evaluation.
type Expr struct {
	src    string
	root   node
	idents []string
}

// Parse compiles src. Errors are *SyntaxError.
func Parse(src string) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, seen: map[string]bool{}}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return &Expr{src: src, root: root, idents: p.idents}, nil
}

func (e *Expr) String() string { return e.src }

// Identifiers lists free variables in order of first appearance.
func (e *Expr) Identifiers() []string { return append([]string(nil), e.idents...) }

// Eval evaluates against vars. Unbound identifiers and division by zero are
// errors; a non-finite result is reported as division by zero.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	v, err := e.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrDivisionByZero
	}
	return v, nil
}

type parser struct {
	toks   []token
	i      int
	idents []string
	seen   map[string]bool
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: rune(t.text[0]), l: left, r: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: rune(t.text[0]), l: left, r: right}
	}
}

func (p *parser) unary() (node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "+" || t.text == "-") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: rune(t.text[0]), x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode(t.num), nil
	case tokIdent:
		if !p.seen[t.text] {
			p.seen[t.text] = true
			p.idents = append(p.idents, t.text)
		}
		return identNode(t.text), nil
	case tokLParen:
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, &SyntaxError{Pos: c.pos, Msg: "expected )"}
		}
		return x, nil
	case tokEOF:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected end of expression"}
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
}
