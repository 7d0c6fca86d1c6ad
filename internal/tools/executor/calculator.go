package executor

import (
	"context"
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/flynn-ai/llmgate/internal/tool"
)

// Calculator evaluates arithmetic expressions.
type Calculator struct{}

func (t *Calculator) Name() string { return "calculator" }

func (t *Calculator) Description() string {
	return "Performs mathematical calculations. Use it for arithmetic operations."
}

func (t *Calculator) Parameters() []tool.Parameter {
	return []tool.Parameter{
		{Name: "expression", Type: "string", Description: `Mathematical expression (for example "2 + 2 * 3")`, Required: true},
	}
}

func (t *Calculator) Execute(ctx context.Context, input map[string]any) (any, error) {
	expr := tool.Args(input).String("expression", "")
	if expr == "" {
		return map[string]any{"error": "expression is required"}, nil
	}

	v, err := Evaluate(expr)
	if err != nil {
		return map[string]any{
			"error":      "evaluation failed: " + err.Error(),
			"expression": expr,
		}, nil
	}
	return map[string]any{"result": v.Value(), "expression": expr}, nil
}

// Number is an arithmetic value. Integer operands stay integral while the
// result is exact.
type Number struct {
	isFloat bool
	i       int64
	f       float64
}

func intNum(i int64) Number     { return Number{i: i} }
func floatNum(f float64) Number { return Number{isFloat: true, f: f} }

// Value returns the number as an int64 or float64.
func (n Number) Value() any {
	if n.isFloat {
		return n.f
	}
	return n.i
}

func (n Number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

var errDivisionByZero = errors.New("division by zero")

// Evaluate computes an arithmetic expression with + - * / // % ** and
// parentheses. ** binds tighter than unary minus and is right associative.
func Evaluate(expr string) (Number, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return Number{}, err
	}
	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return Number{}, err
	}
	if tok := p.peek(); tok.tok != token.EOF {
		return Number{}, fmt.Errorf("unexpected %s at offset %d", tok, tok.pos)
	}
	if v.isFloat && math.IsInf(v.f, 0) {
		return Number{}, errors.New("numerical result out of range")
	}
	return v, nil
}

// Pseudo tokens for ** and //.
const (
	pow      = token.Token(-1)
	floorDiv = token.Token(-2)
)

type lexeme struct {
	tok token.Token
	lit string
	pos int
}

func (l lexeme) String() string {
	switch {
	case l.tok == pow:
		return "'**'"
	case l.tok == floorDiv:
		return "'//'"
	case l.tok == token.EOF:
		return "end of expression"
	case l.lit != "":
		return strconv.Quote(l.lit)
	}
	return "'" + l.tok.String() + "'"
}

func tokenize(expr string) ([]lexeme, error) {
	return tokenizeAt(expr, 0)
}

// tokenizeAt scans expr whose first byte sits at offset base of the full
// expression. A "//" comment is the floor division operator, so the text
// after it is scanned again.
func tokenizeAt(expr string, base int) ([]lexeme, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(expr))

	var scanErr error
	var s scanner.Scanner
	s.Init(file, []byte(expr), func(pos token.Position, msg string) {
		if scanErr == nil {
			scanErr = fmt.Errorf("%s at offset %d", msg, base+pos.Offset)
		}
	}, scanner.ScanComments)

	var toks []lexeme
	for {
		pos, tok, lit := s.Scan()
		if scanErr != nil {
			return nil, scanErr
		}
		offset := base + file.Offset(pos)
		switch tok {
		case token.SEMICOLON:
			// automatic semicolon at end of input
			if lit == "\n" {
				continue
			}
		case token.COMMENT:
			if !strings.HasPrefix(lit, "//") {
				return nil, fmt.Errorf("unexpected %q at offset %d", lit, offset)
			}
			rel := offset - base
			rest, err := tokenizeAt(expr[rel+2:], offset+2)
			if err != nil {
				return nil, err
			}
			toks = append(toks, lexeme{tok: floorDiv, pos: offset})
			return append(toks, rest...), nil
		case token.MUL:
			if n := len(toks); n > 0 && toks[n-1].tok == token.MUL && toks[n-1].pos == offset-1 {
				toks[n-1].tok = pow
				continue
			}
		}
		toks = append(toks, lexeme{tok: tok, lit: lit, pos: offset})
		if tok == token.EOF {
			return toks, nil
		}
	}
}

type parser struct {
	toks []lexeme
	pos  int
}

func (p *parser) peek() lexeme { return p.toks[p.pos] }

func (p *parser) next() lexeme {
	l := p.toks[p.pos]
	if l.tok != token.EOF {
		p.pos++
	}
	return l
}

// expr = term { ("+" | "-") term }
func (p *parser) expr() (Number, error) {
	left, err := p.term()
	if err != nil {
		return Number{}, err
	}
	for {
		op := p.peek().tok
		if op != token.ADD && op != token.SUB {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return Number{}, err
		}
		if left, err = apply(op, left, right); err != nil {
			return Number{}, err
		}
	}
}

// term = unary { ("*" | "/" | "//" | "%") unary }
func (p *parser) term() (Number, error) {
	left, err := p.unary()
	if err != nil {
		return Number{}, err
	}
	for {
		op := p.peek().tok
		if op != token.MUL && op != token.QUO && op != floorDiv && op != token.REM {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return Number{}, err
		}
		if left, err = apply(op, left, right); err != nil {
			return Number{}, err
		}
	}
}

// unary = ("+" | "-") unary | power
func (p *parser) unary() (Number, error) {
	switch p.peek().tok {
	case token.ADD:
		p.next()
		return p.unary()
	case token.SUB:
		p.next()
		v, err := p.unary()
		if err != nil {
			return Number{}, err
		}
		return apply(token.SUB, intNum(0), v)
	}
	return p.power()
}

// power = atom [ "**" unary ]
func (p *parser) power() (Number, error) {
	base, err := p.atom()
	if err != nil {
		return Number{}, err
	}
	if p.peek().tok != pow {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return Number{}, err
	}
	return apply(pow, base, exp)
}

// atom = INT | FLOAT | "(" expr ")"
func (p *parser) atom() (Number, error) {
	l := p.next()
	switch l.tok {
	case token.INT:
		i, err := strconv.ParseInt(l.lit, 0, 64)
		if err != nil {
			return Number{}, fmt.Errorf("invalid integer %s", l.lit)
		}
		return intNum(i), nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(l.lit, 64)
		if err != nil {
			return Number{}, fmt.Errorf("invalid number %s", l.lit)
		}
		return floatNum(f), nil
	case token.LPAREN:
		v, err := p.expr()
		if err != nil {
			return Number{}, err
		}
		if r := p.next(); r.tok != token.RPAREN {
			return Number{}, fmt.Errorf("expected ')' but found %s at offset %d", r, r.pos)
		}
		return v, nil
	}
	return Number{}, fmt.Errorf("unexpected %s at offset %d", l, l.pos)
}

func apply(op token.Token, a, b Number) (Number, error) {
	if !a.isFloat && !b.isFloat {
		if v, ok, err := applyInt(op, a.i, b.i); ok || err != nil {
			return v, err
		}
	}
	return applyFloat(op, a.float(), b.float())
}

// applyInt returns ok=false when the result is not an exact int64.
func applyInt(op token.Token, a, b int64) (Number, bool, error) {
	switch op {
	case token.ADD:
		s := a + b
		if (s > a) == (b > 0) {
			return intNum(s), true, nil
		}
	case token.SUB:
		d := a - b
		if (d < a) == (b > 0) {
			return intNum(d), true, nil
		}
	case token.MUL:
		if a == 0 || b == 0 {
			return intNum(0), true, nil
		}
		m := a * b
		if m/b == a && !(a == -1 && b == math.MinInt64) && !(b == -1 && a == math.MinInt64) {
			return intNum(m), true, nil
		}
	case token.QUO:
		if b == 0 {
			return Number{}, false, errDivisionByZero
		}
		if a%b == 0 && !(a == math.MinInt64 && b == -1) {
			return intNum(a / b), true, nil
		}
	case floorDiv:
		if b == 0 {
			return Number{}, false, errDivisionByZero
		}
		if a == math.MinInt64 && b == -1 {
			return Number{}, false, nil
		}
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		return intNum(q), true, nil
	case token.REM:
		if b == 0 {
			return Number{}, false, errDivisionByZero
		}
		if b == -1 {
			return intNum(0), true, nil
		}
		// result takes the sign of the divisor
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return intNum(r), true, nil
	case pow:
		switch {
		case b < 0:
			return Number{}, false, nil
		case b == 0 || a == 1:
			return intNum(1), true, nil
		case a == 0:
			return intNum(0), true, nil
		case a == -1:
			if b%2 == 0 {
				return intNum(1), true, nil
			}
			return intNum(-1), true, nil
		}
		// |a| >= 2 overflows within 64 steps
		result := int64(1)
		for range b {
			next, ok, _ := applyInt(token.MUL, result, a)
			if !ok {
				return Number{}, false, nil
			}
			result = next.i
		}
		return intNum(result), true, nil
	}
	return Number{}, false, nil
}

func applyFloat(op token.Token, a, b float64) (Number, error) {
	switch op {
	case token.ADD:
		return floatNum(a + b), nil
	case token.SUB:
		return floatNum(a - b), nil
	case token.MUL:
		return floatNum(a * b), nil
	case token.QUO:
		if b == 0 {
			return Number{}, errDivisionByZero
		}
		return floatNum(a / b), nil
	case floorDiv:
		if b == 0 {
			return Number{}, errDivisionByZero
		}
		return floatNum(math.Floor(a / b)), nil
	case token.REM:
		if b == 0 {
			return Number{}, errDivisionByZero
		}
		r := math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return floatNum(r), nil
	case pow:
		if a == 0 && b < 0 {
			return Number{}, errDivisionByZero
		}
		r := math.Pow(a, b)
		if math.IsNaN(r) {
			return Number{}, errors.New("math domain error")
		}
		return floatNum(r), nil
	}
	return Number{}, fmt.Errorf("unsupported operator %s", op)
}
