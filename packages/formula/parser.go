package formula

import (
	"context"
	"math"
)

// BinaryOp represents binary operators
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var comparisonOps = map[string]BinaryOp{
	"=":  BinOpEqual,
	"==": BinOpEqual,
	"<>": BinOpNotEqual,
	"<":  BinOpLess,
	"<=": BinOpLessEqual,
	">":  BinOpGreater,
	">=": BinOpGreaterEqual,
}

// Parser evaluates a token sequence while it parses it. there is no AST:
// every grammar rule returns the value of what it consumed.
type Parser struct {
	tokens []Token
	pos    int
	ctx    context.Context
	ec     *evalContext
}

func newParser(ctx context.Context, tokens []Token, ec *evalContext) *Parser {
	return &Parser{tokens: tokens, ctx: ctx, ec: ec}
}

// Parse evaluates the whole formula. the returned error is a grammar
// failure; spreadsheet errors are values.
func (p *Parser) Parse() (Value, error) {
	result, err := p.parseComparison()
	if err != nil {
		return Value{}, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return Value{}, newEvalError(p.pos, "unexpected %s %q after expression", tok.Type, tok.Value)
	}
	return result.Scalar(), nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) consume() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(op string) error {
	tok := p.consume()
	if !tok.is(op) {
		return newEvalError(p.pos-1, "expected %q, found %s %q", op, tok.Type, tok.Value)
	}
	return nil
}

// parseComparison handles a single, non-associative comparison.
func (p *Parser) parseComparison() (Arg, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return Arg{}, err
	}
	tok := p.peek()
	if tok.Type != TokenOperator {
		return left, nil
	}
	op, ok := comparisonOps[tok.Value]
	if !ok {
		return left, nil
	}
	p.pos++
	right, err := p.parseAdditive()
	if err != nil {
		return Arg{}, err
	}
	return ScalarArg(compareValues(op, left.Scalar(), right.Scalar())), nil
}

// parseAdditive handles + - and the & concatenation, left to right.
func (p *Parser) parseAdditive() (Arg, error) {
	left, err := p.parseTerm()
	if err != nil {
		return Arg{}, err
	}
	for {
		var op BinaryOp
		switch tok := p.peek(); {
		case tok.is("+"):
			op = BinOpAdd
		case tok.is("-"):
			op = BinOpSubtract
		case tok.is("&"):
			op = BinOpConcat
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return Arg{}, err
		}
		left = ScalarArg(applyBinary(op, left.Scalar(), right.Scalar()))
	}
}

// parseTerm handles * and /.
func (p *Parser) parseTerm() (Arg, error) {
	left, err := p.parsePower()
	if err != nil {
		return Arg{}, err
	}
	for {
		var op BinaryOp
		switch tok := p.peek(); {
		case tok.is("*"):
			op = BinOpMultiply
		case tok.is("/"):
			op = BinOpDivide
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return Arg{}, err
		}
		left = ScalarArg(applyBinary(op, left.Scalar(), right.Scalar()))
	}
}

// parsePower handles ^. it is left-associative and its right operand is a
// primary, so 2^3^2 is 64.
func (p *Parser) parsePower() (Arg, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return Arg{}, err
	}
	for p.peek().is("^") {
		p.pos++
		right, err := p.parsePrimary()
		if err != nil {
			return Arg{}, err
		}
		left = ScalarArg(applyBinary(BinOpPower, left.Scalar(), right.Scalar()))
	}
	return left, nil
}

func (p *Parser) parsePrimary() (Arg, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		p.pos++
		return ScalarArg(Number(tok.Num)), nil
	case TokenString:
		p.pos++
		return ScalarArg(Text(tok.Value)), nil
	case TokenBoolean:
		p.pos++
		return ScalarArg(Bool(tok.Bool)), nil
	case TokenCell:
		p.pos++
		return ScalarArg(p.ec.resolve(p.ctx, tok.Sheet, tok.Value)), nil
	case TokenRange:
		p.pos++
		return p.resolveRange(tok), nil
	case TokenFunction:
		return p.parseFunctionCall()
	case TokenIdentifier:
		// names are not supported, same as an unknown function
		p.pos++
		return ScalarArg(Err(ErrName)), nil
	case TokenEOF:
		return ScalarArg(Number(0)), nil
	}

	switch {
	case tok.is("("):
		p.pos++
		inner, err := p.parseComparison()
		if err != nil {
			return Arg{}, err
		}
		if err := p.expect(")"); err != nil {
			return Arg{}, err
		}
		return inner, nil
	case tok.is("+"), tok.is("-"):
		p.pos++
		operand, err := p.parsePrimary()
		if err != nil {
			return Arg{}, err
		}
		return ScalarArg(applyUnary(tok.Value, operand.Scalar())), nil
	case tok.is("{"):
		return p.parseArray()
	}
	return Arg{}, newEvalError(p.pos, "unexpected %s %q", tok.Type, tok.Value)
}

func (p *Parser) resolveRange(tok Token) Arg {
	r, ok := ParseRange(tok.Value)
	if ok && r.Shape().Size() > maxRangeCells {
		return ScalarArg(Err(ErrRef))
	}
	refs := ExpandRange(tok.Value)
	shape := RangeShape(tok.Value)
	if !ok {
		shape = Shape{Rows: 1, Cols: 1}
	}
	return RangeArg(p.ec.resolveRange(p.ctx, tok.Sheet, refs), shape)
}

// parseFunctionCall evaluates NAME(arg, arg; arg). arguments are always
// evaluated, left to right, before the function runs.
func (p *Parser) parseFunctionCall() (Arg, error) {
	nameTok := p.consume()
	name := p.ec.engine.ResolveFunctionName(nameTok.Value)
	if err := p.expect("("); err != nil {
		return Arg{}, err
	}
	args, err := p.parseArguments()
	if err != nil {
		return Arg{}, err
	}
	if err := p.expect(")"); err != nil {
		return Arg{}, err
	}

	fn, ok := p.ec.engine.lookup(name)
	if !ok {
		p.ec.engine.log.Debugw("unknown function", "eval", p.ec.id, "name", name)
		return ScalarArg(Err(ErrName)), nil
	}
	return ScalarArg(normalizeResult(fn.invoke(p.ctx, args))), nil
}

func (p *Parser) parseArguments() ([]Arg, error) {
	var args []Arg
	if p.peek().is(")") {
		return args, nil
	}
	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if tok := p.peek(); !tok.is(",") && !tok.is(";") {
			return args, nil
		}
		p.pos++
	}
}

// parseArray reads an array constant {1,2;3,4}: commas separate columns,
// semicolons separate rows, and every row must have the same width.
func (p *Parser) parseArray() (Arg, error) {
	p.pos++ // {
	var values []Value
	rows, cols, width := 1, 0, -1
	for {
		elem, err := p.parseComparison()
		if err != nil {
			return Arg{}, err
		}
		values = append(values, elem.Scalar())
		cols++

		switch tok := p.consume(); {
		case tok.is(","):
		case tok.is(";"):
			if width >= 0 && cols != width {
				return Arg{}, newEvalError(p.pos-1, "array rows differ in width")
			}
			width, cols = cols, 0
			rows++
		case tok.is("}"):
			if width >= 0 && cols != width {
				return Arg{}, newEvalError(p.pos-1, "array rows differ in width")
			}
			return RangeArg(values, Shape{Rows: rows, Cols: cols}), nil
		default:
			return Arg{}, newEvalError(p.pos-1, "unexpected %s %q in array", tok.Type, tok.Value)
		}
	}
}

// normalizeResult keeps results inside the value model: non-finite numbers
// are #NUM!.
func normalizeResult(v Value) Value {
	if v.kind == KindNumber && !isFinite(v.num) {
		return Err(ErrNum)
	}
	return v
}

func applyUnary(op string, v Value) Value {
	if IsError(v) {
		return v
	}
	n, ok := arithNumber(v)
	if !ok {
		return Err(ErrValue)
	}
	if op == "-" {
		n = -n
	}
	return Number(n)
}

// applyBinary evaluates an arithmetic or concatenation operator. the left
// error wins over the right one.
func applyBinary(op BinaryOp, left, right Value) Value {
	if IsError(left) {
		return left
	}
	if IsError(right) {
		return right
	}
	if op == BinOpConcat {
		return Text(left.String() + right.String())
	}
	a, ok := arithNumber(left)
	if !ok {
		return Err(ErrValue)
	}
	b, ok := arithNumber(right)
	if !ok {
		return Err(ErrValue)
	}
	switch op {
	case BinOpAdd:
		return numberResult(a + b)
	case BinOpSubtract:
		return numberResult(a - b)
	case BinOpMultiply:
		return numberResult(a * b)
	case BinOpDivide:
		if b == 0 {
			return Err(ErrDiv0)
		}
		return numberResult(a / b)
	case BinOpPower:
		if a == 0 && b < 0 {
			return Err(ErrDiv0)
		}
		return numberResult(math.Pow(a, b))
	}
	return Err(ErrValue)
}

// compareValues compares numerically when both sides read as numbers and
// as text otherwise: exact for = and <>, collated case-insensitively for
// ordering.
func compareValues(op BinaryOp, left, right Value) Value {
	if IsError(left) {
		return left
	}
	if IsError(right) {
		return right
	}
	var cmp int
	ln, lok := compareNumber(left)
	rn, rok := compareNumber(right)
	if lok && rok {
		switch {
		case ln < rn:
			cmp = -1
		case ln > rn:
			cmp = 1
		}
	} else {
		ls, rs := left.String(), right.String()
		switch op {
		case BinOpEqual:
			return Bool(ls == rs)
		case BinOpNotEqual:
			return Bool(ls != rs)
		}
		cmp = compareText(ls, rs)
	}
	switch op {
	case BinOpEqual:
		return Bool(cmp == 0)
	case BinOpNotEqual:
		return Bool(cmp != 0)
	case BinOpLess:
		return Bool(cmp < 0)
	case BinOpLessEqual:
		return Bool(cmp <= 0)
	case BinOpGreater:
		return Bool(cmp > 0)
	case BinOpGreaterEqual:
		return Bool(cmp >= 0)
	}
	return Err(ErrValue)
}
