// Package rules implements the declarative expression language used by
// strategy entry/exit predicates and the market filter. Expressions are
// parsed once at configuration load into a typed tree and evaluated
// against indicator rows without any dynamic code execution.
//
// Grammar (precedence low to high):
//
//	or:         and (("or" | "||") and)*
//	and:        not (("and" | "&&") not)*
//	not:        ("not" | "!") not | comparison
//	comparison: arith (cmpop arith)*        chained, folded with AND
//	arith:      term (("+" | "-") term)*
//	term:       unary (("*" | "/" | "%") unary)*
//	unary:      ("+" | "-") unary | power
//	power:      atom ("**" unary)?          right associative
//	atom:       number | identifier | "(" or ")"
//
// Identifiers name indicator columns (e.g. close, sma_200, ret_1d).
// Comparisons over NaN are false, so an incomplete indicator window can
// never satisfy a predicate.
package rules

import (
	"fmt"
	"math"
	"sort"
)

// Row supplies named indicator values to an evaluation.
// *contracts.Bar satisfies this.
type Row interface {
	Feature(name string) (float64, bool)
}

// Rule is a parsed, type-checked boolean expression.
type Rule struct {
	text string
	expr node
	vars []string
}

// Parse compiles a rule expression. The result is guaranteed to be
// boolean-typed; malformed or numerically-typed expressions error here,
// never at evaluation time.
func Parse(input string) (*Rule, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", input, err)
	}
	if tokens[0].kind == tokenEOF {
		return nil, fmt.Errorf("rule expression cannot be empty")
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", input, err)
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("rule %q: unexpected %q at position %d", input, tok.text, tok.pos)
	}
	if expr.typ() != typeBool {
		return nil, fmt.Errorf("rule %q: expression is numeric, expected a condition", input)
	}

	seen := make(map[string]bool)
	collectVars(expr, seen)
	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	sort.Strings(vars)

	return &Rule{text: input, expr: expr, vars: vars}, nil
}

// String returns the original expression text.
func (r *Rule) String() string {
	return r.text
}

// Identifiers returns the column names the rule reads, sorted ascending.
func (r *Rule) Identifiers() []string {
	return r.vars
}

// Evaluate runs the rule against one indicator row. The only possible
// error is an identifier the row does not supply.
func (r *Rule) Evaluate(row Row) (bool, error) {
	v, err := evalNode(r.expr, row)
	if err != nil {
		return false, fmt.Errorf("rule %q: %w", r.text, err)
	}
	return v.b, nil
}

type exprType int

const (
	typeNum exprType = iota
	typeBool
)

type node interface {
	typ() exprType
}

type numberNode struct{ value float64 }

type identNode struct{ name string }

type unaryNode struct {
	op      tokenKind // tokenMinus, tokenPlus, tokenNot
	operand node
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

// compareNode holds a possibly chained comparison: operands[0] op[0]
// operands[1] op[1] operands[2] ... folded with AND, matching chained
// comparison semantics.
type compareNode struct {
	operands []node
	ops      []tokenKind
}

func (numberNode) typ() exprType  { return typeNum }
func (identNode) typ() exprType   { return typeNum }
func (compareNode) typ() exprType { return typeBool }

func (n unaryNode) typ() exprType {
	if n.op == tokenNot {
		return typeBool
	}
	return typeNum
}

func (n binaryNode) typ() exprType {
	switch n.op {
	case tokenAnd, tokenOr:
		return typeBool
	}
	return typeNum
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if left.typ() != typeBool || right.typ() != typeBool {
			return nil, fmt.Errorf("operands of \"or\" must be conditions")
		}
		left = binaryNode{op: tokenOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if left.typ() != typeBool || right.typ() != typeBool {
			return nil, fmt.Errorf("operands of \"and\" must be conditions")
		}
		left = binaryNode{op: tokenAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.accept(tokenNot) {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if operand.typ() != typeBool {
			return nil, fmt.Errorf("operand of \"not\" must be a condition")
		}
		return unaryNode{op: tokenNot, operand: operand}, nil
	}
	return p.parseComparison()
}

func isCompareOp(kind tokenKind) bool {
	switch kind {
	case tokenEq, tokenNotEq, tokenLt, tokenLtEq, tokenGt, tokenGtEq:
		return true
	}
	return false
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if !isCompareOp(p.peek().kind) {
		return left, nil
	}
	operands := []node{left}
	var ops []tokenKind
	for isCompareOp(p.peek().kind) {
		op := p.next().kind
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		if right.typ() != typeNum {
			return nil, fmt.Errorf("comparison operands must be numeric")
		}
		operands = append(operands, right)
		ops = append(ops, op)
	}
	if operands[0].typ() != typeNum {
		return nil, fmt.Errorf("comparison operands must be numeric")
	}
	return compareNode{operands: operands, ops: ops}, nil
}

func (p *parser) parseArith() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenPlus || p.peek().kind == tokenMinus {
		op := p.next().kind
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if left.typ() != typeNum || right.typ() != typeNum {
			return nil, fmt.Errorf("arithmetic operands must be numeric")
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenStar || p.peek().kind == tokenSlash || p.peek().kind == tokenPct {
		op := p.next().kind
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if left.typ() != typeNum || right.typ() != typeNum {
			return nil, fmt.Errorf("arithmetic operands must be numeric")
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokenPlus || p.peek().kind == tokenMinus {
		op := p.next().kind
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if operand.typ() != typeNum {
			return nil, fmt.Errorf("unary %s requires a numeric operand", tokenText(op))
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.accept(tokenPow) {
		// Right associative; the exponent may carry its own sign.
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if base.typ() != typeNum || exponent.typ() != typeNum {
			return nil, fmt.Errorf("operands of \"**\" must be numeric")
		}
		return binaryNode{op: tokenPow, left: base, right: exponent}, nil
	}
	return base, nil
}

func (p *parser) parseAtom() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		return numberNode{value: tok.value}, nil
	case tokenIdent:
		return identNode{name: tok.text}, nil
	case tokenLParen:
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokenRParen) {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return expr, nil
	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
}

func tokenText(kind tokenKind) string {
	switch kind {
	case tokenPlus:
		return "+"
	case tokenMinus:
		return "-"
	}
	return "?"
}

type value struct {
	n float64
	b bool
	t exprType
}

func numValue(n float64) value { return value{n: n, t: typeNum} }
func boolValue(b bool) value   { return value{b: b, t: typeBool} }

func evalNode(n node, row Row) (value, error) {
	switch e := n.(type) {
	case numberNode:
		return numValue(e.value), nil
	case identNode:
		v, ok := row.Feature(e.name)
		if !ok {
			return value{}, fmt.Errorf("unknown identifier %q", e.name)
		}
		return numValue(v), nil
	case unaryNode:
		operand, err := evalNode(e.operand, row)
		if err != nil {
			return value{}, err
		}
		switch e.op {
		case tokenNot:
			return boolValue(!operand.b), nil
		case tokenMinus:
			return numValue(-operand.n), nil
		default:
			return operand, nil
		}
	case binaryNode:
		left, err := evalNode(e.left, row)
		if err != nil {
			return value{}, err
		}
		// Boolean operators short-circuit.
		switch e.op {
		case tokenAnd:
			if !left.b {
				return boolValue(false), nil
			}
			right, err := evalNode(e.right, row)
			if err != nil {
				return value{}, err
			}
			return boolValue(right.b), nil
		case tokenOr:
			if left.b {
				return boolValue(true), nil
			}
			right, err := evalNode(e.right, row)
			if err != nil {
				return value{}, err
			}
			return boolValue(right.b), nil
		}
		right, err := evalNode(e.right, row)
		if err != nil {
			return value{}, err
		}
		switch e.op {
		case tokenPlus:
			return numValue(left.n + right.n), nil
		case tokenMinus:
			return numValue(left.n - right.n), nil
		case tokenStar:
			return numValue(left.n * right.n), nil
		case tokenSlash:
			return numValue(left.n / right.n), nil
		case tokenPct:
			return numValue(math.Mod(left.n, right.n)), nil
		case tokenPow:
			return numValue(math.Pow(left.n, right.n)), nil
		}
		return value{}, fmt.Errorf("unsupported operator")
	case compareNode:
		result := true
		left, err := evalNode(e.operands[0], row)
		if err != nil {
			return value{}, err
		}
		for i, op := range e.ops {
			right, err := evalNode(e.operands[i+1], row)
			if err != nil {
				return value{}, err
			}
			result = result && compare(op, left.n, right.n)
			left = right
		}
		return boolValue(result), nil
	}
	return value{}, fmt.Errorf("unsupported expression node")
}

// compare applies IEEE semantics: any comparison against NaN is false
// except !=, which is true. This matches the indicator convention that an
// undefined window never satisfies a threshold predicate.
func compare(op tokenKind, left, right float64) bool {
	switch op {
	case tokenEq:
		return left == right
	case tokenNotEq:
		return left != right
	case tokenLt:
		return left < right
	case tokenLtEq:
		return left <= right
	case tokenGt:
		return left > right
	case tokenGtEq:
		return left >= right
	}
	return false
}

func collectVars(n node, seen map[string]bool) {
	switch e := n.(type) {
	case identNode:
		seen[e.name] = true
	case unaryNode:
		collectVars(e.operand, seen)
	case binaryNode:
		collectVars(e.left, seen)
		collectVars(e.right, seen)
	case compareNode:
		for _, operand := range e.operands {
			collectVars(operand, seen)
		}
	}
}
