package rules

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenOr     // "or" / "||"
	tokenAnd    // "and" / "&&"
	tokenNot    // "not" / "!"
	tokenEq     // "=="
	tokenNotEq  // "!="
	tokenLt     // "<"
	tokenLtEq   // "<="
	tokenGt     // ">"
	tokenGtEq   // ">="
	tokenPlus   // "+"
	tokenMinus  // "-"
	tokenStar   // "*"
	tokenSlash  // "/"
	tokenPct    // "%"
	tokenPow    // "**"
	tokenLParen // "("
	tokenRParen // ")"
)

type token struct {
	kind  tokenKind
	text  string
	value float64 // set for tokenNumber
	pos   int
}

// tokenize splits a rule expression into tokens. Both the keyword form
// (and/or/not) and the symbolic form (&&/||/!) are accepted.
func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.' ||
				runes[i] == 'e' || runes[i] == 'E' ||
				((runes[i] == '+' || runes[i] == '-') && (runes[i-1] == 'e' || runes[i-1] == 'E'))) {
				i++
			}
			text := string(runes[start:i])
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", text, start)
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, value: value, pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			text := string(runes[start:i])
			switch text {
			case "and":
				tokens = append(tokens, token{kind: tokenAnd, text: text, pos: start})
			case "or":
				tokens = append(tokens, token{kind: tokenOr, text: text, pos: start})
			case "not":
				tokens = append(tokens, token{kind: tokenNot, text: text, pos: start})
			default:
				tokens = append(tokens, token{kind: tokenIdent, text: text, pos: start})
			}
		default:
			kind, width, err := operatorToken(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: kind, text: string(runes[i : i+width]), pos: i})
			i += width
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(runes)})
	return tokens, nil
}

func operatorToken(runes []rune, i int) (tokenKind, int, error) {
	two := ""
	if i+1 < len(runes) {
		two = string(runes[i : i+2])
	}
	switch two {
	case "||":
		return tokenOr, 2, nil
	case "&&":
		return tokenAnd, 2, nil
	case "==":
		return tokenEq, 2, nil
	case "!=":
		return tokenNotEq, 2, nil
	case "<=":
		return tokenLtEq, 2, nil
	case ">=":
		return tokenGtEq, 2, nil
	case "**":
		return tokenPow, 2, nil
	}
	switch runes[i] {
	case '!':
		return tokenNot, 1, nil
	case '<':
		return tokenLt, 1, nil
	case '>':
		return tokenGt, 1, nil
	case '+':
		return tokenPlus, 1, nil
	case '-':
		return tokenMinus, 1, nil
	case '*':
		return tokenStar, 1, nil
	case '/':
		return tokenSlash, 1, nil
	case '%':
		return tokenPct, 1, nil
	case '(':
		return tokenLParen, 1, nil
	case ')':
		return tokenRParen, 1, nil
	}
	return tokenEOF, 0, fmt.Errorf("unexpected character %q at position %d", runes[i], i)
}
