package biz

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidExpression 表达式包含白名单之外的字符或语法非法。
var ErrInvalidExpression = errors.New("invalid expression")

// calcAllowedChars 计算器接受的全部字符。
// 任何其他字符在求值前即被拒绝，标识符永远到不了解析器。
const calcAllowedChars = "0123456789+-*/.() "

// Calculate 求值受限算术表达式。
// 只允许数字、四则运算符、小数点、括号和空格；
// 除零、括号不匹配等错误以 error 返回，从不 panic。
func Calculate(expression string) (string, error) {
	for _, r := range expression {
		if !strings.ContainsRune(calcAllowedChars, r) {
			return "", fmt.Errorf("%w: illegal character %q", ErrInvalidExpression, r)
		}
	}

	p := &calcParser{input: []rune(strings.ReplaceAll(expression, " ", ""))}
	if len(p.input) == 0 {
		return "", fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	value, err := p.parseExpr()
	if err != nil {
		return "", err
	}
	if p.pos != len(p.input) {
		return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidExpression, p.input[p.pos])
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return "", fmt.Errorf("%w: result is not a finite number", ErrInvalidExpression)
	}

	return strconv.FormatFloat(value, 'f', -1, 64), nil
}

// calcParser 递归下降解析器。
// 文法: expr = term {("+"|"-") term}; term = factor {("*"|"/") factor};
// factor = ["-"] (number | "(" expr ")")。
type calcParser struct {
	input []rune
	pos   int
}

func (p *calcParser) peek() (rune, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *calcParser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return value, nil
		}
		p.pos++

		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			value += rhs
		} else {
			value -= rhs
		}
	}
}

func (p *calcParser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return value, nil
		}
		p.pos++

		rhs, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			value *= rhs
		} else {
			if rhs == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrInvalidExpression)
			}
			value /= rhs
		}
	}
}

func (p *calcParser) parseFactor() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrInvalidExpression)
	}

	if ch == '-' {
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}

	if ch == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing != ')' {
			return 0, fmt.Errorf("%w: unbalanced parentheses", ErrInvalidExpression)
		}
		p.pos++
		return value, nil
	}

	return p.parseNumber()
}

func (p *calcParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, fmt.Errorf("%w: expected number at position %d", ErrInvalidExpression, start)
	}

	value, err := strconv.ParseFloat(string(p.input[start:p.pos]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed number %q", ErrInvalidExpression, string(p.input[start:p.pos]))
	}
	return value, nil
}
