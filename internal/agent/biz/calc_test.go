package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       string
	}{
		{"简单加法", "2 + 2", "4"},
		{"简单乘法", "10 * 5", "50"},
		{"减法", "7 - 12", "-5"},
		{"除法", "9 / 2", "4.5"},
		{"运算优先级", "2 + 3 * 4", "14"},
		{"括号改变优先级", "(2 + 3) * 4", "20"},
		{"嵌套括号", "((1 + 2) * (3 + 4))", "21"},
		{"一元负号", "-5 + 3", "-2"},
		{"括号前的一元负号", "-(2 + 3)", "-5"},
		{"小数", "0.1 + 0.2", "0.30000000000000004"},
		{"无空格", "100/4", "25"},
		{"多余空格", "  1   +   1  ", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.expression)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculate_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"标识符被拒绝", "import os"},
		{"字母被拒绝", "2 + x"},
		{"函数调用被拒绝", "abs(-1)"},
		{"空表达式", ""},
		{"纯空格", "   "},
		{"除以零", "1 / 0"},
		{"括号不匹配", "(1 + 2"},
		{"多余右括号", "1 + 2)"},
		{"连续运算符", "1 + * 2"},
		{"畸形数字", "1.2.3"},
		{"尾随运算符", "1 +"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.expression)
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidExpression)
		})
	}
}

func TestCalculate_NeverPanics(t *testing.T) {
	// 恶意或畸形输入都应以 error 返回
	inputs := []string{
		"((((((((((",
		"))))))))))",
		"--------1",
		"1/0*0",
		". . .",
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() {
			_, _ = Calculate(input)
		}, "input: %q", input)
	}
}
