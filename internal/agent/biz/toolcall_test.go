package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knownTools(name string) bool {
	return name == "calculate" || name == "get_current_time" || name == "search_documents"
}

func TestRecoverToolCall(t *testing.T) {
	t.Run("文本中嵌入的 JSON 对象", func(t *testing.T) {
		text := `I will use a tool: {"name": "calculate", "arguments": {"expression": "2 + 2"}}`

		call, ok := RecoverToolCall(text, knownTools)
		require.True(t, ok)
		assert.Equal(t, "calculate", call.Name)
		assert.Equal(t, "2 + 2", call.Arguments["expression"])
	})

	t.Run("弯引号被归一化", func(t *testing.T) {
		text := `{“name”: “get_current_time”, “arguments”: {}}`

		call, ok := RecoverToolCall(text, knownTools)
		require.True(t, ok)
		assert.Equal(t, "get_current_time", call.Name)
	})

	t.Run("一层列表包装", func(t *testing.T) {
		text := `[{"name": "search_documents", "arguments": {"query": "vacation policy"}}]`

		call, ok := RecoverToolCall(text, knownTools)
		require.True(t, ok)
		assert.Equal(t, "search_documents", call.Name)
		assert.Equal(t, "vacation policy", call.Arguments["query"])
	})

	t.Run("一层 function 包装", func(t *testing.T) {
		text := `{"function": {"name": "calculate", "arguments": {"expression": "1+1"}}}`

		call, ok := RecoverToolCall(text, knownTools)
		require.True(t, ok)
		assert.Equal(t, "calculate", call.Name)
	})

	t.Run("arguments 是再编码的 JSON 字符串", func(t *testing.T) {
		text := `{"name": "calculate", "arguments": "{\"expression\": \"3*3\"}"}`

		call, ok := RecoverToolCall(text, knownTools)
		require.True(t, ok)
		assert.Equal(t, "3*3", call.Arguments["expression"])
	})

	t.Run("无 arguments 的调用", func(t *testing.T) {
		text := `{"name": "get_current_time"}`

		call, ok := RecoverToolCall(text, knownTools)
		require.True(t, ok)
		assert.NotNil(t, call.Arguments)
		assert.Empty(t, call.Arguments)
	})

	t.Run("JSON 前后有解释性文字", func(t *testing.T) {
		text := "Sure, let me check.\n" +
			`{"name": "search_documents", "arguments": {"query": "benefits"}}` +
			"\nI'll get back to you."

		call, ok := RecoverToolCall(text, knownTools)
		require.True(t, ok)
		assert.Equal(t, "search_documents", call.Name)
	})
}

func TestRecoverToolCall_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"纯文本回复", "The answer is 4."},
		{"未知工具名", `{"name": "delete_everything", "arguments": {}}`},
		{"缺少工具名", `{"arguments": {"expression": "1+1"}}`},
		{"JSON 语法错误", `{"name": "calculate", "arguments": {`},
		{"空列表", `[]`},
		{"空字符串", ""},
		{"arguments 类型非法", `{"name": "calculate", "arguments": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := RecoverToolCall(tt.text, knownTools)
			assert.False(t, ok)
			assert.Nil(t, call)
		})
	}
}
