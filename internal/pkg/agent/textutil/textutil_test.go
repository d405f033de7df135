package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kart-io/agent-x/internal/pkg/agent/textutil"
	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "短于限制",
			input:    "hello",
			maxLen:   10,
			expected: "hello",
		},
		{
			name:     "等于限制",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "超过限制",
			input:    "hello world",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "中文字符",
			input:    "你好世界",
			maxLen:   2,
			expected: "你好",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.TruncateString(tt.input, tt.maxLen)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSplitIntoChunks(t *testing.T) {
	t.Run("空输入返回空序列", func(t *testing.T) {
		assert.Empty(t, textutil.SplitIntoChunks("", 100, 20))
	})

	t.Run("空白输入返回空序列", func(t *testing.T) {
		assert.Empty(t, textutil.SplitIntoChunks("   \n\t  ", 100, 20))
	})

	t.Run("短文本返回单块", func(t *testing.T) {
		chunks := textutil.SplitIntoChunks("hello world", 100, 20)
		assert.Equal(t, []string{"hello world"}, chunks)
	})

	t.Run("在中点之后的句子边界切分", func(t *testing.T) {
		// 第一个窗口内最后的句号位于第 15 个字符，超过中点
		text := strings.Repeat("a", 14) + ". " + strings.Repeat("b", 14) + ". cc"
		chunks := textutil.SplitIntoChunks(text, 20, 0)
		assert.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("a", 14)+".", chunks[0])
		assert.Equal(t, strings.Repeat("b", 14)+". cc", chunks[1])
	})

	t.Run("中点之前的边界被忽略", func(t *testing.T) {
		// 句号在第 3 个字符，位于中点之前，窗口保留全长
		text := "ab." + strings.Repeat("c", 25)
		chunks := textutil.SplitIntoChunks(text, 20, 0)
		assert.Len(t, chunks, 2)
		assert.Equal(t, 20, utf8.RuneCountInString(chunks[0]))
	})

	t.Run("连续块按 overlap 重叠", func(t *testing.T) {
		text := strings.Repeat("x", 20)
		chunks := textutil.SplitIntoChunks(text, 10, 3)
		assert.Len(t, chunks, 3)
		// 第二个窗口从 10-3=7 开始，与前一块共享 3 个字符
		assert.Equal(t, strings.Repeat("x", 10), chunks[0])
		assert.Equal(t, strings.Repeat("x", 10), chunks[1])
	})

	t.Run("overlap 不小于 size 时仍能推进", func(t *testing.T) {
		text := strings.Repeat("y", 12)
		chunks := textutil.SplitIntoChunks(text, 5, 10)
		assert.NotEmpty(t, chunks)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 5)
		}
	})

	t.Run("重复句子的长文档", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 100; i++ {
			sb.WriteString("This is a test sentence. ")
		}
		chunks := textutil.SplitIntoChunks(sb.String(), 100, 20)
		assert.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 100)
			assert.NotEmpty(t, strings.TrimSpace(chunk))
		}
	})

	t.Run("非法 size 返回空", func(t *testing.T) {
		assert.Nil(t, textutil.SplitIntoChunks("hello", 0, 0))
	})
}

func TestNormalizeQuotes(t *testing.T) {
	input := "模型说：“调用 ‘search_documents’ 工具”"
	result := textutil.NormalizeQuotes(input)
	assert.Equal(t, `模型说："调用 'search_documents' 工具"`, result)
}
