package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agent-x/internal/agent/store"
)

// fakeSearcher 返回预置结果的检索器。
type fakeSearcher struct {
	results []*store.SearchResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) ([]*store.SearchResult, error) {
	return f.results, f.err
}

func TestToolRegistry_Schemas(t *testing.T) {
	r := NewToolRegistry(nil, 3)
	schemas := r.Schemas()

	require.Len(t, schemas, 3)
	names := make([]string, len(schemas))
	for i, s := range schemas {
		assert.Equal(t, "function", s.Type)
		names[i] = s.Function.Name
	}
	assert.ElementsMatch(t, []string{"get_current_time", "calculate", "search_documents"}, names)
}

func TestToolRegistry_IsKnownTool(t *testing.T) {
	r := NewToolRegistry(nil, 3)

	assert.True(t, r.IsKnownTool("calculate"))
	assert.True(t, r.IsKnownTool("get_current_time"))
	assert.True(t, r.IsKnownTool("search_documents"))
	assert.False(t, r.IsKnownTool("delete_everything"))
	assert.False(t, r.IsKnownTool(""))
}

func TestToolRegistry_Dispatch(t *testing.T) {
	t.Run("get_current_time 返回 UTC 时间", func(t *testing.T) {
		r := NewToolRegistry(nil, 3)
		result := r.Dispatch(context.Background(), "get_current_time", nil)
		assert.Contains(t, result, "UTC")
	})

	t.Run("calculate 返回计算结果", func(t *testing.T) {
		r := NewToolRegistry(nil, 3)
		result := r.Dispatch(context.Background(), "calculate", map[string]any{"expression": "2 + 2"})
		assert.Equal(t, "4", result)
	})

	t.Run("calculate 错误转为可读字符串", func(t *testing.T) {
		r := NewToolRegistry(nil, 3)
		result := r.Dispatch(context.Background(), "calculate", map[string]any{"expression": "import os"})
		assert.Contains(t, result, "calculation error")
	})

	t.Run("calculate 缺少参数不崩溃", func(t *testing.T) {
		r := NewToolRegistry(nil, 3)
		result := r.Dispatch(context.Background(), "calculate", nil)
		assert.Contains(t, result, "calculation error")
	})

	t.Run("未知工具返回说明字符串", func(t *testing.T) {
		r := NewToolRegistry(nil, 3)
		result := r.Dispatch(context.Background(), "launch_rocket", nil)
		assert.Contains(t, result, "unknown tool")
		assert.Contains(t, result, "launch_rocket")
	})
}

func TestToolRegistry_SearchDocuments(t *testing.T) {
	t.Run("无检索引擎时降级", func(t *testing.T) {
		r := NewToolRegistry(nil, 3)
		result := r.Dispatch(context.Background(), "search_documents", map[string]any{"query": "anything"})
		assert.Contains(t, result, "unavailable")
	})

	t.Run("检索失败转为可读字符串", func(t *testing.T) {
		r := NewToolRegistry(&fakeSearcher{err: errors.New("index offline")}, 3)
		result := r.Dispatch(context.Background(), "search_documents", map[string]any{"query": "anything"})
		assert.Contains(t, result, "document search failed")
	})

	t.Run("无结果时返回提示", func(t *testing.T) {
		r := NewToolRegistry(&fakeSearcher{}, 3)
		result := r.Dispatch(context.Background(), "search_documents", map[string]any{"query": "anything"})
		assert.Contains(t, result, "no relevant documents")
	})

	t.Run("结果格式化为带编号片段", func(t *testing.T) {
		searcher := &fakeSearcher{results: []*store.SearchResult{
			{Chunk: &store.Chunk{Content: "Employees get 20 vacation days.", Source: "hr.md", ChunkIndex: 0}, Score: 0.1},
			{Chunk: &store.Chunk{Content: "Remote work is allowed.", Source: "hr.md", ChunkIndex: 1}, Score: 0.4},
		}}
		r := NewToolRegistry(searcher, 3)

		result, sources := r.Execute(context.Background(), "search_documents", map[string]any{"query": "vacation"})

		assert.Contains(t, result, "[1] hr.md:")
		assert.Contains(t, result, "[2] hr.md:")
		assert.Contains(t, result, "vacation days")

		require.Len(t, sources, 2)
		assert.Equal(t, "hr.md", sources[0].File)
		assert.Equal(t, 0, sources[0].ChunkIndex)
		assert.InDelta(t, 0.1, sources[0].Score, 1e-6)
	})

	t.Run("长内容被截断", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		r := NewToolRegistry(&fakeSearcher{results: []*store.SearchResult{
			{Chunk: &store.Chunk{Content: long, Source: "big.txt"}},
		}}, 3)

		result := r.Dispatch(context.Background(), "search_documents", map[string]any{"query": "x"})
		assert.Less(t, len(result), 300)
	})
}
