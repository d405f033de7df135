package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestMetrics 返回重置后的全局指标实例。
func newTestMetrics() *AgentMetrics {
	m := GetAgentMetrics()
	m.Reset()
	return m
}

func TestGetAgentMetrics(t *testing.T) {
	m1 := GetAgentMetrics()
	m2 := GetAgentMetrics()

	assert.Same(t, m1, m2, "应该返回同一个单例实例")
}

func TestRecordQuery(t *testing.T) {
	m := newTestMetrics()

	// 缓存命中
	m.RecordQuery(true, nil)
	// 缓存未命中
	m.RecordQuery(false, nil)
	// 失败查询
	m.RecordQuery(false, assert.AnError)

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(3), queries["total"])
	assert.Equal(t, uint64(1), queries["cache_hits"])
	assert.Equal(t, uint64(1), queries["cache_misses"])
	assert.Equal(t, uint64(1), queries["errors"])
	assert.InDelta(t, 0.5, queries["cache_hit_rate"], 0.01)
}

func TestRecordRetrieval(t *testing.T) {
	m := newTestMetrics()

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(50*time.Millisecond, assert.AnError)

	stats := m.Stats()
	retrieval := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(2), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["errors"])
	// 失败的调用不计入耗时
	assert.InDelta(t, 0.1, retrieval["total_duration_secs"], 0.01)
}

func TestRecordLLMCall(t *testing.T) {
	m := newTestMetrics()

	m.RecordLLMCall(500*time.Millisecond, 100, 50, nil)
	m.RecordLLMCall(100*time.Millisecond, 0, 0, assert.AnError)

	stats := m.Stats()
	llm := stats["llm"].(map[string]interface{})
	assert.Equal(t, uint64(2), llm["calls_total"])
	assert.Equal(t, uint64(1), llm["errors"])
	assert.Equal(t, uint64(100), llm["tokens_prompt"])
	assert.Equal(t, uint64(50), llm["tokens_completion"])
	assert.InDelta(t, 0.5, llm["total_duration_secs"], 0.01)
}

func TestRecordToolCall(t *testing.T) {
	m := newTestMetrics()

	m.RecordToolCall(false)
	m.RecordToolCall(false)
	m.RecordToolCall(true)
	m.RecordFallbackRecovery()
	m.RecordUnknownTool()

	stats := m.Stats()
	tools := stats["tools"].(map[string]interface{})
	assert.Equal(t, uint64(3), tools["calls_total"])
	assert.Equal(t, uint64(1), tools["errors"])
	assert.Equal(t, uint64(1), tools["fallback_recoveries"])
	assert.Equal(t, uint64(1), tools["unknown_requests"])
}

func TestRecordIndexing(t *testing.T) {
	m := newTestMetrics()

	m.RecordIndexing(3, 42, nil)
	m.RecordIndexing(0, 0, assert.AnError)

	stats := m.Stats()
	indexing := stats["indexing"].(map[string]interface{})
	assert.Equal(t, uint64(3), indexing["documents_indexed"])
	assert.Equal(t, uint64(42), indexing["chunks_indexed"])
	assert.Equal(t, uint64(1), indexing["errors"])
}

func TestExport(t *testing.T) {
	m := newTestMetrics()
	m.RecordQuery(false, nil)
	m.RecordToolCall(false)

	out := m.Export("agent", "")

	assert.Contains(t, out, "# HELP agent_queries_total")
	assert.Contains(t, out, "# TYPE agent_queries_total counter")
	assert.Contains(t, out, "agent_queries_total 1")
	assert.Contains(t, out, "agent_tool_calls_total 1")
	assert.Contains(t, out, "agent_cache_hit_rate")
	assert.Contains(t, out, "agent_uptime_seconds")

	// 带子系统前缀
	withSub := m.Export("agent", "core")
	assert.Contains(t, withSub, "agent_core_queries_total")
}

func TestConcurrentRecording(t *testing.T) {
	m := newTestMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordQuery(false, nil)
				m.RecordToolCall(j%10 == 0)
				m.RecordRetrieval(time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	tools := stats["tools"].(map[string]interface{})
	assert.Equal(t, uint64(1000), queries["total"])
	assert.Equal(t, uint64(1000), tools["calls_total"])
}

func TestReset(t *testing.T) {
	m := newTestMetrics()
	m.RecordQuery(false, nil)
	m.RecordIndexing(1, 10, nil)

	m.Reset()

	out := m.Export("agent", "")
	assert.True(t, strings.Contains(out, "agent_queries_total 0"))
	assert.True(t, strings.Contains(out, "agent_chunks_indexed_total 0"))
}
