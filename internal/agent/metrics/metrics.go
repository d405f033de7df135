// Package metrics 提供 Agent 服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// AgentMetrics Agent 服务业务指标。
type AgentMetrics struct {
	// 查询指标
	queriesTotal       uint64 // 总查询次数
	queriesCacheHits   uint64 // 缓存命中次数
	queriesCacheMisses uint64 // 缓存未命中次数
	queriesErrors      uint64 // 查询错误次数

	// 检索指标
	retrievalTotal    uint64  // 总检索次数
	retrievalDuration float64 // 检索总耗时（秒）
	retrievalErrors   uint64  // 检索错误次数

	// LLM 调用指标
	llmCallsTotal       uint64  // LLM 总调用次数
	llmCallsDuration    float64 // LLM 调用总耗时（秒）
	llmCallsErrors      uint64  // LLM 调用错误次数
	llmTokensPrompt     uint64  // Prompt tokens 总数
	llmTokensCompletion uint64  // Completion tokens 总数

	// 工具调用指标
	toolCallsTotal      uint64 // 工具调用总次数
	toolCallsErrors     uint64 // 工具调用错误次数
	fallbackRecoveries  uint64 // 文本嵌入式工具调用恢复次数
	unknownToolRequests uint64 // 未知工具请求次数

	// 索引指标
	documentsIndexed uint64 // 已索引文档数
	chunksIndexed    uint64 // 已索引分块数
	indexErrors      uint64 // 索引错误次数

	startTime  time.Time
	durationMu sync.Mutex
}

// globalAgentMetrics 全局 Agent 指标实例。
var (
	globalAgentMetrics *AgentMetrics
	agentMetricsOnce   sync.Once
)

// GetAgentMetrics 获取全局 Agent 指标实例。
func GetAgentMetrics() *AgentMetrics {
	agentMetricsOnce.Do(func() {
		globalAgentMetrics = &AgentMetrics{
			startTime: time.Now(),
		}
	})
	return globalAgentMetrics
}

// RecordQuery 记录查询。
func (m *AgentMetrics) RecordQuery(cacheHit bool, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *AgentMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall 记录 LLM 调用。
func (m *AgentMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()

	if promptTokens > 0 {
		atomic.AddUint64(&m.llmTokensPrompt, uint64(promptTokens))
	}
	if completionTokens > 0 {
		atomic.AddUint64(&m.llmTokensCompletion, uint64(completionTokens))
	}
}

// RecordToolCall 记录工具调用。
func (m *AgentMetrics) RecordToolCall(failed bool) {
	atomic.AddUint64(&m.toolCallsTotal, 1)
	if failed {
		atomic.AddUint64(&m.toolCallsErrors, 1)
	}
}

// RecordFallbackRecovery 记录一次文本嵌入式工具调用恢复。
func (m *AgentMetrics) RecordFallbackRecovery() {
	atomic.AddUint64(&m.fallbackRecoveries, 1)
}

// RecordUnknownTool 记录一次未知工具请求。
func (m *AgentMetrics) RecordUnknownTool() {
	atomic.AddUint64(&m.unknownToolRequests, 1)
}

// RecordIndexing 记录索引操作。
func (m *AgentMetrics) RecordIndexing(documents, chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.indexErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIndexed, uint64(documents))
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
}

// counter 输出一个 Prometheus counter 指标。
func counter(sb *strings.Builder, prefix, name, help string, value uint64) {
	sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
	sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
	sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
}

// Export 导出 Prometheus 格式指标。
func (m *AgentMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter(&sb, prefix, "queries_total", "Total number of agent queries.", atomic.LoadUint64(&m.queriesTotal))
	counter(&sb, prefix, "queries_cache_hits_total", "Number of cache hits.", atomic.LoadUint64(&m.queriesCacheHits))
	counter(&sb, prefix, "queries_cache_misses_total", "Number of cache misses.", atomic.LoadUint64(&m.queriesCacheMisses))
	counter(&sb, prefix, "queries_errors_total", "Number of query errors.", atomic.LoadUint64(&m.queriesErrors))

	// 缓存命中率
	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	total := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}
	sb.WriteString(fmt.Sprintf("# HELP %s_cache_hit_rate Cache hit rate (0-1).\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_cache_hit_rate gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_cache_hit_rate %.4f\n\n", prefix, cacheHitRate))

	counter(&sb, prefix, "retrieval_total", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	counter(&sb, prefix, "retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	sb.WriteString(fmt.Sprintf("# HELP %s_retrieval_duration_seconds_total Total retrieval duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_retrieval_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_retrieval_duration_seconds_total %.6f\n\n", prefix, retrievalDuration))

	counter(&sb, prefix, "llm_calls_total", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	counter(&sb, prefix, "llm_calls_errors_total", "Number of LLM call errors.", atomic.LoadUint64(&m.llmCallsErrors))
	counter(&sb, prefix, "llm_tokens_prompt_total", "Total prompt tokens.", atomic.LoadUint64(&m.llmTokensPrompt))
	counter(&sb, prefix, "llm_tokens_completion_total", "Total completion tokens.", atomic.LoadUint64(&m.llmTokensCompletion))

	sb.WriteString(fmt.Sprintf("# HELP %s_llm_calls_duration_seconds_total Total LLM call duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_llm_calls_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_llm_calls_duration_seconds_total %.6f\n\n", prefix, llmDuration))

	counter(&sb, prefix, "tool_calls_total", "Total number of tool calls.", atomic.LoadUint64(&m.toolCallsTotal))
	counter(&sb, prefix, "tool_calls_errors_total", "Number of tool call failures.", atomic.LoadUint64(&m.toolCallsErrors))
	counter(&sb, prefix, "fallback_recoveries_total", "Number of text-embedded tool calls recovered.", atomic.LoadUint64(&m.fallbackRecoveries))
	counter(&sb, prefix, "unknown_tool_requests_total", "Number of unknown tool requests.", atomic.LoadUint64(&m.unknownToolRequests))

	counter(&sb, prefix, "documents_indexed_total", "Total documents indexed.", atomic.LoadUint64(&m.documentsIndexed))
	counter(&sb, prefix, "chunks_indexed_total", "Total chunks indexed.", atomic.LoadUint64(&m.chunksIndexed))
	counter(&sb, prefix, "index_errors_total", "Number of indexing errors.", atomic.LoadUint64(&m.indexErrors))

	// 运行时间
	uptime := time.Since(m.startTime).Seconds()
	sb.WriteString(fmt.Sprintf("# HELP %s_uptime_seconds Service uptime in seconds.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_uptime_seconds gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_uptime_seconds %.2f\n\n", prefix, uptime))

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *AgentMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheTotal := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if cacheTotal > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheTotal)
	}

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLMDuration := 0.0
	if llmTotal > 0 {
		avgLLMDuration = llmDuration / float64(llmTotal)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":          atomic.LoadUint64(&m.queriesTotal),
			"cache_hits":     cacheHits,
			"cache_misses":   cacheMisses,
			"cache_hit_rate": cacheHitRate,
			"errors":         atomic.LoadUint64(&m.queriesErrors),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
		},
		"llm": map[string]interface{}{
			"calls_total":         llmTotal,
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLMDuration,
			"errors":              atomic.LoadUint64(&m.llmCallsErrors),
			"tokens_prompt":       atomic.LoadUint64(&m.llmTokensPrompt),
			"tokens_completion":   atomic.LoadUint64(&m.llmTokensCompletion),
		},
		"tools": map[string]interface{}{
			"calls_total":         atomic.LoadUint64(&m.toolCallsTotal),
			"errors":              atomic.LoadUint64(&m.toolCallsErrors),
			"fallback_recoveries": atomic.LoadUint64(&m.fallbackRecoveries),
			"unknown_requests":    atomic.LoadUint64(&m.unknownToolRequests),
		},
		"indexing": map[string]interface{}{
			"documents_indexed": atomic.LoadUint64(&m.documentsIndexed),
			"chunks_indexed":    atomic.LoadUint64(&m.chunksIndexed),
			"errors":            atomic.LoadUint64(&m.indexErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *AgentMetrics) Reset() {
	atomic.StoreUint64(&m.queriesTotal, 0)
	atomic.StoreUint64(&m.queriesCacheHits, 0)
	atomic.StoreUint64(&m.queriesCacheMisses, 0)
	atomic.StoreUint64(&m.queriesErrors, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.llmTokensPrompt, 0)
	atomic.StoreUint64(&m.llmTokensCompletion, 0)
	atomic.StoreUint64(&m.toolCallsTotal, 0)
	atomic.StoreUint64(&m.toolCallsErrors, 0)
	atomic.StoreUint64(&m.fallbackRecoveries, 0)
	atomic.StoreUint64(&m.unknownToolRequests, 0)
	atomic.StoreUint64(&m.documentsIndexed, 0)
	atomic.StoreUint64(&m.chunksIndexed, 0)
	atomic.StoreUint64(&m.indexErrors, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
