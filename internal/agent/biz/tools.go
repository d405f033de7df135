package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/agent-x/internal/agent/metrics"
	"github.com/kart-io/agent-x/internal/agent/store"
	"github.com/kart-io/agent-x/internal/model"
	"github.com/kart-io/agent-x/internal/pkg/agent/textutil"
	"github.com/kart-io/agent-x/pkg/llm"
)

// ToolKind 封闭的工具种类枚举，每个变体一个处理函数。
type ToolKind int

const (
	// ToolUnknown 未识别的工具名。
	ToolUnknown ToolKind = iota
	// ToolGetCurrentTime 当前 UTC 时间。
	ToolGetCurrentTime
	// ToolCalculate 受限算术计算。
	ToolCalculate
	// ToolSearchDocuments 私有文档检索。
	ToolSearchDocuments
)

const (
	toolNameGetCurrentTime  = "get_current_time"
	toolNameCalculate       = "calculate"
	toolNameSearchDocuments = "search_documents"

	// snippetPreviewLen 检索结果片段的最大预览长度。
	snippetPreviewLen = 200
)

// toolKindOf 按名称解析工具种类，未识别时返回 ToolUnknown。
func toolKindOf(name string) ToolKind {
	switch name {
	case toolNameGetCurrentTime:
		return ToolGetCurrentTime
	case toolNameCalculate:
		return ToolCalculate
	case toolNameSearchDocuments:
		return ToolSearchDocuments
	default:
		return ToolUnknown
	}
}

// DocumentSearcher 文档检索能力，ToolRegistry 对检索引擎的最小依赖。
type DocumentSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]*store.SearchResult, error)
}

// ToolRegistry 固定的工具集合，带机器可读 schema 和按名分发。
type ToolRegistry struct {
	searcher DocumentSearcher // 可以为 nil，此时文档检索不可用
	topK     int
	metrics  *metrics.AgentMetrics
}

// NewToolRegistry 创建工具注册表。searcher 为 nil 时 search_documents 降级。
func NewToolRegistry(searcher DocumentSearcher, topK int) *ToolRegistry {
	if topK <= 0 {
		topK = 3
	}
	return &ToolRegistry{
		searcher: searcher,
		topK:     topK,
		metrics:  metrics.GetAgentMetrics(),
	}
}

// IsKnownTool 判断工具名是否已注册。
func (r *ToolRegistry) IsKnownTool(name string) bool {
	return toolKindOf(name) != ToolUnknown
}

// Schemas 返回提供给模型 function calling 接口的全部工具定义。
func (r *ToolRegistry) Schemas() []llm.ToolSchema {
	return []llm.ToolSchema{
		{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        toolNameGetCurrentTime,
				Description: "Get the current date and time in UTC.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
		{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        toolNameCalculate,
				Description: "Evaluate a basic arithmetic expression. Only digits, + - * / . ( ) and spaces are allowed.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"expression": map[string]any{
							"type":        "string",
							"description": "The arithmetic expression to evaluate, e.g. \"2 + 2\".",
						},
					},
					"required": []string{"expression"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        toolNameSearchDocuments,
				Description: "Search the private document collection for content relevant to a query.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The search query.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
	}
}

// Dispatch 按工具名分发执行，结果恒为字符串。
// 工具失败转换为可读错误串反馈给模型，从不中断编排循环。
func (r *ToolRegistry) Dispatch(ctx context.Context, name string, args map[string]any) string {
	result, _ := r.Execute(ctx, name, args)
	return result
}

// Execute 执行工具并附带来源信息。
// 只有 search_documents 会产生来源；其余工具来源为 nil。
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) (string, []model.Source) {
	switch toolKindOf(name) {
	case ToolGetCurrentTime:
		r.metrics.RecordToolCall(false)
		return time.Now().UTC().Format("2006-01-02 15:04:05 UTC"), nil

	case ToolCalculate:
		expression, _ := args["expression"].(string)
		result, err := Calculate(expression)
		if err != nil {
			r.metrics.RecordToolCall(true)
			return fmt.Sprintf("calculation error: %v", err), nil
		}
		r.metrics.RecordToolCall(false)
		return result, nil

	case ToolSearchDocuments:
		query, _ := args["query"].(string)
		return r.searchDocuments(ctx, query)

	default:
		r.metrics.RecordUnknownTool()
		logger.Warnw("unknown tool requested", "tool", name)
		return fmt.Sprintf("unknown tool: %s", name), nil
	}
}

// searchDocuments 执行文档检索，返回带编号的片段列表和结构化来源。
func (r *ToolRegistry) searchDocuments(ctx context.Context, query string) (string, []model.Source) {
	if r.searcher == nil {
		r.metrics.RecordToolCall(true)
		return "document search is unavailable: no document index is configured", nil
	}

	results, err := r.searcher.Search(ctx, query, r.topK)
	if err != nil {
		r.metrics.RecordToolCall(true)
		return fmt.Sprintf("document search failed: %v", err), nil
	}
	r.metrics.RecordToolCall(false)

	if len(results) == 0 {
		return "no relevant documents found", nil
	}

	var sb strings.Builder
	sources := make([]model.Source, 0, len(results))
	for i, result := range results {
		sb.WriteString(fmt.Sprintf("[%d] %s: %s\n",
			i+1,
			result.Chunk.Source,
			textutil.TruncateString(result.Chunk.Content, snippetPreviewLen),
		))
		sources = append(sources, model.Source{
			File:       result.Chunk.Source,
			ChunkIndex: result.Chunk.ChunkIndex,
			Content:    textutil.TruncateString(result.Chunk.Content, snippetPreviewLen),
			Score:      result.Score,
		})
	}
	return sb.String(), sources
}
