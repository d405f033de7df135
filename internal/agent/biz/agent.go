package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/agent-x/internal/agent/metrics"
	"github.com/kart-io/agent-x/internal/model"
	"github.com/kart-io/agent-x/internal/pkg/agent/textutil"
	"github.com/kart-io/agent-x/pkg/llm"
	"github.com/kart-io/agent-x/pkg/utils/json"
)

// regroundingInstruction 工具执行后追加的收口指令，
// 要求模型基于工具结果作答且不得再输出结构化调用。
const regroundingInstruction = "Using the tool results above, answer the user's question directly in plain prose. " +
	"Do not output JSON, code blocks, or any further tool calls."

// OrchestratorConfig 查询编排器配置。
type OrchestratorConfig struct {
	SystemPrompt  string
	HistoryWindow int      // 送入模型的最近消息条数
	Temperature   float64
	MaxTokens     int
	DocKeywords   []string // 命中即提示模型优先使用文档检索的关键词
}

// Orchestrator 单次查询的编排器。
// 固定状态流转：记录用户消息 → 路由提示 → 模型补全 →
// （可选）执行工具并收口 → 记录助手消息 → 组装结果。
type Orchestrator struct {
	chat    llm.ChatProvider
	tools   *ToolRegistry
	memory  *SessionStore
	config  OrchestratorConfig
	metrics *metrics.AgentMetrics
}

// NewOrchestrator 创建查询编排器。
func NewOrchestrator(chat llm.ChatProvider, tools *ToolRegistry, memory *SessionStore, config OrchestratorConfig) *Orchestrator {
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = 10
	}
	return &Orchestrator{
		chat:    chat,
		tools:   tools,
		memory:  memory,
		config:  config,
		metrics: metrics.GetAgentMetrics(),
	}
}

// ProcessQuery 处理一次用户查询。
// 任何阶段出错都不向调用方抛错：错误记入会话并体现在结果的 Error 字段。
func (o *Orchestrator) ProcessQuery(ctx context.Context, query, sessionID string, useTools bool) *model.QueryResult {
	o.memory.Append(sessionID, string(llm.RoleUser), query, nil)

	messages := o.buildMessages(query, sessionID)

	req := &llm.ChatRequest{
		Messages:    messages,
		Temperature: o.config.Temperature,
		MaxTokens:   o.config.MaxTokens,
	}
	if useTools {
		req.Tools = o.tools.Schemas()
	}

	resp, err := o.complete(ctx, req)
	if err != nil {
		return o.failQuery(sessionID, fmt.Errorf("对话补全失败: %w", err))
	}

	toolCalls := resp.ToolCalls
	if len(toolCalls) == 0 && useTools {
		// 小模型常把调用意图写进文本，尝试恢复；结构化调用始终优先
		if recovered, ok := RecoverToolCall(resp.Content, o.tools.IsKnownTool); ok {
			o.metrics.RecordFallbackRecovery()
			logger.Infow("从响应文本恢复工具调用", "tool", recovered.Name, "session", sessionID)

			args, _ := json.Marshal(recovered.Arguments)
			toolCalls = []llm.ToolCall{{
				ID:   "recovered_0",
				Type: "function",
				Function: llm.FunctionCall{
					Name:      recovered.Name,
					Arguments: string(args),
				},
			}}
		}
	}

	answer := resp.Content
	var records []model.ToolCallRecord
	var sources []model.Source

	if len(toolCalls) > 0 {
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: toolCalls,
		})

		for _, call := range toolCalls {
			args := map[string]any{}
			if call.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
					logger.Warnw("工具参数解析失败",
						"tool", call.Function.Name, "arguments", call.Function.Arguments, "error", err)
					args = map[string]any{}
				}
			}

			result, callSources := o.tools.Execute(ctx, call.Function.Name, args)
			records = append(records, model.ToolCallRecord{
				Tool:      call.Function.Name,
				Arguments: call.Function.Arguments,
				Result:    textutil.TruncateString(result, 2000),
			})
			sources = append(sources, callSources...)

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}

		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: regroundingInstruction,
		})

		// 收口补全不再携带工具定义
		final, err := o.complete(ctx, &llm.ChatRequest{
			Messages:    messages,
			Temperature: o.config.Temperature,
			MaxTokens:   o.config.MaxTokens,
		})
		if err != nil {
			return o.failQuery(sessionID, fmt.Errorf("工具结果收口失败: %w", err))
		}
		answer = final.Content
	}

	var meta map[string]any
	if len(records) > 0 {
		meta = map[string]any{"tool_calls": records, "sources": sources}
	}
	o.memory.Append(sessionID, string(llm.RoleAssistant), answer, meta)

	return &model.QueryResult{
		Answer:    answer,
		Sources:   sources,
		ToolCalls: records,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

// buildMessages 组装送入模型的消息列表：
// 系统提示词 + 可选路由提示 + 会话内最近 HistoryWindow 条消息。
func (o *Orchestrator) buildMessages(query, sessionID string) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: o.config.SystemPrompt},
	}

	if o.shouldHintDocSearch(query) {
		messages = append(messages, llm.Message{
			Role: llm.RoleSystem,
			Content: "The user's question appears to concern internal documents. " +
				"Prefer the search_documents tool before answering.",
		})
	}

	for _, msg := range o.memory.History(sessionID, o.config.HistoryWindow) {
		role := llm.Role(msg.Role)
		if role != llm.RoleUser && role != llm.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	return messages
}

// shouldHintDocSearch 判断查询是否命中文档领域关键词。
func (o *Orchestrator) shouldHintDocSearch(query string) bool {
	lowered := strings.ToLower(query)
	for _, keyword := range o.config.DocKeywords {
		if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// complete 发起一次补全并记录 LLM 调用指标。
func (o *Orchestrator) complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := o.chat.Complete(ctx, req)

	promptTokens, completionTokens := 0, 0
	if resp != nil && resp.TokenUsage != nil {
		promptTokens = resp.TokenUsage.PromptTokens
		completionTokens = resp.TokenUsage.CompletionTokens
	}
	o.metrics.RecordLLMCall(time.Since(start), promptTokens, completionTokens, err)
	return resp, err
}

// failQuery 记录失败并返回结构化错误结果。
func (o *Orchestrator) failQuery(sessionID string, err error) *model.QueryResult {
	logger.Errorw("查询处理失败", "session", sessionID, "error", err)

	o.memory.Append(sessionID, string(llm.RoleAssistant),
		"I encountered an error while processing your request.",
		map[string]any{"error": true})

	return &model.QueryResult{
		Answer:    "I encountered an error while processing your request.",
		Sources:   []model.Source{},
		ToolCalls: []model.ToolCallRecord{},
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}
