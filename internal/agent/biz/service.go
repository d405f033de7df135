package biz

import (
	"context"
	"errors"

	"github.com/kart-io/logger"

	"github.com/kart-io/agent-x/internal/agent/metrics"
	"github.com/kart-io/agent-x/internal/agent/store"
	"github.com/kart-io/agent-x/internal/model"
)

// Service Agent 服务对外接口。
type Service interface {
	// Ask 处理一次用户查询，返回结构化结果。
	Ask(ctx context.Context, query, sessionID string, useTools bool) *model.QueryResult

	// Ingest 索引给定路径的文档。
	Ingest(ctx context.Context, paths []string) (*model.IngestResult, error)

	// IngestDirectory 递归索引目录下的全部受支持文档。
	IngestDirectory(ctx context.Context, dir string) (*model.IngestResult, error)

	// Search 直接检索文档分块，不经过模型。
	Search(ctx context.Context, query string, topK int) ([]*store.SearchResult, error)

	// History 返回会话最近 limit 条消息。
	History(sessionID string, limit int) []model.Message

	// ClearSession 清空会话记忆。
	ClearSession(sessionID string)

	// SaveIndex 持久化向量索引。
	SaveIndex(ctx context.Context) error

	// Ready 报告索引是否可检索。
	Ready() bool

	// GetStats 返回服务运行统计。
	GetStats(ctx context.Context) map[string]interface{}
}

// AgentService Service 的默认实现。
type AgentService struct {
	engine       *RetrievalEngine
	memory       *SessionStore
	tools        *ToolRegistry
	orchestrator *Orchestrator
	cache        *QueryCache
	metrics      *metrics.AgentMetrics
}

// NewAgentService 组装 Agent 服务。cache 可以为 nil。
func NewAgentService(engine *RetrievalEngine, memory *SessionStore, tools *ToolRegistry, orchestrator *Orchestrator, cache *QueryCache) *AgentService {
	return &AgentService{
		engine:       engine,
		memory:       memory,
		tools:        tools,
		orchestrator: orchestrator,
		cache:        cache,
		metrics:      metrics.GetAgentMetrics(),
	}
}

var _ Service = (*AgentService)(nil)

// Ask 处理一次查询。
// 工具关闭时走缓存：工具结果（时间、计算）不具备可缓存性，
// 开启工具的查询一律直达编排器。
func (s *AgentService) Ask(ctx context.Context, query, sessionID string, useTools bool) *model.QueryResult {
	if !useTools {
		if cached, ok := s.cache.Get(ctx, query, sessionID); ok {
			s.metrics.RecordQuery(true, nil)
			logger.Debugw("查询命中缓存", "session", sessionID)
			return cached
		}
	}

	result := s.orchestrator.ProcessQuery(ctx, query, sessionID, useTools)

	if result.Error != "" {
		s.metrics.RecordQuery(false, errors.New(result.Error))
		return result
	}
	s.metrics.RecordQuery(false, nil)

	if !useTools {
		s.cache.Set(ctx, query, sessionID, result)
	}
	return result
}

// Ingest 索引给定路径的文档。
func (s *AgentService) Ingest(ctx context.Context, paths []string) (*model.IngestResult, error) {
	return s.engine.Ingest(ctx, paths)
}

// IngestDirectory 递归索引目录。
func (s *AgentService) IngestDirectory(ctx context.Context, dir string) (*model.IngestResult, error) {
	return s.engine.IngestDirectory(ctx, dir)
}

// Search 直接检索文档分块。
func (s *AgentService) Search(ctx context.Context, query string, topK int) ([]*store.SearchResult, error) {
	return s.engine.Search(ctx, query, topK)
}

// History 返回会话历史。
func (s *AgentService) History(sessionID string, limit int) []model.Message {
	return s.memory.History(sessionID, limit)
}

// ClearSession 清空会话。
func (s *AgentService) ClearSession(sessionID string) {
	s.memory.Clear(sessionID)
}

// SaveIndex 持久化向量索引。
func (s *AgentService) SaveIndex(ctx context.Context) error {
	return s.engine.SaveIndex(ctx)
}

// Ready 报告索引是否可检索。
func (s *AgentService) Ready() bool {
	return s.engine.Ready()
}

// GetStats 返回服务统计信息。
func (s *AgentService) GetStats(ctx context.Context) map[string]interface{} {
	stats := s.metrics.Stats()
	stats["index_ready"] = s.engine.Ready()
	if count, err := s.engine.Count(ctx); err == nil {
		stats["index_chunks"] = count
	}
	stats["cache"] = s.cache.GetStats(ctx)
	return stats
}
