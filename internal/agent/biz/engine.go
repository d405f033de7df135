package biz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/agent-x/internal/agent/metrics"
	"github.com/kart-io/agent-x/internal/agent/store"
	"github.com/kart-io/agent-x/internal/model"
	"github.com/kart-io/agent-x/internal/pkg/agent/docutil"
	"github.com/kart-io/agent-x/internal/pkg/agent/textutil"
	"github.com/kart-io/agent-x/pkg/llm"
)

// ErrNoDocumentsProcessed 整批文档全部加载失败。
var ErrNoDocumentsProcessed = errors.New("no documents could be processed")

// EngineConfig 检索引擎配置。
type EngineConfig struct {
	ChunkSize    int // 每个分块的最大字符数
	ChunkOverlap int // 相邻分块的重叠字符数
	TopK         int // 检索返回的最大结果数
}

// RetrievalEngine 文档检索引擎。
// 负责文档加载、分块、嵌入与向量索引的全流程；
// 在成功完成一次索引构建或加载之前，检索返回空结果。
type RetrievalEngine struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	config   EngineConfig
	metrics  *metrics.AgentMetrics

	mu    sync.RWMutex
	ready bool
}

// NewRetrievalEngine 创建检索引擎。
func NewRetrievalEngine(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config EngineConfig) *RetrievalEngine {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 500
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.TopK <= 0 {
		config.TopK = 3
	}
	return &RetrievalEngine{
		store:    vectorStore,
		embedder: embedder,
		config:   config,
		metrics:  metrics.GetAgentMetrics(),
	}
}

// Ready 返回引擎是否已完成索引构建。
func (e *RetrievalEngine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

func (e *RetrievalEngine) setReady(ready bool) {
	e.mu.Lock()
	e.ready = ready
	e.mu.Unlock()
}

// Ingest 加载、分块、嵌入并索引给定路径的文档。
// 单个文件加载失败只记录日志并跳过；全部失败才返回 ErrNoDocumentsProcessed。
func (e *RetrievalEngine) Ingest(ctx context.Context, paths []string) (*model.IngestResult, error) {
	start := time.Now()
	result := &model.IngestResult{SkippedFiles: []string{}}

	var chunks []*store.Chunk
	for _, path := range paths {
		content, err := docutil.LoadDocument(path)
		if err != nil {
			logger.Warnw("跳过无法加载的文档", "path", path, "error", err)
			result.SkippedFiles = append(result.SkippedFiles, path)
			continue
		}

		name := filepath.Base(path)
		pieces := textutil.SplitIntoChunks(content, e.config.ChunkSize, e.config.ChunkOverlap)
		for i, piece := range pieces {
			chunks = append(chunks, &store.Chunk{
				Content:     piece,
				Source:      name,
				ChunkID:     i,
				FilePath:    path,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
			})
		}
		result.ProcessedFiles++
	}

	if result.ProcessedFiles == 0 {
		e.metrics.RecordIndexing(0, 0, ErrNoDocumentsProcessed)
		return nil, fmt.Errorf("%w: %d file(s) skipped", ErrNoDocumentsProcessed, len(result.SkippedFiles))
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}

		vectors, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			e.metrics.RecordIndexing(0, 0, err)
			return nil, fmt.Errorf("嵌入文档分块失败: %w", err)
		}

		if err := e.store.Add(ctx, chunks, vectors); err != nil {
			e.metrics.RecordIndexing(0, 0, err)
			return nil, fmt.Errorf("写入向量索引失败: %w", err)
		}
	}

	result.TotalChunks = len(chunks)
	result.ElapsedMs = time.Since(start).Milliseconds()
	e.setReady(true)
	e.metrics.RecordIndexing(result.ProcessedFiles, result.TotalChunks, nil)

	logger.Infow("文档索引完成",
		"processed", result.ProcessedFiles,
		"skipped", len(result.SkippedFiles),
		"chunks", result.TotalChunks,
		"elapsed_ms", result.ElapsedMs,
	)
	return result, nil
}

// IngestDirectory 递归索引目录下所有受支持的文档。
func (e *RetrievalEngine) IngestDirectory(ctx context.Context, dir string) (*model.IngestResult, error) {
	paths, err := docutil.FindFiles(dir, docutil.SupportedExtensions)
	if err != nil {
		return nil, fmt.Errorf("扫描文档目录失败: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no supported files under %s", ErrNoDocumentsProcessed, dir)
	}
	return e.Ingest(ctx, paths)
}

// Search 检索与查询最相似的 topK 个分块。
// 引擎未就绪时返回空结果而非错误。
func (e *RetrievalEngine) Search(ctx context.Context, query string, topK int) ([]*store.SearchResult, error) {
	if !e.Ready() {
		logger.Debugw("检索引擎未就绪，返回空结果", "query", textutil.TruncateString(query, 50))
		return nil, nil
	}
	if topK <= 0 {
		topK = e.config.TopK
	}

	start := time.Now()
	vector, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		e.metrics.RecordRetrieval(time.Since(start), err)
		return nil, fmt.Errorf("嵌入查询失败: %w", err)
	}

	results, err := e.store.Search(ctx, vector, topK)
	e.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	return results, nil
}

// SaveIndex 将索引持久化到存储后端。
func (e *RetrievalEngine) SaveIndex(ctx context.Context) error {
	return e.store.Save(ctx)
}

// LoadIndex 尝试从存储后端加载已有索引。
// 成功加载后引擎进入就绪状态；索引不存在不算错误。
func (e *RetrievalEngine) LoadIndex(ctx context.Context) (bool, error) {
	loaded, err := e.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if loaded {
		e.setReady(true)
	}
	return loaded, nil
}

// Count 返回索引中的分块数。
func (e *RetrievalEngine) Count(ctx context.Context) (int64, error) {
	return e.store.Count(ctx)
}
