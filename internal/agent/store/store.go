package store

import (
	"context"
	"errors"
)

// ErrDimensionMismatch 块与向量数量或向量维度不一致。
var ErrDimensionMismatch = errors.New("chunk and vector counts or dimensions do not match")

// Chunk 表示文档块，创建后不可变。
type Chunk struct {
	// Content 文档内容。
	Content string `json:"content"`
	// Source 来源文件名。
	Source string `json:"source"`
	// ChunkID 在来源文档内从 0 开始的块编号。
	ChunkID int `json:"chunk_id"`
	// FilePath 来源文件完整路径。
	FilePath string `json:"file_path"`
	// ChunkIndex 在来源文档内的块序号。
	ChunkIndex int `json:"chunk_index"`
	// TotalChunks 来源文档的总块数。
	TotalChunks int `json:"total_chunks"`
}

// SearchResult 表示检索结果。Score 是距离，越小越相似。
type SearchResult struct {
	Chunk *Chunk
	Score float32
}

// VectorStore 定义向量索引接口。
// 索引只支持追加，删除单个条目只能通过完整重建。
type VectorStore interface {
	// Add 按顺序追加块和对应向量，两者位置对齐。
	// 数量不一致返回 ErrDimensionMismatch；空输入为 no-op。
	Add(ctx context.Context, chunks []*Chunk, vectors [][]float32) error

	// Search 返回至多 min(topK, count) 个结果，按距离升序排列。
	// 空索引返回空序列。
	Search(ctx context.Context, vector []float32, topK int) ([]*SearchResult, error)

	// Count 返回索引中的条目数。
	Count(ctx context.Context) (int64, error)

	// Save 持久化索引。
	Save(ctx context.Context) error

	// Load 加载已持久化的索引。
	// 索引不存在时返回 (false, nil)，表示正常的冷启动。
	Load(ctx context.Context) (bool, error)

	// Close 释放资源。
	Close(ctx context.Context) error
}
