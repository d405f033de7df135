package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/agent-x/pkg/component/milvus"
)

// MilvusStore 实现基于 Milvus 的向量索引。
// 持久化由 Milvus 服务端负责，Save 为 no-op，Load 检查集合是否已有数据。
type MilvusStore struct {
	client     *milvus.Client
	collection string
	dim        int
}

// NewMilvusStore 创建 Milvus 索引并确保集合存在。
func NewMilvusStore(ctx context.Context, client *milvus.Client, collection string, dim int) (*MilvusStore, error) {
	s := &MilvusStore{
		client:     client,
		collection: collection,
		dim:        dim,
	}

	schema := &milvus.CollectionSchema{
		Name:        collection,
		Description: "agent document chunks",
		Dimension:   dim,
		MetaFields: []milvus.MetaField{
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "source", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "file_path", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			{Name: "total_chunks", DataType: entity.FieldTypeInt64},
		},
	}
	if err := client.CreateCollection(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	return s, nil
}

// Add 批量插入文档块到 Milvus。
func (s *MilvusStore) Add(ctx context.Context, chunks []*Chunk, vectors [][]float32) error {
	if len(chunks) == 0 && len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrDimensionMismatch, len(chunks), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != s.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index dimension is %d",
				ErrDimensionMismatch, i, len(vec), s.dim)
		}
	}

	metadata := map[string][]any{
		"content":      make([]any, len(chunks)),
		"source":       make([]any, len(chunks)),
		"file_path":    make([]any, len(chunks)),
		"chunk_index":  make([]any, len(chunks)),
		"total_chunks": make([]any, len(chunks)),
	}
	for i, chunk := range chunks {
		metadata["content"][i] = chunk.Content
		metadata["source"][i] = chunk.Source
		metadata["file_path"][i] = chunk.FilePath
		metadata["chunk_index"][i] = int64(chunk.ChunkIndex)
		metadata["total_chunks"][i] = int64(chunk.TotalChunks)
	}

	data := &milvus.InsertData{
		Embeddings: vectors,
		Metadata:   metadata,
	}
	if _, err := s.client.Insert(ctx, s.collection, data); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// Search 执行向量相似度搜索，L2 距离升序。
func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]*SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	outputFields := []string{"content", "source", "file_path", "chunk_index", "total_chunks"}
	results, err := s.client.Search(ctx, s.collection, vector, topK, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	searchResults := make([]*SearchResult, len(results))
	for i, r := range results {
		chunk := &Chunk{}
		if v, ok := r.Metadata["content"].(string); ok {
			chunk.Content = v
		}
		if v, ok := r.Metadata["source"].(string); ok {
			chunk.Source = v
		}
		if v, ok := r.Metadata["file_path"].(string); ok {
			chunk.FilePath = v
		}
		if v, ok := r.Metadata["chunk_index"].(int64); ok {
			chunk.ChunkIndex = int(v)
			chunk.ChunkID = int(v)
		}
		if v, ok := r.Metadata["total_chunks"].(int64); ok {
			chunk.TotalChunks = int(v)
		}
		searchResults[i] = &SearchResult{
			Chunk: chunk,
			Score: r.Score,
		}
	}
	return searchResults, nil
}

// Count 返回集合中的条目数。
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	return s.client.GetCollectionStats(ctx, s.collection)
}

// Save Milvus 服务端自行持久化，这里无事可做。
func (s *MilvusStore) Save(_ context.Context) error {
	return nil
}

// Load 集合有数据即视为已有索引。
func (s *MilvusStore) Load(ctx context.Context) (bool, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
