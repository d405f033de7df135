package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/agent-x/pkg/utils/json"
)

const (
	vectorsSuffix = ".vectors"
	chunksSuffix  = ".chunks.json"
)

// FlatStore 是进程内的平面向量索引，使用欧氏距离暴力检索。
// chunks 与 vectors 按位置对齐，只追加不修改。
type FlatStore struct {
	mu       sync.RWMutex
	basePath string
	dim      int
	chunks   []*Chunk
	vectors  [][]float32
}

// NewFlatStore 创建平面索引。basePath 是持久化工件的公共前缀。
func NewFlatStore(basePath string, dim int) *FlatStore {
	return &FlatStore{
		basePath: basePath,
		dim:      dim,
	}
}

// Add 按顺序追加块和对应向量。
func (s *FlatStore) Add(_ context.Context, chunks []*Chunk, vectors [][]float32) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

// Search 返回至多 min(topK, count) 个结果，按距离升序排列。
func (s *FlatStore) Search(_ context.Context, vector []float32, topK int) ([]*SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index dimension is %d",
			ErrDimensionMismatch, len(vector), s.dim)
	}

	results := make([]*SearchResult, len(s.vectors))
	for i, v := range s.vectors {
		results[i] = &SearchResult{
			Chunk: s.chunks[i],
			Score: euclideanDistance(vector, v),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Count 返回索引中的条目数。
func (s *FlatStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

// Save 将向量和块元数据作为一对工件原子写入。
func (s *FlatStore) Save(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.basePath), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	vectorData, err := encodeVectors(s.dim, s.vectors)
	if err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}
	chunkData, err := json.Marshal(s.chunks)
	if err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}

	if err := writeAtomic(s.basePath+vectorsSuffix, vectorData); err != nil {
		return err
	}
	if err := writeAtomic(s.basePath+chunksSuffix, chunkData); err != nil {
		return err
	}

	logger.Infow("index saved",
		"base_path", s.basePath,
		"entries", len(s.chunks),
		"dimension", s.dim,
	)
	return nil
}

// Load 加载已持久化的索引。
// 两个工件都不存在时返回 (false, nil)；只缺其中一个属于非法状态，返回错误。
func (s *FlatStore) Load(_ context.Context) (bool, error) {
	vectorsPath := s.basePath + vectorsSuffix
	chunksPath := s.basePath + chunksSuffix

	vectorsExist := fileExists(vectorsPath)
	chunksExist := fileExists(chunksPath)

	if !vectorsExist && !chunksExist {
		return false, nil
	}
	if vectorsExist != chunksExist {
		return false, fmt.Errorf("index artifacts are incomplete: vectors=%v chunks=%v", vectorsExist, chunksExist)
	}

	vectorData, err := os.ReadFile(vectorsPath)
	if err != nil {
		return false, fmt.Errorf("failed to read vectors artifact: %w", err)
	}
	dim, vectors, err := decodeVectors(vectorData)
	if err != nil {
		return false, fmt.Errorf("failed to decode vectors artifact: %w", err)
	}

	chunkData, err := os.ReadFile(chunksPath)
	if err != nil {
		return false, fmt.Errorf("failed to read chunks artifact: %w", err)
	}
	var chunks []*Chunk
	if err := json.Unmarshal(chunkData, &chunks); err != nil {
		return false, fmt.Errorf("failed to decode chunks artifact: %w", err)
	}

	if len(chunks) != len(vectors) {
		return false, fmt.Errorf("%w: loaded %d chunks but %d vectors", ErrDimensionMismatch, len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dim = dim
	s.chunks = chunks
	s.vectors = vectors

	logger.Infow("index loaded",
		"base_path", s.basePath,
		"entries", len(chunks),
		"dimension", dim,
	)
	return true, nil
}

// Close 释放资源。平面索引没有外部连接，恒为 nil。
func (s *FlatStore) Close(_ context.Context) error {
	return nil
}

func euclideanDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// encodeVectors 序列化为小端二进制：uint32 维度、uint32 数量、float32 数据。
func encodeVectors(dim int, vectors [][]float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint32(dim)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(vectors))); err != nil {
		return nil, err
	}
	for _, vec := range vectors {
		if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeVectors(data []byte) (int, [][]float32, error) {
	buf := bytes.NewReader(data)
	var dim, count uint32
	if err := binary.Read(buf, binary.LittleEndian, &dim); err != nil {
		return 0, nil, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &count); err != nil {
		return 0, nil, err
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(buf, binary.LittleEndian, vec); err != nil {
			return 0, nil, err
		}
		vectors[i] = vec
	}
	return int(dim), vectors, nil
}

// writeAtomic 先写临时文件再重命名，避免写入中断留下半个工件。
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// 确保 FlatStore 实现了 VectorStore 接口。
var _ VectorStore = (*FlatStore)(nil)
