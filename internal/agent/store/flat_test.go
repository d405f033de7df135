package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agent-x/internal/agent/store"
)

func newTestChunk(content string, idx int) *store.Chunk {
	return &store.Chunk{
		Content:     content,
		Source:      "doc.txt",
		ChunkID:     idx,
		FilePath:    "/data/doc.txt",
		ChunkIndex:  idx,
		TotalChunks: 3,
	}
}

func TestFlatStoreAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("空输入是 no-op", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		require.NoError(t, s.Add(ctx, nil, nil))

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("数量不一致被拒绝", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		err := s.Add(ctx,
			[]*store.Chunk{newTestChunk("a", 0), newTestChunk("b", 1)},
			[][]float32{{1, 0, 0}},
		)
		assert.ErrorIs(t, err, store.ErrDimensionMismatch)
	})

	t.Run("维度不一致被拒绝", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		err := s.Add(ctx,
			[]*store.Chunk{newTestChunk("a", 0)},
			[][]float32{{1, 0}},
		)
		assert.ErrorIs(t, err, store.ErrDimensionMismatch)
	})

	t.Run("追加保持顺序", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		require.NoError(t, s.Add(ctx,
			[]*store.Chunk{newTestChunk("a", 0), newTestChunk("b", 1)},
			[][]float32{{1, 0, 0}, {0, 1, 0}},
		))
		require.NoError(t, s.Add(ctx,
			[]*store.Chunk{newTestChunk("c", 2)},
			[][]float32{{0, 0, 1}},
		))

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestFlatStoreSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("空索引返回空序列", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		results, err := s.Search(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("精确匹配排在首位且距离约为 0", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		require.NoError(t, s.Add(ctx,
			[]*store.Chunk{newTestChunk("a", 0), newTestChunk("b", 1), newTestChunk("c", 2)},
			[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
		))

		results, err := s.Search(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a", results[0].Chunk.Content)
		assert.InDelta(t, 0.0, float64(results[0].Score), 1e-6)

		// 距离升序
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i].Score, results[i-1].Score)
		}
	})

	t.Run("topK 大于条目数时返回全部", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		require.NoError(t, s.Add(ctx,
			[]*store.Chunk{newTestChunk("a", 0)},
			[][]float32{{1, 0, 0}},
		))

		results, err := s.Search(ctx, []float32{0, 1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("查询向量维度不一致", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		require.NoError(t, s.Add(ctx,
			[]*store.Chunk{newTestChunk("a", 0)},
			[][]float32{{1, 0, 0}},
		))

		_, err := s.Search(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, store.ErrDimensionMismatch)
	})
}

func TestFlatStorePersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("保存后重新加载", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "idx")
		s := store.NewFlatStore(base, 3)
		require.NoError(t, s.Add(ctx,
			[]*store.Chunk{newTestChunk("hello", 0), newTestChunk("world", 1)},
			[][]float32{{1, 0, 0}, {0, 1, 0}},
		))
		require.NoError(t, s.Save(ctx))

		loaded := store.NewFlatStore(base, 3)
		ok, err := loaded.Load(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		count, err := loaded.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		results, err := loaded.Search(ctx, []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "hello", results[0].Chunk.Content)
		assert.Equal(t, "doc.txt", results[0].Chunk.Source)
	})

	t.Run("两个工件都不存在时返回 false", func(t *testing.T) {
		s := store.NewFlatStore(filepath.Join(t.TempDir(), "idx"), 3)
		ok, err := s.Load(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("只缺一个工件属于非法状态", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "idx")
		s := store.NewFlatStore(base, 3)
		require.NoError(t, s.Add(ctx,
			[]*store.Chunk{newTestChunk("a", 0)},
			[][]float32{{1, 0, 0}},
		))
		require.NoError(t, s.Save(ctx))
		require.NoError(t, os.Remove(base+".chunks.json"))

		_, err := s.Load(ctx)
		assert.Error(t, err)
	})
}
