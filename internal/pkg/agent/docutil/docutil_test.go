package docutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kart-io/agent-x/internal/pkg/agent/docutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()

	t.Run("加载文本文件", func(t *testing.T) {
		path := filepath.Join(dir, "doc.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

		content, err := docutil.LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "hello world", content)
	})

	t.Run("加载 Markdown 文件", func(t *testing.T) {
		path := filepath.Join(dir, "doc.md")
		require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody"), 0o644))

		content, err := docutil.LoadDocument(path)
		require.NoError(t, err)
		assert.Contains(t, content, "# Title")
	})

	t.Run("扩展名大小写不敏感", func(t *testing.T) {
		path := filepath.Join(dir, "DOC.TXT")
		require.NoError(t, os.WriteFile(path, []byte("upper"), 0o644))

		content, err := docutil.LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "upper", content)
	})

	t.Run("不支持的格式", func(t *testing.T) {
		_, err := docutil.LoadDocument(filepath.Join(dir, "image.png"))
		assert.ErrorIs(t, err, docutil.ErrUnsupportedFormat)
		assert.Contains(t, err.Error(), "image.png")
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := docutil.LoadDocument(filepath.Join(dir, "missing.txt"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.txt")
	})
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.png"), []byte("c"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "d.txt"), []byte("d"), 0o644))

	files, err := docutil.FindFiles(dir, []string{".txt", ".md"})
	require.NoError(t, err)
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.NotContains(t, f, "c.png")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "path")
	require.NoError(t, docutil.EnsureDir(dir))
	assert.True(t, docutil.DirExists(dir))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.True(t, docutil.FileExists(path))
	assert.False(t, docutil.FileExists(filepath.Join(dir, "nope.txt")))
}
