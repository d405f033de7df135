// Package docutil 提供文档加载相关的工具函数。
package docutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat 不支持的文件格式。
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions 可加载的文件扩展名。
var SupportedExtensions = []string{".txt", ".md", ".pdf"}

// LoadDocument 按扩展名分发加载文档，返回纯文本内容。
// 不支持的扩展名返回 ErrUnsupportedFormat；读取失败的错误携带文件路径。
func LoadDocument(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return loadText(path)
	case ".pdf":
		return loadPDF(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// loadText 以 UTF-8 读取纯文本文件。
func loadText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return string(content), nil
}

// loadPDF 逐页提取 PDF 文本，页面之间用换行符连接。
func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", path, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d of %s: %w", i, path, err)
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n"), nil
}

// FindFiles 在目录中查找匹配指定扩展名的文件。
// extensions 是文件扩展名列表，如 []string{".md", ".txt"}。
func FindFiles(dir string, extensions []string) ([]string, error) {
	var files []string
	extMap := make(map[string]bool)
	for _, ext := range extensions {
		extMap[strings.ToLower(ext)] = true
	}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			ext := strings.ToLower(filepath.Ext(path))
			if extMap[ext] {
				files = append(files, path)
			}
		}
		return nil
	})

	return files, err
}

// EnsureDir 确保目录存在，如果不存在则创建。
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// FileExists 检查文件是否存在。
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists 检查目录是否存在。
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
