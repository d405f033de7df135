// Package textutil 提供 Agent 相关的文本处理工具函数。
package textutil

import (
	"strings"
	"unicode/utf8"
)

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// boundaryCut 返回窗口内最后一个句子终止符或换行符之后的位置。
// 未找到时返回 -1。
func boundaryCut(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '\n', '。', '！', '？':
			return i + 1
		}
	}
	return -1
}

// SplitIntoChunks 将文本分割成重叠的块。
// chunkSize 是每个块的大小（Unicode 字符数），overlap 是块之间的重叠大小。
//
// 每个窗口（最后一个除外）尝试在窗口内最后一个句子终止符或换行符处切分；
// 切分点只有落在窗口中点之后才会被采用，否则保留整个窗口，
// 避免附近没有合适边界时产生过短的块。
// 下一个窗口从 previous_end - overlap 开始；空白块被丢弃。
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	runes := []rune(text)
	var chunks []string

	start := 0
	for start < len(runes) {
		end := start + chunkSize
		last := false
		if end >= len(runes) {
			end = len(runes)
			last = true
		} else if cut := boundaryCut(runes[start:end]); cut > chunkSize/2 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if last {
			break
		}

		// 边界切分可能让窗口短于 overlap，强制正向推进防止死循环
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// NormalizeQuotes 将弯引号替换为 ASCII 引号，便于解析模型输出中的 JSON 片段。
func NormalizeQuotes(s string) string {
	replacer := strings.NewReplacer(
		"“", `"`, // 左双引号
		"”", `"`, // 右双引号
		"‘", `'`, // 左单引号
		"’", `'`, // 右单引号
	)
	return replacer.Replace(s)
}
