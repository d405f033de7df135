package biz

import (
	"strings"

	"github.com/kart-io/agent-x/internal/pkg/agent/textutil"
	"github.com/kart-io/agent-x/pkg/utils/json"
)

// RecoveredToolCall 从模型输出文本中恢复出的工具调用。
type RecoveredToolCall struct {
	Name      string
	Arguments map[string]any
}

// RecoverToolCall 尝试从模型的纯文本响应中恢复一个嵌入式工具调用。
//
// 一些小模型不使用结构化 function calling，而是把调用意图以 JSON
// 片段的形式写进回复文本。该函数定位 JSON 子串、归一化弯引号并解析；
// 支持一层列表或 function 包装。任何一步失败都返回 (nil, false)，
// 绝不向调用方抛错。
func RecoverToolCall(text string, isKnownTool func(name string) bool) (*RecoveredToolCall, bool) {
	if isKnownTool == nil {
		return nil, false
	}

	normalized := textutil.NormalizeQuotes(text)

	raw, ok := extractJSONValue(normalized)
	if !ok {
		return nil, false
	}

	call, ok := decodeToolCall(raw)
	if !ok || !isKnownTool(call.Name) {
		return nil, false
	}
	return call, true
}

// extractJSONValue 提取文本中第一个可解析的 JSON 对象或数组。
func extractJSONValue(text string) (any, bool) {
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	// 数组出现在对象之前时优先按数组解析（一层列表包装）
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if raw, ok := tryParse(text, arrStart, "]"); ok {
			return raw, true
		}
	}
	if objStart >= 0 {
		if raw, ok := tryParse(text, objStart, "}"); ok {
			return raw, true
		}
	}
	return nil, false
}

// tryParse 从 start 到最后一个 closer 之间尝试解析 JSON，
// 失败后逐步收缩右边界重试。
func tryParse(text string, start int, closer string) (any, bool) {
	rest := text[start:]
	end := strings.LastIndex(rest, closer)
	for end >= 0 {
		var raw any
		if err := json.Unmarshal([]byte(rest[:end+1]), &raw); err == nil {
			return raw, true
		}
		end = strings.LastIndex(rest[:end], closer)
	}
	return nil, false
}

// decodeToolCall 将解析出的 JSON 值规整为工具调用。
// 接受的形态：
//
//	{"name": "x", "arguments": {...}}
//	{"function": {"name": "x", "arguments": {...}}}
//	[{"name": "x", ...}]（取第一个元素）
//
// arguments 也可以是再编码过一次的 JSON 字符串。
func decodeToolCall(raw any) (*RecoveredToolCall, bool) {
	// 一层列表包装
	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		raw = list[0]
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}

	// 一层 function 包装
	if fn, ok := obj["function"].(map[string]any); ok {
		obj = fn
	}

	name, ok := obj["name"].(string)
	if !ok || name == "" {
		return nil, false
	}

	args := map[string]any{}
	switch v := obj["arguments"].(type) {
	case map[string]any:
		args = v
	case string:
		if err := json.Unmarshal([]byte(v), &args); err != nil {
			return nil, false
		}
	case nil:
		// 无参数调用
	default:
		return nil, false
	}

	return &RecoveredToolCall{Name: name, Arguments: args}, true
}
