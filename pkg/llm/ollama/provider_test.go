package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agent-x/pkg/llm"
)

// newTestProvider 指向给定 handler 的测试供应商。
func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewProviderWithConfig(&Config{
		BaseURL:    server.URL,
		EmbedModel: "test-embed",
		ChatModel:  "test-chat",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	})
}

func TestCompleteRoundTripsToolCalls(t *testing.T) {
	var received chatRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "the result is 4"},
			Done:    true,
		})
	})

	resp, err := p.Complete(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "what is 2+2?"},
			{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:   "call_0",
					Type: "function",
					Function: llm.FunctionCall{
						Name:      "calculate",
						Arguments: `{"expression":"2 + 2"}`,
					},
				}},
			},
			{Role: llm.RoleTool, ToolCallID: "call_0", Content: "4"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "the result is 4", resp.Content)

	// 助手消息里的工具调用必须完整回传
	require.Len(t, received.Messages, 3)
	assistant := received.Messages[1]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "calculate", assistant.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"expression":"2 + 2"}`, string(assistant.ToolCalls[0].Function.Arguments))

	assert.Equal(t, "tool", received.Messages[2].Role)
	assert.Equal(t, "4", received.Messages[2].Content)
}

func TestCompleteEmptyArgumentsBecomeObject(t *testing.T) {
	var received chatRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "ok"},
			Done:    true,
		})
	})

	_, err := p.Complete(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:       "call_0",
					Type:     "function",
					Function: llm.FunctionCall{Name: "get_current_time"},
				}},
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, received.Messages, 1)
	require.Len(t, received.Messages[0].ToolCalls, 1)
	assert.JSONEq(t, `{}`, string(received.Messages[0].ToolCalls[0].Function.Arguments))
}

func TestCompleteSynthesizesCallIDs(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [
					{"function": {"name": "get_current_time", "arguments": {}}},
					{"function": {"name": "calculate", "arguments": {"expression": "1 + 1"}}}
				]
			},
			"done": true
		}`))
	})

	resp, err := p.Complete(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "now?"}},
	})
	require.NoError(t, err)

	// 调用 ID 按位置合成
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_0", resp.ToolCalls[0].ID)
	assert.Equal(t, "call_1", resp.ToolCalls[1].ID)
	assert.Equal(t, "calculate", resp.ToolCalls[1].Function.Name)
	assert.JSONEq(t, `{"expression": "1 + 1"}`, string(resp.ToolCalls[1].Function.Arguments))
}
