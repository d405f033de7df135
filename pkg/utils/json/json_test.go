package json

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedResult struct {
	Answer    string    `json:"answer"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Scores    []float32 `json:"scores,omitempty"`
}

func TestMarshalUnmarshalStruct(t *testing.T) {
	original := cachedResult{
		Answer:    "The vacation policy allows 20 days.",
		SessionID: "default",
		Timestamp: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Scores:    []float32{0.12, 3.4},
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	var decoded cachedResult
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestUnmarshalToolArguments(t *testing.T) {
	// 工具调用参数是 map[string]any，不能丢键也不能破坏 unicode
	raw := []byte(`{"expression": "2 + 2", "查询": "假期政策", "top_k": 3}`)

	var args map[string]interface{}
	require.NoError(t, Unmarshal(raw, &args))

	assert.Equal(t, "2 + 2", args["expression"])
	assert.Equal(t, "假期政策", args["查询"])
	assert.InDelta(t, 3.0, args["top_k"], 0.001)
}

func TestUnmarshalInvalidInput(t *testing.T) {
	var v map[string]interface{}
	assert.Error(t, Unmarshal([]byte(`{"truncated":`), &v))
	assert.Error(t, Unmarshal([]byte(``), &v))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"chunks": 42}))

	var decoded map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&decoded))
	assert.Equal(t, 42, decoded["chunks"])
}

func TestConfigModeSwitch(t *testing.T) {
	defer ConfigStandardMode()

	payload := map[string]string{"answer": "ok"}

	ConfigFastestMode()
	fast, err := Marshal(payload)
	require.NoError(t, err)

	ConfigStandardMode()
	standard, err := Marshal(payload)
	require.NoError(t, err)

	assert.JSONEq(t, string(standard), string(fast))
}
