// Package model provides data models for the Agent-X platform.
package model

import (
	"time"
)

// Message represents a single message in a conversation session.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ToolCallRecord captures one executed tool call within a query.
type ToolCallRecord struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
}

// Source represents source information for a retrieved chunk.
type Source struct {
	File       string  `json:"file"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// QueryResult represents the final answer for one query.
type QueryResult struct {
	Answer    string           `json:"answer"`
	Sources   []Source         `json:"sources"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
	SessionID string           `json:"session_id"`
	Timestamp time.Time        `json:"timestamp"`
	Error     string           `json:"error,omitempty"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	ProcessedFiles int      `json:"processed_files"`
	SkippedFiles   []string `json:"skipped_files"`
	TotalChunks    int      `json:"total_chunks"`
	ElapsedMs      int64    `json:"elapsed_ms"`
}
