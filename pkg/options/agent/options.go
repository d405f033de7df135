// Package agent provides agent pipeline configuration options.
package agent

import (
	"fmt"

	"github.com/kart-io/agent-x/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains agent pipeline configuration.
type Options struct {
	// ChunkSize is the size of text chunks in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Temperature is the sampling temperature for chat completions.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens bounds the completion length.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// HistoryWindow is the number of session messages sent with each query.
	HistoryWindow int `json:"history-window" mapstructure:"history-window"`

	// DataDir is the directory scanned for documents at ingestion.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// IndexPath is the base path for persisted index artifacts.
	IndexPath string `json:"index-path" mapstructure:"index-path"`

	// StoreDriver selects the vector store backend: flat or milvus.
	StoreDriver string `json:"store-driver" mapstructure:"store-driver"`

	// Collection is the Milvus collection name when store-driver is milvus.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// SystemPrompt overrides the built-in grounding prompt.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// DocKeywords are domain terms that nudge the model toward document search.
	// 命中关键词只是提示，不强制工具调用。
	DocKeywords []string `json:"doc-keywords" mapstructure:"doc-keywords"`
}

// DefaultSystemPrompt is the grounding prompt sent with every query.
const DefaultSystemPrompt = `You are a helpful assistant with access to a private document collection and a set of tools.

Rules:
- When document content is retrieved, answer ONLY from that content and cite the source files.
- If the retrieved content does not contain the answer, say so explicitly.
- Never fabricate facts, figures, or sources.
- Use the available tools when they help answer the question.`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:     500,
		ChunkOverlap:  100,
		TopK:          7,
		Temperature:   0.7,
		MaxTokens:     1000,
		HistoryWindow: 10,
		DataDir:       "_output/agent-data",
		IndexPath:     "_output/agent-index",
		StoreDriver:   "flat",
		Collection:    "agent_docs",
		EmbeddingDim:  768, // nomic-embed-text dimension
		SystemPrompt:  DefaultSystemPrompt,
		DocKeywords: []string{
			"policy", "policies", "benefit", "benefits", "vacation", "leave",
			"salary", "compensation", "product", "pricing", "architecture",
			"deployment", "api", "documentation",
		},
	}
}

// AddFlags adds flags for agent options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"agent.chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"agent.chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"agent.top-k", o.TopK, "Number of chunks per similarity search.")
	fs.Float64Var(&o.Temperature, options.Join(prefixes...)+"agent.temperature", o.Temperature, "Sampling temperature for completions.")
	fs.IntVar(&o.MaxTokens, options.Join(prefixes...)+"agent.max-tokens", o.MaxTokens, "Maximum completion tokens.")
	fs.IntVar(&o.HistoryWindow, options.Join(prefixes...)+"agent.history-window", o.HistoryWindow, "Number of session messages sent per query.")
	fs.StringVar(&o.DataDir, options.Join(prefixes...)+"agent.data-dir", o.DataDir, "Directory scanned for documents.")
	fs.StringVar(&o.IndexPath, options.Join(prefixes...)+"agent.index-path", o.IndexPath, "Base path for persisted index artifacts.")
	fs.StringVar(&o.StoreDriver, options.Join(prefixes...)+"agent.store-driver", o.StoreDriver, "Vector store backend: flat or milvus.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"agent.collection", o.Collection, "Milvus collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"agent.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringSliceVar(&o.DocKeywords, options.Join(prefixes...)+"agent.doc-keywords", o.DocKeywords, "Domain terms that nudge the model toward document search.")
}

// Validate validates the agent options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk-overlap must not be negative"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("history-window must be positive"))
	}
	if o.StoreDriver != "flat" && o.StoreDriver != "milvus" {
		errs = append(errs, fmt.Errorf("store-driver must be flat or milvus, got %q", o.StoreDriver))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	return errs
}

// Complete completes the agent options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if len(o.DocKeywords) == 0 {
		o.DocKeywords = NewOptions().DocKeywords
	}
	return nil
}
