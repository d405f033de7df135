// Package agentsvc provides the Agent Service server implementation.
package agentsvc

import (
	"errors"

	"github.com/spf13/pflag"

	agentopts "github.com/kart-io/agent-x/pkg/options/agent"
	cacheopts "github.com/kart-io/agent-x/pkg/options/cache"
	httpopts "github.com/kart-io/agent-x/pkg/options/http"
	llmopts "github.com/kart-io/agent-x/pkg/options/llm"
	logopts "github.com/kart-io/agent-x/pkg/options/logger"
	milvusopts "github.com/kart-io/agent-x/pkg/options/milvus"
)

// Options contains all Agent Service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains Milvus database configuration.
	// 仅当 agent.store-driver 为 milvus 时使用。
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// Agent contains agent pipeline configuration.
	Agent *agentopts.Options `json:"agent" mapstructure:"agent"`

	// Cache contains query cache configuration.
	Cache *cacheopts.Options `json:"cache" mapstructure:"cache"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
		Agent:     agentopts.NewOptions(),
		Cache:     cacheopts.NewOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Agent.AddFlags(fs)
	o.Cache.AddFlags(fs)
	o.addProviderFlags(fs, "embedding", o.Embedding)
	o.addProviderFlags(fs, "chat", o.Chat)
}

// addProviderFlags 注册 Embedding/Chat 供应商的扁平化命令行参数。
func (o *Options) addProviderFlags(fs *pflag.FlagSet, prefix string, opts *llmopts.ProviderOptions) {
	fs.StringVar(&opts.Provider, prefix+".provider", opts.Provider, "Provider name (ollama, openai).")
	fs.StringVar(&opts.BaseURL, prefix+".base-url", opts.BaseURL, "Provider API base URL.")
	fs.StringVar(&opts.APIKey, prefix+".api-key", opts.APIKey, "Provider API key (for OpenAI).")
	fs.StringVar(&opts.Model, prefix+".model", opts.Model, "Model name.")
	fs.DurationVar(&opts.Timeout, prefix+".timeout", opts.Timeout, "Request timeout.")
	fs.IntVar(&opts.MaxRetries, prefix+".max-retries", opts.MaxRetries, "Maximum number of retries.")
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}

	var errs []error
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	errs = append(errs, o.Agent.Validate()...)
	errs = append(errs, o.Cache.Validate()...)
	if o.Agent.StoreDriver == "milvus" {
		errs = append(errs, o.Milvus.Validate()...)
	}
	return errors.Join(errs...)
}

// Complete completes the options.
func (o *Options) Complete() error {
	if err := o.HTTP.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Chat.Complete(); err != nil {
		return err
	}
	if err := o.Cache.Complete(); err != nil {
		return err
	}
	return o.Agent.Complete()
}

// Config builds the runtime configuration from validated options.
func (o *Options) Config() (*Config, error) {
	return &Config{
		HTTP:      o.HTTP,
		Log:       o.Log,
		Milvus:    o.Milvus,
		Embedding: o.Embedding,
		Chat:      o.Chat,
		Agent:     o.Agent,
		Cache:     o.Cache,
	}, nil
}
