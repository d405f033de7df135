package agentsvc

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/agent-x/pkg/infra/app"
)

const appDescription = `Agent-X Service

An LLM agent service with retrieval-augmented question answering.

This server provides:
  - Document ingestion with chunking and vector embeddings
  - Semantic similarity search over a private document collection
  - Tool-augmented question answering (time, arithmetic, document search)
  - Per-session conversation memory
  - Support for multiple LLM providers (Ollama, OpenAI)`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(Name),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *Options) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// 第二次信号直接退出。
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
