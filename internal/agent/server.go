package agentsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/agent-x/internal/agent/biz"
	"github.com/kart-io/agent-x/internal/agent/handler"
	"github.com/kart-io/agent-x/internal/agent/router"
	"github.com/kart-io/agent-x/internal/agent/store"
	"github.com/kart-io/agent-x/pkg/component/milvus"
	"github.com/kart-io/agent-x/pkg/infra/app"
	"github.com/kart-io/agent-x/pkg/llm"
	"github.com/kart-io/agent-x/pkg/llm/resilience"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/agent-x/pkg/llm/ollama"
	_ "github.com/kart-io/agent-x/pkg/llm/openai"

	agentopts "github.com/kart-io/agent-x/pkg/options/agent"
	cacheopts "github.com/kart-io/agent-x/pkg/options/cache"
	httpopts "github.com/kart-io/agent-x/pkg/options/http"
	llmopts "github.com/kart-io/agent-x/pkg/options/llm"
	logopts "github.com/kart-io/agent-x/pkg/options/logger"
	milvusopts "github.com/kart-io/agent-x/pkg/options/milvus"
)

// Name is the name of the application.
const Name = "agent-x"

// Config contains application-related configurations.
type Config struct {
	HTTP      *httpopts.Options
	Log       *logopts.Options
	Milvus    *milvusopts.Options
	Embedding *llmopts.ProviderOptions
	Chat      *llmopts.ProviderOptions
	Agent     *agentopts.Options
	Cache     *cacheopts.Options
}

// Server represents the Agent server.
type Server struct {
	httpServer      *http.Server
	service         biz.Service
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	cfg.Log.AddInitialField("service.name", Name)
	cfg.Log.AddInitialField("service.version", app.GetVersion())
	if err := cfg.Log.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting agent service...")

	var closers []func()

	// 2. 初始化 Redis 客户端（查询缓存与 Embedding 缓存共用）
	redisClient := cfg.newRedisClient(ctx)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	// 3. 初始化向量存储
	vectorStore, storeClosers, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	closers = append(closers, storeClosers...)
	logger.Infow("Vector store initialized", "driver", cfg.Agent.StoreDriver)

	// 4. 初始化 LLM 供应商
	embedProvider, chatProvider, err := cfg.newProviders(redisClient)
	if err != nil {
		return nil, err
	}

	// 5. 初始化 Biz 层
	engine := biz.NewRetrievalEngine(vectorStore, embedProvider, biz.EngineConfig{
		ChunkSize:    cfg.Agent.ChunkSize,
		ChunkOverlap: cfg.Agent.ChunkOverlap,
		TopK:         cfg.Agent.TopK,
	})

	// 启动时尝试加载已有索引，没有索引时从数据目录构建
	if loaded, err := engine.LoadIndex(ctx); err != nil {
		logger.Warnw("failed to load existing index, starting empty", "error", err)
	} else if loaded {
		count, _ := engine.Count(ctx)
		logger.Infow("Existing index loaded", "chunks", count)
	} else if cfg.Agent.DataDir != "" {
		if result, err := engine.IngestDirectory(ctx, cfg.Agent.DataDir); err != nil {
			logger.Warnw("startup ingestion skipped", "dir", cfg.Agent.DataDir, "error", err)
		} else {
			logger.Infow("Startup ingestion complete",
				"files", result.ProcessedFiles,
				"chunks", result.TotalChunks,
			)
		}
	}

	memory := biz.NewSessionStore()
	tools := biz.NewToolRegistry(engine, cfg.Agent.TopK)
	orchestrator := biz.NewOrchestrator(chatProvider, tools, memory, biz.OrchestratorConfig{
		SystemPrompt:  cfg.Agent.SystemPrompt,
		HistoryWindow: cfg.Agent.HistoryWindow,
		Temperature:   cfg.Agent.Temperature,
		MaxTokens:     cfg.Agent.MaxTokens,
		DocKeywords:   cfg.Agent.DocKeywords,
	})
	queryCache := biz.NewQueryCache(redisClient, cfg.Cache.TTL, cfg.Cache.KeyPrefix, cfg.Cache.Enabled)

	service := biz.NewAgentService(engine, memory, tools, orchestrator, queryCache)
	logger.Infow("Agent service initialized",
		"store", cfg.Agent.StoreDriver,
		"cache.enabled", queryCache.Enabled(),
		"embedding", embedProvider.Name(),
		"chat", chatProvider.Name(),
	)

	// 6. 初始化 Handler 层与路由
	gin.SetMode(gin.ReleaseMode)
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	router.Register(ginEngine, handler.NewAgentHandler(service, Name))

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      ginEngine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	logger.Info("Agent service is ready")
	return &Server{
		httpServer:      httpServer,
		service:         service,
		shutdownTimeout: cfg.HTTP.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// newRedisClient 建立 Redis 连接。连接失败时降级为无缓存运行。
func (cfg *Config) newRedisClient(ctx context.Context) *goredis.Client {
	if !cfg.Cache.Enabled || cfg.Cache.Redis == nil {
		logger.Info("Cache is disabled")
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Cache.Redis.Addr(),
		Password:     cfg.Cache.Redis.Password,
		DB:           cfg.Cache.Redis.Database,
		MaxRetries:   cfg.Cache.Redis.MaxRetries,
		PoolSize:     cfg.Cache.Redis.PoolSize,
		MinIdleConns: cfg.Cache.Redis.MinIdleConns,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		_ = client.Close()
		return nil
	}

	logger.Infow("Redis cache initialized",
		"addr", cfg.Cache.Redis.Addr(),
		"ttl", cfg.Cache.TTL,
	)
	return client
}

// newVectorStore 按配置选择向量存储后端。
func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, []func(), error) {
	switch cfg.Agent.StoreDriver {
	case "milvus":
		milvusClient, err := milvus.New(cfg.Milvus)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		milvusStore, err := store.NewMilvusStore(ctx, milvusClient, cfg.Agent.Collection, cfg.Agent.EmbeddingDim)
		if err != nil {
			_ = milvusClient.Close(ctx)
			return nil, nil, fmt.Errorf("failed to initialize milvus store: %w", err)
		}
		closer := func() { _ = milvusClient.Close(context.Background()) }
		return milvusStore, []func(){closer}, nil

	case "flat":
		return store.NewFlatStore(cfg.Agent.IndexPath, cfg.Agent.EmbeddingDim), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", cfg.Agent.StoreDriver)
	}
}

// newProviders 构建 Embedding 与 Chat 供应商，套上缓存与韧性包装。
func (cfg *Config) newProviders(redisClient *goredis.Client) (llm.EmbeddingProvider, llm.ChatProvider, error) {
	embedProvider, err := llm.NewEmbeddingProvider(cfg.Embedding.Provider, cfg.Embedding.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if redisClient != nil {
		embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient, nil)
	}
	embedProvider = resilience.NewResilientEmbeddingProvider(embedProvider, nil, nil)
	logger.Infow("Embedding provider initialized",
		"provider", cfg.Embedding.Provider,
		"model", cfg.Embedding.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.Chat.Provider, cfg.Chat.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	resilientChat := resilience.NewResilientChatProvider(chatProvider, nil, nil)
	logger.Infow("Chat provider initialized",
		"provider", cfg.Chat.Provider,
		"model", cfg.Chat.Model,
	)

	return embedProvider, resilientChat, nil
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for _, closeFn := range s.closers {
			closeFn()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down agent service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// 尽力保存索引，失败不阻塞退出
	if err := s.service.SaveIndex(shutdownCtx); err != nil {
		logger.Warnw("failed to save index during shutdown", "error", err)
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	logger.Info("Agent service stopped")
	return nil
}
