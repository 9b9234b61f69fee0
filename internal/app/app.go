// Package app 根据配置组装数据库、模型客户端、向量索引和各个服务，供 cmd/server 与 cmd/ingest 共用
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/config"
	"github.com/utkarsh995/llm-recommender/internal/embedding"
	"github.com/utkarsh995/llm-recommender/internal/handler"
	"github.com/utkarsh995/llm-recommender/internal/llm"
	"github.com/utkarsh995/llm-recommender/internal/logger"
	"github.com/utkarsh995/llm-recommender/internal/repository"
	"github.com/utkarsh995/llm-recommender/internal/service"
	"github.com/utkarsh995/llm-recommender/internal/utils"
	"github.com/utkarsh995/llm-recommender/internal/vectorindex"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	searchCacheTTL   = 5 * time.Minute
	queryCacheSize   = 1000
	queryCacheTTL    = 30 * time.Minute
	embedLoadTimeout = 2 * time.Minute
)

// App 进程内共享的依赖
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Repos    *repository.Repositories
	Embedder *embedding.Client
	Index    vectorindex.Index
	Chat     llm.Completer
}

// New 连接数据库并打开索引。模型客户端只创建不加载，首次使用时才探测。
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := repository.InitDB(cfg.DatabaseURL, logger.Component(log, "Database"))
	if err != nil {
		return nil, err
	}
	repos := repository.NewRepositories(db)

	index, err := OpenIndex(ctx, cfg, db, logger.Component(log, "VectorIndex"))
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	provider, err := NewEmbeddingProvider(cfg)
	if err != nil {
		_ = index.Close()
		_ = repos.Close()
		return nil, err
	}

	chat, err := NewChat(cfg)
	if err != nil {
		_ = index.Close()
		_ = repos.Close()
		return nil, err
	}

	return &App{
		Config: cfg,
		Log:    log,
		Repos:  repos,
		Embedder: embedding.NewClient(provider, embedding.Options{
			BatchSize:   cfg.EmbeddingBatchSize,
			Concurrency: cfg.EmbeddingConcurrency,
			LoadTimeout: embedLoadTimeout,
		}, logger.Component(log, "Embedding")),
		Index: index,
		Chat:  chat,
	}, nil
}

// OpenIndex 按配置打开向量索引，pgvector 后端需要 db
func OpenIndex(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (vectorindex.Index, error) {
	switch cfg.IndexBackend {
	case "", "badger":
		return vectorindex.OpenBadger(cfg.IndexPath, cfg.IndexCollection, cfg.EmbeddingVersion, log)
	case "pgvector":
		if db == nil {
			return nil, errors.New("pgvector index requires a database connection")
		}
		return vectorindex.NewPgVectorIndex(ctx, db, cfg.IndexCollection, cfg.EmbeddingVersion, log)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

// NewEmbeddingProvider 按配置创建向量推理服务客户端
func NewEmbeddingProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.EmbeddingProvider {
	case "", "tei":
		pooling, err := embedding.ParsePooling(cfg.EmbeddingPooling)
		if err != nil {
			return nil, err
		}
		return embedding.NewTEIProvider(cfg.EmbeddingEndpoint, cfg.EmbeddingMaxTokens, pooling, cfg.EmbeddingTimeout), nil
	case "ollama":
		return embedding.NewOllamaProvider(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingMaxTokens, cfg.EmbeddingTimeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// NewChat 按配置创建对话模型客户端
func NewChat(cfg *config.Config) (llm.Completer, error) {
	switch cfg.ChatProvider {
	case "", "openai":
		return llm.NewOpenAIClient(cfg.ChatEndpoint, cfg.ChatAPIKey, cfg.ChatModel, cfg.ChatTimeout), nil
	case "gemini":
		return llm.NewGeminiClient(cfg.ChatEndpoint, cfg.GeminiAPIKey, cfg.ChatModel, cfg.ChatTimeout), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.ChatProvider)
	}
}

// Handler 组装 HTTP 处理器
func (a *App) Handler() *handler.Handler {
	themes := service.NewThemeService(a.Chat, service.ThemeOptions{
		MaxTokens:   a.Config.ChatMaxTokens,
		Temperature: a.Config.ChatTemperature,
		Timeout:     a.Config.ChatTimeout,
	}, logger.Component(a.Log, "ThemeService"))

	recommender := service.NewRecommendationService(a.Embedder, a.Index, a.Config.RecommendK,
		utils.NewTTLCache[[]float32](queryCacheSize, queryCacheTTL),
		logger.Component(a.Log, "RecommendationService"))

	return handler.NewHandler(a.Repos.Content, themes, recommender, a.Index,
		utils.NewResultCache(searchCacheTTL),
		handler.Options{
			SearchLimit:    a.Config.SearchLimit,
			EmbeddingModel: a.Config.EmbeddingModel,
			Dimension:      a.Embedder.LoadedDimension,
		},
		logger.Component(a.Log, "Handler"))
}

// Ingestion 组装入库服务，batch/limit 为 0 时使用配置
func (a *App) Ingestion(batch, limit int) *service.IngestionService {
	if batch <= 0 {
		batch = a.Config.EmbeddingBatchSize
	}
	return service.NewIngestionService(a.Repos.Content, a.Embedder, a.Index,
		service.IngestOptions{BatchSize: batch, Limit: limit},
		logger.Component(a.Log, "Ingestion"))
}

// Close 依次关闭索引和数据库连接
func (a *App) Close() error {
	return errors.Join(a.Index.Close(), a.Repos.Close())
}
