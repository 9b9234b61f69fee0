package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config 应用配置
type Config struct {
	Env         string `validate:"required"`
	Port        string `validate:"required,numeric"`
	DatabaseURL string `validate:"required"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	CORSOrigins []string

	// 向量索引
	IndexBackend    string `validate:"oneof=badger pgvector"`
	IndexPath       string `validate:"required_if=IndexBackend badger"`
	IndexCollection string `validate:"required"`

	// 向量模型
	EmbeddingProvider    string `validate:"oneof=tei ollama"`
	EmbeddingEndpoint    string `validate:"required,url"`
	EmbeddingModel       string `validate:"required"`
	EmbeddingVersion     string `validate:"required"`
	EmbeddingPooling     string `validate:"oneof=mean last cls"`
	EmbeddingMaxTokens   int    `validate:"gt=0"`
	EmbeddingBatchSize   int    `validate:"gt=0"`
	EmbeddingConcurrency int    `validate:"gt=0"`
	EmbeddingTimeout     time.Duration

	// 对话模型
	ChatProvider    string  `validate:"oneof=openai gemini"`
	ChatEndpoint    string  `validate:"required,url"`
	ChatAPIKey      string
	ChatModel       string  `validate:"required"`
	ChatMaxTokens   int     `validate:"gt=0"`
	ChatTemperature float64 `validate:"gte=0,lte=2"`
	ChatTimeout     time.Duration
	GeminiAPIKey    string `validate:"required_if=ChatProvider gemini"`

	RecommendK  int `validate:"gt=0,lte=100"`
	SearchLimit int `validate:"gt=0,lte=200"`
}

// Load 加载配置
func Load() *Config {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "umd")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	embeddingModel := getEnv("EMBEDDING_MODEL", "Qwen/Qwen3-Embedding-0.6B")
	chatProvider := getEnv("CHAT_PROVIDER", "openai")

	chatEndpoint := "http://localhost:8000/v1"
	if chatProvider == "gemini" {
		chatEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	}

	return &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8001"),
		DatabaseURL: getEnv("DATABASE_URL", dbURL),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		IndexBackend:    getEnv("INDEX_BACKEND", "badger"),
		IndexPath:       getEnv("INDEX_PATH", "./data/index"),
		IndexCollection: getEnv("INDEX_COLLECTION", "movie_embeddings"),

		EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "tei"),
		EmbeddingEndpoint:    getEnv("EMBEDDING_ENDPOINT", "http://localhost:8080"),
		EmbeddingModel:       embeddingModel,
		EmbeddingVersion:     getEnv("EMBEDDING_VERSION", embeddingModel),
		EmbeddingPooling:     getEnv("EMBEDDING_POOLING", "mean"),
		EmbeddingMaxTokens:   getEnvInt("EMBEDDING_MAX_TOKENS", 512),
		EmbeddingBatchSize:   getEnvInt("EMBEDDING_BATCH_SIZE", 32),
		EmbeddingConcurrency: getEnvInt("EMBEDDING_CONCURRENCY", 2),
		EmbeddingTimeout:     time.Duration(getEnvInt("EMBEDDING_TIMEOUT_SECONDS", 60)) * time.Second,

		ChatProvider:    chatProvider,
		ChatEndpoint:    getEnv("CHAT_ENDPOINT", chatEndpoint),
		ChatAPIKey:      getEnv("CHAT_API_KEY", "EMPTY"),
		ChatModel:       getEnv("CHAT_MODEL", "Qwen/Qwen3-0.6B"),
		ChatMaxTokens:   getEnvInt("CHAT_MAX_TOKENS", 200),
		ChatTemperature: getEnvFloat("CHAT_TEMPERATURE", 0.7),
		ChatTimeout:     time.Duration(getEnvInt("CHAT_TIMEOUT_SECONDS", 60)) * time.Second,
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),

		RecommendK:  getEnvInt("RECOMMEND_K", 10),
		SearchLimit: getEnvInt("SEARCH_LIMIT", 20),
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.EmbeddingTimeout <= 0 || c.ChatTimeout <= 0 {
		return fmt.Errorf("invalid config: timeouts must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
