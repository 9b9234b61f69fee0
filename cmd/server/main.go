package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/utkarsh995/llm-recommender/internal/app"
	"github.com/utkarsh995/llm-recommender/internal/config"
	"github.com/utkarsh995/llm-recommender/internal/logger"
	"github.com/utkarsh995/llm-recommender/internal/middleware"
	"github.com/utkarsh995/llm-recommender/internal/router"
	"go.uber.org/zap"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置错误: %v", err)
	}

	zl, err := logger.New("llm-recommender", cfg.LogLevel)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer zl.Sync()

	// 初始化数据库、索引和模型客户端
	a, err := app.New(context.Background(), cfg, zl)
	if err != nil {
		zl.Fatal("初始化失败", zap.Error(err))
	}
	defer a.Close()

	// 后台预热向量模型，失败只记录，首个请求会拿到同样的错误
	go func() {
		if err := a.Embedder.Load(context.Background()); err != nil {
			zl.Warn("向量模型预热失败", zap.Error(err))
		}
	}()

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// 中间件
	r.Use(middleware.Logger(zl), middleware.Recovery(zl))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	router.RegisterRoutes(r, a.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// 配置 HTTP 服务器，识别请求要等对话模型，写超时放宽
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        c.Handler(r),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.ChatTimeout + 30*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zl.Info("服务器启动", zap.String("addr", "http://localhost:"+cfg.Port),
			zap.String("index_backend", cfg.IndexBackend),
			zap.String("embedding_model", cfg.EmbeddingModel),
			zap.String("chat_model", cfg.ChatModel))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("服务器强制关闭", zap.Error(err))
	}

	zl.Info("服务器已退出")
}
