// ingest 把内容表中的电影逐批生成向量写入索引，可重复执行
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/utkarsh995/llm-recommender/internal/app"
	"github.com/utkarsh995/llm-recommender/internal/config"
	"github.com/utkarsh995/llm-recommender/internal/logger"
	"github.com/utkarsh995/llm-recommender/internal/service"
	"go.uber.org/zap"
)

func main() {
	batch := flag.Int("batch", 0, "每批记录数，0 表示使用 EMBEDDING_BATCH_SIZE")
	limit := flag.Int("limit", 0, "最多处理的记录数，0 表示全部")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置错误: %v", err)
	}

	zl, err := logger.New("llm-recommender-ingest", cfg.LogLevel)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}

	os.Exit(run(zl, cfg, *batch, *limit))
}

func run(zl *zap.Logger, cfg *config.Config, batch, limit int) int {
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Error("初始化失败", zap.Error(err))
		return 1
	}
	defer a.Close()

	report, err := a.Ingestion(batch, limit).Run(ctx)
	if err != nil {
		var ie *service.IngestError
		switch {
		case errors.As(err, &ie):
			zl.Error("入库中断", zap.Int("batch", ie.Batch), zap.Int("indexed", report.Indexed), zap.Error(ie.Err))
		case errors.Is(err, context.Canceled):
			zl.Warn("入库被取消", zap.Int("indexed", report.Indexed))
		default:
			zl.Error("入库失败", zap.Error(err))
		}
		return 1
	}

	zl.Info("入库完成",
		zap.Int64("total", report.Total),
		zap.Int("batches", report.Batches),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Elapsed))
	return 0
}
