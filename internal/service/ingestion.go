package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/metrics"
	"github.com/utkarsh995/llm-recommender/internal/model"
	"github.com/utkarsh995/llm-recommender/internal/vectorindex"
	"go.uber.org/zap"
)

// Catalog 入库读取的内容目录
type Catalog interface {
	EachBatch(ctx context.Context, size, limit int, fn func(batch int, records []model.ContentRecord) error) error
	Count(ctx context.Context) (int64, error)
}

// BatchEmbedder 批量向量化
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestOptions 入库参数
type IngestOptions struct {
	BatchSize int
	Limit     int // 0 表示全部
}

// IngestReport 一次入库的统计
type IngestReport struct {
	Total   int64         `json:"total"`
	Batches int           `json:"batches"`
	Indexed int           `json:"indexed"`
	Skipped int           `json:"skipped"`
	Elapsed time.Duration `json:"elapsed"`
}

// IngestError 某一批次失败，之前的批次已经写入索引，不会回滚
type IngestError struct {
	Batch int
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest batch %d: %v", e.Batch, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IngestionService 目录 → 文本 → 向量 → 索引
type IngestionService struct {
	catalog  Catalog
	embedder BatchEmbedder
	index    vectorindex.Index
	opts     IngestOptions
	log      *zap.Logger
}

// NewIngestionService 创建入库服务
func NewIngestionService(catalog Catalog, embedder BatchEmbedder, index vectorindex.Index, opts IngestOptions, log *zap.Logger) *IngestionService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestionService{catalog: catalog, embedder: embedder, index: index, opts: opts, log: log}
}

// Run 按批次处理整个目录。可重复执行，同一 id 会被覆盖写入。
func (s *IngestionService) Run(ctx context.Context) (IngestReport, error) {
	start := time.Now()
	var report IngestReport

	total, err := s.catalog.Count(ctx)
	if err != nil {
		return report, Upstream(SourceDatabase, err)
	}
	if s.opts.Limit > 0 && int64(s.opts.Limit) < total {
		total = int64(s.opts.Limit)
	}
	report.Total = total
	s.log.Info("开始入库", zap.Int64("total", total), zap.Int("batch_size", s.opts.BatchSize))

	err = s.catalog.EachBatch(ctx, s.opts.BatchSize, s.opts.Limit, func(batch int, records []model.ContentRecord) error {
		indexed, skipped, err := s.ingestBatch(ctx, records)
		metrics.IngestBatches.WithLabelValues(metrics.ResultLabel(err)).Inc()
		if err != nil {
			s.log.Error("批次入库失败", zap.Int("batch", batch), zap.Error(err))
			return &IngestError{Batch: batch, Err: err}
		}

		report.Batches++
		report.Indexed += indexed
		report.Skipped += skipped
		s.log.Info("批次完成",
			zap.Int("batch", batch),
			zap.Int("records", indexed),
			zap.Int("done", report.Indexed+report.Skipped),
			zap.Int64("total", total))
		return nil
	})
	report.Elapsed = time.Since(start)

	if err != nil {
		var ie *IngestError
		if errors.As(err, &ie) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return report, err
		}
		return report, Upstream(SourceDatabase, err)
	}

	s.log.Info("入库完成",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (s *IngestionService) ingestBatch(ctx context.Context, records []model.ContentRecord) (indexed, skipped int, err error) {
	ids := make([]string, 0, len(records))
	texts := make([]string, 0, len(records))
	metas := make([]vectorindex.Metadata, 0, len(records))

	for _, rec := range records {
		if strings.TrimSpace(rec.Title) == "" {
			skipped++
			continue
		}
		ids = append(ids, strconv.FormatInt(rec.ProgramID, 10))
		texts = append(texts, BuildCanonicalText(rec))
		metas = append(metas, vectorindex.Metadata{
			Title:    rec.Title,
			Year:     rec.Year,
			ImageURL: rec.ImageURL,
		})
	}
	if len(ids) == 0 {
		return 0, skipped, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, skipped, fmt.Errorf("embed: %w", err)
	}
	if err := s.index.Upsert(ctx, ids, vectors, metas, texts); err != nil {
		return 0, skipped, fmt.Errorf("upsert: %w", err)
	}
	return len(ids), skipped, nil
}
