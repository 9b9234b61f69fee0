package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/embedding"
	"github.com/utkarsh995/llm-recommender/internal/metrics"
	"github.com/utkarsh995/llm-recommender/internal/model"
	"github.com/utkarsh995/llm-recommender/internal/utils"
	"github.com/utkarsh995/llm-recommender/internal/vectorindex"
	"go.uber.org/zap"
)

// Embedder 单条文本向量化
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// RecommendationService 主题描述 → 向量 → 近邻条目
type RecommendationService struct {
	embedder Embedder
	index    vectorindex.Index
	k        int
	cache    *utils.TTLCache[[]float32]
	log      *zap.Logger
}

// NewRecommendationService k 为返回条数上限，cache 为 nil 时不缓存查询向量
func NewRecommendationService(embedder Embedder, index vectorindex.Index, k int, cache *utils.TTLCache[[]float32], log *zap.Logger) *RecommendationService {
	if k <= 0 {
		k = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RecommendationService{embedder: embedder, index: index, k: k, cache: cache, log: log}
}

// Recommend 按相似度顺序返回推荐，索引为空时返回空切片
func (s *RecommendationService) Recommend(ctx context.Context, detail string) ([]model.Recommendation, error) {
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	}()

	vec, err := s.queryVector(ctx, detail)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Query(ctx, vec, s.k)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("query index: %w", ctx.Err())
		}
		return nil, Upstream(SourceIndex, err)
	}

	out := make([]model.Recommendation, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.Recommendation{
			ProgramID: h.ID,
			Title:     h.Metadata.Title,
			Year:      h.Metadata.Year,
			ImageURL:  h.Metadata.ImageURL,
		})
	}

	s.log.Debug("推荐完成", zap.Int("results", len(out)), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (s *RecommendationService) queryVector(ctx context.Context, detail string) ([]float32, error) {
	key := utils.NormalizeQuery(detail)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
	}

	vec, err := s.embedder.EmbedOne(ctx, detail)
	if err != nil {
		// 调用方取消不算依赖故障；模型不可用单独映射为 503，其余视为向量服务故障
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embed theme detail: %w", ctx.Err())
		}
		if errors.Is(err, embedding.ErrModelUnavailable) {
			return nil, fmt.Errorf("embed theme detail: %w", err)
		}
		return nil, Upstream(SourceEmbedding, err)
	}
	if s.cache != nil {
		s.cache.Set(key, vec)
	}
	return vec, nil
}
