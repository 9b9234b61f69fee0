package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/utkarsh995/llm-recommender/internal/embedding"
	"github.com/utkarsh995/llm-recommender/internal/model"
	"github.com/utkarsh995/llm-recommender/internal/service"
	"github.com/utkarsh995/llm-recommender/internal/utils"
	"github.com/utkarsh995/llm-recommender/internal/vectorindex"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ContentStore 内容目录查询
type ContentStore interface {
	FindByIDs(ctx context.Context, ids []int64) ([]model.ContentRecord, error)
	SearchByTitle(ctx context.Context, q string, limit int) ([]model.ContentSummary, error)
}

// ThemeIdentifier 主题提取
type ThemeIdentifier interface {
	IdentifyTheme(ctx context.Context, watched []model.WatchedItem) model.ThemeResult
}

// Recommender 推荐
type Recommender interface {
	Recommend(ctx context.Context, detail string) ([]model.Recommendation, error)
}

// IndexInfo 索引概况和向量维度
type IndexInfo interface {
	Stats(ctx context.Context) (vectorindex.Stats, error)
}

// Options Handler 参数
type Options struct {
	SearchLimit int
	// SearchTimeout 共享的目录查询上限，默认 10 秒
	SearchTimeout  time.Duration
	EmbeddingModel string
	// Dimension 返回已加载的向量维度，未加载时为 0
	Dimension func() int
}

// Handler HTTP 处理器
type Handler struct {
	store       ContentStore
	themes      ThemeIdentifier
	recommender Recommender
	index       IndexInfo
	opts        Options

	searchCache *utils.ResultCache
	searchGroup singleflight.Group
	log         *zap.Logger
}

// NewHandler 创建处理器，searchCache 为 nil 时不缓存搜索结果
func NewHandler(store ContentStore, themes ThemeIdentifier, recommender Recommender, index IndexInfo,
	searchCache *utils.ResultCache, opts Options, log *zap.Logger) *Handler {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 10 * time.Second
	}
	if opts.Dimension == nil {
		opts.Dimension = func() int { return 0 }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:       store,
		themes:      themes,
		recommender: recommender,
		index:       index,
		opts:        opts,
		searchCache: searchCache,
		log:         log,
	}
}

// endpoint 返回响应数据或错误，由 API/Legacy 两种包装决定输出格式
type endpoint func(c *gin.Context) (interface{}, error)

// requestError 请求参数错误，映射为 400
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// API 使用统一响应结构
func (h *Handler) API(fn endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := fn(c)
		if err != nil {
			status, source, msg := h.classify(c, err)
			switch status {
			case http.StatusBadRequest:
				utils.BadRequest(c, msg)
			case http.StatusBadGateway:
				utils.BadGateway(c, source, msg)
			case http.StatusServiceUnavailable:
				utils.ServiceUnavailable(c, source, msg)
			case http.StatusInternalServerError:
				utils.InternalServerError(c, msg)
			default:
				utils.Error(c, status, msg)
			}
			return
		}
		utils.Success(c, data)
	}
}

// Legacy 直接输出数据，兼容旧前端；错误为 {"detail": ...}
func (h *Handler) Legacy(fn endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := fn(c)
		if err != nil {
			status, source, msg := h.classify(c, err)
			body := gin.H{"detail": msg}
			if source != "" {
				body["source"] = source
			}
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

// classify 把错误映射为状态码、出错的依赖和提示信息
func (h *Handler) classify(c *gin.Context, err error) (int, string, string) {
	var (
		re *requestError
		ue *service.UpstreamError
	)
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest, "", re.msg
	case errors.Is(err, embedding.ErrModelUnavailable):
		h.log.Error("向量模型不可用", zap.String("path", c.Request.URL.Path), zap.Error(err))
		return http.StatusServiceUnavailable, service.SourceEmbedding, "向量模型不可用"
	case errors.As(err, &ue):
		h.log.Error("外部依赖不可用",
			zap.String("path", c.Request.URL.Path),
			zap.String("source", ue.Collaborator),
			zap.Error(ue.Err))
		return http.StatusBadGateway, ue.Collaborator, ue.Collaborator + " 不可用"
	case errors.Is(err, context.Canceled):
		// 客户端已断开
		return 499, "", "请求已取消"
	default:
		h.log.Error("请求处理失败", zap.String("path", c.Request.URL.Path), zap.Error(err))
		return http.StatusInternalServerError, "", "服务器内部错误"
	}
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
