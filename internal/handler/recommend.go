package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/utkarsh995/llm-recommender/internal/service"
)

// RecommendRequest 推荐请求
type RecommendRequest struct {
	ThemeDetail string `json:"theme_detail" binding:"required,max=2000"`
}

// Recommend 根据主题描述返回推荐列表
func (h *Handler) Recommend(c *gin.Context) (interface{}, error) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, badRequest("请求参数错误: %v", err)
	}
	if strings.TrimSpace(req.ThemeDetail) == "" {
		return nil, badRequest("theme_detail 不能为空")
	}

	return h.recommender.Recommend(c.Request.Context(), req.ThemeDetail)
}

// IndexStats 索引条目数、编码器版本和向量维度
func (h *Handler) IndexStats(c *gin.Context) (interface{}, error) {
	st, err := h.index.Stats(c.Request.Context())
	if err != nil {
		return nil, service.Upstream(service.SourceIndex, err)
	}
	return gin.H{
		"backend":         st.Backend,
		"collection":      st.Collection,
		"encoder_version": st.EncoderVersion,
		"entries":         st.Entries,
		"stale":           st.Stale,
		"embedding_model": h.opts.EmbeddingModel,
		"dimension":       h.opts.Dimension(),
	}, nil
}
