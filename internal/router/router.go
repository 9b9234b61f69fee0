package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/utkarsh995/llm-recommender/internal/handler"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== JSON API ====================
	api := r.Group("/api")
	{
		api.GET("/search", h.API(h.Search))
		api.POST("/identify_theme", h.API(h.IdentifyTheme))
		api.POST("/recommend", h.API(h.Recommend))
		api.GET("/index/stats", h.API(h.IndexStats))
	}

	// ==================== 旧前端路径 ====================
	r.GET("/search", h.Legacy(h.Search))
	r.POST("/identify_theme", h.Legacy(h.IdentifyTheme))
	r.POST("/recommend", h.Legacy(h.Recommend))
}
