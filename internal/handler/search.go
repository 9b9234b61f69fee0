package handler

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/utkarsh995/llm-recommender/internal/model"
	"github.com/utkarsh995/llm-recommender/internal/service"
	"github.com/utkarsh995/llm-recommender/internal/utils"
	"go.uber.org/zap"
)

// Search 按标题子串搜索目录
func (h *Handler) Search(c *gin.Context) (interface{}, error) {
	q := utils.NormalizeQuery(c.Query("q"))
	if q == "" {
		return nil, badRequest("搜索词不能为空")
	}

	key := fmt.Sprintf("search:%d:%s", h.opts.SearchLimit, q)
	if h.searchCache != nil {
		if v, ok := h.searchCache.Get(key); ok {
			return v, nil
		}
	}

	// 相同的并发搜索只查一次数据库。查询由多个请求共享，
	// 不跟随发起者的取消，每个请求只在自己断开时提前返回。
	ctx := c.Request.Context()
	ch := h.searchGroup.DoChan(key, func() (interface{}, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.SearchTimeout)
		defer cancel()

		results, err := h.store.SearchByTitle(qctx, q, h.opts.SearchLimit)
		if err != nil {
			return nil, service.Upstream(service.SourceDatabase, err)
		}
		if h.searchCache != nil {
			h.searchCache.Set(key, results)
		}
		return results, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		results := res.Val.([]model.ContentSummary)
		h.log.Debug("搜索完成", zap.String("q", q), zap.Int("results", len(results)), zap.Bool("shared", res.Shared))
		return results, nil
	}
}
