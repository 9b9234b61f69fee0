package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/utkarsh995/llm-recommender/internal/model"
	"github.com/utkarsh995/llm-recommender/internal/service"
)

// ThemeRequest 观看历史，条目结构与目录记录一致
type ThemeRequest struct {
	History []model.ContentRecord `json:"history" binding:"required,max=50"`
}

// ThemeResponse 主题提取结果
type ThemeResponse struct {
	RawOutput   string            `json:"raw_output"`
	ParsedTheme map[string]string `json:"parsed_theme"`
	Reasoning   string            `json:"reasoning"`
}

// IdentifyTheme 从观看历史中提取共同主题
func (h *Handler) IdentifyTheme(c *gin.Context) (interface{}, error) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, badRequest("请求参数错误: %v", err)
	}

	watched, err := h.resolveHistory(c, req.History)
	if err != nil {
		return nil, err
	}

	res := h.themes.IdentifyTheme(c.Request.Context(), watched)
	return newThemeResponse(res), nil
}

// resolveHistory 用目录中的完整记录替换请求里的条目，目录中没有的保留请求内容
func (h *Handler) resolveHistory(c *gin.Context, history []model.ContentRecord) ([]model.WatchedItem, error) {
	ids := make([]int64, 0, len(history))
	for _, item := range history {
		if item.ProgramID != 0 {
			ids = append(ids, item.ProgramID)
		}
	}

	byID := map[int64]model.ContentRecord{}
	if len(ids) > 0 {
		ctx := c.Request.Context()
		records, err := h.store.FindByIDs(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, service.Upstream(service.SourceDatabase, err)
		}
		for _, r := range records {
			byID[r.ProgramID] = r
		}
	}

	watched := make([]model.WatchedItem, 0, len(history))
	for _, item := range history {
		if full, ok := byID[item.ProgramID]; ok {
			item = full
		}
		watched = append(watched, service.WatchedItemFromRecord(item))
	}
	return watched, nil
}

func newThemeResponse(res model.ThemeResult) ThemeResponse {
	parsed := map[string]string{}
	if res.Parsed {
		parsed["type"] = res.Kind
		parsed["detail"] = res.Detail
	}
	return ThemeResponse{
		RawOutput:   res.Raw,
		ParsedTheme: parsed,
		Reasoning:   res.Reasoning,
	}
}
