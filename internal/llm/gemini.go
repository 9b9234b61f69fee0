package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/utils"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiRequest Gemini API 请求结构
type GeminiRequest struct {
	SystemInstruction *GeminiContent         `json:"systemInstruction,omitempty"`
	Contents          []GeminiContent        `json:"contents"`
	GenerationConfig  GeminiGenerationConfig `json:"generationConfig"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text string `json:"text"`
}

type GeminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// GeminiResponse Gemini API 响应结构
type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiClient 调用 Gemini generateContent
type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *utils.HTTPClient
}

// NewGeminiClient baseURL 为空时使用官方地址
func NewGeminiClient(baseURL, apiKey, model string, timeout time.Duration) *GeminiClient {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    utils.NewHTTPClient(timeout),
	}
}

// Name 提供方名称
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Complete 实现 Completer
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("GEMINI_API_KEY is not set")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))

	body := GeminiRequest{
		Contents: []GeminiContent{{
			Role:  "user",
			Parts: []GeminiPart{{Text: req.User}},
		}},
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: req.System}}}
	}

	var result GeminiResponse
	if err := c.http.PostJSON(ctx, endpoint, nil, body, &result); err != nil {
		// 不把带 key 的地址带进错误信息
		var se *utils.StatusError
		if errors.As(err, &se) {
			return "", fmt.Errorf("gemini api status %d: %s", se.Code, se.Body)
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("gemini request: %w", ctx.Err())
		}
		return "", errors.New("gemini request failed")
	}

	if result.Error != nil {
		return "", fmt.Errorf("gemini api error: %s", result.Error.Message)
	}
	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		var sb strings.Builder
		for _, p := range result.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String(), nil
	}
	return "", ErrEmptyCompletion
}
