package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/utils"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClient OpenAI 兼容的 /chat/completions 接口（vLLM 等）
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *utils.HTTPClient
}

// NewOpenAIClient baseURL 形如 http://localhost:8000/v1
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    utils.NewHTTPClient(timeout),
	}
}

// Name 提供方名称
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Complete 实现 Completer
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
