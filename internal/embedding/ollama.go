package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/utils"
)

// OllamaRequest Ollama /api/embed 请求结构
type OllamaRequest struct {
	Model    string         `json:"model"`
	Input    []string       `json:"input"`
	Truncate bool           `json:"truncate"`
	Options  map[string]int `json:"options,omitempty"`
}

// OllamaResponse Ollama /api/embed 响应结构，向量已由服务端池化
type OllamaResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaProvider 调用本地 Ollama 生成向量
type OllamaProvider struct {
	host      string
	model     string
	maxTokens int
	http      *utils.HTTPClient
}

// NewOllamaProvider host 形如 http://localhost:11434
func NewOllamaProvider(host, model string, maxTokens int, timeout time.Duration) *OllamaProvider {
	if host == "" {
		host = "http://localhost:11434"
	}
	return &OllamaProvider{
		host:      strings.TrimRight(host, "/"),
		model:     model,
		maxTokens: maxTokens,
		http:      utils.NewHTTPClient(timeout),
	}
}

// Name 提供方名称
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Embed 实现 Provider
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := OllamaRequest{
		Model:    p.model,
		Input:    texts,
		Truncate: true,
	}
	if p.maxTokens > 0 {
		req.Options = map[string]int{"num_ctx": p.maxTokens}
	}

	var result OllamaResponse
	if err := p.http.PostJSON(ctx, p.host+"/api/embed", nil, req, &result); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}
