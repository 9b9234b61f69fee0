package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/utils"
)

// TEIProvider 调用 text-embeddings-inference 的 /embed_all，拿到逐 token 的隐藏状态后在本地池化。
//
// 输入截断由服务端完成（truncate=true，按服务启动参数 --max-input-length），
// TEI 需要以 --max-input-length 等于 EMBEDDING_MAX_TOKENS 启动。
// 本地的 maxTokens 截断只作用于已计算好的 token 状态：对因果编码器（last 池化）
// 与输入截断等价，对双向编码器（mean/cls）则不等价，后者完全依赖服务端截断。
type TEIProvider struct {
	baseURL   string
	maxTokens int
	pooling   Pooling
	http      *utils.HTTPClient
}

type teiRequest struct {
	Inputs              []string `json:"inputs"`
	Truncate            bool     `json:"truncate"`
	TruncationDirection string   `json:"truncation_direction"`
}

// NewTEIProvider endpoint 为服务根地址，maxTokens 为每条输入保留的最大 token 数
func NewTEIProvider(endpoint string, maxTokens int, pooling Pooling, timeout time.Duration) *TEIProvider {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &TEIProvider{
		baseURL:   strings.TrimRight(endpoint, "/"),
		maxTokens: maxTokens,
		pooling:   pooling,
		http:      utils.NewHTTPClient(timeout),
	}
}

// Name 提供方名称
func (p *TEIProvider) Name() string {
	return "tei"
}

// Embed 实现 Provider
func (p *TEIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var tokens [][][]float32
	err := p.http.PostJSON(ctx, p.baseURL+"/embed_all", nil, teiRequest{
		Inputs:              texts,
		Truncate:            true,
		TruncationDirection: "Right",
	}, &tokens)
	if err != nil {
		return nil, fmt.Errorf("tei: %w", err)
	}
	if len(tokens) != len(texts) {
		return nil, fmt.Errorf("tei: got %d outputs for %d inputs", len(tokens), len(texts))
	}

	out := make([][]float32, len(tokens))
	for i, t := range tokens {
		if len(t) > p.maxTokens {
			t = t[:p.maxTokens]
		}
		v, err := p.pooling.Pool(t)
		if err != nil {
			return nil, fmt.Errorf("tei: input %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
