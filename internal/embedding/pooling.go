package embedding

import (
	"errors"
	"fmt"
)

// Pooling 把逐 token 的输出归约成一个定长向量。
// 不同的编码器需要不同的规则：mean 适用于大多数句向量模型，
// 以末尾池化 token 输出句向量的模型（如 Qwen3-Embedding）应使用 last。
type Pooling string

const (
	PoolingMean Pooling = "mean"
	PoolingLast Pooling = "last"
	PoolingCLS  Pooling = "cls"
)

var errNoTokens = errors.New("embedding: no token outputs to pool")

// ParsePooling 解析配置中的池化方式
func ParsePooling(s string) (Pooling, error) {
	switch p := Pooling(s); p {
	case PoolingMean, PoolingLast, PoolingCLS:
		return p, nil
	case "":
		return PoolingMean, nil
	}
	return "", fmt.Errorf("embedding: unknown pooling %q", s)
}

// Pool 对一条输入的 token 向量做池化。tokens 只包含真实 token（不含 padding），
// 因此 mean 等价于带 attention mask 的均值。tokens 应来自已截断的输入，
// 见 TEIProvider 关于截断的说明。
func (p Pooling) Pool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, errNoTokens
	}
	dim := len(tokens[0])
	for i, t := range tokens {
		if len(t) != dim {
			return nil, fmt.Errorf("embedding: token %d has dimension %d, want %d", i, len(t), dim)
		}
	}

	switch p {
	case PoolingLast:
		return clone(tokens[len(tokens)-1]), nil
	case PoolingCLS:
		return clone(tokens[0]), nil
	case PoolingMean, "":
		sum := make([]float64, dim)
		for _, t := range tokens {
			for j, v := range t {
				sum[j] += float64(v)
			}
		}
		out := make([]float32, dim)
		n := float64(len(tokens))
		for j := range sum {
			out[j] = float32(sum[j] / n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("embedding: unknown pooling %q", string(p))
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
