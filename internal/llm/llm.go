// Package llm 对话模型客户端。主题识别只需要一次 system + user 的补全调用。
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion 模型返回了成功状态但没有内容
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Request 一次补全请求
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completer 对话模型
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}
