package service

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable 外部依赖（数据库、对话模型）不可达
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// 外部依赖名称，出现在错误响应的 source 字段里
const (
	SourceDatabase  = "database"
	SourceChat      = "chat"
	SourceEmbedding = "embedding"
	SourceIndex     = "index"
)

// UpstreamError 标明是哪个外部依赖失败
type UpstreamError struct {
	Collaborator string
	Err          error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrUpstreamUnavailable) 成立
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Upstream 包装外部依赖错误，err 为 nil 时返回 nil
func Upstream(collaborator string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Collaborator: collaborator, Err: err}
}
