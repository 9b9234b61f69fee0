// Package embedding 把文本转换成定长向量。
//
// 编码器运行在独立的推理服务中，Client 负责：
//   - 首次调用时加载（探测）模型并记录向量维度，并发的首次调用只触发一次加载；
//   - 加载失败后所有调用都返回 ErrModelUnavailable；
//   - 按 BatchSize 分批并发请求，结果与输入顺序一致。
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utkarsh995/llm-recommender/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrModelUnavailable 编码器初始化失败
var ErrModelUnavailable = errors.New("embedding model unavailable")

// ErrDimensionMismatch 返回的向量维度与加载时记录的不一致
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

const probeText = "dimension probe"

// Provider 推理服务的一次批量调用，返回与 texts 一一对应的向量
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options Client 参数
type Options struct {
	BatchSize   int
	Concurrency int
	LoadTimeout time.Duration
}

// Client 向量客户端，可被多个请求并发使用
type Client struct {
	provider Provider
	opts     Options
	log      *zap.Logger

	loadOnce sync.Once
	loadErr  error
	dim      int
	ready    atomic.Int64 // 加载成功后的维度，供不触发加载的读取
}

// NewClient 创建客户端，不会立即加载模型
func NewClient(provider Provider, opts Options, log *zap.Logger) *Client {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{provider: provider, opts: opts, log: log}
}

// Load 显式加载模型，可在启动时调用以提前暴露问题
func (c *Client) Load(ctx context.Context) error {
	c.loadOnce.Do(func() {
		c.loadErr = c.load(ctx)
	})
	return c.loadErr
}

func (c *Client) load(ctx context.Context) error {
	// 加载不跟随首个调用方的取消，避免一次断开的请求让模型永久不可用
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LoadTimeout)
	defer cancel()

	start := time.Now()
	vecs, err := c.provider.Embed(lctx, []string{probeText})
	if err == nil && (len(vecs) != 1 || len(vecs[0]) == 0) {
		err = fmt.Errorf("probe returned %d vectors", len(vecs))
	}
	metrics.EmbeddingModelLoads.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		c.log.Error("向量模型加载失败", zap.String("provider", c.provider.Name()), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrModelUnavailable, c.provider.Name(), err)
	}

	c.dim = len(vecs[0])
	c.ready.Store(int64(c.dim))
	c.log.Info("向量模型已加载",
		zap.String("provider", c.provider.Name()),
		zap.Int("dimension", c.dim),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Dimension 模型向量维度，必要时触发加载；模型不可用时为 0
func (c *Client) Dimension() int {
	if c.Load(context.Background()) != nil {
		return 0
	}
	return c.dim
}

// LoadedDimension 不触发加载，尚未加载或加载失败时为 0
func (c *Client) LoadedDimension() int {
	return int(c.ready.Load())
}

// Embed 为每条文本生成一个向量，顺序与输入一致。空输入直接返回，不会触发模型加载。
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := c.Load(ctx); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for start := 0; start < len(texts); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.provider.Embed(gctx, texts[start:end])
			metrics.EmbeddingCalls.WithLabelValues(metrics.ResultLabel(err)).Inc()
			if err != nil {
				return fmt.Errorf("embedding: batch [%d:%d]: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding: batch [%d:%d]: got %d vectors", start, end, len(vecs))
			}
			for i, v := range vecs {
				if len(v) != c.dim {
					return fmt.Errorf("%w: text %d has %d, want %d", ErrDimensionMismatch, start+i, len(v), c.dim)
				}
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	metrics.EmbeddingTexts.Add(float64(len(texts)))
	return out, nil
}

// EmbedOne 单条文本的便捷方法
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
