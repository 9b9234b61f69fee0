// Package vectorindex 持久化的 id → (向量, 元数据, 文档) 存储，支持覆盖写入和近邻查询。
//
// 两个实现使用同一种度量（余弦相似度，越大越近）：
//   - BadgerIndex：本地目录下的嵌入式存储，默认实现；
//   - PgVectorIndex：Postgres + pgvector。
//
// 每个索引都绑定一个编码器版本，写入的条目会打上版本号，
// 查询只考虑同版本的条目，不同编码器产生的向量不会混在一起比较。
package vectorindex

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch Upsert 的四个切片长度不一致
	ErrLengthMismatch = errors.New("vectorindex: ids, vectors, metadatas and documents must have equal length")
	// ErrEmptyID 条目 id 为空
	ErrEmptyID = errors.New("vectorindex: empty id")
	// ErrEmptyVector 条目向量为空
	ErrEmptyVector = errors.New("vectorindex: empty vector")
)

// Metadata 与向量一起存储的展示字段，查询结果无需再回查数据库
type Metadata struct {
	Title    string `json:"title"`
	Year     *int   `json:"year"`
	ImageURL string `json:"image_url"`
}

// Entry 索引中的一条记录
type Entry struct {
	ID             string
	Vector         []float32
	Metadata       Metadata
	Document       string
	EncoderVersion string
}

// Hit 查询结果，Score 为余弦相似度
type Hit struct {
	ID       string
	Score    float32
	Metadata Metadata
	Document string
}

// Stats 索引概况
type Stats struct {
	Backend        string `json:"backend"`
	Collection     string `json:"collection"`
	EncoderVersion string `json:"encoder_version"`
	Entries        int    `json:"entries"`
	Stale          int    `json:"stale"` // 其他编码器版本写入、当前不可查询的条目
}

// Index 向量索引，实现必须可并发使用
type Index interface {
	// Upsert 写入或整体覆盖同 id 的条目，四个切片按下标对齐；调用返回后即可查询到
	Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []Metadata, docs []string) error
	// Query 返回最多 k 条结果，最相似的在前；索引为空或 k <= 0 时返回空切片
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
	// Get 按 id 读取当前编码器版本的条目
	Get(ctx context.Context, id string) (Entry, bool, error)
	// IDs 当前编码器版本的全部 id，按字典序
	IDs(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

func validateBatch(ids []string, vectors [][]float32, metas []Metadata, docs []string) error {
	if len(vectors) != len(ids) || len(metas) != len(ids) || len(docs) != len(ids) {
		return fmt.Errorf("%w (ids=%d vectors=%d metadatas=%d documents=%d)",
			ErrLengthMismatch, len(ids), len(vectors), len(metas), len(docs))
	}
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w at position %d", ErrEmptyID, i)
		}
		if len(vectors[i]) == 0 {
			return fmt.Errorf("%w for id %q", ErrEmptyVector, id)
		}
	}
	return nil
}
