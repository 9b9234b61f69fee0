package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"github.com/utkarsh995/llm-recommender/internal/embedding"
	"github.com/utkarsh995/llm-recommender/internal/llm"
	"github.com/utkarsh995/llm-recommender/internal/model"
	"github.com/utkarsh995/llm-recommender/internal/vectorindex"
)

const hashDim = 1024

// hashingProvider 词袋哈希编码器：同一文本总是得到同一向量，共享词越多越相似
type hashingProvider struct {
	calls  atomic.Int32
	failOn func(texts []string) bool
}

func (p *hashingProvider) Name() string { return "hashing" }

func (p *hashingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)
	if p.failOn != nil && p.failOn(texts) {
		return nil, errors.New("encoder crashed")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

func hashVector(text string) []float32 {
	v := make([]float32, hashDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%hashDim]++
	}
	// 探测文本也要有非零向量
	v[0] += 0.001
	return v
}

func newHashingClient(p *hashingProvider) *embedding.Client {
	return embedding.NewClient(p, embedding.Options{BatchSize: 8, Concurrency: 2}, nil)
}

func newTestIndex(t *testing.T) *vectorindex.BadgerIndex {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idx, err := vectorindex.NewBadgerIndex(db, "movie_embeddings", "hashing-v1", nil)
	require.NoError(t, err)
	return idx
}

// fakeCatalog 内存中的内容目录
type fakeCatalog struct {
	mu       sync.Mutex
	records  []model.ContentRecord
	countErr error
}

func (c *fakeCatalog) Count(context.Context) (int64, error) {
	if c.countErr != nil {
		return 0, c.countErr
	}
	return int64(len(c.records)), nil
}

func (c *fakeCatalog) EachBatch(ctx context.Context, size, limit int, fn func(int, []model.ContentRecord) error) error {
	c.mu.Lock()
	recs := c.records
	c.mu.Unlock()
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	for batch, start := 0, 0; start < len(recs); batch, start = batch+1, start+size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(recs))
		if err := fn(batch, recs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// stubChat 返回固定回复或固定错误
type stubChat struct {
	reply string
	err   error
	block bool
	last  llm.Request
}

func (s *stubChat) Name() string { return "stub" }

func (s *stubChat) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.last = req
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.reply, s.err
}

func record(id int64, title, plot string, starring []string, director string) model.ContentRecord {
	rec := model.ContentRecord{
		ProgramID: id,
		Title:     title,
		Plot:      plot,
		Starring:  starring,
		ImageURL:  "https://img.example/" + title + ".jpg",
	}
	if director != "" {
		rec.Crew = model.CrewList{{Category: "director", NameID: director}}
	}
	return rec
}
