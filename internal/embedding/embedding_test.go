package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 返回由文本长度决定的确定性向量
type fakeProvider struct {
	dim        int
	probeCalls atomic.Int32
	batchCalls atomic.Int32
	failProbe  bool
	delay      time.Duration
	badDim     bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 1 && texts[0] == probeText {
		f.probeCalls.Add(1)
		time.Sleep(f.delay)
		if f.failProbe {
			return nil, errors.New("connection refused")
		}
	} else {
		f.batchCalls.Add(1)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		dim := f.dim
		if f.badDim && texts[0] != probeText {
			dim++
		}
		v := make([]float32, dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func TestEmbedEmptyDoesNotTouchModel(t *testing.T) {
	p := &fakeProvider{dim: 4}
	c := NewClient(p, Options{}, nil)

	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.NotNil(t, vecs)
	assert.Zero(t, p.probeCalls.Load())
	assert.Zero(t, p.batchCalls.Load())
}

func TestEmbedSingle(t *testing.T) {
	p := &fakeProvider{dim: 8}
	c := NewClient(p, Options{}, nil)
	assert.Zero(t, c.LoadedDimension())

	vecs, err := c.Embed(context.Background(), []string{"Tom Hanks"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 8)
	assert.Equal(t, 8, c.Dimension())
	assert.Equal(t, 8, c.LoadedDimension())
}

func TestEmbedBatchesPreserveOrder(t *testing.T) {
	p := &fakeProvider{dim: 2}
	c := NewClient(p, Options{BatchSize: 2, Concurrency: 3}, nil)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := c.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, int32(3), p.batchCalls.Load())
}

func TestConcurrentFirstCallsLoadOnce(t *testing.T) {
	p := &fakeProvider{dim: 3, delay: 20 * time.Millisecond}
	c := NewClient(p, Options{}, nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Embed(context.Background(), []string{"x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.probeCalls.Load())
	assert.Equal(t, int32(16), p.batchCalls.Load())
}

func TestLoadFailureIsSticky(t *testing.T) {
	p := &fakeProvider{dim: 3, failProbe: true}
	c := NewClient(p, Options{}, nil)

	for range 3 {
		_, err := c.Embed(context.Background(), []string{"x"})
		require.ErrorIs(t, err, ErrModelUnavailable)
	}
	assert.Equal(t, int32(1), p.probeCalls.Load())
	assert.Zero(t, p.batchCalls.Load())
	assert.Zero(t, c.Dimension())
}

func TestLoadIgnoresCallerCancellation(t *testing.T) {
	p := &fakeProvider{dim: 3}
	c := NewClient(p, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 3, c.Dimension())
}

func TestDimensionMismatch(t *testing.T) {
	p := &fakeProvider{dim: 3, badDim: true}
	c := NewClient(p, Options{}, nil)

	_, err := c.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPooling(t *testing.T) {
	tokens := [][]float32{{1, 2}, {3, 4}, {5, 12}}

	mean, err := PoolingMean.Pool(tokens)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 6}, mean)

	last, err := PoolingLast.Pool(tokens)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 12}, last)

	cls, err := PoolingCLS.Pool(tokens)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, cls)

	last[0] = 100
	assert.Equal(t, float32(5), tokens[2][0], "pooling must not alias token outputs")

	_, err = PoolingMean.Pool(nil)
	assert.Error(t, err)
	_, err = PoolingMean.Pool([][]float32{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestParsePooling(t *testing.T) {
	p, err := ParsePooling("")
	require.NoError(t, err)
	assert.Equal(t, PoolingMean, p)

	p, err = ParsePooling("last")
	require.NoError(t, err)
	assert.Equal(t, PoolingLast, p)

	_, err = ParsePooling("max")
	assert.Error(t, err)
}

func TestTEIProviderTruncatesAndPools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed_all", r.URL.Path)
		var req teiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// 截断交给服务端，从右侧截掉超长部分
		assert.True(t, req.Truncate)
		assert.Equal(t, "Right", req.TruncationDirection)

		out := make([][][]float32, len(req.Inputs))
		for i := range req.Inputs {
			// 三个 token，第三个会被 maxTokens=2 截掉
			out[i] = [][]float32{{2, 0}, {4, 2}, {100, 100}}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	p := NewTEIProvider(srv.URL+"/", 2, PoolingMean, time.Second)
	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{3, 1}, vecs[0])
}

func TestTEIProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(NewTEIProvider(srv.URL, 512, PoolingMean, time.Second), Options{}, nil)
	_, err := c.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req OllamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, 512, req.Options["num_ctx"])

		resp := OllamaResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "nomic-embed-text", 512, time.Second)
	vecs, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
}
