package vectorindex

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMemIndex(t *testing.T, version string) *BadgerIndex {
	t.Helper()
	idx, err := NewBadgerIndex(openMemDB(t), "movies_test", version, nil)
	require.NoError(t, err)
	return idx
}

func year(y int) *int { return &y }

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := newMemIndex(t, "v1")
	ctx := context.Background()

	for _, k := range []int{0, 1, 10} {
		hits, err := idx.Query(ctx, []float32{1, 0, 0}, k)
		require.NoError(t, err)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	}
}

func TestUpsertAndQueryOrder(t *testing.T) {
	idx := newMemIndex(t, "v1")
	ctx := context.Background()

	err := idx.Upsert(ctx,
		[]string{"1", "2", "3"},
		[][]float32{{1, 0}, {0.8, 0.6}, {0, 1}},
		[]Metadata{{Title: "A"}, {Title: "B", Year: year(1994)}, {Title: "C"}},
		[]string{"doc a", "doc b", "doc c"},
	)
	require.NoError(t, err)

	hits, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "1", hits[0].ID)
	assert.Equal(t, "2", hits[1].ID)
	assert.Equal(t, "B", hits[1].Metadata.Title)
	assert.Equal(t, 1994, *hits[1].Metadata.Year)
	assert.Equal(t, "doc b", hits[1].Document)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	// k 大于条目数时返回全部
	hits, err = idx.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestUpsertReplacesEntry(t *testing.T) {
	idx := newMemIndex(t, "v1")
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []string{"42"}, [][]float32{{1, 0}},
		[]Metadata{{Title: "Old"}}, []string{"old"}))
	require.NoError(t, idx.Upsert(ctx, []string{"42"}, [][]float32{{0, 1}},
		[]Metadata{{Title: "New"}}, []string{"new"}))

	ids, err := idx.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids)

	e, ok, err := idx.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "New", e.Metadata.Title)
	assert.Equal(t, "new", e.Document)
	assert.Equal(t, []float32{0, 1}, e.Vector)
}

func TestUpsertValidation(t *testing.T) {
	idx := newMemIndex(t, "v1")
	ctx := context.Background()

	err := idx.Upsert(ctx, []string{"1", "2"}, [][]float32{{1}}, []Metadata{{}}, []string{""})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	err = idx.Upsert(ctx, []string{""}, [][]float32{{1}}, []Metadata{{}}, []string{""})
	assert.ErrorIs(t, err, ErrEmptyID)

	err = idx.Upsert(ctx, []string{"1"}, [][]float32{{}}, []Metadata{{}}, []string{""})
	assert.ErrorIs(t, err, ErrEmptyVector)

	require.NoError(t, idx.Upsert(ctx, nil, nil, nil, nil))
	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Entries)
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	idx := newMemIndex(t, "v1")
	ctx := context.Background()

	// 三个完全相同的向量，分两批写入
	require.NoError(t, idx.Upsert(ctx, []string{"b"}, [][]float32{{1, 1}}, []Metadata{{}}, []string{""}))
	require.NoError(t, idx.Upsert(ctx, []string{"c", "a"}, [][]float32{{1, 1}, {1, 1}}, []Metadata{{}, {}}, []string{"", ""}))
	// 覆盖写入不改变首次写入顺序
	require.NoError(t, idx.Upsert(ctx, []string{"b"}, [][]float32{{1, 1}}, []Metadata{{Title: "B"}}, []string{"b"}))

	hits, err := idx.Query(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.Equal(t, "a", hits[2].ID)
}

func TestEncoderVersionIsolation(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	v1, err := NewBadgerIndex(db, "movies", "model-a", nil)
	require.NoError(t, err)
	require.NoError(t, v1.Upsert(ctx, []string{"1"}, [][]float32{{1, 0}}, []Metadata{{Title: "A"}}, []string{""}))

	v2, err := NewBadgerIndex(db, "movies", "model-b", nil)
	require.NoError(t, err)

	hits, err := v2.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	st, err := v2.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Entries)
	assert.Equal(t, 1, st.Stale)
	assert.Equal(t, "model-b", st.EncoderVersion)

	// 重新灌入后覆盖旧版本条目
	require.NoError(t, v2.Upsert(ctx, []string{"1"}, [][]float32{{1, 0}}, []Metadata{{Title: "A"}}, []string{""}))
	st, err = v2.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, 0, st.Stale)
}

func TestQuerySkipsOtherDimensions(t *testing.T) {
	idx := newMemIndex(t, "v1")
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []string{"1", "2"}, [][]float32{{1, 0}, {1, 0, 0}},
		[]Metadata{{}, {}}, []string{"", ""}))

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].ID)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := OpenBadger(dir, "movies", "v1", nil)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []string{"7", "8"}, [][]float32{{1, 0}, {0, 1}},
		[]Metadata{{Title: "Seven", Year: year(1995)}, {Title: "Eight"}}, []string{"s", "e"}))
	require.NoError(t, idx.Close())

	idx, err = OpenBadger(dir, "movies", "v1", nil)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "7", hits[0].ID)
	assert.Equal(t, "Seven", hits[0].Metadata.Title)
	assert.Equal(t, 1995, *hits[0].Metadata.Year)

	// 新条目的顺序号接在已有条目之后
	require.NoError(t, idx.Upsert(ctx, []string{"9"}, [][]float32{{1, 0}}, []Metadata{{}}, []string{""}))
	hits, err = idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "9"}, []string{hits[0].ID, hits[1].ID})
}

func TestConcurrentUpsertAndQuery(t *testing.T) {
	idx := newMemIndex(t, "v1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 25 {
				id := fmt.Sprintf("%d-%d", w, i)
				assert.NoError(t, idx.Upsert(ctx, []string{id}, [][]float32{{float32(i + 1), 1}},
					[]Metadata{{Title: id}}, []string{id}))
			}
		}()
		go func() {
			defer wg.Done()
			for range 25 {
				_, err := idx.Query(ctx, []float32{1, 1}, 5)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	ids, err := idx.IDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 100)
}
