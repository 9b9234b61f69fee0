package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// record 持久化到 badger 的条目格式
type record struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
	Document string    `json:"document"`
	Version  string    `json:"encoder_version"`
	Seq      uint64    `json:"seq"` // 首次写入顺序，相似度相同时先写入的排前面
}

// BadgerIndex 基于 badger 的持久化索引。
// 全部条目在打开时载入内存，查询为暴力余弦扫描；写入先落盘再更新内存。
type BadgerIndex struct {
	db         *badger.DB
	ownsDB     bool
	collection string
	prefix     []byte
	version    string
	log        *zap.Logger

	mu      sync.RWMutex
	entries map[string]*record
	nextSeq uint64
}

// badgerLogger 把 badger 的内部日志转到 zap
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.s.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.s.Debugf(f, v...) }

// OpenBadger 在 path 目录下打开（或创建）索引，返回的索引负责关闭数据库
func OpenBadger(path, collection, version string, log *zap.Logger) (*BadgerIndex, error) {
	if path == "" {
		return nil, errors.New("vectorindex: badger path is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{s: log.Sugar()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}

	idx, err := NewBadgerIndex(db, collection, version, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	idx.ownsDB = true
	return idx, nil
}

// NewBadgerIndex 使用已打开的数据库，多个 collection 可以共用一个 db
func NewBadgerIndex(db *badger.DB, collection, version string, log *zap.Logger) (*BadgerIndex, error) {
	if collection == "" {
		collection = "movie_embeddings"
	}
	if log == nil {
		log = zap.NewNop()
	}

	idx := &BadgerIndex{
		db:         db,
		collection: collection,
		prefix:     []byte("vec:" + collection + ":"),
		version:    version,
		log:        log,
		entries:    make(map[string]*record),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}

	log.Info("向量索引已载入",
		zap.String("backend", "badger"),
		zap.String("collection", collection),
		zap.Int("entries", len(idx.entries)))
	return idx, nil
}

func (b *BadgerIndex) load() error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode index entry %s: %w", item.Key(), err)
			}
			b.entries[rec.ID] = &rec
			if rec.Seq >= b.nextSeq {
				b.nextSeq = rec.Seq + 1
			}
		}
		return nil
	})
}

func (b *BadgerIndex) key(id string) []byte {
	k := make([]byte, 0, len(b.prefix)+len(id))
	k = append(k, b.prefix...)
	return append(k, id...)
}

// Upsert 实现 Index。同一批写入在一个事务内提交，失败时内存状态不变。
func (b *BadgerIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []Metadata, docs []string) error {
	if err := validateBatch(ids, vectors, metas, docs); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// 同一批内重复的 id 以最后一次为准
	pending := make(map[string]*record, len(ids))
	nextSeq := b.nextSeq
	for i, id := range ids {
		seq := nextSeq
		if prev, ok := pending[id]; ok {
			seq = prev.Seq
		} else if old, ok := b.entries[id]; ok {
			seq = old.Seq
		} else {
			nextSeq++
		}
		pending[id] = &record{
			ID:       id,
			Vector:   append([]float32(nil), vectors[i]...),
			Metadata: metas[i],
			Document: docs[i],
			Version:  b.version,
			Seq:      seq,
		}
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for id, rec := range pending {
			val, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode index entry %s: %w", id, err)
			}
			if err := txn.Set(b.key(id), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger upsert: %w", err)
	}

	for id, rec := range pending {
		b.entries[id] = rec
	}
	b.nextSeq = nextSeq
	return nil
}

// Query 实现 Index
func (b *BadgerIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		rec   *record
		score float32
	}

	b.mu.RLock()
	candidates := make([]scored, 0, len(b.entries))
	for _, rec := range b.entries {
		if rec.Version != b.version || len(rec.Vector) != len(vector) {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: CosineSimilarity(vector, rec.Vector)})
	}
	b.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rec.Seq < candidates[j].rec.Seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	hits := make([]Hit, 0, k)
	for _, c := range candidates[:k] {
		hits = append(hits, Hit{
			ID:       c.rec.ID,
			Score:    c.score,
			Metadata: c.rec.Metadata,
			Document: c.rec.Document,
		})
	}
	return hits, nil
}

// Get 实现 Index
func (b *BadgerIndex) Get(_ context.Context, id string) (Entry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.entries[id]
	if !ok || rec.Version != b.version {
		return Entry{}, false, nil
	}
	return Entry{
		ID:             rec.ID,
		Vector:         append([]float32(nil), rec.Vector...),
		Metadata:       rec.Metadata,
		Document:       rec.Document,
		EncoderVersion: rec.Version,
	}, true, nil
}

// IDs 实现 Index
func (b *BadgerIndex) IDs(_ context.Context) ([]string, error) {
	b.mu.RLock()
	ids := make([]string, 0, len(b.entries))
	for id, rec := range b.entries {
		if rec.Version == b.version {
			ids = append(ids, id)
		}
	}
	b.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

// Stats 实现 Index
func (b *BadgerIndex) Stats(_ context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Backend:        "badger",
		Collection:     b.collection,
		EncoderVersion: b.version,
	}
	for _, rec := range b.entries {
		if rec.Version == b.version {
			st.Entries++
		} else {
			st.Stale++
		}
	}
	return st, nil
}

// Close 只关闭由 OpenBadger 打开的数据库
func (b *BadgerIndex) Close() error {
	if !b.ownsDB {
		return nil
	}
	return b.db.Close()
}
