package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingRow pgvector 后端的表结构，表名即 collection
type EmbeddingRow struct {
	ID             string          `gorm:"column:id;primaryKey"`
	Title          string          `gorm:"column:title"`
	Year           *int            `gorm:"column:year"`
	ImageURL       string          `gorm:"column:image_url"`
	Document       string          `gorm:"column:document;type:text"`
	EncoderVersion string          `gorm:"column:encoder_version;index"`
	Embedding      pgvector.Vector `gorm:"column:embedding;type:vector"`
	InsertedAt     time.Time       `gorm:"column:inserted_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

// PgVectorIndex 基于 Postgres + pgvector 的索引，使用 <=> 余弦距离排序
type PgVectorIndex struct {
	db      *gorm.DB
	table   string
	version string
	log     *zap.Logger
}

// NewPgVectorIndex 确保扩展和表存在
func NewPgVectorIndex(ctx context.Context, db *gorm.DB, table, version string, log *zap.Logger) (*PgVectorIndex, error) {
	if table == "" {
		table = "movie_embeddings"
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}
	if err := db.WithContext(ctx).Table(table).AutoMigrate(&EmbeddingRow{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", table, err)
	}

	log.Info("向量索引已就绪", zap.String("backend", "pgvector"), zap.String("collection", table))
	return &PgVectorIndex{db: db, table: table, version: version, log: log}, nil
}

// Upsert 实现 Index。单条 INSERT ... ON CONFLICT 语句，整批原子生效；inserted_at 保持首次写入时间。
func (p *PgVectorIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32, metas []Metadata, docs []string) error {
	if err := validateBatch(ids, vectors, metas, docs); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	// 同一条语句内 id 重复会触发 "cannot affect row a second time"，先去重
	pos := make(map[string]int, len(ids))
	rows := make([]EmbeddingRow, 0, len(ids))
	for i, id := range ids {
		row := EmbeddingRow{
			ID:             id,
			Title:          metas[i].Title,
			Year:           metas[i].Year,
			ImageURL:       metas[i].ImageURL,
			Document:       docs[i],
			EncoderVersion: p.version,
			Embedding:      pgvector.NewVector(vectors[i]),
			InsertedAt:     now,
			UpdatedAt:      now,
		}
		if j, ok := pos[id]; ok {
			rows[j] = row
			continue
		}
		pos[id] = len(rows)
		rows = append(rows, row)
	}

	err := p.db.WithContext(ctx).Table(p.table).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "year", "image_url", "document", "encoder_version", "embedding", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("pgvector upsert: %w", err)
	}
	return nil
}

type pgHit struct {
	ID       string
	Title    string
	Year     *int
	ImageURL string
	Document string
	Score    float32
}

// Query 实现 Index
func (p *PgVectorIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}

	vec := pgvector.NewVector(vector)
	var rows []pgHit
	err := p.db.WithContext(ctx).Raw(
		`SELECT id, title, year, image_url, document, 1 - (embedding <=> ?) AS score
		   FROM ?
		  WHERE encoder_version = ? AND vector_dims(embedding) = ?
		  ORDER BY embedding <=> ?, inserted_at, id
		  LIMIT ?`,
		vec, clause.Table{Name: p.table}, p.version, len(vector), vec, k,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, Hit{
			ID:       r.ID,
			Score:    r.Score,
			Metadata: Metadata{Title: r.Title, Year: r.Year, ImageURL: r.ImageURL},
			Document: r.Document,
		})
	}
	return hits, nil
}

// Get 实现 Index
func (p *PgVectorIndex) Get(ctx context.Context, id string) (Entry, bool, error) {
	var rows []EmbeddingRow
	err := p.db.WithContext(ctx).Table(p.table).
		Where("id = ? AND encoder_version = ?", id, p.version).
		Limit(1).Find(&rows).Error
	if err != nil {
		return Entry{}, false, fmt.Errorf("pgvector get: %w", err)
	}
	if len(rows) == 0 {
		return Entry{}, false, nil
	}
	r := rows[0]
	return Entry{
		ID:             r.ID,
		Vector:         r.Embedding.Slice(),
		Metadata:       Metadata{Title: r.Title, Year: r.Year, ImageURL: r.ImageURL},
		Document:       r.Document,
		EncoderVersion: r.EncoderVersion,
	}, true, nil
}

// IDs 实现 Index
func (p *PgVectorIndex) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).Table(p.table).
		Where("encoder_version = ?", p.version).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector ids: %w", err)
	}
	return ids, nil
}

// Stats 实现 Index
func (p *PgVectorIndex) Stats(ctx context.Context) (Stats, error) {
	var current, total int64
	db := p.db.WithContext(ctx)
	if err := db.Table(p.table).Where("encoder_version = ?", p.version).Count(&current).Error; err != nil {
		return Stats{}, fmt.Errorf("pgvector stats: %w", err)
	}
	if err := db.Table(p.table).Count(&total).Error; err != nil {
		return Stats{}, fmt.Errorf("pgvector stats: %w", err)
	}
	return Stats{
		Backend:        "pgvector",
		Collection:     p.table,
		EncoderVersion: p.version,
		Entries:        int(current),
		Stale:          int(total - current),
	}, nil
}

// Close 连接池由调用方管理
func (p *PgVectorIndex) Close() error {
	return nil
}
