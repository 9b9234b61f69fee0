package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/utkarsh995/llm-recommender/internal/model"
	"gorm.io/gorm"
)

// ContentRepository 内容目录（content_details）的只读访问
type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// FindByIDs 按 program_id 批量读取，结果按 program_id 升序；不存在的 id 直接忽略
func (r *ContentRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.ContentRecord, error) {
	if len(ids) == 0 {
		return []model.ContentRecord{}, nil
	}

	var records []model.ContentRecord
	err := r.db.WithContext(ctx).
		Where("program_id IN ?", ids).
		Order("program_id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询内容失败: %w", err)
	}
	return records, nil
}

// SearchByTitle 标题子串搜索（区分大小写，与原有 LIKE 行为一致）
func (r *ContentRepository) SearchByTitle(ctx context.Context, q string, limit int) ([]model.ContentSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var results []model.ContentSummary
	err := r.db.WithContext(ctx).
		Where(`title LIKE ? ESCAPE '\'`, "%"+escapeLike(q)+"%").
		Order("program_id").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("搜索内容失败: %w", err)
	}
	return results, nil
}

// EachBatch 按 program_id 顺序分批遍历目录，fn 返回错误时停止。
// limit > 0 时最多遍历 limit 条。
func (r *ContentRepository) EachBatch(ctx context.Context, size, limit int, fn func(batch int, records []model.ContentRecord) error) error {
	if size <= 0 {
		size = 32
	}

	query := r.db.WithContext(ctx).Model(&model.ContentRecord{}).Order("program_id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var (
		records []model.ContentRecord
		fnErr   error
	)
	res := query.FindInBatches(&records, size, func(tx *gorm.DB, batch int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		// gorm 的批次从 1 开始
		if err := fn(batch-1, records); err != nil {
			fnErr = err
			return err
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if res.Error != nil {
		return fmt.Errorf("遍历内容失败: %w", res.Error)
	}
	return nil
}

// Count 目录总条数
func (r *ContentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ContentRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计内容失败: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
