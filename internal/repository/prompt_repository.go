package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plugin-chat-go/internal/model"
)

// PromptRepository 定义了预置提示词与热门提示词的持久化操作。
type PromptRepository interface {
	ListPredefined(ctx context.Context) ([]model.PredefinedPrompt, error)
	// SeedPredefined 仅在预置提示词表为空时批量插入，返回插入的条数。
	SeedPredefined(ctx context.Context, prompts []model.PredefinedPrompt) (int, error)
	// IncrementPopular 对归一化后的提示词计数加一，不存在时插入。
	IncrementPopular(ctx context.Context, prompt string) error
	// ListPopular 按 search_count 倒序返回前 limit 条，limit<=0 表示不限。
	ListPopular(ctx context.Context, limit int) ([]model.PopularPrompt, error)
	UpdatePopularText(ctx context.Context, id, prompt string) (*model.PopularPrompt, error)
	SetCacheable(ctx context.Context, id string, cacheable bool) (*model.PopularPrompt, error)
}

type promptRepository struct {
	db *gorm.DB
}

// NewPromptRepository 创建一个新的 PromptRepository 实例。
func NewPromptRepository(db *gorm.DB) PromptRepository {
	return &promptRepository{db: db}
}

func (r *promptRepository) ListPredefined(ctx context.Context) ([]model.PredefinedPrompt, error) {
	var prompts []model.PredefinedPrompt
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("failed to list predefined prompts: %w", err)
	}
	return prompts, nil
}

func (r *promptRepository) SeedPredefined(ctx context.Context, prompts []model.PredefinedPrompt) (int, error) {
	if len(prompts) == 0 {
		return 0, nil
	}
	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.PredefinedPrompt{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(&prompts).Error; err != nil {
			return err
		}
		inserted = len(prompts)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed predefined prompts: %w", err)
	}
	return inserted, nil
}

func (r *promptRepository) IncrementPopular(ctx context.Context, prompt string) error {
	row := model.PopularPrompt{Prompt: prompt, SearchCount: 1}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "prompt"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"search_count": gorm.Expr("search_count + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert popular prompt: %w", err)
	}
	return nil
}

func (r *promptRepository) ListPopular(ctx context.Context, limit int) ([]model.PopularPrompt, error) {
	var prompts []model.PopularPrompt
	q := r.db.WithContext(ctx).Order("search_count DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("failed to list popular prompts: %w", err)
	}
	return prompts, nil
}

func (r *promptRepository) UpdatePopularText(ctx context.Context, id, prompt string) (*model.PopularPrompt, error) {
	return r.updatePopular(ctx, id, "prompt", prompt)
}

func (r *promptRepository) SetCacheable(ctx context.Context, id string, cacheable bool) (*model.PopularPrompt, error) {
	return r.updatePopular(ctx, id, "cacheable", cacheable)
}

func (r *promptRepository) updatePopular(ctx context.Context, id, column string, value interface{}) (*model.PopularPrompt, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.PopularPrompt{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update popular prompt: %w", res.Error)
	}
	var p model.PopularPrompt
	err := db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reload popular prompt: %w", err)
	}
	return &p, nil
}
