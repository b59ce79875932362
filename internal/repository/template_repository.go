package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"plugin-chat-go/internal/model"
)

// TemplateRepository 定义了提示词模板的持久化操作。
type TemplateRepository interface {
	Create(ctx context.Context, tpl *model.PromptTemplate) error
	FindByID(ctx context.Context, id string) (*model.PromptTemplate, error)
	// FindAll 按创建时间倒序返回，新建的模板排在最前。
	FindAll(ctx context.Context) ([]model.PromptTemplate, error)
	Save(ctx context.Context, tpl *model.PromptTemplate) error
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建一个新的 TemplateRepository 实例。
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, tpl *model.PromptTemplate) error {
	if err := r.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (r *templateRepository) FindByID(ctx context.Context, id string) (*model.PromptTemplate, error) {
	var tpl model.PromptTemplate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepository) FindAll(ctx context.Context) ([]model.PromptTemplate, error) {
	var tpls []model.PromptTemplate
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tpls).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return tpls, nil
}

func (r *templateRepository) Save(ctx context.Context, tpl *model.PromptTemplate) error {
	if err := r.db.WithContext(ctx).Save(tpl).Error; err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}
