package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"plugin-chat-go/internal/model"
)

// FeedbackRepository 定义了用户反馈的持久化操作。
type FeedbackRepository interface {
	Create(ctx context.Context, fb *model.Feedback) error
	FindAll(ctx context.Context) ([]model.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository 创建一个新的 FeedbackRepository 实例。
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, fb *model.Feedback) error {
	if err := r.db.WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

func (r *feedbackRepository) FindAll(ctx context.Context) ([]model.Feedback, error) {
	var list []model.Feedback
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return list, nil
}
