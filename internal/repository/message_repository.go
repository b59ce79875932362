package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"plugin-chat-go/internal/model"
)

// MessageRepository 定义了会话消息的持久化操作。
type MessageRepository interface {
	Create(ctx context.Context, turn *model.Turn) error
	// FindByConversation 按创建时间正序返回某个会话的消息。
	FindByConversation(ctx context.Context, conversationID string) ([]model.Turn, error)
	// FindAll 返回全部消息，按会话分组、组内按创建时间正序。
	FindAll(ctx context.Context) ([]model.Turn, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, turn *model.Turn) error {
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) FindByConversation(ctx context.Context, conversationID string) ([]model.Turn, error) {
	var turns []model.Turn
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return turns, nil
}

func (r *messageRepository) FindAll(ctx context.Context) ([]model.Turn, error) {
	var turns []model.Turn
	err := r.db.WithContext(ctx).Order("conversation_id ASC").Order("created_at ASC").Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list all messages: %w", err)
	}
	return turns, nil
}
