package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/pkg/log"
)

// ExportURLExpiry 是导出文件下载链接的有效期。
const ExportURLExpiry = 24 * time.Hour

// ExportStore 保存导出的会话文件并生成下载链接，storage.Bucket 实现了它。
type ExportStore interface {
	PutJSON(ctx context.Context, objectName string, data []byte) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ConversationList 是会话列表接口的响应结构。
type ConversationList struct {
	Conversations []model.Conversation     `json:"conversations"`
	Groups        model.ConversationGroups `json:"groups"`
	Total         int                      `json:"total"`
}

// ConversationDetail 是单个会话及其消息。
type ConversationDetail struct {
	Conversation *model.Conversation `json:"conversation"`
	Turns        []model.Turn        `json:"turns"`
}

// ConversationExport 是导出文件的内容。
type ConversationExport struct {
	Conversation *model.Conversation `json:"conversation"`
	Turns        []model.Turn        `json:"turns"`
	ExportedAt   time.Time           `json:"exportedAt"`
}

// ConversationService 定义了会话历史的业务逻辑接口。
type ConversationService interface {
	List(ctx context.Context) (*ConversationList, error)
	Get(ctx context.Context, id string) (*ConversationDetail, error)
	Delete(ctx context.Context, id string) error
	// Export 将会话导出为 JSON 文件并返回下载链接。
	Export(ctx context.Context, id string) (string, error)
}

type conversationService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	exports  ExportStore
	now      func() time.Time
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, exports ExportStore) ConversationService {
	return &conversationService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		exports:  exports,
		now:      time.Now,
	}
}

func (s *conversationService) List(ctx context.Context) (*ConversationList, error) {
	convs, err := s.convRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return &ConversationList{
		Conversations: convs,
		Groups:        model.GroupByDate(convs, s.now()),
		Total:         len(convs),
	}, nil
}

func (s *conversationService) Get(ctx context.Context, id string) (*ConversationDetail, error) {
	conv, err := s.convRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	turns, err := s.msgRepo.FindByConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	return &ConversationDetail{Conversation: conv, Turns: turns}, nil
}

func (s *conversationService) Delete(ctx context.Context, id string) error {
	if err := s.convRepo.Delete(ctx, id); err != nil {
		return err
	}
	log.Infof("会话已删除: id=%s", id)
	return nil
}

func (s *conversationService) Export(ctx context.Context, id string) (string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	now := s.now()
	data, err := json.MarshalIndent(ConversationExport{
		Conversation: detail.Conversation,
		Turns:        detail.Turns,
		ExportedAt:   now,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}

	objectName := fmt.Sprintf("exports/%s/%d.json", id, now.Unix())
	if err := s.exports.PutJSON(ctx, objectName, data); err != nil {
		return "", err
	}
	url, err := s.exports.PresignedURL(ctx, objectName, ExportURLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign export: %w", err)
	}
	return url, nil
}
