// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"

	"plugin-chat-go/internal/chat"
	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/pkg/log"
	"plugin-chat-go/pkg/tasks"
)

// TaskPublisher 发布异步分析任务。
type TaskPublisher interface {
	Publish(ctx context.Context, task tasks.AnalyticsTask) error
}

// TaskPublisherFunc 让普通函数（如 kafka.ProduceTask）实现 TaskPublisher。
type TaskPublisherFunc func(ctx context.Context, task tasks.AnalyticsTask) error

func (f TaskPublisherFunc) Publish(ctx context.Context, task tasks.AnalyticsTask) error {
	return f(ctx, task)
}

type conversationGateway struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	publisher TaskPublisher
}

// NewConversationGateway 创建聊天编排器使用的持久化网关。
// 提示词计数和消息索引以任务形式异步发布，发布失败只记录日志。
func NewConversationGateway(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, publisher TaskPublisher) chat.Gateway {
	return &conversationGateway{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		publisher: publisher,
	}
}

func (g *conversationGateway) CreateConversation(ctx context.Context, titleSeed string) (*model.Conversation, error) {
	conv := &model.Conversation{Title: model.DeriveTitle(titleSeed)}
	if err := g.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	log.Infof("创建会话成功: id=%s, title=%q", conv.ID, conv.Title)
	return conv, nil
}

func (g *conversationGateway) AppendTurn(ctx context.Context, conversationID string, role model.Role, content string) (*model.Turn, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	turn := &model.Turn{ConversationID: conversationID, Role: role, Content: content}
	if err := g.msgRepo.Create(ctx, turn); err != nil {
		return nil, err
	}
	if err := g.convRepo.Touch(ctx, conversationID, turn.CreatedAt); err != nil {
		log.Warnf("更新会话时间失败: id=%s, err=%v", conversationID, err)
	}

	g.publish(ctx, tasks.AnalyticsTask{
		Type:           tasks.TypeIndexMessage,
		MessageID:      turn.ID,
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
		CreatedAt:      turn.CreatedAt,
	})
	return turn, nil
}

func (g *conversationGateway) LoadConversation(ctx context.Context, id string) (*model.Conversation, []model.Turn, error) {
	conv, err := g.convRepo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	turns, err := g.msgRepo.FindByConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, turns, nil
}

func (g *conversationGateway) RecordPromptUsage(ctx context.Context, prompt string) {
	key := model.NormalizePrompt(prompt)
	if key == "" {
		return
	}
	g.publish(ctx, tasks.AnalyticsTask{Type: tasks.TypePromptUsage, Prompt: key})
}

// publish 在后台发布任务，不受调用方 ctx 取消的影响。
func (g *conversationGateway) publish(ctx context.Context, task tasks.AnalyticsTask) {
	if g.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := g.publisher.Publish(ctx, task); err != nil {
			log.Warnf("发布分析任务失败: key=%s, err=%v", task.Key(), err)
		}
	}()
}
