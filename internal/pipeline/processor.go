// Package pipeline 定义了分析任务的处理流程。
package pipeline

import (
	"context"
	"fmt"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/pkg/log"
	"plugin-chat-go/pkg/tasks"
)

// MessageIndexer 将消息写入检索索引，es.MessageIndex 实现了它。
type MessageIndexer interface {
	Index(ctx context.Context, doc model.MessageDocument) error
}

// Processor 封装了分析任务处理的所有依赖和逻辑。
type Processor struct {
	promptRepo repository.PromptRepository
	indexer    MessageIndexer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(promptRepo repository.PromptRepository, indexer MessageIndexer) *Processor {
	return &Processor{
		promptRepo: promptRepo,
		indexer:    indexer,
	}
}

// Process 按任务类型分派处理，返回错误时由消费者负责重试。
func (p *Processor) Process(ctx context.Context, task tasks.AnalyticsTask) error {
	switch task.Type {
	case tasks.TypePromptUsage:
		key := model.NormalizePrompt(task.Prompt)
		if key == "" {
			return nil
		}
		if err := p.promptRepo.IncrementPopular(ctx, key); err != nil {
			return fmt.Errorf("记录提示词使用次数失败: %w", err)
		}
		return nil

	case tasks.TypeIndexMessage:
		doc := model.MessageDocument{
			MessageID:      task.MessageID,
			ConversationID: task.ConversationID,
			Role:           task.Role,
			Content:        task.Content,
			CreatedAt:      task.CreatedAt,
		}
		if err := p.indexer.Index(ctx, doc); err != nil {
			return fmt.Errorf("索引消息失败: %w", err)
		}
		log.Debugf("[Processor] 消息已索引: id=%s", task.MessageID)
		return nil

	default:
		// 未知类型无法通过重试恢复，直接丢弃
		log.Warnf("[Processor] 忽略未知任务类型: %q", task.Type)
		return nil
	}
}
