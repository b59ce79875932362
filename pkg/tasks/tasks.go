// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"fmt"
	"time"
)

// 分析任务的类型。
const (
	TypePromptUsage  = "prompt_usage"
	TypeIndexMessage = "index_message"
)

// AnalyticsTask 是聊天过程中产生的异步分析任务：
// 热门提示词计数，或将一条消息写入检索索引。
type AnalyticsTask struct {
	Type string `json:"type"`

	// prompt_usage
	Prompt string `json:"prompt,omitempty"`

	// index_message
	MessageID      string    `json:"message_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	Content        string    `json:"content,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// Key 用作 Kafka 消息键，相同提示词或消息的任务落在同一分区。
func (t AnalyticsTask) Key() string {
	if t.Type == TypeIndexMessage {
		return fmt.Sprintf("%s:%s", t.Type, t.MessageID)
	}
	return fmt.Sprintf("%s:%s", t.Type, t.Prompt)
}
