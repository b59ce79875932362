package model

import "time"

// MessageDocument 是写入 Elasticsearch 的消息文档，供管理端按内容检索用户提问。
type MessageDocument struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
