package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PromptKeyMaxRunes 是热门提示词归一化后保留的最大字符数。
const PromptKeyMaxRunes = 100

// NormalizePrompt 生成热门提示词的统计键：小写、去首尾空白、截断。
func NormalizePrompt(prompt string) string {
	key := strings.TrimSpace(strings.ToLower(prompt))
	runes := []rune(key)
	if len(runes) > PromptKeyMaxRunes {
		key = string(runes[:PromptKeyMaxRunes])
	}
	return key
}

// PopularPrompt 记录某个归一化提示词被提交的次数。
type PopularPrompt struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Prompt      string    `gorm:"type:varchar(512);uniqueIndex;not null" json:"prompt"`
	SearchCount int64     `gorm:"not null;default:1" json:"search_count"`
	Cacheable   bool      `gorm:"not null;default:false" json:"cacheable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PopularPrompt) TableName() string {
	return "popular_prompts"
}

func (p *PopularPrompt) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// PredefinedPrompt 是欢迎页上展示的预置提示词。
type PredefinedPrompt struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Category  string    `gorm:"type:varchar(64);not null" json:"category"`
	Icon      *string   `gorm:"type:varchar(64)" json:"icon"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PredefinedPrompt) TableName() string {
	return "predefined_prompts"
}

func (p *PredefinedPrompt) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// QueryRow 将一条用户消息与紧随其后的助手回复配对，供管理端查看。
type QueryRow struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	CreatedAt         LocalTime `json:"created_at"`
}

// NoResponsePlaceholder 在用户消息没有紧随的助手回复时使用。
const NoResponsePlaceholder = "—"
