// Package model 包含了应用的数据模型定义。
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role 标识一条消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 报告 r 是否是受支持的角色。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// 会话标题取首条用户消息的前 TitleMaxRunes 个字符，超出部分以 TitleEllipsis 结尾。
const (
	TitleMaxRunes = 50
	TitleEllipsis = "..."
)

// Conversation 是一个具名、持久化的消息容器。
// ID 由持久化层在首次创建时分配。
type Conversation struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate 在插入前分配 UUID 主键。
func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Turn 是会话中的一条消息（用户或助手）。
// 运行时的转写记录与持久化的 messages 表共用此结构。
type Turn struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);index;not null" json:"conversation_id,omitempty"`
	Role           Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:longtext;not null" json:"content"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Turn) TableName() string {
	return "messages"
}

// BeforeCreate 在插入前分配 UUID 主键。
func (t *Turn) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// NewTurn 创建一条带有客户端 ID 和创建时间的消息。
func NewTurn(role Role, content string, now time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

// DeriveTitle 从首条用户消息推导会话标题。
func DeriveTitle(seed string) string {
	runes := []rune(seed)
	if len(runes) <= TitleMaxRunes {
		return seed
	}
	return string(runes[:TitleMaxRunes]) + TitleEllipsis
}

// ConversationGroups 按创建时间对会话分组，用于侧边栏展示。
type ConversationGroups struct {
	Today      []Conversation `json:"today"`
	Last7Days  []Conversation `json:"last7Days"`
	Last30Days []Conversation `json:"last30Days"`
	Older      []Conversation `json:"older"`
}

// GroupByDate 以 now 所在自然日为界将会话分入 今天/近7天/近30天/更早。
func GroupByDate(conversations []Conversation, now time.Time) ConversationGroups {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	last7 := today.Add(-7 * 24 * time.Hour)
	last30 := today.Add(-30 * 24 * time.Hour)

	groups := ConversationGroups{
		Today:      []Conversation{},
		Last7Days:  []Conversation{},
		Last30Days: []Conversation{},
		Older:      []Conversation{},
	}
	for _, c := range conversations {
		switch {
		case !c.CreatedAt.Before(today):
			groups.Today = append(groups.Today, c)
		case !c.CreatedAt.Before(last7):
			groups.Last7Days = append(groups.Last7Days, c)
		case !c.CreatedAt.Before(last30):
			groups.Last30Days = append(groups.Last30Days, c)
		default:
			groups.Older = append(groups.Older, c)
		}
	}
	return groups
}
