package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 反馈问题类型，空字符串表示用户未选择。
const (
	IssueProblemWithApp         = "problem-with-app"
	IssueNotFactuallyCorrect    = "not-factually-correct"
	IssueDidntFollowInstruction = "didnt-follow-instruction"
)

// ValidIssueType 报告 issueType 是否为空或受支持的问题类型。
func ValidIssueType(issueType string) bool {
	switch issueType {
	case "", IssueProblemWithApp, IssueNotFactuallyCorrect, IssueDidntFollowInstruction:
		return true
	}
	return false
}

// Feedback 是用户对当前会话的反馈，附带提交时的完整转写记录。
type Feedback struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID *string   `gorm:"type:varchar(36);index" json:"conversation_id"`
	IssueType      string    `gorm:"type:varchar(64)" json:"issue_type"`
	Details        string    `gorm:"type:text" json:"details"`
	Plugin         string    `gorm:"type:varchar(32)" json:"plugin"`
	Transcript     []Turn    `gorm:"serializer:json;type:json" json:"transcript"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Feedback) TableName() string {
	return "feedback"
}

func (f *Feedback) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
