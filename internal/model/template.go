package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateStatus 是提示词模板的发布状态。
type TemplateStatus string

const (
	TemplateActive   TemplateStatus = "active"
	TemplateDraft    TemplateStatus = "draft"
	TemplateInactive TemplateStatus = "inactive"
)

func (s TemplateStatus) Valid() bool {
	switch s {
	case TemplateActive, TemplateDraft, TemplateInactive:
		return true
	}
	return false
}

// RuleType 是模板规则的种类。
type RuleType string

const (
	RuleFormat           RuleType = "Format"
	RuleTone             RuleType = "Tone"
	RuleWordLimit        RuleType = "Word Limit"
	RuleSafetyConstraint RuleType = "Safety Constraint"
	RuleCustom           RuleType = "Custom"
)

type PromptRule struct {
	ID    string   `json:"id"`
	Type  RuleType `json:"type"`
	Value string   `json:"value"`
}

// ContextRules 控制模板拼装上下文时包含哪些来源。
type ContextRules struct {
	IncludeChatHistory    bool `json:"includeChatHistory"`
	ChatHistoryCount      int  `json:"chatHistoryCount"`
	IncludeVectorResults  bool `json:"includeVectorResults"`
	VectorResultsCount    int  `json:"vectorResultsCount"`
	IncludeStructuredData bool `json:"includeStructuredData"`
}

type InputVariable struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ModelConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type VersionEntry struct {
	Version   string `json:"version"`
	ChangedBy string `json:"changedBy"`
	Date      string `json:"date"`
}

// TemplateDateLayout 是 LastUpdated 与版本记录日期的格式。
const TemplateDateLayout = "2006-01-02"

// PromptTemplate 是管理端维护的提示词模板，复合字段以 JSON 列存储。
type PromptTemplate struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	UseCase        string          `gorm:"type:varchar(255)" json:"useCase"`
	Version        string          `gorm:"type:varchar(32);not null" json:"version"`
	Status         TemplateStatus  `gorm:"type:varchar(16);not null;index" json:"status"`
	SystemPrompt   string          `gorm:"type:text" json:"systemPrompt"`
	Rules          []PromptRule    `gorm:"serializer:json;type:json" json:"rules"`
	ContextRules   ContextRules    `gorm:"serializer:json;type:json" json:"contextRules"`
	InputVariables []InputVariable `gorm:"serializer:json;type:json" json:"inputVariables"`
	ModelConfig    ModelConfig     `gorm:"serializer:json;type:json" json:"modelConfig"`
	LastUpdated    string          `gorm:"type:varchar(10)" json:"lastUpdated"`
	VersionHistory []VersionEntry  `gorm:"serializer:json;type:json" json:"versionHistory"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"-"`
}

func (PromptTemplate) TableName() string {
	return "prompt_templates"
}

func (t *PromptTemplate) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
