// Package plugin 定义了固定的能力模式（插件）目录以及当前选择的读取方式。
package plugin

import (
	"context"
	"fmt"
	"sync"

	"plugin-chat-go/pkg/log"
)

// Kind 是封闭的能力模式枚举，集合在编译期确定。
type Kind int

const (
	Smartflow Kind = iota
	Smartproxy
	DecisionService
)

// Default 是没有已保存选择时使用的模式。
const Default = Smartproxy

// SamplePrompt 是某个模式下的示例提示词。
type SamplePrompt struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// Plugin 是一个能力模式的完整描述。
type Plugin struct {
	Kind         Kind           `json:"-"`
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Icon         string         `json:"icon"`
	SystemPrompt string         `json:"systemPrompt"`
	Prompts      []SamplePrompt `json:"prompts"`
}

var catalog = [...]Plugin{
	Smartflow: {
		Kind:         Smartflow,
		ID:           "smartflow",
		Name:         "Smartflow",
		Description:  "Workflow automation and process optimization",
		Icon:         "Workflow",
		SystemPrompt: "You are a Smartflow assistant specializing in workflow automation, process optimization, and business process management. Help users design, analyze, and improve their workflows.",
		Prompts: []SamplePrompt{
			{Title: "Design a workflow", Prompt: "Help me design an automated workflow for employee onboarding"},
			{Title: "Optimize process", Prompt: "Analyze and suggest improvements for our approval process"},
			{Title: "Integration help", Prompt: "How can I integrate multiple systems into a single workflow?"},
			{Title: "Error handling", Prompt: "Best practices for error handling in automated workflows"},
		},
	},
	Smartproxy: {
		Kind:         Smartproxy,
		ID:           "smartproxy",
		Name:         "Smartproxy",
		Description:  "API gateway and proxy configuration",
		Icon:         "Network",
		SystemPrompt: "You are a Smartproxy assistant specializing in API gateway configuration, proxy management, routing rules, and API security. Help users configure and optimize their proxy settings.",
		Prompts: []SamplePrompt{
			{Title: "Configure routing", Prompt: "Help me set up routing rules for my API gateway"},
			{Title: "Rate limiting", Prompt: "How do I implement rate limiting for my APIs?"},
			{Title: "Security setup", Prompt: "Best practices for securing API endpoints through the proxy"},
			{Title: "Load balancing", Prompt: "Configure load balancing across multiple backend services"},
		},
	},
	DecisionService: {
		Kind:         DecisionService,
		ID:           "decision-service",
		Name:         "Decision Service",
		Description:  "Business rules and decision automation",
		Icon:         "GitBranch",
		SystemPrompt: "You are a Decision Service assistant specializing in business rules engines, decision tables, and automated decision-making systems. Help users create and manage business rules.",
		Prompts: []SamplePrompt{
			{Title: "Create decision table", Prompt: "Help me create a decision table for loan approval criteria"},
			{Title: "Rule optimization", Prompt: "How can I optimize my business rules for better performance?"},
			{Title: "Complex conditions", Prompt: "Design rules with multiple conditions and nested logic"},
			{Title: "Testing rules", Prompt: "Best practices for testing and validating business rules"},
		},
	},
}

// Plugin 返回该模式的目录项；未知值回落到 Default。
func (k Kind) Plugin() Plugin {
	if k < 0 || int(k) >= len(catalog) {
		return catalog[Default]
	}
	return catalog[k]
}

func (k Kind) String() string {
	return k.Plugin().ID
}

// All 按目录顺序返回所有模式。
func All() []Plugin {
	out := make([]Plugin, len(catalog))
	copy(out, catalog[:])
	return out
}

// Parse 根据 ID 查找模式。
func Parse(id string) (Kind, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p.Kind, nil
		}
	}
	return Default, fmt.Errorf("unknown plugin %q", id)
}

// Selector 在构建每个请求时提供当前选择的能力模式。
type Selector interface {
	Current() Plugin
}

// Fixed 是始终返回同一模式的 Selector。
type Fixed Kind

func (f Fixed) Current() Plugin {
	return Kind(f).Plugin()
}

// PreferenceStore 持久化每个客户端的模式选择。
type PreferenceStore interface {
	GetPlugin(ctx context.Context, clientID string) (string, error)
	SetPlugin(ctx context.Context, clientID, pluginID string) error
}

// Selection 是某个客户端可切换的模式选择，切换会写回 PreferenceStore。
// 进行中的请求已经读取过 Current，切换只影响之后的请求。
type Selection struct {
	mu       sync.RWMutex
	kind     Kind
	clientID string
	store    PreferenceStore
}

// NewSelection 读取 clientID 已保存的选择；没有或读取失败时使用 fallback。
func NewSelection(ctx context.Context, store PreferenceStore, clientID string, fallback Kind) *Selection {
	s := &Selection{kind: fallback, clientID: clientID, store: store}
	if store == nil || clientID == "" {
		return s
	}
	saved, err := store.GetPlugin(ctx, clientID)
	if err != nil {
		log.Warnf("读取客户端 %s 的插件选择失败: %v", clientID, err)
		return s
	}
	if saved == "" {
		return s
	}
	if k, err := Parse(saved); err == nil {
		s.kind = k
	}
	return s
}

// Current 实现 Selector。
func (s *Selection) Current() Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind.Plugin()
}

// Select 切换模式并持久化。持久化失败不会回滚内存中的选择。
func (s *Selection) Select(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	s.kind = kind
	s.mu.Unlock()

	if s.store == nil || s.clientID == "" {
		return nil
	}
	if err := s.store.SetPlugin(ctx, s.clientID, kind.Plugin().ID); err != nil {
		return fmt.Errorf("failed to persist plugin selection: %w", err)
	}
	return nil
}
