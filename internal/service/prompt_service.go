package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/plugin"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/pkg/log"
)

// ErrInvalidInput 表示请求参数不合法。
var ErrInvalidInput = errors.New("invalid input")

// PromptCatalog 是欢迎页展示的提示词：预置的按创建时间正序，热门的按使用次数倒序。
type PromptCatalog struct {
	Predefined []model.PredefinedPrompt `json:"predefined"`
	Popular    []model.PopularPrompt    `json:"popular"`
}

// PromptService 定义了提示词相关的业务逻辑接口。
type PromptService interface {
	Catalog(ctx context.Context) (*PromptCatalog, error)
	// ListPopular 返回全部热门提示词，供管理端维护。
	ListPopular(ctx context.Context) ([]model.PopularPrompt, error)
	UpdatePopularText(ctx context.Context, id, prompt string) (*model.PopularPrompt, error)
	SetCacheable(ctx context.Context, id string, cacheable bool) (*model.PopularPrompt, error)
	// SeedPredefined 在预置提示词表为空时写入各能力模式的示例提示词（幂等）。
	SeedPredefined(ctx context.Context) error
}

type promptService struct {
	repo         repository.PromptRepository
	popularLimit int
}

// NewPromptService 创建一个新的 PromptService，popularLimit 是欢迎页热门提示词的数量。
func NewPromptService(repo repository.PromptRepository, popularLimit int) PromptService {
	return &promptService{repo: repo, popularLimit: popularLimit}
}

func (s *promptService) Catalog(ctx context.Context) (*PromptCatalog, error) {
	predefined, err := s.repo.ListPredefined(ctx)
	if err != nil {
		return nil, err
	}
	popular, err := s.repo.ListPopular(ctx, s.popularLimit)
	if err != nil {
		return nil, err
	}
	if predefined == nil {
		predefined = []model.PredefinedPrompt{}
	}
	if popular == nil {
		popular = []model.PopularPrompt{}
	}
	return &PromptCatalog{Predefined: predefined, Popular: popular}, nil
}

func (s *promptService) ListPopular(ctx context.Context) ([]model.PopularPrompt, error) {
	return s.repo.ListPopular(ctx, 0)
}

func (s *promptService) UpdatePopularText(ctx context.Context, id, prompt string) (*model.PopularPrompt, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.UpdatePopularText(ctx, id, prompt)
}

func (s *promptService) SetCacheable(ctx context.Context, id string, cacheable bool) (*model.PopularPrompt, error) {
	return s.repo.SetCacheable(ctx, id, cacheable)
}

func (s *promptService) SeedPredefined(ctx context.Context) error {
	prompts := PredefinedFromCatalog(time.Now())
	n, err := s.repo.SeedPredefined(ctx, prompts)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Infof("预置提示词已存在，跳过初始化导入")
		return nil
	}
	log.Infof("已导入 %d 条预置提示词", n)
	return nil
}

// PredefinedFromCatalog 将能力模式目录中的示例提示词转换为预置提示词，分类为模式 ID。
// 创建时间逐条递增一秒，保证按创建时间排序时保持目录顺序。
func PredefinedFromCatalog(base time.Time) []model.PredefinedPrompt {
	var out []model.PredefinedPrompt
	for _, p := range plugin.All() {
		icon := p.Icon
		for _, sample := range p.Prompts {
			out = append(out, model.PredefinedPrompt{
				Title:     sample.Title,
				Prompt:    sample.Prompt,
				Category:  p.ID,
				Icon:      &icon,
				CreatedAt: base.Add(time.Duration(len(out)) * time.Second),
			})
		}
	}
	return out
}
