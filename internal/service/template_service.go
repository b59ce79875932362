package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
)

const (
	defaultTemplateVersion = "1.0"
	templateChangedBy      = "Admin"
)

// TemplateService 定义了提示词模板管理的业务逻辑接口。
type TemplateService interface {
	List(ctx context.Context) ([]model.PromptTemplate, error)
	// Create 保存新模板，activate 为 true 时直接启用，否则存为草稿。
	Create(ctx context.Context, tpl model.PromptTemplate, activate bool) (*model.PromptTemplate, error)
	// Update 覆盖已有模板；版本号变化时在版本记录最前面追加一条。
	Update(ctx context.Context, id string, tpl model.PromptTemplate, activate bool) (*model.PromptTemplate, error)
	SetStatus(ctx context.Context, id string, status model.TemplateStatus) (*model.PromptTemplate, error)
}

type templateService struct {
	repo repository.TemplateRepository
	now  func() time.Time
}

// NewTemplateService 创建一个新的 TemplateService。
func NewTemplateService(repo repository.TemplateRepository) TemplateService {
	return &templateService{repo: repo, now: time.Now}
}

func (s *templateService) today() string {
	return s.now().Format(model.TemplateDateLayout)
}

func statusFor(activate bool) model.TemplateStatus {
	if activate {
		return model.TemplateActive
	}
	return model.TemplateDraft
}

func (s *templateService) List(ctx context.Context) ([]model.PromptTemplate, error) {
	tpls, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if tpls == nil {
		tpls = []model.PromptTemplate{}
	}
	return tpls, nil
}

func (s *templateService) Create(ctx context.Context, tpl model.PromptTemplate, activate bool) (*model.PromptTemplate, error) {
	if strings.TrimSpace(tpl.Name) == "" {
		return nil, fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}
	tpl.ID = ""
	if tpl.Version == "" {
		tpl.Version = defaultTemplateVersion
	}
	tpl.Status = statusFor(activate)
	tpl.LastUpdated = s.today()
	if len(tpl.VersionHistory) == 0 {
		tpl.VersionHistory = []model.VersionEntry{{Version: tpl.Version, ChangedBy: templateChangedBy, Date: tpl.LastUpdated}}
	}
	if err := s.repo.Create(ctx, &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *templateService) Update(ctx context.Context, id string, tpl model.PromptTemplate, activate bool) (*model.PromptTemplate, error) {
	if strings.TrimSpace(tpl.Name) == "" {
		return nil, fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tpl.ID = existing.ID
	tpl.CreatedAt = existing.CreatedAt
	if tpl.Version == "" {
		tpl.Version = existing.Version
	}
	tpl.Status = statusFor(activate)
	tpl.LastUpdated = s.today()
	tpl.VersionHistory = existing.VersionHistory
	if tpl.Version != existing.Version {
		entry := model.VersionEntry{Version: tpl.Version, ChangedBy: templateChangedBy, Date: tpl.LastUpdated}
		tpl.VersionHistory = append([]model.VersionEntry{entry}, existing.VersionHistory...)
	}

	if err := s.repo.Save(ctx, &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *templateService) SetStatus(ctx context.Context, id string, status model.TemplateStatus) (*model.PromptTemplate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl.Status = status
	tpl.LastUpdated = s.today()
	if err := s.repo.Save(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}
