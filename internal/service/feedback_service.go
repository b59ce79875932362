package service

import (
	"context"
	"fmt"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
)

// FeedbackInput 是一次反馈提交的内容。
type FeedbackInput struct {
	ConversationID *string
	IssueType      string
	Details        string
	Plugin         string
	Transcript     []model.Turn
}

// FeedbackService 定义了用户反馈的业务逻辑接口。
type FeedbackService interface {
	Submit(ctx context.Context, in FeedbackInput) (*model.Feedback, error)
	List(ctx context.Context) ([]model.Feedback, error)
}

type feedbackService struct {
	repo repository.FeedbackRepository
}

// NewFeedbackService 创建一个新的 FeedbackService。
func NewFeedbackService(repo repository.FeedbackRepository) FeedbackService {
	return &feedbackService{repo: repo}
}

func (s *feedbackService) Submit(ctx context.Context, in FeedbackInput) (*model.Feedback, error) {
	if !model.ValidIssueType(in.IssueType) {
		return nil, fmt.Errorf("%w: unknown issue type %q", ErrInvalidInput, in.IssueType)
	}
	fb := &model.Feedback{
		ConversationID: in.ConversationID,
		IssueType:      in.IssueType,
		Details:        in.Details,
		Plugin:         in.Plugin,
		Transcript:     in.Transcript,
	}
	if fb.Transcript == nil {
		fb.Transcript = []model.Turn{}
	}
	if err := s.repo.Create(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

func (s *feedbackService) List(ctx context.Context) ([]model.Feedback, error) {
	list, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Feedback{}
	}
	return list, nil
}
