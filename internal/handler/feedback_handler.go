package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/service"
)

// FeedbackHandler 处理用户反馈的请求。
type FeedbackHandler struct {
	service service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler。
func NewFeedbackHandler(service service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

type feedbackRequest struct {
	ConversationID *string      `json:"conversationId"`
	IssueType      string       `json:"issueType"`
	Details        string       `json:"details"`
	Plugin         string       `json:"plugin"`
	Transcript     []model.Turn `json:"transcript"`
}

// SubmitFeedback 保存一条反馈。
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	fb, err := h.service.Submit(c.Request.Context(), service.FeedbackInput{
		ConversationID: req.ConversationID,
		IssueType:      req.IssueType,
		Details:        req.Details,
		Plugin:         req.Plugin,
		Transcript:     req.Transcript,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to submit feedback")
		return
	}
	respondOK(c, fb)
}

// ListFeedback 返回全部反馈，供管理端查看。
func (h *FeedbackHandler) ListFeedback(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve feedback")
		return
	}
	respondOK(c, list)
}
