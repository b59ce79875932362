package handler

import (
	"github.com/gin-gonic/gin"

	"plugin-chat-go/internal/service"
)

// PromptHandler 处理欢迎页提示词的请求。
type PromptHandler struct {
	service service.PromptService
}

// NewPromptHandler 创建一个新的 PromptHandler。
func NewPromptHandler(service service.PromptService) *PromptHandler {
	return &PromptHandler{service: service}
}

// GetPrompts 返回预置提示词与热门提示词。
func (h *PromptHandler) GetPrompts(c *gin.Context) {
	catalog, err := h.service.Catalog(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve prompts")
		return
	}
	respondOK(c, catalog)
}
