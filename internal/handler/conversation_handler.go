package handler

import (
	"github.com/gin-gonic/gin"

	"plugin-chat-go/internal/service"
	"plugin-chat-go/pkg/log"
)

// ConversationHandler 处理与会话历史相关的 API 请求。
type ConversationHandler struct {
	service  service.ConversationService
	registry *SessionRegistry
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService, registry *SessionRegistry) *ConversationHandler {
	return &ConversationHandler{service: service, registry: registry}
}

// ListConversations 返回全部会话（按创建时间倒序）以及按日期的分组。
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve conversations")
		return
	}
	respondOK(c, list)
}

// GetConversation 返回单个会话及其消息。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve conversation")
		return
	}
	respondOK(c, detail)
}

// DeleteConversation 删除会话，并清空所有正在展示它的聊天视图。
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete conversation")
		return
	}
	if n := h.registry.ConversationDeleted(id); n > 0 {
		log.Infof("已重置 %d 个正在展示会话 %s 的视图", n, id)
	}
	respondOK(c, nil)
}

// ExportConversation 将会话导出到对象存储并返回下载链接。
func (h *ConversationHandler) ExportConversation(c *gin.Context) {
	url, err := h.service.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to export conversation")
		return
	}
	respondOK(c, gin.H{"url": url})
}
