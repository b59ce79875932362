package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/service"
)

// AdminHandler 处理管理端的请求：用户提问、热门提示词和提示词模板。
type AdminHandler struct {
	adminService    service.AdminService
	promptService   service.PromptService
	templateService service.TemplateService
}

// NewAdminHandler 创建一个新的 AdminHandler。
func NewAdminHandler(adminService service.AdminService, promptService service.PromptService, templateService service.TemplateService) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		promptService:   promptService,
		templateService: templateService,
	}
}

// ListQueries 返回用户提问与回复的配对，支持 q 参数全文过滤。
func (h *AdminHandler) ListQueries(c *gin.Context) {
	rows, err := h.adminService.AllQueries(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve queries")
		return
	}
	respondOK(c, rows)
}

// ListPopularPrompts 返回全部热门提示词。
func (h *AdminHandler) ListPopularPrompts(c *gin.Context) {
	prompts, err := h.promptService.ListPopular(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve popular prompts")
		return
	}
	respondOK(c, prompts)
}

// UpdatePopularPrompt 修改热门提示词的文本。
func (h *AdminHandler) UpdatePopularPrompt(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	p, err := h.promptService.UpdatePopularText(c.Request.Context(), c.Param("id"), req.Prompt)
	if err != nil {
		respondServiceError(c, err, "Failed to update popular prompt")
		return
	}
	respondOK(c, p)
}

// SetPromptCacheable 切换热门提示词的缓存标记。
func (h *AdminHandler) SetPromptCacheable(c *gin.Context) {
	var req struct {
		Cacheable *bool `json:"cacheable" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	p, err := h.promptService.SetCacheable(c.Request.Context(), c.Param("id"), *req.Cacheable)
	if err != nil {
		respondServiceError(c, err, "Failed to update popular prompt")
		return
	}
	respondOK(c, p)
}

// ListTemplates 返回全部提示词模板。
func (h *AdminHandler) ListTemplates(c *gin.Context) {
	tpls, err := h.templateService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve templates")
		return
	}
	respondOK(c, tpls)
}

type templateRequest struct {
	model.PromptTemplate
	Activate bool `json:"activate"`
}

// CreateTemplate 新建模板；activate 为 true 时直接启用，否则存为草稿。
func (h *AdminHandler) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	tpl, err := h.templateService.Create(c.Request.Context(), req.PromptTemplate, req.Activate)
	if err != nil {
		respondServiceError(c, err, "Failed to create template")
		return
	}
	respondOK(c, tpl)
}

// UpdateTemplate 覆盖已有模板。
func (h *AdminHandler) UpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	tpl, err := h.templateService.Update(c.Request.Context(), c.Param("id"), req.PromptTemplate, req.Activate)
	if err != nil {
		respondServiceError(c, err, "Failed to update template")
		return
	}
	respondOK(c, tpl)
}

// SetTemplateStatus 修改模板状态。
func (h *AdminHandler) SetTemplateStatus(c *gin.Context) {
	var req struct {
		Status model.TemplateStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	tpl, err := h.templateService.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondServiceError(c, err, "Failed to update template status")
		return
	}
	respondOK(c, tpl)
}
