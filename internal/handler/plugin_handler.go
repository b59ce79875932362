package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plugin-chat-go/internal/plugin"
	"plugin-chat-go/pkg/log"
)

// PluginHandler 处理能力模式目录与选择相关的请求。
type PluginHandler struct {
	prefs         plugin.PreferenceStore
	registry      *SessionRegistry
	defaultPlugin plugin.Kind
}

// NewPluginHandler 创建一个新的 PluginHandler。
func NewPluginHandler(prefs plugin.PreferenceStore, registry *SessionRegistry, defaultPlugin plugin.Kind) *PluginHandler {
	return &PluginHandler{prefs: prefs, registry: registry, defaultPlugin: defaultPlugin}
}

// ListPlugins 返回全部能力模式。
func (h *PluginHandler) ListPlugins(c *gin.Context) {
	respondOK(c, plugin.All())
}

// GetSelected 返回客户端当前选择的能力模式。
func (h *PluginHandler) GetSelected(c *gin.Context) {
	clientID := c.Query("client")
	if clientID == "" {
		respondError(c, http.StatusBadRequest, "缺少 client 参数")
		return
	}
	selection := plugin.NewSelection(c.Request.Context(), h.prefs, clientID, h.defaultPlugin)
	respondOK(c, selection.Current())
}

type selectPluginRequest struct {
	Client string `json:"client" binding:"required"`
	Plugin string `json:"plugin" binding:"required"`
}

// SetSelected 保存客户端的选择，并同步到它在线的聊天视图。
func (h *PluginHandler) SetSelected(c *gin.Context) {
	var req selectPluginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	kind, err := plugin.Parse(req.Plugin)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.prefs.SetPlugin(c.Request.Context(), req.Client, kind.Plugin().ID); err != nil {
		log.Errorf("保存插件选择失败: %v", err)
		respondError(c, http.StatusInternalServerError, "保存插件选择失败")
		return
	}
	h.registry.PluginChanged(c.Request.Context(), req.Client, kind)
	respondOK(c, kind.Plugin())
}
