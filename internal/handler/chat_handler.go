package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"plugin-chat-go/internal/chat"
	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/plugin"
	"plugin-chat-go/internal/service"
	"plugin-chat-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// 客户端发送的指令类型。
const (
	cmdSend       = "send"
	cmdRegenerate = "regenerate"
	cmdEdit       = "edit"
	cmdLoad       = "load"
	cmdNew        = "new"
	cmdPlugin     = "plugin"
	cmdFeedback   = "feedback"
)

// command 是客户端通过 WebSocket 发送的 JSON 指令。
type command struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	TurnID         string `json:"turnId"`
	ConversationID string `json:"conversationId"`
	Plugin         string `json:"plugin"`
	IssueType      string `json:"issueType"`
	Details        string `json:"details"`
}

type snapshotEvent struct {
	Type         string              `json:"type"`
	Conversation *model.Conversation `json:"conversation"`
	Turns        []model.Turn        `json:"turns"`
	InFlight     bool                `json:"inFlight"`
	Plugin       string              `json:"plugin"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ackEvent struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// ChatHandler 负责处理 WebSocket 聊天连接，每个连接拥有一个独立的编排器。
type ChatHandler struct {
	gateway         chat.Gateway
	completer       chat.Completer
	prefs           plugin.PreferenceStore
	feedbackService service.FeedbackService
	registry        *SessionRegistry
	defaultPlugin   plugin.Kind
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(
	gateway chat.Gateway,
	completer chat.Completer,
	prefs plugin.PreferenceStore,
	feedbackService service.FeedbackService,
	registry *SessionRegistry,
	defaultPlugin plugin.Kind,
) *ChatHandler {
	return &ChatHandler{
		gateway:         gateway,
		completer:       completer,
		prefs:           prefs,
		feedbackService: feedbackService,
		registry:        registry,
		defaultPlugin:   defaultPlugin,
	}
}

// chatSession 是一个 WebSocket 连接上的聊天视图。
type chatSession struct {
	clientID  string
	logger    *zap.SugaredLogger
	conn      *websocket.Conn
	writeMu   sync.Mutex
	orch      *chat.Orchestrator
	selection *plugin.Selection
	flows     sync.WaitGroup
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	clientID := c.Query("client")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	// 连接断开时取消进行中的请求
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	selection := plugin.NewSelection(ctx, h.prefs, clientID, h.defaultPlugin)
	sess := &chatSession{
		clientID:  clientID,
		logger:    log.With("client", clientID),
		conn:      conn,
		orch:      chat.New(h.gateway, h.completer, selection),
		selection: selection,
	}
	unsubscribe := sess.orch.Subscribe(sess.pushSnapshot)
	h.registry.add(sess)
	defer func() {
		h.registry.remove(sess)
		unsubscribe()
		cancel()
		sess.flows.Wait()
	}()

	sess.logger.Info("WebSocket 连接已建立")
	sess.pushSnapshot(sess.orch.Transcript())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			sess.sendError("无效的指令格式")
			continue
		}
		h.dispatch(ctx, sess, cmd)
	}
	sess.logger.Info("WebSocket 连接已关闭")
}

func (h *ChatHandler) dispatch(ctx context.Context, sess *chatSession, cmd command) {
	switch cmd.Type {
	case cmdSend:
		sess.runFlow(cmd.Type, func() error { return sess.orch.Send(ctx, cmd.Content) })
	case cmdRegenerate:
		sess.runFlow(cmd.Type, func() error { return sess.orch.Regenerate(ctx) })
	case cmdEdit:
		sess.runFlow(cmd.Type, func() error { return sess.orch.EditAndResend(ctx, cmd.TurnID, cmd.Content) })
	case cmdLoad:
		sess.runFlow(cmd.Type, func() error { return sess.orch.LoadConversation(ctx, cmd.ConversationID) })
	case cmdNew:
		if err := sess.orch.StartNewChat(); err != nil {
			sess.sendError(err.Error())
			return
		}
		sess.sendAck(cmd.Type)
	case cmdPlugin:
		kind, err := plugin.Parse(cmd.Plugin)
		if err != nil {
			sess.sendError(err.Error())
			return
		}
		sess.applyPlugin(ctx, kind)
		sess.sendAck(cmd.Type)
	case cmdFeedback:
		h.submitFeedback(ctx, sess, cmd)
	default:
		sess.sendError("未知的指令类型: " + cmd.Type)
	}
}

func (h *ChatHandler) submitFeedback(ctx context.Context, sess *chatSession, cmd command) {
	var convID *string
	if conv := sess.orch.Current(); conv != nil {
		convID = &conv.ID
	}
	_, err := h.feedbackService.Submit(ctx, service.FeedbackInput{
		ConversationID: convID,
		IssueType:      cmd.IssueType,
		Details:        cmd.Details,
		Plugin:         sess.selection.Current().ID,
		Transcript:     sess.orch.Transcript(),
	})
	if err != nil {
		if !errors.Is(err, service.ErrInvalidInput) {
			sess.logger.Errorf("保存反馈失败: %v", err)
		}
		sess.sendError("提交反馈失败: " + err.Error())
		return
	}
	sess.sendAck(cmd.Type)
}

// runFlow 在独立的 goroutine 中执行一个编排流程，读循环可以继续接收指令。
func (s *chatSession) runFlow(name string, flow func() error) {
	s.flows.Add(1)
	go func() {
		defer s.flows.Done()
		err := flow()
		// 流程结束后推送一次快照，反映 inFlight 的变化
		s.pushSnapshot(s.orch.Transcript())
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendAck(name)
	}()
}

func (s *chatSession) applyPlugin(ctx context.Context, kind plugin.Kind) {
	if err := s.selection.Select(ctx, kind); err != nil {
		s.logger.Warnf("保存插件选择失败: %v", err)
	}
	s.pushSnapshot(s.orch.Transcript())
}

func (s *chatSession) pushSnapshot(turns []model.Turn) {
	if turns == nil {
		turns = []model.Turn{}
	}
	s.write(snapshotEvent{
		Type:         "snapshot",
		Conversation: s.orch.Current(),
		Turns:        turns,
		InFlight:     s.orch.InFlight(),
		Plugin:       s.selection.Current().ID,
	})
}

func (s *chatSession) sendError(message string) {
	s.write(errorEvent{Type: "error", Message: message})
}

func (s *chatSession) sendAck(command string) {
	s.write(ackEvent{Type: "ack", Command: command})
}

func (s *chatSession) write(v interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		s.logger.Debugf("写入 WebSocket 失败: %v", err)
	}
}
