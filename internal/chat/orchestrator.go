// Package chat 实现了单个聊天视图的流式对话编排：发送、重新生成、编辑后重发。
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/plugin"
	"plugin-chat-go/internal/transcript"
	"plugin-chat-go/pkg/llm"
	"plugin-chat-go/pkg/log"
	"plugin-chat-go/pkg/sse"
)

var (
	ErrBusy           = errors.New("another exchange is in flight")
	ErrEmptyInput     = errors.New("message is empty")
	ErrNoConversation = errors.New("no current conversation")
	ErrNoUserTurn     = errors.New("no user turn to answer")
	ErrTurnNotFound   = errors.New("turn not found")
)

// Gateway 是编排器依赖的会话持久化契约。
type Gateway interface {
	// CreateConversation 以 titleSeed 推导标题创建会话，ID 由持久化层分配。
	CreateConversation(ctx context.Context, titleSeed string) (*model.Conversation, error)
	// AppendTurn 持久化一条最终内容的消息。
	AppendTurn(ctx context.Context, conversationID string, role model.Role, content string) (*model.Turn, error)
	// LoadConversation 返回会话及其按创建时间正序排列的消息。
	LoadConversation(ctx context.Context, id string) (*model.Conversation, []model.Turn, error)
	// RecordPromptUsage 记录提示词使用次数，不得阻塞，也不返回错误。
	RecordPromptUsage(ctx context.Context, prompt string)
}

// Completer 发起流式补全请求，llm.Client 实现了它。
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (io.ReadCloser, error)
}

// Option 配置 Orchestrator。
type Option func(*Orchestrator)

// WithClock 替换生成消息时间戳所用的时钟。
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator 驱动一个聊天视图的对话。同一时刻最多只有一个进行中的请求，
// 重叠的调用直接以 ErrBusy 拒绝，不排队。
type Orchestrator struct {
	gateway   Gateway
	completer Completer
	selector  plugin.Selector
	store     *transcript.Store
	now       func() time.Time

	inFlight atomic.Bool

	// viewMu 串行化视图切换与依赖 epoch 的转写记录写入，观察者回调期间可能被持有，
	// 因此观察者不得调用 ResetIfCurrent 等切换视图的方法。
	viewMu sync.Mutex

	mu      sync.RWMutex
	current *model.Conversation
	// epoch 在当前视图被切换或清空时递增，进行中的请求据此判断结果是否还属于当前视图。
	epoch uint64
}

// New 创建一个 Orchestrator。selector 在每次构建请求时被读取。
func New(gateway Gateway, completer Completer, selector plugin.Selector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:   gateway,
		completer: completer,
		selector:  selector,
		store:     transcript.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Send 发送一条新的用户消息并流式接收回复。
// 本地转写记录先于持久化更新，用户消息持久化失败时它仍然保留。
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	conv, epoch := o.snapshotCurrent()
	if conv == nil {
		created, err := o.gateway.CreateConversation(ctx, text)
		if err != nil {
			o.appendErrorTurn(epoch, err)
			return nil
		}
		conv = created
		if !o.withView(epoch, func() { o.setCurrent(created) }) {
			return nil
		}
	}

	userTurn := model.NewTurn(model.RoleUser, text, o.now())
	if !o.withView(epoch, func() { o.store.Append(userTurn) }) {
		return nil
	}
	if _, err := o.gateway.AppendTurn(ctx, conv.ID, model.RoleUser, text); err != nil {
		o.appendErrorTurn(epoch, err)
		return nil
	}
	o.gateway.RecordPromptUsage(ctx, text)

	o.exchange(ctx, conv.ID, epoch)
	return nil
}

// Regenerate 丢弃最近一条助手回复，并用剩余的转写记录重新请求。
func (o *Orchestrator) Regenerate(ctx context.Context) error {
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	conv, epoch := o.snapshotCurrent()
	if conv == nil {
		return ErrNoConversation
	}
	if !o.store.HasRole(model.RoleUser) {
		return ErrNoUserTurn
	}

	if !o.withView(epoch, func() { o.store.RemoveLastOfRole(model.RoleAssistant) }) {
		return nil
	}
	o.exchange(ctx, conv.ID, epoch)
	return nil
}

// EditAndResend 将 turnID 对应的用户消息替换为 content，丢弃其后的全部消息后重新请求。
// 被丢弃的消息在持久化层中保留，编辑后的内容作为一条新的用户消息保存。
func (o *Orchestrator) EditAndResend(ctx context.Context, turnID, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyInput
	}
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	conv, epoch := o.snapshotCurrent()
	if conv == nil {
		return ErrNoConversation
	}
	index := o.store.IndexOf(turnID)
	if index < 0 {
		return ErrTurnNotFound
	}
	edited, _ := o.store.Get(turnID)
	if edited.Role != model.RoleUser {
		return fmt.Errorf("%w: turn %s is not a user turn", ErrNoUserTurn, turnID)
	}

	edited.Content = content
	if !o.withView(epoch, func() { o.store.ReplaceFrom(index, edited) }) {
		return nil
	}
	if _, err := o.gateway.AppendTurn(ctx, conv.ID, model.RoleUser, content); err != nil {
		o.appendErrorTurn(epoch, err)
		return nil
	}

	o.exchange(ctx, conv.ID, epoch)
	return nil
}

// exchange 以当前转写记录为上下文发起请求，追加占位的助手消息并随流更新其内容，
// 流结束后持久化非空的回复。失败以一条助手错误消息呈现，不向调用方返回。
func (o *Orchestrator) exchange(ctx context.Context, conversationID string, epoch uint64) {
	if !o.isEpoch(epoch) {
		return
	}
	capability := o.selector.Current()
	req := llm.CompletionRequest{
		Messages:     toMessages(o.store.All()),
		SystemPrompt: capability.SystemPrompt,
	}

	body, err := o.completer.Complete(ctx, req)
	if err != nil {
		log.Warnf("补全请求失败, conversation=%s, plugin=%s: %v", conversationID, capability.ID, err)
		o.appendErrorTurn(epoch, err)
		return
	}
	defer body.Close()

	// 等待响应期间视图可能已被切换，此时回复不属于新视图
	placeholder := model.NewTurn(model.RoleAssistant, "", o.now())
	if !o.withView(epoch, func() { o.store.Append(placeholder) }) {
		log.Warnf("会话 %s 已不在当前视图中，丢弃回复", conversationID)
		return
	}

	var answer strings.Builder
	err = sse.Stream(ctx, body, func(fragment string) error {
		answer.WriteString(fragment)
		o.store.UpdateContent(placeholder.ID, answer.String())
		return nil
	})
	if err != nil {
		log.Warnf("读取补全流失败, conversation=%s: %v", conversationID, err)
		o.appendErrorTurn(epoch, err)
		return
	}

	if answer.Len() == 0 {
		return
	}
	if !o.isEpoch(epoch) {
		log.Warnf("会话 %s 已不在当前视图中，回复未保存", conversationID)
		return
	}
	// 回复已完整展示，客户端断开也应当落库
	persistCtx := context.WithoutCancel(ctx)
	if _, err := o.gateway.AppendTurn(persistCtx, conversationID, model.RoleAssistant, answer.String()); err != nil {
		log.Errorf("保存助手回复失败, conversation=%s: %v", conversationID, err)
	}
}

// LoadConversation 打开一个历史会话，整体替换当前转写记录。
func (o *Orchestrator) LoadConversation(ctx context.Context, id string) error {
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	conv, turns, err := o.gateway.LoadConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	o.viewMu.Lock()
	defer o.viewMu.Unlock()
	o.mu.Lock()
	o.current = conv
	o.epoch++
	o.mu.Unlock()
	o.store.Load(turns)
	return nil
}

// StartNewChat 清空当前视图，下一次 Send 会创建新的会话。
func (o *Orchestrator) StartNewChat() error {
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	o.resetView()
	return nil
}

// ResetIfCurrent 在 id 是当前会话时清空视图，用于会话被删除之后。
// 即使有请求在进行中也会清空，该请求之后的结果会被丢弃。
func (o *Orchestrator) ResetIfCurrent(id string) bool {
	o.mu.RLock()
	match := o.current != nil && o.current.ID == id
	o.mu.RUnlock()
	if !match {
		return false
	}
	o.resetView()
	return true
}

// Transcript 返回当前转写记录的快照。
func (o *Orchestrator) Transcript() []model.Turn {
	return o.store.All()
}

// Current 返回当前会话，没有时返回 nil。
func (o *Orchestrator) Current() *model.Conversation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.current == nil {
		return nil
	}
	c := *o.current
	return &c
}

// InFlight 报告是否有请求正在进行。
func (o *Orchestrator) InFlight() bool {
	return o.inFlight.Load()
}

// Subscribe 注册转写记录的观察者，见 transcript.Store.Subscribe。
func (o *Orchestrator) Subscribe(fn transcript.Observer) (unsubscribe func()) {
	return o.store.Subscribe(fn)
}

func (o *Orchestrator) acquire() bool {
	return o.inFlight.CompareAndSwap(false, true)
}

func (o *Orchestrator) release() {
	o.inFlight.Store(false)
}

func (o *Orchestrator) snapshotCurrent() (*model.Conversation, uint64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current, o.epoch
}

func (o *Orchestrator) isEpoch(epoch uint64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.epoch == epoch
}

func (o *Orchestrator) resetView() {
	o.viewMu.Lock()
	defer o.viewMu.Unlock()
	o.mu.Lock()
	o.current = nil
	o.epoch++
	o.mu.Unlock()
	o.store.Reset()
}

// appendErrorTurn 追加一条描述失败原因的助手消息；视图已被切换时不追加。
func (o *Orchestrator) appendErrorTurn(epoch uint64, err error) {
	turn := model.NewTurn(model.RoleAssistant, ErrorMessage(err), o.now())
	o.withView(epoch, func() { o.store.Append(turn) })
}

// withView 仅在视图仍处于 epoch 时执行 fn，并保证执行期间视图不被切换。
func (o *Orchestrator) withView(epoch uint64, fn func()) bool {
	o.viewMu.Lock()
	defer o.viewMu.Unlock()
	if !o.isEpoch(epoch) {
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) setCurrent(conv *model.Conversation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = conv
}

// ErrorMessage 生成展示给用户的错误消息。
func ErrorMessage(err error) string {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("Sorry, I encountered an error: %s. Please try again.", msg)
}

func toMessages(turns []model.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}
