package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/plugin"
	"plugin-chat-go/pkg/llm"
)

type appended struct {
	conversationID string
	role           model.Role
	content        string
}

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	appendErr map[model.Role]error
	loadErr   error
	created   []string
	appended  []appended
	usage     []string
	loaded    map[string][]model.Turn
}

func (g *fakeGateway) CreateConversation(_ context.Context, seed string) (*model.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, seed)
	return &model.Conversation{ID: "conv-1", Title: model.DeriveTitle(seed)}, nil
}

func (g *fakeGateway) AppendTurn(_ context.Context, conversationID string, role model.Role, content string) (*model.Turn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.appendErr[role]; err != nil {
		return nil, err
	}
	g.appended = append(g.appended, appended{conversationID, role, content})
	return &model.Turn{ID: "persisted", ConversationID: conversationID, Role: role, Content: content}, nil
}

func (g *fakeGateway) LoadConversation(_ context.Context, id string) (*model.Conversation, []model.Turn, error) {
	if g.loadErr != nil {
		return nil, nil, g.loadErr
	}
	return &model.Conversation{ID: id, Title: "loaded"}, g.loaded[id], nil
}

func (g *fakeGateway) RecordPromptUsage(_ context.Context, prompt string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage = append(g.usage, prompt)
}

func (g *fakeGateway) appendedSnapshot() []appended {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]appended(nil), g.appended...)
}

// fakeCompleter 依次返回 bodies 中的响应体，并记录每次请求。
type fakeCompleter struct {
	mu       sync.Mutex
	bodies   []io.ReadCloser
	err      error
	requests []llm.CompletionRequest
}

func (c *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.bodies) == 0 {
		return io.NopCloser(strings.NewReader("data: [DONE]\n")), nil
	}
	body := c.bodies[0]
	c.bodies = c.bodies[1:]
	return body, nil
}

func streamOf(fragments ...string) io.ReadCloser {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(`data: {"choices":[{"delta":{"content":"` + f + `"}}]}` + "\n\n")
	}
	b.WriteString("data: [DONE]\n")
	return io.NopCloser(strings.NewReader(b.String()))
}

type errReadCloser struct {
	r   io.Reader
	err error
}

func (e *errReadCloser) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		return n, e.err
	}
	return n, err
}

func (e *errReadCloser) Close() error { return nil }

func newTestOrchestrator(g *fakeGateway, c *fakeCompleter) *Orchestrator {
	return New(g, c, plugin.Fixed(plugin.Smartflow), WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	}))
}

func roleContents(turns []model.Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, string(t.Role)+":"+t.Content)
	}
	return out
}

func TestSendStreamsAndPersists(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("He", "llo")}}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "Hi there"))

	require.Equal(t, []string{"user:Hi there", "assistant:Hello"}, roleContents(o.Transcript()))
	require.Equal(t, "conv-1", o.Current().ID)
	require.Equal(t, []string{"Hi there"}, g.created)
	require.Equal(t, []string{"Hi there"}, g.usage)
	require.Equal(t, []appended{
		{"conv-1", model.RoleUser, "Hi there"},
		{"conv-1", model.RoleAssistant, "Hello"},
	}, g.appendedSnapshot())
	require.False(t, o.InFlight())

	require.Len(t, c.requests, 1)
	require.Equal(t, plugin.Smartflow.Plugin().SystemPrompt, c.requests[0].SystemPrompt)
	require.Equal(t, []llm.Message{{Role: "user", Content: "Hi there"}}, c.requests[0].Messages)
}

func TestSendReusesCurrentConversationAndSendsFullContext(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("one"), streamOf("two")}}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "first"))
	require.NoError(t, o.Send(context.Background(), "second"))

	require.Len(t, g.created, 1)
	require.Equal(t, []llm.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "one"},
		{Role: "user", Content: "second"},
	}, c.requests[1].Messages)
}

func TestSendRejectsEmptyInput(t *testing.T) {
	g := &fakeGateway{}
	o := newTestOrchestrator(g, &fakeCompleter{})

	require.ErrorIs(t, o.Send(context.Background(), "   \n\t"), ErrEmptyInput)
	require.Empty(t, o.Transcript())
	require.Empty(t, g.created)
}

func TestSendWhileInFlightIsRejected(t *testing.T) {
	pr, pw := io.Pipe()
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{pr}}
	o := newTestOrchestrator(g, c)

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "A") }()

	require.Eventually(t, func() bool { return len(o.Transcript()) == 2 }, time.Second, time.Millisecond)
	require.True(t, o.InFlight())

	require.ErrorIs(t, o.Send(context.Background(), "B"), ErrBusy)
	require.ErrorIs(t, o.Regenerate(context.Background()), ErrBusy)
	require.ErrorIs(t, o.StartNewChat(), ErrBusy)
	require.Len(t, o.Transcript(), 2)

	_, _ = io.WriteString(pw, `data: {"choices":[{"delta":{"content":"done"}}]}`+"\n")
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)

	require.Equal(t, []string{"user:A", "assistant:done"}, roleContents(o.Transcript()))
	require.False(t, o.InFlight())
}

func TestRegenerateReplacesLastAnswer(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("B"), streamOf("C")}}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "A"))
	firstUser := o.Transcript()[0]

	require.NoError(t, o.Regenerate(context.Background()))

	got := o.Transcript()
	require.Equal(t, []string{"user:A", "assistant:C"}, roleContents(got))
	require.Equal(t, firstUser, got[0])
	require.Equal(t, []llm.Message{{Role: "user", Content: "A"}}, c.requests[1].Messages)

	// 重新生成不保存新的用户消息
	persisted := g.appendedSnapshot()
	require.Len(t, persisted, 3)
	require.Equal(t, model.RoleAssistant, persisted[2].role)
	require.Equal(t, "C", persisted[2].content)
	require.Len(t, g.usage, 1)
}

func TestRegenerateGuards(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{}
	o := newTestOrchestrator(g, c)

	require.ErrorIs(t, o.Regenerate(context.Background()), ErrNoConversation)

	g.loaded = map[string][]model.Turn{"c": {{ID: "a", Role: model.RoleAssistant, Content: "hello"}}}
	require.NoError(t, o.LoadConversation(context.Background(), "c"))
	require.ErrorIs(t, o.Regenerate(context.Background()), ErrNoUserTurn)
	require.Len(t, o.Transcript(), 1)
	require.Empty(t, c.requests)
}

func TestEditAndResendTruncates(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("B"), streamOf("D"), streamOf("E")}}
	o := newTestOrchestrator(g, c)
	ctx := context.Background()

	require.NoError(t, o.Send(ctx, "A"))
	require.NoError(t, o.Send(ctx, "C"))
	before := o.Transcript()
	idC := before[2].ID

	require.NoError(t, o.EditAndResend(ctx, idC, "C2"))

	after := o.Transcript()
	require.Equal(t, []string{"user:A", "assistant:B", "user:C2", "assistant:E"}, roleContents(after))
	require.Equal(t, idC, after[2].ID)
	require.Equal(t, before[2].CreatedAt, after[2].CreatedAt)

	require.Equal(t, []llm.Message{
		{Role: "user", Content: "A"},
		{Role: "assistant", Content: "B"},
		{Role: "user", Content: "C2"},
	}, c.requests[2].Messages)

	// 编辑后的内容作为新消息保存，旧消息不删除
	persisted := g.appendedSnapshot()
	require.Len(t, persisted, 6)
	require.Equal(t, appended{"conv-1", model.RoleUser, "C2"}, persisted[4])
}

func TestEditAndResendGuards(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("B")}}
	o := newTestOrchestrator(g, c)
	ctx := context.Background()

	require.ErrorIs(t, o.EditAndResend(ctx, "x", "y"), ErrNoConversation)

	require.NoError(t, o.Send(ctx, "A"))
	require.ErrorIs(t, o.EditAndResend(ctx, "missing", "y"), ErrTurnNotFound)
	require.ErrorIs(t, o.EditAndResend(ctx, o.Transcript()[1].ID, "y"), ErrNoUserTurn)
	require.ErrorIs(t, o.EditAndResend(ctx, o.Transcript()[0].ID, "  "), ErrEmptyInput)
	require.Equal(t, []string{"user:A", "assistant:B"}, roleContents(o.Transcript()))
}

func TestRequestFailureAppendsErrorTurn(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{err: &llm.RequestError{Status: 429, Message: "Rate limit exceeded"}}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "A"))

	got := o.Transcript()
	require.Len(t, got, 2)
	require.Equal(t, "user:A", roleContents(got)[0])
	require.Equal(t, model.RoleAssistant, got[1].Role)
	require.Equal(t, "Sorry, I encountered an error: Rate limit exceeded. Please try again.", got[1].Content)
	require.False(t, o.InFlight())

	// 错误消息不持久化
	require.Len(t, g.appendedSnapshot(), 1)
}

func TestConversationCreateFailure(t *testing.T) {
	g := &fakeGateway{createErr: errors.New("db down")}
	c := &fakeCompleter{}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "A"))

	require.Equal(t, []string{"assistant:Sorry, I encountered an error: db down. Please try again."}, roleContents(o.Transcript()))
	require.Nil(t, o.Current())
	require.Empty(t, c.requests)
}

func TestUserTurnPersistFailureKeepsOptimisticTurn(t *testing.T) {
	g := &fakeGateway{appendErr: map[model.Role]error{model.RoleUser: errors.New("insert failed")}}
	c := &fakeCompleter{}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "A"))

	require.Equal(t, []string{
		"user:A",
		"assistant:Sorry, I encountered an error: insert failed. Please try again.",
	}, roleContents(o.Transcript()))
	require.Empty(t, c.requests)
	require.Empty(t, g.usage)
}

func TestAssistantPersistFailureIsNotShown(t *testing.T) {
	g := &fakeGateway{appendErr: map[model.Role]error{model.RoleAssistant: errors.New("insert failed")}}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("ok")}}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "A"))
	require.Equal(t, []string{"user:A", "assistant:ok"}, roleContents(o.Transcript()))
}

func TestMidStreamFailureKeepsPartialAnswer(t *testing.T) {
	g := &fakeGateway{}
	body := &errReadCloser{
		r:   strings.NewReader(`data: {"choices":[{"delta":{"content":"part"}}]}` + "\n"),
		err: errors.New("connection reset"),
	}
	c := &fakeCompleter{bodies: []io.ReadCloser{body}}
	o := newTestOrchestrator(g, c)

	require.NoError(t, o.Send(context.Background(), "A"))

	got := roleContents(o.Transcript())
	require.Len(t, got, 3)
	require.Equal(t, "assistant:part", got[1])
	require.Contains(t, got[2], "connection reset")
	require.Len(t, g.appendedSnapshot(), 1)
}

func TestEmptyAnswerIsNotPersisted(t *testing.T) {
	g := &fakeGateway{}
	o := newTestOrchestrator(g, &fakeCompleter{bodies: []io.ReadCloser{streamOf()}})

	require.NoError(t, o.Send(context.Background(), "A"))
	require.Equal(t, []string{"user:A", "assistant:"}, roleContents(o.Transcript()))
	require.Len(t, g.appendedSnapshot(), 1)
}

func TestStreamingContentOnlyGrows(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("a", "bc", "def", "g")}}
	o := newTestOrchestrator(g, c)

	var lengths []int
	o.Subscribe(func(turns []model.Turn) {
		if len(turns) == 2 && turns[1].Role == model.RoleAssistant {
			lengths = append(lengths, len(turns[1].Content))
		}
	})

	require.NoError(t, o.Send(context.Background(), "A"))

	require.Equal(t, []int{0, 1, 3, 6, 7}, lengths)
	for i := 1; i < len(lengths); i++ {
		require.GreaterOrEqual(t, lengths[i], lengths[i-1])
	}
}

func TestSelectorIsReadPerRequest(t *testing.T) {
	g := &fakeGateway{}
	c := &fakeCompleter{bodies: []io.ReadCloser{streamOf("1"), streamOf("2")}}
	sel := plugin.NewSelection(context.Background(), nil, "", plugin.Smartflow)
	o := New(g, c, sel)

	require.NoError(t, o.Send(context.Background(), "A"))
	require.NoError(t, sel.Select(context.Background(), plugin.DecisionService))
	require.NoError(t, o.Send(context.Background(), "B"))

	require.Equal(t, plugin.Smartflow.Plugin().SystemPrompt, c.requests[0].SystemPrompt)
	require.Equal(t, plugin.DecisionService.Plugin().SystemPrompt, c.requests[1].SystemPrompt)
}

func TestLoadAndStartNewChat(t *testing.T) {
	g := &fakeGateway{loaded: map[string][]model.Turn{
		"old": {
			{ID: "1", Role: model.RoleUser, Content: "q"},
			{ID: "2", Role: model.RoleAssistant, Content: "a"},
		},
	}}
	o := newTestOrchestrator(g, &fakeCompleter{})

	require.NoError(t, o.LoadConversation(context.Background(), "old"))
	require.Equal(t, "old", o.Current().ID)
	require.Equal(t, []string{"user:q", "assistant:a"}, roleContents(o.Transcript()))

	require.NoError(t, o.StartNewChat())
	require.Nil(t, o.Current())
	require.Empty(t, o.Transcript())

	g.loadErr = errors.New("not found")
	require.Error(t, o.LoadConversation(context.Background(), "gone"))
	require.Nil(t, o.Current())
}

func TestResetIfCurrent(t *testing.T) {
	g := &fakeGateway{loaded: map[string][]model.Turn{"c": {{ID: "1", Role: model.RoleUser, Content: "q"}}}}
	o := newTestOrchestrator(g, &fakeCompleter{})
	require.NoError(t, o.LoadConversation(context.Background(), "c"))

	require.False(t, o.ResetIfCurrent("other"))
	require.Len(t, o.Transcript(), 1)

	require.True(t, o.ResetIfCurrent("c"))
	require.Nil(t, o.Current())
	require.Empty(t, o.Transcript())
}

func TestResetDuringStreamDropsAnswer(t *testing.T) {
	pr, pw := io.Pipe()
	g := &fakeGateway{}
	o := newTestOrchestrator(g, &fakeCompleter{bodies: []io.ReadCloser{pr}})

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "A") }()
	require.Eventually(t, func() bool { return len(o.Transcript()) == 2 }, time.Second, time.Millisecond)

	require.True(t, o.ResetIfCurrent("conv-1"))
	_, _ = io.WriteString(pw, `data: {"choices":[{"delta":{"content":"late"}}]}`+"\n")
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)

	require.Empty(t, o.Transcript())
	require.Len(t, g.appendedSnapshot(), 1)
}

// gatedCompleter 在 Complete 内阻塞直到 release 被关闭，模拟等待响应头的请求。
type gatedCompleter struct {
	entered chan struct{}
	release chan struct{}
	body    string
}

func (c *gatedCompleter) Complete(context.Context, llm.CompletionRequest) (io.ReadCloser, error) {
	close(c.entered)
	<-c.release
	return io.NopCloser(strings.NewReader(c.body)), nil
}

func TestResetWhileAwaitingResponseDropsAnswer(t *testing.T) {
	g := &fakeGateway{}
	c := &gatedCompleter{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		body:    `data: {"choices":[{"delta":{"content":"stale"}}]}` + "\n\ndata: [DONE]\n",
	}
	o := New(g, c, plugin.Fixed(plugin.Smartflow))

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "A") }()
	<-c.entered

	require.True(t, o.ResetIfCurrent("conv-1"))
	close(c.release)
	require.NoError(t, <-done)

	require.Empty(t, o.Transcript())
	require.Nil(t, o.Current())
	require.Equal(t, []appended{{"conv-1", model.RoleUser, "A"}}, g.appendedSnapshot())
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "Sorry, I encountered an error: Unknown error. Please try again.", ErrorMessage(nil))
}
