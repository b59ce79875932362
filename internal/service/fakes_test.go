package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/pkg/tasks"
)

type memConversations struct {
	mu       sync.Mutex
	convs    map[string]model.Conversation
	touchErr error
	nextID   int
}

func newMemConversations() *memConversations {
	return &memConversations{convs: map[string]model.Conversation{}}
}

func (m *memConversations) Create(_ context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if conv.ID == "" {
		conv.ID = "conv-" + string(rune('0'+m.nextID))
	}
	m.convs[conv.ID] = *conv
	return nil
}

func (m *memConversations) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *memConversations) FindAll(context.Context) ([]model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memConversations) Touch(_ context.Context, id string, at time.Time) error {
	if m.touchErr != nil {
		return m.touchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.convs[id]
	c.UpdatedAt = at
	m.convs[id] = c
	return nil
}

func (m *memConversations) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.convs, id)
	return nil
}

type memMessages struct {
	mu    sync.Mutex
	turns []model.Turn
	err   error
}

func (m *memMessages) Create(_ context.Context, turn *model.Turn) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if turn.ID == "" {
		turn.ID = "msg-" + string(rune('a'+len(m.turns)))
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Date(2025, 1, 1, 0, 0, len(m.turns), 0, time.UTC)
	}
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memMessages) FindByConversation(_ context.Context, conversationID string) ([]model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Turn
	for _, t := range m.turns {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memMessages) FindAll(context.Context) ([]model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Turn(nil), m.turns...), nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []tasks.AnalyticsTask
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, task tasks.AnalyticsTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return p.err
}

func (p *recordingPublisher) published() []tasks.AnalyticsTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tasks.AnalyticsTask(nil), p.tasks...)
}

type memTemplates struct {
	tpls map[string]model.PromptTemplate
}

func (m *memTemplates) Create(_ context.Context, tpl *model.PromptTemplate) error {
	if tpl.ID == "" {
		tpl.ID = "tpl-new"
	}
	m.tpls[tpl.ID] = *tpl
	return nil
}

func (m *memTemplates) FindByID(_ context.Context, id string) (*model.PromptTemplate, error) {
	t, ok := m.tpls[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (m *memTemplates) FindAll(context.Context) ([]model.PromptTemplate, error) {
	var out []model.PromptTemplate
	for _, t := range m.tpls {
		out = append(out, t)
	}
	return out, nil
}

func (m *memTemplates) Save(_ context.Context, tpl *model.PromptTemplate) error {
	m.tpls[tpl.ID] = *tpl
	return nil
}

type memExports struct {
	objects map[string][]byte
}

func (m *memExports) PutJSON(_ context.Context, objectName string, data []byte) error {
	m.objects[objectName] = data
	return nil
}

func (m *memExports) PresignedURL(_ context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://minio.local/" + objectName + "?expiry=" + expiry.String(), nil
}

type stubSearcher struct {
	ids []string
	err error
}

func (s stubSearcher) Search(context.Context, string, int) ([]string, error) {
	return s.ids, s.err
}
