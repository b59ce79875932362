package handler

import (
	"context"
	"sync"

	"plugin-chat-go/internal/plugin"
)

// SessionRegistry 记录所有在线的聊天会话，使 REST 接口上的变更能反映到打开的视图中。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[*chatSession]struct{}
}

// NewSessionRegistry 创建一个空的 SessionRegistry。
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[*chatSession]struct{})}
}

func (r *SessionRegistry) add(s *chatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = struct{}{}
}

func (r *SessionRegistry) remove(s *chatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
}

func (r *SessionRegistry) snapshot() []*chatSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*chatSession, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len 返回在线会话数。
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ConversationDeleted 清空所有正在展示该会话的视图，返回受影响的会话数。
func (r *SessionRegistry) ConversationDeleted(id string) int {
	n := 0
	for _, s := range r.snapshot() {
		if s.orch.ResetIfCurrent(id) {
			n++
		}
	}
	return n
}

// PluginChanged 将某个客户端的新选择同步到它所有在线的会话。
func (r *SessionRegistry) PluginChanged(ctx context.Context, clientID string, kind plugin.Kind) {
	for _, s := range r.snapshot() {
		if s.clientID == clientID {
			s.applyPlugin(ctx, kind)
		}
	}
}
