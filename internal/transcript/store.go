// Package transcript 维护当前会话在内存中的有序消息序列。
package transcript

import (
	"sync"

	"plugin-chat-go/internal/model"
)

// Observer 在每次变更完成后被同步调用，参数为变更后的快照。
type Observer func(turns []model.Turn)

// Store 是当前会话消息的权威有序集合。插入顺序即会话顺序，从不重排。
// 所有操作对调用方都是原子的；观察者在数据锁外按变更顺序被调用，
// 看到的总是完整的变更结果。观察者不得再修改 Store。
type Store struct {
	notifyMu  sync.Mutex
	mu        sync.RWMutex
	turns     []model.Turn
	observers []Observer
}

// New 创建一个空的 Store。
func New() *Store {
	return &Store{}
}

// Subscribe 注册一个观察者，返回取消注册的函数。
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	idx := len(s.observers) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.observers) {
			s.observers[idx] = nil
		}
	}
}

// Append 在末尾追加一条消息。
func (s *Store) Append(turn model.Turn) {
	s.mutate(func() bool {
		s.turns = append(s.turns, turn)
		return true
	})
}

// UpdateContent 原地替换 id 对应消息的内容；id 不存在时不做任何事。
func (s *Store) UpdateContent(id, content string) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		s.turns[i].Content = content
		return true
	})
}

// ReplaceFrom 将序列截断到 index（不含），再追加 turn。
// index 超出范围时按序列长度处理。
func (s *Store) ReplaceFrom(index int, turn model.Turn) {
	s.mutate(func() bool {
		if index < 0 {
			index = 0
		}
		if index > len(s.turns) {
			index = len(s.turns)
		}
		s.turns = append(s.turns[:index:index], turn)
		return true
	})
}

// RemoveLastOfRole 删除最近一条给定角色的消息；不存在时不做任何事。
func (s *Store) RemoveLastOfRole(role model.Role) {
	s.mutate(func() bool {
		for i := len(s.turns) - 1; i >= 0; i-- {
			if s.turns[i].Role == role {
				s.turns = append(s.turns[:i:i], s.turns[i+1:]...)
				return true
			}
		}
		return false
	})
}

// Reset 清空所有消息。
func (s *Store) Reset() {
	s.mutate(func() bool {
		s.turns = nil
		return true
	})
}

// Load 用 turns 整体替换当前内容，用于打开历史会话。
func (s *Store) Load(turns []model.Turn) {
	s.mutate(func() bool {
		s.turns = append([]model.Turn(nil), turns...)
		return true
	})
}

// All 返回有序消息的快照副本。
func (s *Store) All() []model.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// IndexOf 返回 id 对应消息的位置，不存在时返回 -1。
func (s *Store) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

// Get 返回 id 对应的消息。
func (s *Store) Get(id string) (model.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Turn{}, false
	}
	return s.turns[i], true
}

// Len 返回消息数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// HasRole 报告是否存在给定角色的消息。
func (s *Store) HasRole(role model.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.turns {
		if t.Role == role {
			return true
		}
	}
	return false
}

func (s *Store) indexOf(id string) int {
	for i, t := range s.turns {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []model.Turn {
	out := make([]model.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// mutate 在写锁内执行 fn；若 fn 报告发生了变更，则在释放锁后通知观察者。
func (s *Store) mutate(fn func() bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	snap := s.snapshot()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		if o != nil {
			observers = append(observers, o)
		}
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}
