package biz

import (
	"sync"
	"time"

	"github.com/kart-io/agent-x/internal/model"
)

// SessionStore 保存按会话键隔离的有序消息历史。
// 会话在首次 Append 时隐式创建，Clear 显式销毁；进程内状态，不跨重启。
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]model.Message
}

// NewSessionStore 创建会话存储。
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string][]model.Message),
	}
}

// Append 向会话追加一条消息，保持插入顺序。
func (s *SessionStore) Append(sessionID, role, content string, metadata map[string]any) {
	msg := model.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
}

// History 返回会话最后 limit 条消息，按原始顺序排列。
// limit <= 0 时返回全部消息。
func (s *SessionStore) History(sessionID string, limit int) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	// 返回副本，调用方不能影响内部状态
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear 销毁会话。
func (s *SessionStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Count 返回会话的消息数。
func (s *SessionStore) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}
