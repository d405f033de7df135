package biz

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStore_AppendAndHistory(t *testing.T) {
	t.Run("消息按插入顺序返回", func(t *testing.T) {
		s := NewSessionStore()
		s.Append("s1", "user", "first", nil)
		s.Append("s1", "assistant", "second", nil)
		s.Append("s1", "user", "third", nil)

		msgs := s.History("s1", 0)
		assert.Len(t, msgs, 3)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "second", msgs[1].Content)
		assert.Equal(t, "third", msgs[2].Content)
	})

	t.Run("limit 截取最后 N 条", func(t *testing.T) {
		s := NewSessionStore()
		for i := 0; i < 5; i++ {
			s.Append("s1", "user", fmt.Sprintf("msg-%d", i), nil)
		}

		msgs := s.History("s1", 2)
		assert.Len(t, msgs, 2)
		assert.Equal(t, "msg-3", msgs[0].Content)
		assert.Equal(t, "msg-4", msgs[1].Content)
	})

	t.Run("limit 大于消息数时返回全部", func(t *testing.T) {
		s := NewSessionStore()
		s.Append("s1", "user", "only", nil)

		assert.Len(t, s.History("s1", 10), 1)
	})

	t.Run("不存在的会话返回空", func(t *testing.T) {
		s := NewSessionStore()
		assert.Empty(t, s.History("missing", 10))
	})
}

func TestSessionStore_Isolation(t *testing.T) {
	s := NewSessionStore()
	s.Append("alice", "user", "alice question", nil)
	s.Append("bob", "user", "bob question", nil)

	aliceMsgs := s.History("alice", 0)
	bobMsgs := s.History("bob", 0)

	assert.Len(t, aliceMsgs, 1)
	assert.Len(t, bobMsgs, 1)
	assert.Equal(t, "alice question", aliceMsgs[0].Content)
	assert.Equal(t, "bob question", bobMsgs[0].Content)
}

func TestSessionStore_Clear(t *testing.T) {
	s := NewSessionStore()
	s.Append("s1", "user", "hello", nil)
	s.Append("s2", "user", "hello", nil)

	s.Clear("s1")

	assert.Equal(t, 0, s.Count("s1"))
	assert.Equal(t, 1, s.Count("s2"), "清空一个会话不影响其他会话")

	// 清空后的会话可以重新使用
	s.Append("s1", "user", "again", nil)
	assert.Equal(t, 1, s.Count("s1"))
}

func TestSessionStore_HistoryReturnsCopy(t *testing.T) {
	s := NewSessionStore()
	s.Append("s1", "user", "original", nil)

	msgs := s.History("s1", 0)
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", s.History("s1", 0)[0].Content)
}
