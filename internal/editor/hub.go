package editor

import (
	"log"
	"sync"

	domainErrors "storefront-builder/domain/errors"
	"storefront-builder/internal/metrics"
)

// ========== Hub 是会话生死的唯一仲裁者 ==========
// Hub 不处理任何编辑操作，只管理 Session 的生命周期

// Hub 维护会话目录
type Hub struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewHub 创建 Hub 实例
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
	}
}

// Add 登记新会话，同 ID 的旧会话会被关闭
func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	old, exists := h.sessions[s.ID]
	h.sessions[s.ID] = s
	h.mu.Unlock()

	if exists && old != s {
		old.Close()
		log.Printf("[Hub] ⚠️ 会话 %s 被替换，旧会话已关闭", s.ID)
	} else {
		metrics.SessionOpened()
	}
	log.Printf("[Hub] 🏠 会话 %s 已登记", s.ID)
}

// Get 只读获取会话
func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[id]
	if !ok {
		return nil, domainErrors.ErrSessionNotFound
	}
	return s, nil
}

// Close 关闭会话：先从目录移除（防止新请求进入），再停止推送并断开预览端
func (h *Hub) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if !ok {
		h.mu.Unlock()
		return domainErrors.ErrSessionNotFound
	}
	delete(h.sessions, id)
	h.mu.Unlock()

	s.Close()
	metrics.SessionClosed()
	log.Printf("[Hub] 💀 会话 %s 已关闭", id)
	return nil
}

// CloseAll 服务退出时关闭所有会话
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.SessionClosed()
	}
	log.Printf("[Hub] 🛑 已关闭 %d 个会话", len(sessions))
}

// Count 当前会话数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
