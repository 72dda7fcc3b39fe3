package preview

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// ========== MockEndpoint ==========
// 用于断言 Deliver/Close 的调用

type MockEndpoint struct {
	mock.Mock
}

func (m *MockEndpoint) Deliver(t MessageType, data []byte) bool {
	args := m.Called(t, data)
	return args.Bool(0)
}

func (m *MockEndpoint) Close() {
	m.Called()
}

// ========== recorder ==========
// 记录收到的消息，供断言投递次数与顺序

type recorder struct {
	mu     sync.Mutex
	types  []MessageType
	data   [][]byte
	closed int
}

func (r *recorder) Deliver(t MessageType, data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, t)
	r.data = append(r.data, data)
	return true
}

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.types)
}

func (r *recorder) received() []MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageType(nil), r.types...)
}

func (r *recorder) last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) == 0 {
		return nil
	}
	return r.data[len(r.data)-1]
}

func (r *recorder) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
