package preview

import (
	"encoding/json"
	"log"
	"sync"

	"storefront-builder/domain/entity"
	"storefront-builder/internal/layout"
	"storefront-builder/internal/render"
)

// Surface 进程内的渲染端，和浏览器里的预览 iframe 走同一套消息协议
// 它持有自己的文档副本（从消息字节解码），永远不会写回编辑器状态
type Surface struct {
	registry *render.Registry
	opts     render.Options

	mu       sync.RWMutex
	channel  *Channel
	layout   entity.Document
	theme    entity.ThemeTokens
	output   render.Output
	received int
	closed   bool
}

// NewSurface 创建渲染端，EditMode 决定是否渲染隐藏区块
func NewSurface(registry *render.Registry, opts render.Options) *Surface {
	s := &Surface{
		registry: registry,
		opts:     opts,
		layout:   entity.Document{},
		theme:    entity.DefaultTheme(),
	}
	s.output = registry.Page(s.layout, &s.theme, opts)
	return s
}

// Attach 接入通道并完成"初次加载"：发送 PREVIEW_READY
func (s *Surface) Attach(ch *Channel) {
	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()

	ch.Register(s)
	s.load()
}

// load 初次加载或 REFRESH 之后的重新加载
func (s *Surface) load() {
	s.mu.RLock()
	ch, closed := s.channel, s.closed
	s.mu.RUnlock()
	if ch == nil || closed {
		return
	}
	ch.Ready(s)
}

// Deliver 处理编辑器消息，由通道事件循环调用，不能阻塞
func (s *Surface) Deliver(t MessageType, data []byte) bool {
	env, err := Decode(data)
	if err != nil {
		log.Printf("[Surface] ⚠️ 消息解析失败，忽略: %v", err)
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}

	switch env.Type {
	case TypeLayoutUpdate:
		// 全量替换，重复收到同一份文档结果不变
		var doc entity.Document
		if len(env.Layout) > 0 {
			if err := json.Unmarshal(env.Layout, &doc); err != nil {
				log.Printf("[Surface] ⚠️ layout 解析失败，忽略: %v", err)
				return true
			}
		}
		if doc == nil {
			doc = entity.Document{}
		}
		s.layout = doc
		if env.Theme != nil {
			s.theme = *env.Theme
		}
		s.received++
		s.rerender()

	case TypeThemeUpdate:
		if env.Theme != nil {
			s.theme = *env.Theme
			s.received++
			s.rerender()
		}

	case TypeRefresh:
		// 丢弃本地状态，重新加载完成后再次宣告就绪
		s.layout = entity.Document{}
		s.theme = entity.DefaultTheme()
		s.received++
		s.rerender()
		go s.load()

	default:
		// 未知类型忽略
	}
	return true
}

// Close 通道移除该渲染端
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Surface) rerender() {
	s.output = s.registry.Page(s.layout, &s.theme, s.opts)
}

// Output 最近一次渲染结果
func (s *Surface) Output() render.Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.output
}

// Layout 渲染端持有的文档副本
func (s *Surface) Layout() entity.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return layout.Clone(s.layout)
}

// Theme 渲染端当前主题
func (s *Surface) Theme() entity.ThemeTokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// Received 收到的编辑器消息数量
func (s *Surface) Received() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.received
}
