package preview

import (
	"log"
	"sync"
	"time"

	"storefront-builder/domain/entity"

	"github.com/bep/debounce"
)

// DefaultDebounce 拖拽/连续输入时的合并窗口
const DefaultDebounce = 150 * time.Millisecond

// SnapshotFunc 返回当前激活页面文档和主题的独立副本
type SnapshotFunc func() (entity.Document, entity.ThemeTokens)

// Syncer 把一串文档变更合并成一次推送
// 窗口内的后续变更会取消上一次待发送，只有最终状态会发出去
// delay 为 0 时每次变更都同步推送，行为同样正确
//
// 锁顺序: Syncer.mu -> 会话锁（snapshot 内部加锁），调用方不能在持有会话锁时调用 Schedule*
type Syncer struct {
	mu       sync.Mutex
	channel  *Channel
	snapshot SnapshotFunc
	delay    time.Duration
	schedule func(f func())

	pendingLayout bool
	pendingTheme  bool
	stopped       bool
}

// NewSyncer 创建同步器
func NewSyncer(ch *Channel, delay time.Duration, snapshot SnapshotFunc) *Syncer {
	s := &Syncer{
		channel:  ch,
		snapshot: snapshot,
		delay:    delay,
	}
	if delay > 0 {
		s.schedule = debounce.New(delay)
	}
	return s
}

// Prime 记录当前文档但不广播，之后就绪的预览端会收到它
func (s *Syncer) Prime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.retainLocked()
}

func (s *Syncer) retainLocked() {
	layout, theme := s.snapshot()
	data, err := EncodeLayoutUpdate(layout, &theme)
	if err != nil {
		log.Printf("[Syncer %s] ❌ 编码失败: %v", s.channel.ID, err)
		return
	}
	s.channel.Retain(data)
}

// ScheduleLayout 文档发生变更
func (s *Syncer) ScheduleLayout() {
	s.mark(true, false)
}

// ScheduleTheme 主题发生变更
func (s *Syncer) ScheduleTheme() {
	s.mark(false, true)
}

func (s *Syncer) mark(layout, theme bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.pendingLayout = s.pendingLayout || layout
	s.pendingTheme = s.pendingTheme || theme

	if s.schedule == nil {
		s.flushLocked()
		s.mu.Unlock()
		return
	}
	// 只延迟广播；留存文档立即更新，窗口内就绪的预览端拿到的就是当前文档
	s.retainLocked()
	s.mu.Unlock()

	s.schedule(s.Flush)
}

// Flush 立即推送待发送的变更（保存/发布前也会调用）
func (s *Syncer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Syncer) flushLocked() {
	if s.stopped || (!s.pendingLayout && !s.pendingTheme) {
		return
	}

	layout, theme := s.snapshot()
	data, err := EncodeLayoutUpdate(layout, &theme)
	if err != nil {
		log.Printf("[Syncer %s] ❌ 编码失败: %v", s.channel.ID, err)
		return
	}

	if s.pendingLayout {
		s.channel.Publish(data)
	} else {
		// 只有主题变化：发 THEME_UPDATE，同时更新留存文档供之后就绪的预览端使用
		themeData, err := EncodeThemeUpdate(theme)
		if err != nil {
			log.Printf("[Syncer %s] ❌ 编码失败: %v", s.channel.ID, err)
			return
		}
		s.channel.Retain(data)
		s.channel.Broadcast(TypeThemeUpdate, themeData)
	}

	s.pendingLayout = false
	s.pendingTheme = false
}

// Refresh 先推送待发送变更，再通知预览端整页重新加载
func (s *Syncer) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.flushLocked()
	s.channel.Refresh()
}

// Stop 丢弃待发送变更，之后的调用全部忽略
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pendingLayout = false
	s.pendingTheme = false
}
