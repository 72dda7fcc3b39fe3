package preview

import (
	"bytes"
	"log"
	"sync"

	"storefront-builder/internal/metrics"
)

// ========== Actor Model: Channel 是单个会话的预览同步通道 ==========
// endpoints map 只在 run() 循环内访问，无需锁！
// 投递语义: 至多一次、不缓冲；未就绪的预览端收不到任何消息

// Endpoint 预览端（websocket 连接或进程内 Surface）
type Endpoint interface {
	// Deliver 非阻塞投递，返回 false 表示缓冲区满、消息被丢弃
	Deliver(t MessageType, data []byte) bool
	// Close 通道移除该预览端时调用，只会调用一次
	Close()
}

// Channel 编辑器 -> 预览端的单向广播通道，外加预览端 -> 编辑器的就绪信号
type Channel struct {
	ID string

	// 私有 endpoints map - 只在 run() 内访问
	endpoints map[Endpoint]*endpointState

	// 最近一次 LAYOUT_UPDATE，预览端就绪时补发
	retained []byte

	// 事件通道：所有操作都变成消息
	// PREVIEW_READY 和文档更新走同一个队列，保证就绪时拿到的是入队顺序上最新的文档
	outbound   chan *outbound // 发往预览端的消息 + PREVIEW_READY
	register   chan Endpoint  // 加入请求
	unregister chan Endpoint  // 退出请求
	stopChan   chan struct{}  // 停止信号
	done       chan struct{}  // run() 已退出
	stopOnce   sync.Once

	// 计数锁 - 只用于对外暴露预览端数量
	countMu    sync.RWMutex
	total      int
	readyTotal int
}

// endpointState 单个预览端的状态
type endpointState struct {
	ready bool
	// 最近一次送达的 LAYOUT_UPDATE，相同内容不再重复广播
	last []byte
}

// outbound 待投递的消息
type outbound struct {
	kind      MessageType
	data      []byte
	ready     Endpoint // 非空表示 PREVIEW_READY
	retain    bool // 记为最新 LAYOUT_UPDATE
	broadcast bool // 发给已就绪的预览端
	reset     bool // REFRESH: 发给所有预览端并置为未就绪
}

// NewChannel 创建通道并启动事件循环
func NewChannel(id string) *Channel {
	c := &Channel{
		ID:         id,
		endpoints:  make(map[Endpoint]*endpointState),
		outbound:   make(chan *outbound, 256),
		register:   make(chan Endpoint),
		unregister: make(chan Endpoint),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.run()

	log.Printf("[Channel %s] 🚀 已创建并启动", id)
	return c
}

// run 是通道的主宰，所有逻辑都在这里串行处理，所以 endpoints map 不需要锁！
func (c *Channel) run() {
	defer func() {
		for ep := range c.endpoints {
			ep.Close()
		}
		c.endpoints = map[Endpoint]*endpointState{}
		c.updateCounts()
		close(c.done)
		log.Printf("[Channel %s] 🛑 事件循环已停止", c.ID)
	}()

	for {
		select {
		// 1. 预览端接入：未就绪前不发任何消息
		case ep := <-c.register:
			if _, ok := c.endpoints[ep]; !ok {
				c.endpoints[ep] = &endpointState{}
				c.updateCounts()
				log.Printf("[Channel %s] 👋 预览端接入，当前数量: %d", c.ID, len(c.endpoints))
			}

		// 2. 预览端断开
		case ep := <-c.unregister:
			if _, ok := c.endpoints[ep]; ok {
				delete(c.endpoints, ep)
				ep.Close()
				c.updateCounts()
				log.Printf("[Channel %s] 👋 预览端断开，剩余数量: %d", c.ID, len(c.endpoints))
			}

		// 3. 发往预览端 (核心热路径 - 无锁！)
		case msg := <-c.outbound:
			if msg.ready != nil {
				c.markReady(msg.ready)
				continue
			}
			if msg.retain {
				c.retained = msg.data
			}
			switch {
			case msg.reset:
				for ep, st := range c.endpoints {
					st.ready = false
					st.last = nil
					c.deliver(ep, msg.kind, msg.data)
				}
				c.updateCounts()
			case msg.broadcast:
				for ep, st := range c.endpoints {
					if !st.ready {
						metrics.PreviewDropped(string(msg.kind), "not_ready")
						continue
					}
					// 全量替换语义：同一份文档已经送达过就不再发
					if msg.kind == TypeLayoutUpdate && bytes.Equal(st.last, msg.data) {
						continue
					}
					c.send(ep, st, msg.kind, msg.data)
				}
			}

		// 4. 停止信号
		case <-c.stopChan:
			return
		}
	}
}

// markReady PREVIEW_READY：标记就绪，并补发当前文档（恰好一次）
func (c *Channel) markReady(ep Endpoint) {
	st, ok := c.endpoints[ep]
	if !ok {
		return
	}
	st.ready = true
	st.last = nil
	c.updateCounts()
	if c.retained != nil {
		c.send(ep, st, TypeLayoutUpdate, c.retained)
	}
	log.Printf("[Channel %s] ✅ 预览端就绪", c.ID)
}

// send 投递并记录该预览端当前持有的文档
func (c *Channel) send(ep Endpoint, st *endpointState, kind MessageType, data []byte) {
	if !c.deliver(ep, kind, data) {
		return
	}
	if kind == TypeLayoutUpdate {
		st.last = data
	} else {
		// 主题等局部更新之后，预览端状态不再等于任何一份完整文档
		st.last = nil
	}
}

// deliver 投递给单个预览端
// LAYOUT_UPDATE 是关键消息，缓冲区满则踢掉该预览端（它会重连并重新握手）
// 其他消息直接丢弃
func (c *Channel) deliver(ep Endpoint, kind MessageType, data []byte) bool {
	if ep.Deliver(kind, data) {
		metrics.PreviewSent(string(kind))
		return true
	}

	metrics.PreviewDropped(string(kind), "buffer_full")
	if kind == TypeLayoutUpdate {
		log.Printf("[Channel %s] ⚠️ 关键消息阻塞，断开预览端", c.ID)
		delete(c.endpoints, ep)
		ep.Close()
		c.updateCounts()
	}
	return false
}

func (c *Channel) updateCounts() {
	readyCount := 0
	for _, st := range c.endpoints {
		if st.ready {
			readyCount++
		}
	}
	c.countMu.Lock()
	metrics.PreviewReadyDelta(readyCount - c.readyTotal)
	c.total = len(c.endpoints)
	c.readyTotal = readyCount
	c.countMu.Unlock()
}

// ========== 对外暴露的接口 ==========
// 通道停止后所有调用立即返回，不会阻塞

// Register 接入预览端（未就绪）
func (c *Channel) Register(ep Endpoint) {
	select {
	case c.register <- ep:
	case <-c.done:
	}
}

// Unregister 断开预览端
func (c *Channel) Unregister(ep Endpoint) {
	select {
	case c.unregister <- ep:
	case <-c.done:
	}
}

// Ready 预览端发来 PREVIEW_READY
func (c *Channel) Ready(ep Endpoint) {
	c.enqueue(&outbound{kind: TypePreviewReady, ready: ep})
}

// Publish 广播 LAYOUT_UPDATE 并记为最新文档
func (c *Channel) Publish(data []byte) {
	c.enqueue(&outbound{kind: TypeLayoutUpdate, data: data, retain: true, broadcast: true})
}

// Retain 只更新最新文档，不广播
func (c *Channel) Retain(data []byte) {
	c.enqueue(&outbound{kind: TypeLayoutUpdate, data: data, retain: true})
}

// Broadcast 广播非关键消息（THEME_UPDATE）
func (c *Channel) Broadcast(kind MessageType, data []byte) {
	c.enqueue(&outbound{kind: kind, data: data, broadcast: true})
}

// Refresh 通知所有预览端重新加载，它们需要重新发送 PREVIEW_READY
func (c *Channel) Refresh() {
	c.enqueue(&outbound{kind: TypeRefresh, data: EncodeSignal(TypeRefresh), reset: true})
}

func (c *Channel) enqueue(msg *outbound) {
	select {
	case c.outbound <- msg:
	case <-c.done:
	}
}

// Stop 停止通道并关闭所有预览端（阻塞到事件循环退出）
func (c *Channel) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	<-c.done
}

// EndpointCount 已接入的预览端数量
func (c *Channel) EndpointCount() int {
	c.countMu.RLock()
	defer c.countMu.RUnlock()
	return c.total
}

// ReadyCount 已就绪的预览端数量
func (c *Channel) ReadyCount() int {
	c.countMu.RLock()
	defer c.countMu.RUnlock()
	return c.readyTotal
}
