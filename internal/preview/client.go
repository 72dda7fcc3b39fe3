package preview

import (
	"log"
	"sync"
	"time"

	"storefront-builder/internal/metrics"

	"github.com/gorilla/websocket"
)

// 心跳配置
const (
	pongWait       = 60 * time.Second    // 等待 Pong 响应的最大时间
	pingPeriod     = (pongWait * 9) / 10 // Ping 发送间隔，必须小于 pongWait
	writeWait      = 10 * time.Second    // 写消息超时时间
	maxMessageSize = 64 * 1024           // 预览端只发 PREVIEW_READY，限制小一些
	sendBuffer     = 64
)

// 预览端模式：edit 为编辑器内的 iframe，live 为独立打开的预览窗口
const (
	ModeEdit = "edit"
	ModeLive = "live"
)

// ValidMode 模式参数是否合法
func ValidMode(mode string) bool {
	return mode == ModeEdit || mode == ModeLive
}

// Client 代表一个 WebSocket 预览端连接
type Client struct {
	Conn      *websocket.Conn
	SessionID string
	Mode      string
	Channel   *Channel    // 所属通道
	send      chan []byte // 发送消息缓冲区
	closeOnce sync.Once
}

// NewClient 创建预览端实例
func NewClient(conn *websocket.Conn, sessionID, mode string, ch *Channel) *Client {
	return &Client{
		Conn:      conn,
		SessionID: sessionID,
		Mode:      mode,
		Channel:   ch,
		send:      make(chan []byte, sendBuffer),
	}
}

// Deliver 非阻塞写入发送缓冲区（只由通道的 run 循环调用）
func (c *Client) Deliver(_ MessageType, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close 关闭发送缓冲区，WritePump 随后发送关闭帧并退出
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// WritePump 负责写消息和发送心跳 Ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				// send channel 已关闭，发送关闭帧
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// 定时发送 Ping 保活
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump 负责读 PREVIEW_READY 和处理心跳 Pong
func (c *Client) ReadPump() {
	metrics.SocketOpened(c.Mode)
	defer func() {
		c.Channel.Unregister(c)
		c.Conn.Close()
		metrics.SocketClosed(c.Mode)
		log.Printf("[Client %s] 👋 会话 %s 的预览端已断开", c.Mode, c.SessionID)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))

	// 收到 Pong 时重置读超时
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Client %s] 连接异常关闭: %v", c.Mode, err)
			}
			break
		}

		// 收到消息也重置读超时
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := Decode(message)
		if err != nil {
			log.Printf("[Client %s] ⚠️ 会话 %s 收到无法解析的消息，忽略", c.Mode, c.SessionID)
			continue
		}

		// 预览端 -> 编辑器只有 PREVIEW_READY，其他类型忽略
		if env.Type == TypePreviewReady {
			c.Channel.Ready(c)
		}
	}
}
