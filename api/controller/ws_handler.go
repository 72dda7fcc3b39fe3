package controller

import (
	"log"
	"net/http"

	"storefront-builder/internal/editor"
	"storefront-builder/internal/preview"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler 预览端 WebSocket 连接处理器
type WSHandler struct {
	hub      *editor.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler 构造函数
// 预览 iframe 可能来自任意编辑器宿主，不校验 Origin；会话 ID 本身就是访问凭据
func NewWSHandler(hub *editor.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandlePreview 处理预览端升级请求
// GET /ws/preview?sessionId=xxx&mode=edit|live
// 连接建立后预览端需发送 PREVIEW_READY 才会收到文档
func (h *WSHandler) HandlePreview(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "sessionId 不能为空"})
		return
	}
	mode := c.DefaultQuery("mode", preview.ModeEdit)
	if !preview.ValidMode(mode) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "mode 只能是 edit 或 live"})
		return
	}

	s, err := h.hub.Get(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] ❌ 升级 WebSocket 失败: %v", err)
		return
	}

	client := preview.NewClient(conn, sessionID, mode, s.Channel())
	s.Channel().Register(client)
	log.Printf("[WS] ✅ 预览端 (%s) 连接到会话 [%s]", mode, sessionID)

	go client.WritePump()
	go client.ReadPump()
}
