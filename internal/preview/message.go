package preview

import (
	"encoding/json"

	"storefront-builder/domain/entity"
)

type MessageType string

const (
	// 编辑器 -> 预览端
	TypeLayoutUpdate MessageType = "LAYOUT_UPDATE" // 全量替换渲染文档（不是 diff）
	TypeThemeUpdate  MessageType = "THEME_UPDATE"  // 只替换主题变量
	TypeRefresh      MessageType = "REFRESH"       // 预览端整页重新加载

	// 预览端 -> 编辑器
	TypePreviewReady MessageType = "PREVIEW_READY" // 初次加载完成，可以接收 LAYOUT_UPDATE
)

// LayoutUpdate LAYOUT_UPDATE 消息 {type, layout, theme?}
// layout 总是输出数组，空文档为 []
type LayoutUpdate struct {
	Type   MessageType         `json:"type"`
	Layout entity.Document     `json:"layout"`
	Theme  *entity.ThemeTokens `json:"theme,omitempty"`
}

// ThemeUpdate THEME_UPDATE 消息 {type, theme}
type ThemeUpdate struct {
	Type  MessageType        `json:"type"`
	Theme entity.ThemeTokens `json:"theme"`
}

// Signal 无 payload 的消息: REFRESH / PREVIEW_READY
type Signal struct {
	Type MessageType `json:"type"`
}

// Envelope 接收端统一解码结构，未知 type 由调用方忽略
type Envelope struct {
	Type   MessageType         `json:"type"`
	Layout json.RawMessage     `json:"layout,omitempty"`
	Theme  *entity.ThemeTokens `json:"theme,omitempty"`
}

// EncodeLayoutUpdate 编码 LAYOUT_UPDATE
func EncodeLayoutUpdate(layout entity.Document, theme *entity.ThemeTokens) ([]byte, error) {
	if layout == nil {
		layout = entity.Document{}
	}
	return json.Marshal(LayoutUpdate{Type: TypeLayoutUpdate, Layout: layout, Theme: theme})
}

// EncodeThemeUpdate 编码 THEME_UPDATE
func EncodeThemeUpdate(theme entity.ThemeTokens) ([]byte, error) {
	return json.Marshal(ThemeUpdate{Type: TypeThemeUpdate, Theme: theme})
}

// EncodeSignal 编码无 payload 消息
func EncodeSignal(t MessageType) []byte {
	data, _ := json.Marshal(Signal{Type: t})
	return data
}

// Decode 解码任意方向的消息
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
