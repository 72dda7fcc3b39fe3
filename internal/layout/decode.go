package layout

import (
	"bytes"
	"encoding/json"
	"fmt"

	"storefront-builder/domain/entity"
)

// DecodeError 存储内容既不是数组也不是旧版包装对象
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "layout decode: " + e.Reason
}

// legacyWrapper 旧版文档格式 {"sections": [...]}
type legacyWrapper struct {
	Sections []entity.Section `json:"sections"`
	Layout   []entity.Section `json:"layout"`
}

// Decode 解析持久化的布局文档，并对旧数据做防御性升级：
//   - 空内容 / null 视为空文档
//   - 支持裸数组和 {"sections": [...]} 两种格式
//   - 缺失的 blocks / data 补默认值
//   - 缺失或重复的 ID 重新分配
func Decode(raw []byte, f *Factory) (entity.Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return entity.Document{}, nil
	}

	var sections []entity.Section
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &sections); err != nil {
			return nil, &DecodeError{Reason: err.Error()}
		}
	case '{':
		var wrapper legacyWrapper
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, &DecodeError{Reason: err.Error()}
		}
		sections = wrapper.Sections
		if sections == nil {
			sections = wrapper.Layout
		}
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unexpected leading byte %q", raw[0])}
	}

	return Normalize(sections, f), nil
}

// Normalize 补齐缺省字段并保证 ID 唯一
// 已有且不冲突的 ID 保持不变
func Normalize(sections []entity.Section, f *Factory) entity.Document {
	taken := make(map[string]struct{}, len(sections)*2)
	for _, s := range sections {
		if s.ID != "" {
			taken[s.ID] = struct{}{}
		}
		for _, b := range s.Blocks {
			if b.ID != "" {
				taken[b.ID] = struct{}{}
			}
		}
	}

	seenSections := make(map[string]bool, len(sections))
	out := make(entity.Document, len(sections))
	for i, s := range sections {
		s = cloneSection(s)
		if s.ID == "" || seenSections[s.ID] {
			s.ID = f.freshID(taken)
		}
		seenSections[s.ID] = true

		seenBlocks := make(map[string]bool, len(s.Blocks))
		for j := range s.Blocks {
			b := &s.Blocks[j]
			if b.ID == "" || seenBlocks[b.ID] || b.ID == s.ID {
				b.ID = f.freshID(taken)
			}
			seenBlocks[b.ID] = true
		}
		out[i] = s
	}
	return out
}

// Encode 序列化文档，nil 文档输出 []
func Encode(doc entity.Document) ([]byte, error) {
	if doc == nil {
		doc = entity.Document{}
	}
	return json.Marshal(doc)
}
