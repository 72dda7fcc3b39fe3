package layout

import (
	"encoding/json"
	"fmt"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"

	"github.com/google/uuid"
)

// maxIDAttempts 注入的 ID 生成器连续撞号时的兜底次数
const maxIDAttempts = 32

// Factory 创建带新 ID 和默认数据的区块/子块
// NewID 默认使用 uuid v4（crypto/rand），测试中可注入顺序生成器
type Factory struct {
	NewID func() string
}

// NewFactory 创建默认工厂
func NewFactory() *Factory {
	return &Factory{NewID: uuid.NewString}
}

// freshID 生成一个不在 taken 中的 ID，并登记到 taken
func (f *Factory) freshID(taken map[string]struct{}) string {
	gen := f.NewID
	if gen == nil {
		gen = uuid.NewString
	}
	for i := 0; i < maxIDAttempts; i++ {
		id := gen()
		if _, dup := taken[id]; id != "" && !dup {
			taken[id] = struct{}{}
			return id
		}
	}
	// 注入的生成器不可用，回退到 uuid
	for {
		id := uuid.NewString()
		if _, dup := taken[id]; !dup {
			taken[id] = struct{}{}
			return id
		}
	}
}

// NewSection 按类型创建区块，blocks 为空数组
func (f *Factory) NewSection(t entity.SectionType) (entity.Section, error) {
	return f.newSection(t, map[string]struct{}{})
}

func (f *Factory) newSection(t entity.SectionType, taken map[string]struct{}) (entity.Section, error) {
	def, ok := SectionDefaults[t]
	if !ok {
		return entity.Section{}, fmt.Errorf("%w: %q", domainErrors.ErrUnknownSectionType, t)
	}
	return entity.Section{
		ID:       f.freshID(taken),
		Type:     t,
		Data:     cloneRaw(def.Data),
		Settings: cloneSettings(def.Settings),
		Blocks:   []entity.Block{},
	}, nil
}

// NewBlock 按类型创建子块
func (f *Factory) NewBlock(t entity.BlockType) (entity.Block, error) {
	return f.newBlock(t, map[string]struct{}{})
}

func (f *Factory) newBlock(t entity.BlockType, taken map[string]struct{}) (entity.Block, error) {
	data, ok := BlockDefaults[t]
	if !ok {
		return entity.Block{}, fmt.Errorf("%w: %q", domainErrors.ErrUnknownBlockType, t)
	}
	return entity.Block{
		ID:   f.freshID(taken),
		Type: t,
		Data: cloneRaw(data),
	}, nil
}

// reidentify 深拷贝区块并为其和所有子块分配新 ID
func (f *Factory) reidentify(s entity.Section, taken map[string]struct{}) entity.Section {
	out := cloneSection(s)
	out.ID = f.freshID(taken)
	for i := range out.Blocks {
		out.Blocks[i].ID = f.freshID(taken)
	}
	return out
}

// ========== 深拷贝工具 ==========

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneSettings(s entity.SectionSettings) entity.SectionSettings {
	if s.OverlayOpacity != nil {
		v := *s.OverlayOpacity
		s.OverlayOpacity = &v
	}
	return s
}

func cloneBlock(b entity.Block) entity.Block {
	b.Data = cloneRaw(b.Data)
	return b
}

func cloneSection(s entity.Section) entity.Section {
	out := s
	out.Data = cloneRaw(s.Data)
	out.Settings = cloneSettings(s.Settings)
	out.Blocks = make([]entity.Block, len(s.Blocks))
	for i, b := range s.Blocks {
		out.Blocks[i] = cloneBlock(b)
	}
	return out
}

// Clone 深拷贝整个文档
func Clone(doc entity.Document) entity.Document {
	out := make(entity.Document, len(doc))
	for i, s := range doc {
		out[i] = cloneSection(s)
	}
	return out
}

// collectIDs 收集文档中所有已占用的 ID（区块 + 子块）
func collectIDs(doc entity.Document) map[string]struct{} {
	taken := make(map[string]struct{}, len(doc)*2)
	for _, s := range doc {
		taken[s.ID] = struct{}{}
		for _, b := range s.Blocks {
			taken[b.ID] = struct{}{}
		}
	}
	return taken
}
