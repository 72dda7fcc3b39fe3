package layout

import (
	"encoding/json"
	"fmt"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
)

// ========== 子块操作 ==========
// 与区块操作对称，但作用域限定在单个区块的子块列表内，通过 (sectionID, blockID) 定位

// BlockUpdate 子块更新内容，nil 字段表示不修改
type BlockUpdate struct {
	Data     json.RawMessage       `json:"data,omitempty"`
	Settings *entity.BlockSettings `json:"settings,omitempty"`
}

// AddBlock 向区块末尾追加子块
// 区块不存在时静默返回原文档；类型不在枚举内或不被该区块接受时返回错误
func (f *Factory) AddBlock(doc entity.Document, sectionID string, t entity.BlockType) (entity.Document, string, error) {
	i := IndexOf(doc, sectionID)
	if i < 0 {
		return doc, "", nil
	}
	if !IsKnownBlock(t) {
		return doc, "", fmt.Errorf("%w: %q", domainErrors.ErrUnknownBlockType, t)
	}
	if !AllowsBlock(doc[i].Type, t) {
		return doc, "", fmt.Errorf("%w: %q in %q", domainErrors.ErrBlockNotAllowed, t, doc[i].Type)
	}

	block, err := f.newBlock(t, collectIDs(doc))
	if err != nil {
		return doc, "", err
	}
	out := Clone(doc)
	out[i].Blocks = append(out[i].Blocks, block)
	return out, block.ID, nil
}

// DeleteBlock 删除子块
func DeleteBlock(doc entity.Document, sectionID, blockID string) entity.Document {
	return mapBlock(doc, sectionID, blockID, func(s *entity.Section, j int) {
		s.Blocks = append(s.Blocks[:j:j], s.Blocks[j+1:]...)
	})
}

// DuplicateBlock 复制子块并插入到原子块之后，返回副本 ID
func (f *Factory) DuplicateBlock(doc entity.Document, sectionID, blockID string) (entity.Document, string) {
	if !HasBlock(doc, sectionID, blockID) {
		return doc, ""
	}
	taken := collectIDs(doc)
	var dupID string
	out := mapBlock(doc, sectionID, blockID, func(s *entity.Section, j int) {
		dup := cloneBlock(s.Blocks[j])
		dup.ID = f.freshID(taken)
		dupID = dup.ID

		blocks := make([]entity.Block, 0, len(s.Blocks)+1)
		blocks = append(blocks, s.Blocks[:j+1]...)
		blocks = append(blocks, dup)
		blocks = append(blocks, s.Blocks[j+1:]...)
		s.Blocks = blocks
	})
	return out, dupID
}

// ReorderBlocks 在区块内部把 fromID 移动到 toID 所在位置
func ReorderBlocks(doc entity.Document, sectionID, fromID, toID string) entity.Document {
	ids := BlockIDs(doc, sectionID)
	from, to := indexOfString(ids, fromID), indexOfString(ids, toID)
	if from < 0 || to < 0 || from == to {
		return doc
	}
	return mapSection(doc, sectionID, func(s *entity.Section) {
		s.Blocks = arrayMove(s.Blocks, from, to)
	})
}

// UpdateBlock 替换子块的 data 和/或 settings
func UpdateBlock(doc entity.Document, sectionID, blockID string, update BlockUpdate) entity.Document {
	return mapBlock(doc, sectionID, blockID, func(s *entity.Section, j int) {
		if update.Data != nil {
			s.Blocks[j].Data = cloneRaw(update.Data)
		}
		if update.Settings != nil {
			s.Blocks[j].Settings = *update.Settings
		}
	})
}

// mapBlock 复制文档并对目标子块执行 fn，目标不存在返回原文档
func mapBlock(doc entity.Document, sectionID, blockID string, fn func(s *entity.Section, j int)) entity.Document {
	i := IndexOf(doc, sectionID)
	if i < 0 {
		return doc
	}
	j := -1
	for k, b := range doc[i].Blocks {
		if b.ID == blockID {
			j = k
			break
		}
	}
	if j < 0 {
		return doc
	}
	out := Clone(doc)
	fn(&out[i], j)
	return out
}
