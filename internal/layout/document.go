package layout

import (
	"encoding/json"

	"storefront-builder/domain/entity"
)

// ========== 布局文档纯函数操作 ==========
// 所有操作都返回新文档，不修改入参
// 目标 ID 不存在时静默返回原文档（最常见原因是前一个操作已把它删掉）

// IndexOf 返回区块下标，不存在返回 -1
func IndexOf(doc entity.Document, id string) int {
	for i, s := range doc {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// FindSection 查找区块
func FindSection(doc entity.Document, id string) (entity.Section, bool) {
	if i := IndexOf(doc, id); i >= 0 {
		return doc[i], true
	}
	return entity.Section{}, false
}

// SectionIDs 顶层区块 ID 列表（有序）
func SectionIDs(doc entity.Document) []string {
	ids := make([]string, len(doc))
	for i, s := range doc {
		ids[i] = s.ID
	}
	return ids
}

// BlockIDs 某个区块的子块 ID 列表（有序），区块不存在返回 nil
func BlockIDs(doc entity.Document, sectionID string) []string {
	s, ok := FindSection(doc, sectionID)
	if !ok {
		return nil
	}
	ids := make([]string, len(s.Blocks))
	for i, b := range s.Blocks {
		ids[i] = b.ID
	}
	return ids
}

// HasBlock 判断子块是否属于该区块
func HasBlock(doc entity.Document, sectionID, blockID string) bool {
	return indexOfString(BlockIDs(doc, sectionID), blockID) >= 0
}

// AddSection 追加新区块到末尾，返回新文档和新区块 ID
func (f *Factory) AddSection(doc entity.Document, t entity.SectionType) (entity.Document, string, error) {
	section, err := f.newSection(t, collectIDs(doc))
	if err != nil {
		return doc, "", err
	}
	out := Clone(doc)
	out = append(out, section)
	return out, section.ID, nil
}

// DeleteSection 删除区块
func DeleteSection(doc entity.Document, id string) entity.Document {
	i := IndexOf(doc, id)
	if i < 0 {
		return doc
	}
	out := make(entity.Document, 0, len(doc)-1)
	for j, s := range doc {
		if j != i {
			out = append(out, cloneSection(s))
		}
	}
	return out
}

// DuplicateSection 深拷贝区块（含全部子块）并插入到原区块之后
// 副本及其所有子块都分配新 ID，返回副本 ID；原区块不存在返回 ""
func (f *Factory) DuplicateSection(doc entity.Document, id string) (entity.Document, string) {
	i := IndexOf(doc, id)
	if i < 0 {
		return doc, ""
	}
	dup := f.reidentify(doc[i], collectIDs(doc))

	out := make(entity.Document, 0, len(doc)+1)
	for j, s := range doc {
		out = append(out, cloneSection(s))
		if j == i {
			out = append(out, dup)
		}
	}
	return out, dup.ID
}

// ReorderSections 把 fromID 移动到 toID 所在位置，其余区块相对顺序不变
func ReorderSections(doc entity.Document, fromID, toID string) entity.Document {
	from, to := IndexOf(doc, fromID), IndexOf(doc, toID)
	if from < 0 || to < 0 || from == to {
		return doc
	}
	return entity.Document(arrayMove(Clone(doc), from, to))
}

// ToggleVisibility 翻转 settings.isHidden
func ToggleVisibility(doc entity.Document, id string) entity.Document {
	return mapSection(doc, id, func(s *entity.Section) {
		s.Settings.IsHidden = !s.Settings.IsHidden
	})
}

// UpdateSectionSettings 整体替换 settings
func UpdateSectionSettings(doc entity.Document, id string, settings entity.SectionSettings) entity.Document {
	return mapSection(doc, id, func(s *entity.Section) {
		s.Settings = cloneSettings(settings)
	})
}

// UpdateSectionData 整体替换 data
func UpdateSectionData(doc entity.Document, id string, data json.RawMessage) entity.Document {
	return mapSection(doc, id, func(s *entity.Section) {
		s.Data = cloneRaw(data)
	})
}

// ApplyTemplate 用模板整体替换文档
// 模板中的所有区块和子块都重新分配 ID，避免外部 ID 进入当前文档
func (f *Factory) ApplyTemplate(sections []entity.Section) entity.Document {
	taken := make(map[string]struct{}, len(sections)*2)
	out := make(entity.Document, len(sections))
	for i, s := range sections {
		if s.Blocks == nil {
			s.Blocks = []entity.Block{}
		}
		out[i] = f.reidentify(s, taken)
	}
	return out
}

// mapSection 复制文档并对目标区块执行 fn，目标不存在返回原文档
func mapSection(doc entity.Document, id string, fn func(s *entity.Section)) entity.Document {
	i := IndexOf(doc, id)
	if i < 0 {
		return doc
	}
	out := Clone(doc)
	fn(&out[i])
	return out
}

// arrayMove 从 from 取出元素后插入到 to 位置
func arrayMove[T any](items []T, from, to int) []T {
	item := items[from]
	rest := append(items[:from:from], items[from+1:]...)

	out := make([]T, 0, len(items))
	out = append(out, rest[:to]...)
	out = append(out, item)
	out = append(out, rest[to:]...)
	return out
}

func indexOfString(items []string, target string) int {
	for i, s := range items {
		if s == target {
			return i
		}
	}
	return -1
}
