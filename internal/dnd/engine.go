package dnd

import (
	"storefront-builder/domain/entity"
	"storefront-builder/internal/layout"
)

// Kind 被拖拽节点的类别（start 时通过成员关系判断）
type Kind string

const (
	KindUnknown Kind = "unknown"
	KindSection Kind = "section"
	KindBlock   Kind = "block"
)

// Scope 一次拖拽最终提交的变更作用域
type Scope string

const (
	ScopeNone     Scope = "none"
	ScopeSections Scope = "sections"
	ScopeBlocks   Scope = "blocks"
)

// Commit 拖拽结束时的提交结果，每次完整拖拽至多一次
type Commit struct {
	Scope     Scope  `json:"scope"`
	SectionID string `json:"sectionId,omitempty"` // ScopeBlocks 时所在的区块
	ActiveID  string `json:"activeId,omitempty"`
	OverID    string `json:"overId,omitempty"`
}

// Committed 是否产生了变更
func (c Commit) Committed() bool {
	return c.Scope != ScopeNone
}

// Engine 拖拽重排引擎
// 不做并发保护，由所属会话串行调用
type Engine struct {
	activeID string
	kind     Kind
	overID   string
	dragging bool
}

// New 创建引擎
func New() *Engine {
	return &Engine{kind: KindUnknown}
}

// Start 开始拖拽，记录被拖拽的 ID 并判断其类别
func (e *Engine) Start(doc entity.Document, selectedSectionID, activeID string) Kind {
	e.activeID = activeID
	e.overID = ""
	e.dragging = true

	switch {
	case layout.IndexOf(doc, activeID) >= 0:
		e.kind = KindSection
	case selectedSectionID != "" && layout.HasBlock(doc, selectedSectionID, activeID):
		e.kind = KindBlock
	default:
		e.kind = KindUnknown
	}
	return e.kind
}

// Over 拖拽经过目标，只做视觉反馈，不修改文档
func (e *Engine) Over(overID string) {
	if e.dragging {
		e.overID = overID
	}
}

// Active 当前拖拽状态
func (e *Engine) Active() (activeID string, kind Kind, overID string, dragging bool) {
	return e.activeID, e.kind, e.overID, e.dragging
}

// Cancel 取消拖拽，不提交任何变更
func (e *Engine) Cancel() {
	*e = Engine{kind: KindUnknown}
}

// End 结束拖拽并决定提交：
//  1. 两个 ID 都在顶层区块列表中且不同 -> 重排区块
//  2. 否则若有选中区块，且两个 ID 都在其子块列表中且不同 -> 重排子块
//  3. 否则丢弃（目标已消失，或跨作用域/跨区块拖拽）
func (e *Engine) End(doc entity.Document, selectedSectionID, overID string) (entity.Document, Commit) {
	activeID, dragging := e.activeID, e.dragging
	e.Cancel()

	none := Commit{Scope: ScopeNone, ActiveID: activeID, OverID: overID}
	if !dragging || activeID == "" || overID == "" || activeID == overID {
		return doc, none
	}

	sectionIDs := layout.SectionIDs(doc)
	if contains(sectionIDs, activeID) && contains(sectionIDs, overID) {
		return layout.ReorderSections(doc, activeID, overID), Commit{
			Scope:    ScopeSections,
			ActiveID: activeID,
			OverID:   overID,
		}
	}

	if selectedSectionID != "" {
		blockIDs := layout.BlockIDs(doc, selectedSectionID)
		if contains(blockIDs, activeID) && contains(blockIDs, overID) {
			return layout.ReorderBlocks(doc, selectedSectionID, activeID, overID), Commit{
				Scope:     ScopeBlocks,
				SectionID: selectedSectionID,
				ActiveID:  activeID,
				OverID:    overID,
			}
		}
	}

	return doc, none
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
