package selection

import (
	"storefront-builder/domain/entity"
	"storefront-builder/internal/layout"
)

// Kind 选中状态机的三种状态
type Kind string

const (
	Nothing         Kind = "none"
	SectionSelected Kind = "section"
	BlockSelected   Kind = "block"
)

// State 选中状态快照
// 不变量: BlockID 非空 => SectionID 非空，且子块属于该区块
type State struct {
	SectionID string `json:"selectedSectionId,omitempty"`
	BlockID   string `json:"selectedBlockId,omitempty"`
}

// Kind 返回当前状态
func (s State) Kind() Kind {
	switch {
	case s.BlockID != "":
		return BlockSelected
	case s.SectionID != "":
		return SectionSelected
	default:
		return Nothing
	}
}

// Controller 选中与焦点控制器
// 不做并发保护，由所属会话串行调用
type Controller struct {
	state State
}

// New 创建控制器，初始为未选中
func New() *Controller {
	return &Controller{}
}

// State 当前选中状态
func (c *Controller) State() State {
	return c.state
}

// SelectSection 选中区块并清空子块选中
// 区块不在文档中时保持原状态并返回 false
func (c *Controller) SelectSection(doc entity.Document, sectionID string) bool {
	if layout.IndexOf(doc, sectionID) < 0 {
		return false
	}
	c.state = State{SectionID: sectionID}
	return true
}

// SelectBlock 选中子块（隐式选中其所属区块）
// 子块不属于该区块当前的子块列表时返回 false
func (c *Controller) SelectBlock(doc entity.Document, sectionID, blockID string) bool {
	if !layout.HasBlock(doc, sectionID, blockID) {
		return false
	}
	c.state = State{SectionID: sectionID, BlockID: blockID}
	return true
}

// Deselect 回到未选中
func (c *Controller) Deselect() {
	c.state = State{}
}

// Reconcile 在每次文档变更后调用，清除指向已删除节点的选中
// 子块被删 -> 退回到区块选中；区块被删 -> 未选中
func (c *Controller) Reconcile(doc entity.Document) {
	if c.state.SectionID == "" {
		return
	}
	if layout.IndexOf(doc, c.state.SectionID) < 0 {
		c.state = State{}
		return
	}
	if c.state.BlockID != "" && !layout.HasBlock(doc, c.state.SectionID, c.state.BlockID) {
		c.state.BlockID = ""
	}
}
