package editor

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	"storefront-builder/internal/dnd"
	"storefront-builder/internal/layout"
	"storefront-builder/internal/preview"
	"storefront-builder/internal/render"
	"storefront-builder/internal/selection"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// PatchError RFC 6902 patch 解析或应用失败
type PatchError struct {
	Reason string
}

func (e *PatchError) Error() string {
	return e.Reason
}

// Config 创建会话所需的初始状态
type Config struct {
	ID         string
	SiteKey    string
	OperatorID string
	Pages      []entity.PageRef
	ActivePage string          // 为空时使用站点首页
	Layout     entity.Document // ActivePage 的初始文档
	Theme      *entity.ThemeTokens
	Debounce   time.Duration
	Factory    *layout.Factory
	Registry   *render.Registry
}

// Session 一个操作员的编辑会话
// 所有状态由 mu 保护，每个操作相对其他操作是原子的
// 预览推送在释放 mu 之后调度（Syncer 的快照会重新加锁）
type Session struct {
	ID         string
	SiteKey    string
	OperatorID string
	CreatedAt  time.Time

	mu        sync.Mutex
	factory   *layout.Factory
	pages     []entity.PageRef
	active    string
	layouts   map[string]entity.Document // 已加载页面，切换页面时保留
	dirty     map[string]bool            // 有未保存变更的页面
	theme     entity.ThemeTokens
	revision  int64
	selection *selection.Controller
	drag      *dnd.Engine

	channel *preview.Channel
	syncer  *preview.Syncer
	mirror  *preview.Surface
}

// NewSession 创建会话、预览通道和服务端镜像渲染端
func NewSession(cfg Config) *Session {
	if cfg.Factory == nil {
		cfg.Factory = layout.NewFactory()
	}
	if cfg.Registry == nil {
		cfg.Registry = render.NewRegistry()
	}
	active := cfg.ActivePage
	if active == "" {
		active = entity.HomePageKey(cfg.SiteKey)
	}
	doc := cfg.Layout
	if doc == nil {
		doc = entity.Document{}
	}
	theme := entity.DefaultTheme()
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}

	s := &Session{
		ID:         cfg.ID,
		SiteKey:    cfg.SiteKey,
		OperatorID: cfg.OperatorID,
		CreatedAt:  time.Now(),
		factory:    cfg.Factory,
		pages:      ensurePage(cfg.Pages, entity.PageRef{Key: active, Name: defaultPageName(active)}),
		active:     active,
		layouts:    map[string]entity.Document{active: layout.Clone(doc)},
		dirty:      map[string]bool{},
		theme:      theme,
		selection:  selection.New(),
		drag:       dnd.New(),
	}

	s.channel = preview.NewChannel(s.ID)
	s.syncer = preview.NewSyncer(s.channel, cfg.Debounce, s.snapshot)
	s.syncer.Prime()

	s.mirror = preview.NewSurface(cfg.Registry, render.Options{EditMode: true})
	s.mirror.Attach(s.channel)

	log.Printf("[Session %s] 🚀 已创建，站点: %s，页面: %s", s.ID, s.SiteKey, s.active)
	return s
}

func ensurePage(pages []entity.PageRef, ref entity.PageRef) []entity.PageRef {
	out := append([]entity.PageRef(nil), pages...)
	for _, p := range out {
		if p.Key == ref.Key {
			return out
		}
	}
	return append([]entity.PageRef{ref}, out...)
}

func defaultPageName(pageKey string) string {
	_, slug, ok := entity.SplitPageKey(pageKey)
	if !ok || slug == entity.HomeSlug {
		return "Home"
	}
	return slug
}

// snapshot 供 Syncer 使用：当前页面文档和主题的独立副本
func (s *Session) snapshot() (entity.Document, entity.ThemeTokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layout.Clone(s.layouts[s.active]), s.theme
}

// Channel 预览同步通道，websocket 预览端接入这里
func (s *Session) Channel() *preview.Channel {
	return s.channel
}

// Preview 服务端镜像渲染端的最近一次输出（编辑模式，含隐藏区块）
func (s *Session) Preview() render.Output {
	return s.mirror.Output()
}

// Close 停止推送并断开所有预览端
func (s *Session) Close() {
	s.syncer.Stop()
	s.channel.Stop()
	log.Printf("[Session %s] 🛑 已关闭", s.ID)
}

// ========== 文档变更 ==========

// mutate 在锁内对当前页面执行一次纯变换，随后校正选中状态并调度推送
func (s *Session) mutate(fn func(doc entity.Document) (entity.Document, error)) error {
	s.mu.Lock()
	current := s.layouts[s.active]
	next, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if sameDocument(current, next) {
		s.mu.Unlock()
		return nil
	}
	s.layouts[s.active] = next
	s.selection.Reconcile(next)
	s.revision++
	s.dirty[s.active] = true
	s.mu.Unlock()

	s.syncer.ScheduleLayout()
	return nil
}

// sameDocument 纯操作在目标不存在时原样返回输入
func sameDocument(a, b entity.Document) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func (s *Session) AddSection(t entity.SectionType) (string, error) {
	var id string
	err := s.mutate(func(doc entity.Document) (entity.Document, error) {
		next, newID, err := s.factory.AddSection(doc, t)
		id = newID
		return next, err
	})
	return id, err
}

func (s *Session) DeleteSection(id string) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.DeleteSection(doc, id), nil
	})
}

func (s *Session) DuplicateSection(id string) string {
	var newID string
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		next, created := s.factory.DuplicateSection(doc, id)
		newID = created
		return next, nil
	})
	return newID
}

func (s *Session) ReorderSections(fromID, toID string) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.ReorderSections(doc, fromID, toID), nil
	})
}

func (s *Session) ToggleVisibility(id string) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.ToggleVisibility(doc, id), nil
	})
}

func (s *Session) UpdateSectionSettings(id string, settings entity.SectionSettings) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.UpdateSectionSettings(doc, id, settings), nil
	})
}

func (s *Session) UpdateSectionData(id string, data json.RawMessage) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.UpdateSectionData(doc, id, data), nil
	})
}

// PatchSectionData 对区块 data 应用 RFC 6902 patch，结果整体替换 data
// 区块不存在时为 no-op
func (s *Session) PatchSectionData(id string, patchBytes []byte) error {
	return s.mutate(func(doc entity.Document) (entity.Document, error) {
		section, ok := layout.FindSection(doc, id)
		if !ok {
			return doc, nil
		}

		patch, err := jsonpatch.DecodePatch(patchBytes)
		if err != nil {
			return nil, &PatchError{Reason: fmt.Sprintf("patch 解析失败: %v", err)}
		}

		current := []byte(section.Data)
		if len(current) == 0 || string(current) == "null" {
			current = []byte(`{}`)
		}
		modified, err := patch.Apply(current)
		if err != nil {
			return nil, &PatchError{Reason: fmt.Sprintf("patch 应用失败: %v", err)}
		}
		return layout.UpdateSectionData(doc, id, modified), nil
	})
}

func (s *Session) AddBlock(sectionID string, t entity.BlockType) (string, error) {
	var id string
	err := s.mutate(func(doc entity.Document) (entity.Document, error) {
		next, newID, err := s.factory.AddBlock(doc, sectionID, t)
		id = newID
		return next, err
	})
	return id, err
}

func (s *Session) DeleteBlock(sectionID, blockID string) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.DeleteBlock(doc, sectionID, blockID), nil
	})
}

func (s *Session) DuplicateBlock(sectionID, blockID string) string {
	var newID string
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		next, created := s.factory.DuplicateBlock(doc, sectionID, blockID)
		newID = created
		return next, nil
	})
	return newID
}

func (s *Session) ReorderBlocks(sectionID, fromID, toID string) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.ReorderBlocks(doc, sectionID, fromID, toID), nil
	})
}

func (s *Session) UpdateBlock(sectionID, blockID string, update layout.BlockUpdate) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		return layout.UpdateBlock(doc, sectionID, blockID, update), nil
	})
}

// ApplyTemplate 用模板整体替换当前页面，所有 ID 重新生成
func (s *Session) ApplyTemplate(sections []entity.Section) {
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		next := s.factory.ApplyTemplate(sections)
		if len(next) == 0 && len(doc) == 0 {
			return doc, nil
		}
		return next, nil
	})
}

// SetTheme 替换主题（整站共享，和文档分开推送）
func (s *Session) SetTheme(theme entity.ThemeTokens) {
	s.mu.Lock()
	if s.theme == theme {
		s.mu.Unlock()
		return
	}
	s.theme = theme
	s.revision++
	// 主题随每个页面草稿一起保存，所有已加载页面都需要重新保存
	for key := range s.layouts {
		s.dirty[key] = true
	}
	s.mu.Unlock()

	s.syncer.ScheduleTheme()
}

// ========== 选中 ==========

func (s *Session) SelectSection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.SelectSection(s.layouts[s.active], id)
}

func (s *Session) SelectBlock(sectionID, blockID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.SelectBlock(s.layouts[s.active], sectionID, blockID)
}

func (s *Session) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Deselect()
}

func (s *Session) Selection() selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.State()
}

// ========== 拖拽 ==========

// DragStart 开始拖拽，返回被拖拽节点的类别
func (s *Session) DragStart(activeID string) dnd.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Start(s.layouts[s.active], s.selection.State().SectionID, activeID)
}

// DragOver 只做视觉反馈，不修改文档
func (s *Session) DragOver(overID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Over(overID)
}

// DragEnd 结束拖拽，至多提交一次重排
func (s *Session) DragEnd(overID string) dnd.Commit {
	var commit dnd.Commit
	_ = s.mutate(func(doc entity.Document) (entity.Document, error) {
		next, c := s.drag.End(doc, s.selection.State().SectionID, overID)
		commit = c
		return next, nil
	})
	return commit
}

func (s *Session) DragCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
}

// ========== 多页面 ==========

// HasLayout 页面文档是否已在内存中
func (s *Session) HasLayout(pageKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.layouts[pageKey]
	return ok
}

// InstallLayout 放入从持久层加载的文档，已在内存中的页面不会被覆盖
func (s *Session) InstallLayout(pageKey string, doc entity.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.layouts[pageKey]; ok {
		return
	}
	if doc == nil {
		doc = entity.Document{}
	}
	s.layouts[pageKey] = layout.Clone(doc)
	s.pages = ensurePage(s.pages, entity.PageRef{Key: pageKey, Name: defaultPageName(pageKey)})
}

// AddPage 新建空白页面（不切换）
func (s *Session) AddPage(slug, name string) (entity.PageRef, error) {
	slug = strings.Trim(strings.TrimSpace(slug), "/")
	if slug == "" || strings.ContainsAny(slug, " \t/?#") {
		return entity.PageRef{}, domainErrors.ErrInvalidPageKey
	}
	key := entity.PageKey(s.SiteKey, slug)
	if name == "" {
		name = slug
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if p.Key == key {
			return entity.PageRef{}, domainErrors.ErrPageAlreadyExists
		}
	}
	ref := entity.PageRef{Key: key, Name: name}
	s.pages = append(s.pages, ref)
	s.layouts[key] = entity.Document{}
	s.dirty[key] = true
	return ref, nil
}

// SwitchPage 切换激活页面，页面文档需已在内存中
// 其他页面的文档保留，选中和拖拽状态清空
func (s *Session) SwitchPage(pageKey string) error {
	site, _, ok := entity.SplitPageKey(pageKey)
	if !ok || site != s.SiteKey {
		return domainErrors.ErrInvalidPageKey
	}

	s.mu.Lock()
	if _, loaded := s.layouts[pageKey]; !loaded {
		s.mu.Unlock()
		return domainErrors.ErrPageNotFound
	}
	if s.active == pageKey {
		s.mu.Unlock()
		return nil
	}
	s.active = pageKey
	s.selection.Deselect()
	s.drag.Cancel()
	s.mu.Unlock()

	log.Printf("[Session %s] 📄 切换到页面 %s", s.ID, pageKey)
	s.syncer.ScheduleLayout()
	return nil
}

// ActivePage 当前页面 key
func (s *Session) ActivePage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Refresh 通知所有预览端整页重新加载
func (s *Session) Refresh() {
	s.syncer.Refresh()
}

// ========== 快照与保存标记 ==========

// Snapshot 某个时刻某个页面的独立副本，用于保存/发布
type Snapshot struct {
	PageKey  string
	Layout   entity.Document
	Theme    entity.ThemeTokens
	Revision int64
}

// Snapshot 当前页面的快照
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		PageKey:  s.active,
		Layout:   layout.Clone(s.layouts[s.active]),
		Theme:    s.theme,
		Revision: s.revision,
	}
}

// MarkSaved 保存成功后清除未保存标记
// 保存期间又有新变更时保留标记
func (s *Session) MarkSaved(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revision == snap.Revision {
		delete(s.dirty, snap.PageKey)
	}
}

// State 会话状态视图（API 返回）
type State struct {
	ID         string             `json:"id"`
	SiteKey    string             `json:"siteKey"`
	OperatorID string             `json:"operatorId,omitempty"`
	Pages      []entity.PageRef   `json:"pages"`
	ActivePage string             `json:"activePage"`
	Layout     entity.Document    `json:"layout"`
	Theme      entity.ThemeTokens `json:"theme"`
	Selection  selection.State    `json:"selection"`
	Dragging   bool               `json:"dragging"`
	Revision   int64              `json:"revision"`
	Unsaved    bool               `json:"unsaved"`
	Surfaces   int                `json:"surfaces"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, _, dragging := s.drag.Active()
	return State{
		ID:         s.ID,
		SiteKey:    s.SiteKey,
		OperatorID: s.OperatorID,
		Pages:      append([]entity.PageRef(nil), s.pages...),
		ActivePage: s.active,
		Layout:     layout.Clone(s.layouts[s.active]),
		Theme:      s.theme,
		Selection:  s.selection.State(),
		Dragging:   dragging,
		Revision:   s.revision,
		Unsaved:    s.dirty[s.active],
		Surfaces:   s.channel.ReadyCount(),
	}
}
