package usecase

import (
	"errors"
	"log"
	"strings"
	"time"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	"storefront-builder/domain/repository"
	"storefront-builder/internal/editor"
	"storefront-builder/internal/layout"
	"storefront-builder/internal/metrics"
	"storefront-builder/internal/render"
	"storefront-builder/internal/templates"

	"github.com/google/uuid"
)

// BuilderUseCase 编辑会话与持久层之间的编排
// 内存中的会话是编辑期间的 source of truth，数据库只在打开/切换/保存/发布时参与
type BuilderUseCase struct {
	gateway   repository.PageGateway
	hub       *editor.Hub
	templates *templates.Library
	registry  *render.Registry
	factory   *layout.Factory
	debounce  time.Duration
}

// Options 可选依赖，零值使用默认实现
type Options struct {
	Debounce time.Duration
	Factory  *layout.Factory
	Registry *render.Registry
}

// NewBuilderUseCase 构造函数，依赖注入
func NewBuilderUseCase(gateway repository.PageGateway, hub *editor.Hub, lib *templates.Library, opts Options) *BuilderUseCase {
	if opts.Factory == nil {
		opts.Factory = layout.NewFactory()
	}
	if opts.Registry == nil {
		opts.Registry = render.NewRegistry()
	}
	return &BuilderUseCase{
		gateway:   gateway,
		hub:       hub,
		templates: lib,
		registry:  opts.Registry,
		factory:   opts.Factory,
		debounce:  opts.Debounce,
	}
}

func validSiteKey(siteKey string) bool {
	return siteKey != "" && !strings.Contains(siteKey, "/")
}

// OpenSession 为站点创建编辑会话
// 首页草稿不存在时从空文档开始
func (uc *BuilderUseCase) OpenSession(siteKey, operatorID string) (*editor.Session, error) {
	if !validSiteKey(siteKey) {
		return nil, domainErrors.ErrInvalidPageKey
	}

	infos, err := uc.gateway.ListPages(siteKey)
	metrics.RecordPersistence("list", err)
	if err != nil {
		return nil, &domainErrors.PersistenceError{Op: "list", PageKey: siteKey, Err: err}
	}
	pages := make([]entity.PageRef, 0, len(infos))
	for _, p := range infos {
		pages = append(pages, entity.PageRef{Key: p.Key, Name: p.Name})
	}

	home := entity.HomePageKey(siteKey)
	doc := entity.Document{}
	var theme *entity.ThemeTokens
	draft, err := uc.gateway.LoadDraft(home)
	switch {
	case err == nil:
		doc, theme = draft.Layout, draft.Theme
	case errors.Is(err, domainErrors.ErrPageNotFound):
		// 新站点
	default:
		metrics.RecordPersistence("load", err)
		return nil, &domainErrors.PersistenceError{Op: "load", PageKey: home, Err: err}
	}
	metrics.RecordPersistence("load", nil)

	s := editor.NewSession(editor.Config{
		ID:         uuid.NewString(),
		SiteKey:    siteKey,
		OperatorID: operatorID,
		Pages:      pages,
		ActivePage: home,
		Layout:     doc,
		Theme:      theme,
		Debounce:   uc.debounce,
		Factory:    uc.factory,
		Registry:   uc.registry,
	})
	uc.hub.Add(s)
	return s, nil
}

// Session 获取会话并校验归属
// 会话没有记录操作员（未启用鉴权）时不校验
func (uc *BuilderUseCase) Session(sessionID, operatorID string) (*editor.Session, error) {
	s, err := uc.hub.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.OperatorID != "" && s.OperatorID != operatorID {
		return nil, domainErrors.ErrUnauthorized
	}
	return s, nil
}

// SwitchPage 切换当前编辑页面，首次访问时从持久层加载草稿
func (uc *BuilderUseCase) SwitchPage(s *editor.Session, pageKey string) error {
	if !s.HasLayout(pageKey) {
		siteKey, _, ok := entity.SplitPageKey(pageKey)
		if !ok || siteKey != s.SiteKey {
			return domainErrors.ErrInvalidPageKey
		}
		draft, err := uc.gateway.LoadDraft(pageKey)
		if err != nil && !errors.Is(err, domainErrors.ErrPageNotFound) {
			metrics.RecordPersistence("load", err)
			return &domainErrors.PersistenceError{Op: "load", PageKey: pageKey, Err: err}
		}
		metrics.RecordPersistence("load", nil)
		if err != nil {
			return err
		}
		s.InstallLayout(pageKey, draft.Layout)
	}
	return s.SwitchPage(pageKey)
}

// SaveDraft 把当前页面写入草稿槽位
// 失败时会话状态不变，操作员可以重试
func (uc *BuilderUseCase) SaveDraft(s *editor.Session) (editor.Snapshot, error) {
	snap := s.Snapshot()
	if err := uc.saveSnapshot(snap); err != nil {
		return snap, err
	}
	s.MarkSaved(snap)
	log.Printf("[Session %s] 💾 草稿已保存: %s (rev %d)", s.ID, snap.PageKey, snap.Revision)
	return snap, nil
}

func (uc *BuilderUseCase) saveSnapshot(snap editor.Snapshot) error {
	err := uc.gateway.SaveDraft(snap.PageKey, snap.Layout, &snap.Theme)
	metrics.RecordPersistence("save", err)
	if err != nil {
		log.Printf("[Session] ❌ 保存 %s 失败: %v", snap.PageKey, err)
		return &domainErrors.PersistenceError{Op: "save", PageKey: snap.PageKey, Err: err}
	}
	return nil
}

// Publish 先保存草稿，再把同一份文档和主题复制到发布槽位
func (uc *BuilderUseCase) Publish(s *editor.Session) (editor.Snapshot, error) {
	snap := s.Snapshot()
	if err := uc.saveSnapshot(snap); err != nil {
		return snap, err
	}
	s.MarkSaved(snap)

	err := uc.gateway.Publish(snap.PageKey, snap.Layout, &snap.Theme)
	metrics.RecordPersistence("publish", err)
	if err != nil {
		log.Printf("[Session %s] ❌ 发布 %s 失败: %v", s.ID, snap.PageKey, err)
		return snap, &domainErrors.PersistenceError{Op: "publish", PageKey: snap.PageKey, Err: err}
	}
	log.Printf("[Session %s] 🌐 已发布: %s", s.ID, snap.PageKey)
	return snap, nil
}

// ListPages 列出站点下的持久化页面
func (uc *BuilderUseCase) ListPages(siteKey string) ([]entity.PageInfo, error) {
	if !validSiteKey(siteKey) {
		return nil, domainErrors.ErrInvalidPageKey
	}
	pages, err := uc.gateway.ListPages(siteKey)
	metrics.RecordPersistence("list", err)
	if err != nil {
		return nil, &domainErrors.PersistenceError{Op: "list", PageKey: siteKey, Err: err}
	}
	return pages, nil
}

// RenderPublished 面向终端用户渲染已发布页面，隐藏区块不输出
func (uc *BuilderUseCase) RenderPublished(siteKey, slug string) (render.Output, error) {
	if !validSiteKey(siteKey) {
		return render.Output{}, domainErrors.ErrInvalidPageKey
	}
	slug = strings.Trim(slug, "/")
	if slug == "" {
		slug = entity.HomeSlug
	}
	pageKey := entity.PageKey(siteKey, slug)

	page, err := uc.gateway.LoadPublished(pageKey)
	if errors.Is(err, domainErrors.ErrPageNotFound) {
		return render.Output{}, err
	}
	metrics.RecordPersistence("load", err)
	if err != nil {
		return render.Output{}, &domainErrors.PersistenceError{Op: "load", PageKey: pageKey, Err: err}
	}
	return uc.registry.Page(page.Layout, page.Theme, render.Options{EditMode: false}), nil
}

// ApplyNamedTemplate 用模板库中的模板替换当前页面
func (uc *BuilderUseCase) ApplyNamedTemplate(s *editor.Session, key string) error {
	tpl, err := uc.templates.Get(key)
	if err != nil {
		return err
	}
	s.ApplyTemplate(tpl.Sections)
	log.Printf("[Session %s] 📄 已应用模板: %s", s.ID, key)
	return nil
}

// Templates 模板摘要列表
func (uc *BuilderUseCase) Templates() []templates.Summary {
	return uc.templates.List()
}

// CloseSession 关闭会话，断开所有预览端
func (uc *BuilderUseCase) CloseSession(sessionID string) error {
	return uc.hub.Close(sessionID)
}
