package repository

import (
	"encoding/json"
	"errors"
	"time"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	domainRepo "storefront-builder/domain/repository"
	"storefront-builder/internal/layout"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// pageGateway GORM 实现 PageGateway 接口（postgres / mysql）
// 草稿和发布快照存在同一行的两个 JSON 列里，互不影响
type pageGateway struct {
	db      *gorm.DB
	factory *layout.Factory
}

// NewPageGateway 构造函数
func NewPageGateway(db *gorm.DB) domainRepo.PageGateway {
	return &pageGateway{db: db, factory: layout.NewFactory()}
}

// getByPageKey 根据页面 key 查询，不存在返回 (nil, nil)
func (r *pageGateway) getByPageKey(db *gorm.DB, pageKey string) (*entity.Page, error) {
	var page entity.Page
	err := db.Where("page_key = ?", pageKey).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// LoadDraft 读取草稿，旧格式文档在这里升级
func (r *pageGateway) LoadDraft(pageKey string) (*entity.PageDraft, error) {
	page, err := r.getByPageKey(r.db, pageKey)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, domainErrors.ErrPageNotFound
	}
	return r.toDraft(pageKey, page.Draft, page.Theme)
}

// LoadPublished 读取发布快照
func (r *pageGateway) LoadPublished(pageKey string) (*entity.PageDraft, error) {
	page, err := r.getByPageKey(r.db, pageKey)
	if err != nil {
		return nil, err
	}
	if page == nil || !page.IsPublished {
		return nil, domainErrors.ErrPageNotFound
	}
	return r.toDraft(pageKey, page.Published, page.PublishedTheme)
}

func (r *pageGateway) toDraft(pageKey string, layoutJSON, themeJSON datatypes.JSON) (*entity.PageDraft, error) {
	doc, err := layout.Decode(layoutJSON, r.factory)
	if err != nil {
		return nil, err
	}
	theme, err := decodeTheme(themeJSON)
	if err != nil {
		return nil, err
	}
	return &entity.PageDraft{Key: pageKey, Layout: doc, Theme: theme}, nil
}

// SaveDraft 写入草稿，页面不存在则创建
// 不做乐观锁：最后写入者胜出，version 只用于观察
func (r *pageGateway) SaveDraft(pageKey string, doc entity.Document, theme *entity.ThemeTokens) error {
	siteKey, slug, ok := entity.SplitPageKey(pageKey)
	if !ok {
		return domainErrors.ErrInvalidPageKey
	}
	draft, err := layout.Encode(doc)
	if err != nil {
		return err
	}
	themeJSON, err := encodeTheme(theme)
	if err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		page, err := r.getByPageKey(tx, pageKey)
		if err != nil {
			return err
		}
		if page == nil {
			return tx.Create(&entity.Page{
				SiteKey: siteKey,
				PageKey: pageKey,
				Name:    pageName(slug),
				Draft:   datatypes.JSON(draft),
				Theme:   datatypes.JSON(themeJSON),
				Version: 1,
			}).Error
		}

		updates := map[string]interface{}{
			"draft":   datatypes.JSON(draft),
			"version": gorm.Expr("version + ?", 1),
		}
		if theme != nil {
			updates["theme"] = datatypes.JSON(themeJSON)
		}
		return tx.Model(&entity.Page{}).Where("id = ?", page.ID).Updates(updates).Error
	})
}

// Publish 把文档和主题写入发布槽位并打上发布标记，草稿列不变
func (r *pageGateway) Publish(pageKey string, doc entity.Document, theme *entity.ThemeTokens) error {
	siteKey, slug, ok := entity.SplitPageKey(pageKey)
	if !ok {
		return domainErrors.ErrInvalidPageKey
	}
	published, err := layout.Encode(doc)
	if err != nil {
		return err
	}
	themeJSON, err := encodeTheme(theme)
	if err != nil {
		return err
	}
	now := time.Now()

	return r.db.Transaction(func(tx *gorm.DB) error {
		page, err := r.getByPageKey(tx, pageKey)
		if err != nil {
			return err
		}
		if page == nil {
			return tx.Create(&entity.Page{
				SiteKey:     siteKey,
				PageKey:     pageKey,
				Name:        pageName(slug),
				Draft:          datatypes.JSON(published),
				Theme:          datatypes.JSON(themeJSON),
				Published:      datatypes.JSON(published),
				PublishedTheme: datatypes.JSON(themeJSON),
				IsPublished:    true,
				PublishedAt:    &now,
				Version:        1,
			}).Error
		}

		return tx.Model(&entity.Page{}).Where("id = ?", page.ID).Updates(map[string]interface{}{
			"published":       datatypes.JSON(published),
			"published_theme": datatypes.JSON(themeJSON),
			"is_published":    true,
			"published_at":    now,
		}).Error
	})
}

// ListPages 列出站点下所有页面，按 key 排序
func (r *pageGateway) ListPages(siteKey string) ([]entity.PageInfo, error) {
	var pages []entity.Page
	err := r.db.Select("page_key", "site_key", "name", "is_published", "published_at", "updated_at").
		Where("site_key = ?", siteKey).
		Order("page_key").
		Find(&pages).Error
	if err != nil {
		return nil, err
	}

	out := make([]entity.PageInfo, 0, len(pages))
	for _, p := range pages {
		out = append(out, entity.PageInfo{
			Key:         p.PageKey,
			SiteKey:     p.SiteKey,
			Name:        p.Name,
			IsPublished: p.IsPublished,
			PublishedAt: p.PublishedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return out, nil
}

// pageName 新建页面的默认名称
func pageName(slug string) string {
	if slug == entity.HomeSlug {
		return "Home"
	}
	return slug
}

func encodeTheme(theme *entity.ThemeTokens) ([]byte, error) {
	if theme == nil {
		return nil, nil
	}
	return json.Marshal(theme)
}

func decodeTheme(raw []byte) (*entity.ThemeTokens, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var theme entity.ThemeTokens
	if err := json.Unmarshal(raw, &theme); err != nil {
		return nil, err
	}
	return &theme, nil
}
