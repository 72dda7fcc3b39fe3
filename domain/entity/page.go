package entity

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// HomeSlug 站点隐式首页
const HomeSlug = "home"

// PageRef 会话中的页面引用
type PageRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// PageInfo 页面列表条目
type PageInfo struct {
	Key         string     `json:"key"`
	SiteKey     string     `json:"siteKey"`
	Name        string     `json:"name"`
	IsPublished bool       `json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PageDraft 从持久层读出的文档 + 主题
type PageDraft struct {
	Key    string
	Layout Document
	Theme  *ThemeTokens
}

// Page 数据库模型 (datatypes.JSON: postgres 下为 jsonb, mysql 下为 JSON)
// Draft/Theme 与 Published/PublishedTheme 是两份独立副本
type Page struct {
	ID          uint   `gorm:"primaryKey"`
	SiteKey     string `gorm:"index;size:64"`
	PageKey     string `gorm:"uniqueIndex;size:160"`
	Name        string `gorm:"size:100"`
	Draft       datatypes.JSON
	Theme       datatypes.JSON
	Published      datatypes.JSON
	PublishedTheme datatypes.JSON
	IsPublished    bool `gorm:"default:false"`
	PublishedAt *time.Time
	Version     int64 `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PageKey 拼接页面 key: <siteKey>/<slug>
func PageKey(siteKey, slug string) string {
	return siteKey + "/" + strings.Trim(slug, "/")
}

// HomePageKey 站点首页 key
func HomePageKey(siteKey string) string {
	return PageKey(siteKey, HomeSlug)
}

// SplitPageKey 拆分页面 key，格式不合法时 ok=false
func SplitPageKey(pageKey string) (siteKey, slug string, ok bool) {
	siteKey, slug, ok = strings.Cut(pageKey, "/")
	if !ok || siteKey == "" || slug == "" {
		return "", "", false
	}
	return siteKey, slug, true
}
