package repository

import "storefront-builder/domain/entity"

// PageGateway 页面持久化网关（草稿 / 发布 / 页面列表）
// 核心不重试、不批量、不排队，调用失败由上层报告给操作员
type PageGateway interface {
	// LoadDraft 读取草稿，页面不存在返回 ErrPageNotFound
	LoadDraft(pageKey string) (*entity.PageDraft, error)

	// SaveDraft 写入草稿（不存在则创建），最后写入者胜出
	SaveDraft(pageKey string, layout entity.Document, theme *entity.ThemeTokens) error

	// Publish 将文档和主题复制到独立的发布槽位并打上发布标记
	Publish(pageKey string, layout entity.Document, theme *entity.ThemeTokens) error

	// LoadPublished 读取发布快照，未发布返回 ErrPageNotFound
	LoadPublished(pageKey string) (*entity.PageDraft, error)

	// ListPages 列出站点下所有页面
	ListPages(siteKey string) ([]entity.PageInfo, error)
}
