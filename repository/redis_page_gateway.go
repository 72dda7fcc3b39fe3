package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	domainRepo "storefront-builder/domain/repository"
	"storefront-builder/internal/layout"

	"github.com/go-redis/redis/v8"
)

// Redis 键布局:
//
//	<prefix>page:<pageKey>        hash: site, name, draft, theme, published, published_theme, is_published, published_at, updated_at, version
//	<prefix>site:<siteKey>:pages  set:  该站点所有页面 key
const (
	fieldSite        = "site"
	fieldName        = "name"
	fieldDraft       = "draft"
	fieldTheme       = "theme"
	fieldPublished   = "published"
	fieldPubTheme    = "published_theme"
	fieldIsPublished = "is_published"
	fieldPublishedAt = "published_at"
	fieldUpdatedAt   = "updated_at"
	fieldVersion     = "version"
)

// redisPageGateway Redis 实现 PageGateway 接口
type redisPageGateway struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	factory *layout.Factory
}

// NewRedisPageGateway 构造函数，prefix 用于多个环境共用一个 Redis
func NewRedisPageGateway(client *redis.Client, prefix string) domainRepo.PageGateway {
	return &redisPageGateway{
		client:  client,
		prefix:  prefix,
		timeout: 5 * time.Second,
		factory: layout.NewFactory(),
	}
}

func (r *redisPageGateway) pageKey(pageKey string) string {
	return r.prefix + "page:" + pageKey
}

func (r *redisPageGateway) siteKey(siteKey string) string {
	return r.prefix + "site:" + siteKey + ":pages"
}

func (r *redisPageGateway) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *redisPageGateway) LoadDraft(pageKey string) (*entity.PageDraft, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	vals, err := r.client.HMGet(ctx, r.pageKey(pageKey), fieldSite, fieldDraft, fieldTheme).Result()
	if err != nil {
		return nil, err
	}
	if vals[0] == nil {
		return nil, domainErrors.ErrPageNotFound
	}
	return r.toDraft(pageKey, asString(vals[1]), asString(vals[2]))
}

func (r *redisPageGateway) LoadPublished(pageKey string) (*entity.PageDraft, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	vals, err := r.client.HMGet(ctx, r.pageKey(pageKey), fieldIsPublished, fieldPublished, fieldPubTheme).Result()
	if err != nil {
		return nil, err
	}
	if asString(vals[0]) != "1" {
		return nil, domainErrors.ErrPageNotFound
	}
	return r.toDraft(pageKey, asString(vals[1]), asString(vals[2]))
}

func (r *redisPageGateway) toDraft(pageKey, layoutJSON, themeJSON string) (*entity.PageDraft, error) {
	doc, err := layout.Decode([]byte(layoutJSON), r.factory)
	if err != nil {
		return nil, err
	}
	theme, err := decodeTheme([]byte(themeJSON))
	if err != nil {
		return nil, err
	}
	return &entity.PageDraft{Key: pageKey, Layout: doc, Theme: theme}, nil
}

// SaveDraft 写入草稿并登记到站点页面集合，MULTI/EXEC 保证两者一起生效
func (r *redisPageGateway) SaveDraft(pageKey string, doc entity.Document, theme *entity.ThemeTokens) error {
	siteKey, slug, ok := entity.SplitPageKey(pageKey)
	if !ok {
		return domainErrors.ErrInvalidPageKey
	}
	draft, err := layout.Encode(doc)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		fieldSite:      siteKey,
		fieldDraft:     string(draft),
		fieldUpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if theme != nil {
		themeJSON, err := encodeTheme(theme)
		if err != nil {
			return err
		}
		fields[fieldTheme] = string(themeJSON)
	}

	ctx, cancel := r.ctx()
	defer cancel()

	key := r.pageKey(pageKey)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldName, pageName(slug))
		pipe.HSet(ctx, key, fields)
		pipe.HIncrBy(ctx, key, fieldVersion, 1)
		pipe.SAdd(ctx, r.siteKey(siteKey), pageKey)
		return nil
	})
	return err
}

// Publish 写入发布槽位（文档 + 主题），草稿字段不变
func (r *redisPageGateway) Publish(pageKey string, doc entity.Document, theme *entity.ThemeTokens) error {
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
	now := time.Now().UTC().Format(time.RFC3339Nano)

	ctx, cancel := r.ctx()
	defer cancel()

	key := r.pageKey(pageKey)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldName, pageName(slug))
		pipe.HSetNX(ctx, key, fieldDraft, string(published))
		if theme != nil {
			pipe.HSetNX(ctx, key, fieldTheme, string(themeJSON))
		}
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldSite:        siteKey,
			fieldPublished:   string(published),
			fieldPubTheme:    string(themeJSON),
			fieldIsPublished: "1",
			fieldPublishedAt: now,
			fieldUpdatedAt:   now,
		})
		pipe.SAdd(ctx, r.siteKey(siteKey), pageKey)
		return nil
	})
	return err
}

func (r *redisPageGateway) ListPages(siteKey string) ([]entity.PageInfo, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	keys, err := r.client.SMembers(ctx, r.siteKey(siteKey)).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []entity.PageInfo{}, nil
	}
	sort.Strings(keys)

	cmds := make([]*redis.SliceCmd, len(keys))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HMGet(ctx, r.pageKey(k), fieldName, fieldIsPublished, fieldPublishedAt, fieldUpdatedAt)
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]entity.PageInfo, 0, len(keys))
	for i, k := range keys {
		vals, err := cmds[i].Result()
		if err != nil {
			return nil, err
		}
		info := entity.PageInfo{
			Key:         k,
			SiteKey:     siteKey,
			Name:        asString(vals[0]),
			IsPublished: asString(vals[1]) == "1",
			UpdatedAt:   parseTime(asString(vals[3])),
		}
		if t := parseTime(asString(vals[2])); !t.IsZero() {
			info.PublishedAt = &t
		}
		out = append(out, info)
	}
	return out, nil
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
