package errors

import (
	"errors"
	"fmt"
)

// ================= 业务领域错误定义 =================
// 所有业务逻辑相关的错误统一在此定义，避免跨包重复定义

// ErrPageNotFound 页面不存在错误
// 持久层中没有该页面时返回此错误，调用方通常回退为空文档
var ErrPageNotFound = errors.New("page not found in store")

// ErrSessionNotFound 编辑会话不存在（已关闭或从未创建）
var ErrSessionNotFound = errors.New("builder session not found")

// ErrUnknownSectionType 区块类型不在枚举内
var ErrUnknownSectionType = errors.New("unknown section type")

// ErrUnknownBlockType 子块类型不在枚举内
var ErrUnknownBlockType = errors.New("unknown block type")

// ErrBlockNotAllowed 该区块类型不接受此子块类型
var ErrBlockNotAllowed = errors.New("block type not allowed in this section")

// ErrInvalidPageKey 页面 key 格式错误（应为 <siteKey>/<slug>）
var ErrInvalidPageKey = errors.New("invalid page key")

// ErrPageAlreadyExists 会话中已存在同名页面
var ErrPageAlreadyExists = errors.New("page already exists")

// ErrTemplateNotFound 模板库中没有该模板
var ErrTemplateNotFound = errors.New("template not found")

// ErrUnauthorized 无权限访问该会话
var ErrUnauthorized = errors.New("unauthorized")

// ========== 自定义错误类型 ==========

// PersistenceError 保存/发布失败
// 可重试，内存中的文档不会被修改
type PersistenceError struct {
	Op      string // "load" | "save" | "publish" | "list"
	PageKey string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.PageKey, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
