package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront-builder/api/middleware"
	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"
	"storefront-builder/internal/dnd"
	"storefront-builder/internal/editor"
	"storefront-builder/internal/layout"
	"storefront-builder/usecase"

	"github.com/gin-gonic/gin"
)

// --- 响应结构定义 ---

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// MessageResponse 消息响应结构
type MessageResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// MutationResponse 编辑操作响应：新建节点的 ID（如有）+ 最新会话状态
type MutationResponse struct {
	ID    string       `json:"id,omitempty"`
	State editor.State `json:"state"`
}

// DragStartResponse 拖拽开始响应
type DragStartResponse struct {
	Kind dnd.Kind `json:"kind"`
}

// DragEndResponse 拖拽结束响应
type DragEndResponse struct {
	Commit dnd.Commit   `json:"commit"`
	State  editor.State `json:"state"`
}

// SaveResponse 保存/发布响应
type SaveResponse struct {
	PageKey  string       `json:"pageKey"`
	Revision int64        `json:"revision"`
	State    editor.State `json:"state"`
}

// --- 请求结构定义 ---

type OpenSessionRequest struct {
	SiteKey string `json:"siteKey" binding:"required"`
}

type AddSectionRequest struct {
	Type entity.SectionType `json:"type" binding:"required"`
}

type AddBlockRequest struct {
	Type entity.BlockType `json:"type" binding:"required"`
}

type ReorderRequest struct {
	FromID string `json:"fromId" binding:"required"`
	ToID   string `json:"toId" binding:"required"`
}

type SelectRequest struct {
	SectionID string `json:"sectionId" binding:"required"`
	BlockID   string `json:"blockId"`
}

type DragRequest struct {
	ActiveID string `json:"activeId"`
	OverID   string `json:"overId"`
}

// ApplyTemplateRequest 二选一：内联区块列表或模板库 key
type ApplyTemplateRequest struct {
	Template string           `json:"template"`
	Sections []entity.Section `json:"sections"`
}

type AddPageRequest struct {
	Slug string `json:"slug" binding:"required"`
	Name string `json:"name"`
}

type ActivatePageRequest struct {
	PageKey string `json:"pageKey" binding:"required"`
}

// --- 控制器定义 ---

// BuilderController 编辑会话 HTTP 控制器，每个操作员动作对应一次调用
type BuilderController struct {
	builder *usecase.BuilderUseCase
}

// NewBuilderController 创建 BuilderController 实例
func NewBuilderController(builder *usecase.BuilderUseCase) *BuilderController {
	return &BuilderController{builder: builder}
}

// respondError 领域错误 -> HTTP 状态码
func respondError(c *gin.Context, err error) {
	var persistErr *domainErrors.PersistenceError
	var patchErr *editor.PatchError
	var decodeErr *layout.DecodeError

	switch {
	case errors.As(err, &persistErr):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "持久化失败，可重试", Details: err.Error(), Retryable: true})
	case errors.As(err, &patchErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "patch 无效", Details: patchErr.Reason})
	case errors.As(err, &decodeErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "文档格式无效", Details: err.Error()})
	case errors.Is(err, domainErrors.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "会话不存在"})
	case errors.Is(err, domainErrors.ErrPageNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "页面不存在"})
	case errors.Is(err, domainErrors.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "模板不存在"})
	case errors.Is(err, domainErrors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "无权限访问此会话"})
	case errors.Is(err, domainErrors.ErrPageAlreadyExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "页面已存在"})
	case errors.Is(err, domainErrors.ErrUnknownSectionType),
		errors.Is(err, domainErrors.ErrUnknownBlockType),
		errors.Is(err, domainErrors.ErrBlockNotAllowed),
		errors.Is(err, domainErrors.ErrInvalidPageKey):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// session 解析路径中的会话，失败时已写入响应并返回 nil
func (bc *BuilderController) session(c *gin.Context) *editor.Session {
	s, err := bc.builder.Session(c.Param("id"), middleware.OperatorID(c))
	if err != nil {
		respondError(c, err)
		return nil
	}
	return s
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "请求体无效", Details: err.Error()})
		return false
	}
	return true
}

func mutated(c *gin.Context, s *editor.Session, id string) {
	c.JSON(http.StatusOK, MutationResponse{ID: id, State: s.State()})
}

// ========== 会话 ==========

// OpenSession 打开编辑会话
// POST /api/sessions
// 请求体: { "siteKey": "acme" }
func (bc *BuilderController) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := bc.builder.OpenSession(req.SiteKey, middleware.OperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.State())
}

// GetSession GET /api/sessions/:id
func (bc *BuilderController) GetSession(c *gin.Context) {
	if s := bc.session(c); s != nil {
		c.JSON(http.StatusOK, s.State())
	}
}

// CloseSession 关闭会话，所有预览端断开
// DELETE /api/sessions/:id
func (bc *BuilderController) CloseSession(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	if err := bc.builder.CloseSession(s.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "会话已关闭", SessionID: s.ID})
}

// Preview 服务端镜像渲染结果（编辑模式，含隐藏区块）
// GET /api/sessions/:id/preview
func (bc *BuilderController) Preview(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	out := s.Preview()
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, out)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out.HTML))
}

// ========== 区块 ==========

// AddSection POST /api/sessions/:id/sections
func (bc *BuilderController) AddSection(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req AddSectionRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := s.AddSection(req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MutationResponse{ID: id, State: s.State()})
}

// DeleteSection DELETE /api/sessions/:id/sections/:sid
func (bc *BuilderController) DeleteSection(c *gin.Context) {
	if s := bc.session(c); s != nil {
		s.DeleteSection(c.Param("sid"))
		mutated(c, s, "")
	}
}

// DuplicateSection POST /api/sessions/:id/sections/:sid/duplicate
func (bc *BuilderController) DuplicateSection(c *gin.Context) {
	if s := bc.session(c); s != nil {
		mutated(c, s, s.DuplicateSection(c.Param("sid")))
	}
}

// ToggleVisibility POST /api/sessions/:id/sections/:sid/visibility
func (bc *BuilderController) ToggleVisibility(c *gin.Context) {
	if s := bc.session(c); s != nil {
		s.ToggleVisibility(c.Param("sid"))
		mutated(c, s, "")
	}
}

// UpdateSectionSettings PUT /api/sessions/:id/sections/:sid/settings
func (bc *BuilderController) UpdateSectionSettings(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var settings entity.SectionSettings
	if !bindJSON(c, &settings) {
		return
	}
	s.UpdateSectionSettings(c.Param("sid"), settings)
	mutated(c, s, "")
}

// UpdateSectionData 整体替换区块 data
// PUT /api/sessions/:id/sections/:sid/data
func (bc *BuilderController) UpdateSectionData(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "data 必须是合法 JSON"})
		return
	}
	s.UpdateSectionData(c.Param("sid"), json.RawMessage(body))
	mutated(c, s, "")
}

// PatchSectionData 使用 RFC 6902 JSON Patch 修改区块 data
// PATCH /api/sessions/:id/sections/:sid/data
func (bc *BuilderController) PatchSectionData(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "无法读取请求体"})
		return
	}
	if err := s.PatchSectionData(c.Param("sid"), body); err != nil {
		respondError(c, err)
		return
	}
	mutated(c, s, "")
}

// ReorderSections POST /api/sessions/:id/sections/reorder
func (bc *BuilderController) ReorderSections(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}
	s.ReorderSections(req.FromID, req.ToID)
	mutated(c, s, "")
}

// ========== 子块 ==========

// AddBlock POST /api/sessions/:id/sections/:sid/blocks
func (bc *BuilderController) AddBlock(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req AddBlockRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := s.AddBlock(c.Param("sid"), req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MutationResponse{ID: id, State: s.State()})
}

// DeleteBlock DELETE /api/sessions/:id/sections/:sid/blocks/:bid
func (bc *BuilderController) DeleteBlock(c *gin.Context) {
	if s := bc.session(c); s != nil {
		s.DeleteBlock(c.Param("sid"), c.Param("bid"))
		mutated(c, s, "")
	}
}

// DuplicateBlock POST /api/sessions/:id/sections/:sid/blocks/:bid/duplicate
func (bc *BuilderController) DuplicateBlock(c *gin.Context) {
	if s := bc.session(c); s != nil {
		mutated(c, s, s.DuplicateBlock(c.Param("sid"), c.Param("bid")))
	}
}

// UpdateBlock PUT /api/sessions/:id/sections/:sid/blocks/:bid
func (bc *BuilderController) UpdateBlock(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var update layout.BlockUpdate
	if !bindJSON(c, &update) {
		return
	}
	s.UpdateBlock(c.Param("sid"), c.Param("bid"), update)
	mutated(c, s, "")
}

// ReorderBlocks POST /api/sessions/:id/sections/:sid/blocks/reorder
func (bc *BuilderController) ReorderBlocks(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}
	s.ReorderBlocks(c.Param("sid"), req.FromID, req.ToID)
	mutated(c, s, "")
}

// ========== 选中 ==========

// Select 选中区块或子块，目标不存在时状态不变
// PUT /api/sessions/:id/selection
func (bc *BuilderController) Select(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req SelectRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.BlockID != "" {
		s.SelectBlock(req.SectionID, req.BlockID)
	} else {
		s.SelectSection(req.SectionID)
	}
	c.JSON(http.StatusOK, s.Selection())
}

// Deselect DELETE /api/sessions/:id/selection
func (bc *BuilderController) Deselect(c *gin.Context) {
	if s := bc.session(c); s != nil {
		s.Deselect()
		c.JSON(http.StatusOK, s.Selection())
	}
}

// ========== 拖拽 ==========

// DragStart POST /api/sessions/:id/drag/start
func (bc *BuilderController) DragStart(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req DragRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, DragStartResponse{Kind: s.DragStart(req.ActiveID)})
}

// DragOver POST /api/sessions/:id/drag/over
func (bc *BuilderController) DragOver(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req DragRequest
	if !bindJSON(c, &req) {
		return
	}
	s.DragOver(req.OverID)
	c.Status(http.StatusNoContent)
}

// DragEnd 放下时至多提交一次重排
// POST /api/sessions/:id/drag/end
func (bc *BuilderController) DragEnd(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req DragRequest
	if !bindJSON(c, &req) {
		return
	}
	commit := s.DragEnd(req.OverID)
	c.JSON(http.StatusOK, DragEndResponse{Commit: commit, State: s.State()})
}

// DragCancel POST /api/sessions/:id/drag/cancel
func (bc *BuilderController) DragCancel(c *gin.Context) {
	if s := bc.session(c); s != nil {
		s.DragCancel()
		c.Status(http.StatusNoContent)
	}
}

// ========== 模板 / 主题 / 页面 ==========

// ApplyTemplate 用模板替换当前页面
// POST /api/sessions/:id/template
// 请求体: { "template": "landing" } 或 { "sections": [...] }
func (bc *BuilderController) ApplyTemplate(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req ApplyTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Template != "" {
		if err := bc.builder.ApplyNamedTemplate(s, req.Template); err != nil {
			respondError(c, err)
			return
		}
	} else {
		for _, sec := range req.Sections {
			if !layout.IsKnownSection(sec.Type) {
				respondError(c, domainErrors.ErrUnknownSectionType)
				return
			}
		}
		s.ApplyTemplate(req.Sections)
	}
	mutated(c, s, "")
}

// ListTemplates GET /api/templates
func (bc *BuilderController) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, bc.builder.Templates())
}

// SetTheme PUT /api/sessions/:id/theme
func (bc *BuilderController) SetTheme(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var theme entity.ThemeTokens
	if !bindJSON(c, &theme) {
		return
	}
	s.SetTheme(theme)
	mutated(c, s, "")
}

// AddPage POST /api/sessions/:id/pages
func (bc *BuilderController) AddPage(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req AddPageRequest
	if !bindJSON(c, &req) {
		return
	}
	ref, err := s.AddPage(req.Slug, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MutationResponse{ID: ref.Key, State: s.State()})
}

// ActivatePage 切换当前页面，首次访问时加载草稿
// POST /api/sessions/:id/pages/activate
func (bc *BuilderController) ActivatePage(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	var req ActivatePageRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := bc.builder.SwitchPage(s, req.PageKey); err != nil {
		respondError(c, err)
		return
	}
	mutated(c, s, "")
}

// Refresh 通知所有预览端整页重新加载
// POST /api/sessions/:id/refresh
func (bc *BuilderController) Refresh(c *gin.Context) {
	if s := bc.session(c); s != nil {
		s.Refresh()
		c.Status(http.StatusAccepted)
	}
}

// Save POST /api/sessions/:id/save
func (bc *BuilderController) Save(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	snap, err := bc.builder.SaveDraft(s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveResponse{PageKey: snap.PageKey, Revision: snap.Revision, State: s.State()})
}

// Publish POST /api/sessions/:id/publish
func (bc *BuilderController) Publish(c *gin.Context) {
	s := bc.session(c)
	if s == nil {
		return
	}
	snap, err := bc.builder.Publish(s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveResponse{PageKey: snap.PageKey, Revision: snap.Revision, State: s.State()})
}

// ListPages GET /api/sites/:siteKey/pages
func (bc *BuilderController) ListPages(c *gin.Context) {
	pages, err := bc.builder.ListPages(c.Param("siteKey"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}
