package controller

import (
	"net/http"

	"storefront-builder/usecase"

	"github.com/gin-gonic/gin"
)

// SiteController 终端用户访问已发布页面
type SiteController struct {
	builder *usecase.BuilderUseCase
}

// NewSiteController 构造函数
func NewSiteController(builder *usecase.BuilderUseCase) *SiteController {
	return &SiteController{builder: builder}
}

// RenderPage 渲染发布快照，隐藏区块不输出
// GET /sites/:siteKey/*slug
func (sc *SiteController) RenderPage(c *gin.Context) {
	out, err := sc.builder.RenderPublished(c.Param("siteKey"), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out.HTML))
}
