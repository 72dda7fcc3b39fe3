package route

import (
	"storefront-builder/api/controller"
	"storefront-builder/api/middleware"
	"storefront-builder/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由依赖注入结构
type Dependencies struct {
	BuilderController  *controller.BuilderController
	SiteController     *controller.SiteController
	WSHandler          *controller.WSHandler
	WebhookController  *controller.WebhookController
	OperatorController *controller.OperatorController
	AuthEnabled        bool
}

// Setup 配置所有路由
func Setup(router *gin.Engine, deps *Dependencies) {
	router.Use(metrics.GinMiddleware())

	// --- 公开路由 ---

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "storefront-builder",
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 终端用户访问已发布页面
	router.GET("/sites/:siteKey/*slug", deps.SiteController.RenderPage)

	// Clerk Webhook（使用签名验证，不使用 JWT）
	if deps.WebhookController != nil {
		router.POST("/webhook/clerk", deps.WebhookController.HandleClerkWebhook)
	}

	// --- 预览端 WebSocket ---
	router.GET("/ws/preview", deps.WSHandler.HandlePreview)

	// --- API 路由（配置了 Clerk 时需要 JWT 认证）---
	api := router.Group("/api")
	api.Use(middleware.ClerkAuth(deps.AuthEnabled))
	{
		if deps.OperatorController != nil {
			api.GET("/me", deps.OperatorController.Me)
		}
		api.GET("/templates", deps.BuilderController.ListTemplates)
		api.GET("/sites/:siteKey/pages", deps.BuilderController.ListPages)
		api.POST("/sessions", deps.BuilderController.OpenSession)

		bc := deps.BuilderController
		s := api.Group("/sessions/:id")
		{
			s.GET("", bc.GetSession)
			s.DELETE("", bc.CloseSession)
			s.GET("/preview", bc.Preview)

			// 区块
			s.POST("/sections", bc.AddSection)
			s.POST("/sections/reorder", bc.ReorderSections)
			s.DELETE("/sections/:sid", bc.DeleteSection)
			s.POST("/sections/:sid/duplicate", bc.DuplicateSection)
			s.POST("/sections/:sid/visibility", bc.ToggleVisibility)
			s.PUT("/sections/:sid/settings", bc.UpdateSectionSettings)
			s.PUT("/sections/:sid/data", bc.UpdateSectionData)
			s.PATCH("/sections/:sid/data", bc.PatchSectionData)

			// 子块
			s.POST("/sections/:sid/blocks", bc.AddBlock)
			s.POST("/sections/:sid/blocks/reorder", bc.ReorderBlocks)
			s.DELETE("/sections/:sid/blocks/:bid", bc.DeleteBlock)
			s.POST("/sections/:sid/blocks/:bid/duplicate", bc.DuplicateBlock)
			s.PUT("/sections/:sid/blocks/:bid", bc.UpdateBlock)

			// 选中与拖拽
			s.PUT("/selection", bc.Select)
			s.DELETE("/selection", bc.Deselect)
			s.POST("/drag/start", bc.DragStart)
			s.POST("/drag/over", bc.DragOver)
			s.POST("/drag/end", bc.DragEnd)
			s.POST("/drag/cancel", bc.DragCancel)

			// 模板、主题、页面、持久化
			s.POST("/template", bc.ApplyTemplate)
			s.PUT("/theme", bc.SetTheme)
			s.POST("/pages", bc.AddPage)
			s.POST("/pages/activate", bc.ActivatePage)
			s.POST("/refresh", bc.Refresh)
			s.POST("/save", bc.Save)
			s.POST("/publish", bc.Publish)
		}
	}
}
