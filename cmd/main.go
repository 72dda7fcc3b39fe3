package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-builder/api/controller"
	"storefront-builder/api/route"
	"storefront-builder/bootstrap"
	domainRepo "storefront-builder/domain/repository"
	"storefront-builder/internal/editor"
	"storefront-builder/internal/templates"
	"storefront-builder/repository"
	"storefront-builder/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("[Server] Storefront Builder 启动中...")

	// 加载环境变量
	env := bootstrap.LoadEnv()

	// 初始化 Clerk（可选）
	authEnabled := bootstrap.InitClerk(env.ClerkSecretKey)

	// 依赖注入 - Repository 层
	var (
		pageGateway  domainRepo.PageGateway
		operatorRepo domainRepo.OperatorRepository
	)
	switch env.StoreDriver {
	case bootstrap.StoreRedis:
		rdb := bootstrap.NewRedis(env.RedisURL)
		defer rdb.Close()
		pageGateway = repository.NewRedisPageGateway(rdb, env.RedisPrefix)
	default:
		db := bootstrap.NewDatabase(env.DBDriver, env.DatabaseURL)
		pageGateway = repository.NewPageGateway(db)
		operatorRepo = repository.NewOperatorRepository(db)
	}

	// 模板库：内置模板 + 可选的目录热加载
	library, err := templates.NewLibrary()
	if err != nil {
		log.Fatalf("[Server] 内置模板加载失败: %v", err)
	}
	if env.TemplateDir != "" {
		if err := library.Watch(env.TemplateDir); err != nil {
			log.Printf("[Server] ⚠️ 模板目录 %s 加载失败: %v", env.TemplateDir, err)
		}
	}
	defer library.Close()

	// 会话目录
	hub := editor.NewHub()

	// 依赖注入 - UseCase 层
	builder := usecase.NewBuilderUseCase(pageGateway, hub, library, usecase.Options{Debounce: env.Debounce})

	// 依赖注入 - Controller 层
	deps := &route.Dependencies{
		BuilderController: controller.NewBuilderController(builder),
		SiteController:    controller.NewSiteController(builder),
		WSHandler:         controller.NewWSHandler(hub),
		AuthEnabled:       authEnabled,
	}
	// 操作员表只在 SQL 存储下存在
	if operatorRepo != nil {
		deps.WebhookController = controller.NewWebhookController(operatorRepo, env.WebhookSecret)
		deps.OperatorController = controller.NewOperatorController(operatorRepo)
	}

	// 配置 Gin 路由
	router := gin.Default()

	// CORS 配置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     env.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 设置路由
	route.Setup(router, deps)

	// 启动 HTTP 服务
	srv := &http.Server{
		Addr:    ":" + env.Port,
		Handler: router,
	}

	go func() {
		log.Printf("[Server] 服务已启动: http://localhost:%s", env.Port)
		log.Printf("[Server] API 端点:")
		log.Printf("   GET  /health                         - 健康检查")
		log.Printf("   GET  /metrics                        - Prometheus 指标")
		log.Printf("   POST /api/sessions                   - 打开编辑会话")
		log.Printf("   *    /api/sessions/:id/...           - 编辑操作")
		log.Printf("   GET  /ws/preview?sessionId=xxx       - 预览端 WebSocket")
		log.Printf("   GET  /sites/:siteKey/*slug           - 已发布页面")
		log.Printf("   POST /webhook/clerk                  - Clerk Webhook")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] 服务启动失败: %v", err)
		}
	}()

	// 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] 收到停机信号，正在优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Server] 服务强制关闭: %v", err)
	}

	// 关闭所有会话，断开预览端
	hub.CloseAll()

	log.Println("[Server] 服务已安全停止")
}
