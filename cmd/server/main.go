// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"zhitalk-go/internal/agent"
	"zhitalk-go/internal/config"
	"zhitalk-go/internal/handler"
	"zhitalk-go/internal/middleware"
	"zhitalk-go/internal/repository"
	"zhitalk-go/internal/service"
	"zhitalk-go/internal/tools"
	"zhitalk-go/pkg/catalog"
	"zhitalk-go/pkg/database"
	"zhitalk-go/pkg/kafka"
	"zhitalk-go/pkg/llm"
	"zhitalk-go/pkg/log"
	"zhitalk-go/pkg/storage"
	"zhitalk-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	quotaRepo := repository.NewQuotaRepository(database.DB)
	documentRepo := repository.NewDocumentRepository(database.DB)
	streamRepo := repository.NewStreamRepository(database.RDB, time.Duration(cfg.Chat.StreamTTLMinutes)*time.Minute)

	// 5. 初始化基础客户端
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	modelCatalog := catalog.NewCache(cfg.Catalog)

	// 6. 注册工具集
	registry := tools.NewRegistry()
	docDeps := tools.DocumentToolDeps{
		Store:   documentRepo,
		LLM:     llmClient,
		ModelID: llm.ResolveModel(cfg.LLM, "chat-model"),
	}
	for _, t := range []*tools.Tool{
		tools.NewWeatherTool(nil),
		tools.NewCreateDocumentTool(docDeps),
		tools.NewUpdateDocumentTool(docDeps),
		tools.NewRequestSuggestionsTool(docDeps),
		tools.NewResumeTemplateTool(),
		tools.NewScoreSkillsTool(),
	} {
		if err := registry.Register(t); err != nil {
			log.Fatalf("工具注册失败: %v", err)
		}
	}
	log.Infof("工具注册完成，共 %d 个", registry.Count())

	// 7. 组装分类器、各助手与编排器
	classifier := agent.NewClassifier(llmClient, llm.ResolveModel(cfg.LLM, "chat-model"))
	orchestrator := agent.NewOrchestrator(
		classifier,
		agent.NewDefaultHandler(cfg.LLM, llmClient, registry, modelCatalog, "chat-model"),
		agent.NewDefaultHandler(cfg.LLM, llmClient, registry, modelCatalog, "chat-model-reasoning"),
		agent.NewResumeOptHandler(cfg.LLM, llmClient, registry, modelCatalog),
		agent.NewMockInterviewHandler(cfg.LLM, llmClient, registry, modelCatalog),
	)

	// 8. 初始化 Service
	userService := service.NewUserService(userRepo, jwtManager)
	quotaService := service.NewQuotaService(quotaRepo)
	chatService := service.NewChatService(
		chatRepo,
		streamRepo,
		quotaService,
		orchestrator,
		llmClient,
		llm.ResolveModel(cfg.LLM, "chat-model"),
		time.Duration(cfg.Chat.RequestTimeoutSeconds)*time.Second,
	)

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	userHandler := handler.NewUserHandler(userService)
	chatHandler := handler.NewChatHandler(chatService, quotaService, userService, jwtManager)
	attachmentHandler := handler.NewAttachmentHandler(cfg.MinIO)
	monitorHandler := handler.NewMonitorHandler(chatService)

	// 10. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", userHandler.Refresh)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)
			users.POST("/guest", userHandler.Guest)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", userHandler.Profile)
			}
		}

		// Chat 路由组，需要认证
		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chat.POST("", chatHandler.Chat)
			chat.GET("", chatHandler.List)
			chat.GET("/usage", chatHandler.Usage)
			chat.GET("/:id/messages", chatHandler.Messages)
			chat.GET("/:id/stream", chatHandler.Resume)
			chat.DELETE("/:id", chatHandler.Delete)
		}

		// 附件上传，需要认证
		attachments := apiV1.Group("/attachments")
		attachments.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			attachments.POST("", attachmentHandler.Upload)
		}

		// 健康监测
		apiV1.POST("/monitor/db", monitorHandler.DB)
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:token", chatHandler.HandleWS)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("收到退出信号，开始优雅停机...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务停机失败", err)
	}
	log.Info("服务已退出")
}
