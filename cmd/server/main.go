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

	"ragspace-go/internal/config"
	"ragspace-go/internal/handler"
	"ragspace-go/internal/middleware"
	"ragspace-go/internal/model"
	"ragspace-go/internal/pipeline"
	"ragspace-go/internal/repository"
	"ragspace-go/internal/service"
	"ragspace-go/pkg/database"
	"ragspace-go/pkg/embedding"
	"ragspace-go/pkg/extract"
	"ragspace-go/pkg/kafka"
	"ragspace-go/pkg/llm"
	"ragspace-go/pkg/log"
	"ragspace-go/pkg/storage"
	"ragspace-go/pkg/token"
	"ragspace-go/pkg/vector"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.AutoMigrate(
		&model.User{},
		&model.Organization{}, &model.Department{}, &model.Team{},
		&model.UserOrganization{}, &model.UserDepartment{}, &model.UserTeam{},
		&model.Workspace{}, &model.WorkspaceUser{},
		&model.Chat{}, &model.Message{}, &model.Document{},
	)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)

	index, err := vector.Init(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("向量索引初始化失败: %v", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := index.EnsureReady(ctx, cfg.Embedding.Dimensions); err != nil {
			cancel()
			log.Fatalf("向量索引创建失败: %v", err)
		}
		cancel()
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	orgRepo := repository.NewOrgRepository(database.DB)
	workspaceRepo := repository.NewWorkspaceRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB)
	memoryRepo := repository.NewMemoryRepository(database.RDB, cfg.Chat.MemoryWindow)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	extractClient := extract.NewClient(cfg.Extract)
	embeddingClient := embedding.NewClient(cfg.Embedding)

	registry := llm.NewRegistry()
	registry.Register("gpt", llm.NewOpenAIProvider(cfg.LLM.OpenAI, cfg.LLM.MaxTokens))
	registry.Register("claude", llm.NewAnthropicProvider(cfg.LLM.Anthropic, cfg.LLM.MaxTokens))

	processor := pipeline.NewProcessor(
		embeddingClient,
		index,
		extractClient,
		docRepo,
		cfg.MinIO.BucketName,
		cfg.Chat.ChunkSize,
	)

	userService := service.NewUserService(userRepo, jwtManager)
	orgService := service.NewOrgService(orgRepo)
	workspaceService := service.NewWorkspaceService(workspaceRepo)
	documentService := service.NewDocumentService(docRepo, chatRepo, extractClient, processor, index, cfg.MinIO.BucketName)
	chatService := service.NewChatService(
		chatRepo, memoryRepo, workspaceRepo, documentService,
		embeddingClient, index, registry,
		cfg.Chat.MemorySurface, cfg.Chat.SearchTopK,
	)

	// 6. 启动后台 Kafka 消费者，处理向量补偿任务
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	userHandler := handler.NewUserHandler(userService)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService)
	orgHandler := handler.NewOrgHandler(orgService)
	chatHandler := handler.NewChatHandler(chatService, userService, jwtManager,
		time.Duration(cfg.Chat.TurnTimeoutSeconds)*time.Second)
	documentHandler := handler.NewDocumentHandler(documentService)

	apiV1 := r.Group("/api/v1")
	{
		users := apiV1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", userHandler.Profile)
			}
		}

		workspaces := apiV1.Group("/workspaces")
		workspaces.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			workspaces.POST("", workspaceHandler.Create)
			workspaces.GET("", workspaceHandler.List)
			workspaces.POST("/:id/join", workspaceHandler.Join)
			workspaces.GET("/:id/chats", chatHandler.List)
		}

		orgs := apiV1.Group("/organizations")
		orgs.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			orgs.POST("", orgHandler.CreateOrganization)
			orgs.GET("", orgHandler.ListOrganizations)
			orgs.POST("/:id/members", orgHandler.AddOrgMember)
			orgs.GET("/:id/members", orgHandler.ListOrgMembers)
			orgs.POST("/:id/departments", orgHandler.CreateDepartment)
			orgs.GET("/:id/departments", orgHandler.ListDepartments)
		}

		departments := apiV1.Group("/departments")
		departments.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			departments.POST("/:id/members", orgHandler.AddDeptMember)
			departments.POST("/:id/teams", orgHandler.CreateTeam)
			departments.GET("/:id/teams", orgHandler.ListTeams)
		}

		teams := apiV1.Group("/teams")
		teams.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			teams.POST("/:id/members", orgHandler.AddTeamMember)
			teams.GET("/:id/members", orgHandler.ListTeamMembers)
		}

		chats := apiV1.Group("/chats")
		chats.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chats.POST("", chatHandler.Create)
			chats.GET("/:id/messages", chatHandler.History)
			chats.DELETE("/:id", chatHandler.Delete)

			chats.POST("/:id/documents", documentHandler.Upload)
			chats.GET("/:id/documents", documentHandler.List)
			chats.DELETE("/:id/documents/:docId", documentHandler.Delete)
		}
	}

	// WebSocket 路由不走 HTTP 认证中间件，token 放在路径中
	r.GET("/ws/chats/:id/:token", chatHandler.Stream)

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
