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

	"plugin-chat-go/internal/config"
	"plugin-chat-go/internal/handler"
	"plugin-chat-go/internal/middleware"
	"plugin-chat-go/internal/pipeline"
	"plugin-chat-go/internal/plugin"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/internal/service"
	"plugin-chat-go/pkg/database"
	"plugin-chat-go/pkg/es"
	"plugin-chat-go/pkg/kafka"
	"plugin-chat-go/pkg/llm"
	"plugin-chat-go/pkg/log"
	"plugin-chat-go/pkg/storage"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储、搜索和消息队列
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	defaultPlugin, err := plugin.Parse(cfg.Chat.DefaultPlugin)
	if err != nil {
		log.Warnf("默认插件配置无效，使用 %s: %v", plugin.Default, err)
	}

	// 4. 初始化 Repository
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	promptRepo := repository.NewPromptRepository(database.DB)
	templateRepo := repository.NewTemplateRepository(database.DB)
	feedbackRepo := repository.NewFeedbackRepository(database.DB)
	preferenceRepo := repository.NewPreferenceRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	messageIndex := es.MessageIndex(cfg.Elasticsearch.IndexName)
	llmClient := llm.NewClient(cfg.LLM)
	gateway := service.NewConversationGateway(conversationRepo, messageRepo, service.TaskPublisherFunc(kafka.ProduceTask))
	conversationService := service.NewConversationService(conversationRepo, messageRepo, storage.Bucket(cfg.MinIO.BucketName))
	promptService := service.NewPromptService(promptRepo, cfg.Chat.PopularLimit)
	templateService := service.NewTemplateService(templateRepo)
	feedbackService := service.NewFeedbackService(feedbackRepo)
	adminService := service.NewAdminService(messageRepo, messageIndex)

	// 6. 启动后台 Kafka 消费者，处理提示词统计和消息索引任务
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	processor := pipeline.NewProcessor(promptRepo, messageIndex)
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, processor, database.RDB)

	// 6.1 导入预置提示词，已导入则跳过
	go func() {
		if err := promptService.SeedPredefined(consumerCtx); err != nil {
			log.Warnf("导入预置提示词失败: %v", err)
		}
	}()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	registry := handler.NewSessionRegistry()
	chatHandler := handler.NewChatHandler(gateway, llmClient, preferenceRepo, feedbackService, registry, defaultPlugin)
	conversationHandler := handler.NewConversationHandler(conversationService, registry)
	pluginHandler := handler.NewPluginHandler(preferenceRepo, registry, defaultPlugin)
	promptHandler := handler.NewPromptHandler(promptService)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService)
	adminHandler := handler.NewAdminHandler(adminService, promptService, templateService)

	// 8. 注册路由
	r.GET("/chat/ws", chatHandler.Handle)

	apiV1 := r.Group("/api/v1")
	{
		plugins := apiV1.Group("/plugins")
		{
			plugins.GET("", pluginHandler.ListPlugins)
			plugins.GET("/selected", pluginHandler.GetSelected)
			plugins.PUT("/selected", pluginHandler.SetSelected)
		}

		conversations := apiV1.Group("/conversations")
		{
			conversations.GET("", conversationHandler.ListConversations)
			conversations.GET("/:id", conversationHandler.GetConversation)
			conversations.DELETE("/:id", conversationHandler.DeleteConversation)
			conversations.POST("/:id/export", conversationHandler.ExportConversation)
		}

		apiV1.GET("/prompts", promptHandler.GetPrompts)
		apiV1.POST("/feedback", feedbackHandler.SubmitFeedback)

		admin := apiV1.Group("/admin")
		{
			admin.GET("/queries", adminHandler.ListQueries)
			admin.GET("/feedback", feedbackHandler.ListFeedback)

			popular := admin.Group("/popular-prompts")
			{
				popular.GET("", adminHandler.ListPopularPrompts)
				popular.PUT("/:id", adminHandler.UpdatePopularPrompt)
				popular.PUT("/:id/cacheable", adminHandler.SetPromptCacheable)
			}

			templates := admin.Group("/templates")
			{
				templates.GET("", adminHandler.ListTemplates)
				templates.POST("", adminHandler.CreateTemplate)
				templates.PUT("/:id", adminHandler.UpdateTemplate)
				templates.PUT("/:id/status", adminHandler.SetTemplateStatus)
			}
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
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

	// WebSocket 连接已被劫持，不受 Shutdown 管理，由客户端断开后自行结束
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	if err := kafka.CloseProducer(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
