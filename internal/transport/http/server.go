package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"lawassist/internal/ai"
	appsvc "lawassist/internal/app"
	"lawassist/internal/bootstrap"
	"lawassist/internal/cache"
	"lawassist/internal/platform/rabbitmq"
	"lawassist/internal/rag"
	"lawassist/internal/repository"
	"lawassist/internal/transport/http/handler"
	"lawassist/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	conversationRepo := repository.NewConversationRepository(app.MySQL)
	turnRepo := repository.NewTurnRepository(app.MySQL)

	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL: app.Config.Embedding.BaseURL,
		APIKey:  app.Config.Embedding.APIKey,
		Model:   app.Config.Embedding.Model,
	})
	generator := ai.NewGeminiClient(ai.GeminiConfig{
		BaseURL:         app.Config.LLM.BaseURL,
		APIKey:          app.Config.LLM.APIKey,
		Model:           app.Config.LLM.Model,
		SafetyThreshold: app.Config.LLM.SafetyThreshold,
	})
	pipeline := rag.NewPipeline(embedder, app.Corpus, generator, rag.PipelineOptions{
		TopK:              app.Config.RAG.TopK,
		DocumentCharLimit: app.Config.RAG.DocumentCharLimit,
		RewriteQuery:      app.Config.RAG.RewriteQuery,
	})

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	turnPublisher := rabbitmq.NewTurnPublisher(app.MQConn, app.Config.RabbitMQ.TurnPersistQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	uploadService := appsvc.NewUploadService()
	chatService := appsvc.NewChatService(
		conversationRepo,
		turnRepo,
		turnPublisher,
		historyCache,
		pipeline,
		generator,
		uploadService,
	)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	uploadHandler := handler.NewUploadHandler(uploadService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("/conversations", chatHandler.CreateConversation)
	chatGroup.GET("/conversations", chatHandler.ListConversations)
	chatGroup.DELETE("/conversations/:id", chatHandler.DeleteConversation)
	chatGroup.GET("/conversations/:id/export", chatHandler.ExportTranscript)
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.GET("/history", chatHandler.GetHistory)
	chatGroup.POST("/uploads", uploadHandler.UploadPDF)
	chatGroup.GET("/uploads", uploadHandler.ListUploads)

	return router
}
