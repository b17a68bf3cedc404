// @title           LayerMinder Backend API
// @version         1.0.0
// @description     Backend API for AI furniture image generation. Mixes 1-2 uploaded images into four variants, derives a product story and keywords, recommends the nearest reference image, and streams stage progress over SSE.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"log"
	"net/http"

	"layerminder-backend/internal/clip"
	"layerminder-backend/internal/config"
	"layerminder-backend/internal/database"
	"layerminder-backend/internal/handlers"
	"layerminder-backend/internal/middleware"
	"layerminder-backend/internal/openai"
	"layerminder-backend/internal/services"
	"layerminder-backend/internal/supabase"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Provider clients
	openaiClient := openai.NewClient(cfg.OpenAIAPIBaseURL, cfg.OpenAIAPIKey)
	clipClient := clip.NewClient(cfg.ClipAPIBaseURL, cfg.ClipAPIKey)

	// Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	// The stream server reads through PostgREST so it can run apart from
	// the orchestrator's process.
	recordReader := supabase.NewRecordReader(supabaseClient)

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required. Set it to your Supabase PostgreSQL connection string.")
	}

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	// Run migrations
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: Failed to initialize migrator: %v", err)
	} else {
		defer migrator.Close()
		if err := migrator.Run(); err != nil {
			log.Printf("Warning: Migration failed: %v", err)
		} else {
			log.Println("Migrations completed successfully")
		}
	}

	// Core services
	ledger := services.NewCreditLedger(dbClient)
	engine := services.NewRecommendationEngine(clipClient, cfg.EmbeddingIndexPath, cfg.EmbeddingMetadataPath)
	orchestrator := services.NewPipelineOrchestrator(dbClient, storageClient, openaiClient, openaiClient, engine)

	// Handlers
	generateHandler := handlers.NewGenerateHandler(dbClient, ledger, orchestrator)
	streamHandler := handlers.NewStreamHandler(recordReader, handlers.DefaultStreamOptions())
	creditsHandler := handlers.NewCreditsHandler(ledger)
	sessionsHandler := handlers.NewSessionsHandler(dbClient)
	recordsHandler := handlers.NewRecordsHandler(dbClient)
	uploadHandler := handlers.NewUploadHandler(storageClient)

	// Setup router
	router := gin.Default()

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// Progress stream (no auth; record ids are unguessable UUIDs and the
	// stream carries no credentials)
	router.GET("/api/v1/stream/:record_id", streamHandler.Stream)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/generate", generateHandler.Generate)
	api.GET("/credits/balance", creditsHandler.GetBalance)
	api.POST("/history/sessions", sessionsHandler.CreateSession)
	api.GET("/history/sessions", sessionsHandler.ListSessions)
	api.GET("/sessions/:session_id/records", recordsHandler.ListRecords)
	api.GET("/records/:record_id", recordsHandler.GetRecord)
	api.POST("/upload-url", uploadHandler.GetUploadURL)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
