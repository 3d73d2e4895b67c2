package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"holding-backend/internal/chat"
	"holding-backend/internal/database"
	"holding-backend/internal/documents"
	"holding-backend/internal/handlers"
	"holding-backend/internal/llm"
	customMiddleware "holding-backend/internal/middleware"
	"holding-backend/internal/onboarding"
	"holding-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env (ignore error in production — env vars set directly)
	_ = godotenv.Load()

	// Required env vars
	mongoURI := getEnv("MONGODB_URI", "")
	dbName := getEnv("DB_NAME", "holding")
	jwtSecret := getEnv("JWT_SECRET", "")
	port := getEnv("PORT", "8080")
	openaiKey := getEnv("OPENAI_API_KEY", "")
	openaiModel := getEnv("OPENAI_MODEL", "")
	chatEnabled := getEnv("CHAT_ENABLED", "true") == "true"
	uploadDir := getEnv("UPLOAD_DIR", "uploads/documents")
	ocrWorkers := getEnvInt("OCR_WORKERS", 2)

	if mongoURI == "" {
		log.Fatal("❌ MONGODB_URI is required")
	}
	if jwtSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}

	// Connect to MongoDB
	if err := database.Connect(mongoURI, dbName); err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepo()
	tokenRepo := repository.NewAuthTokenRepo()
	onboardingRepo := repository.NewOnboardingRepo()
	conversationRepo := repository.NewConversationRepo()
	requirementRepo := repository.NewRequirementRepo()
	documentRepo := repository.NewDocumentRepo()
	chatRequestRepo := repository.NewChatRequestRepo()
	stepLockRepo := repository.NewStepLockRepo()

	// Ensure indexes
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type indexed interface {
		EnsureIndexes(ctx context.Context) error
	}
	for name, repo := range map[string]indexed{
		"user":          userRepo,
		"token":         tokenRepo,
		"onboarding":    onboardingRepo,
		"conversation":  conversationRepo,
		"requirement":   requirementRepo,
		"document":      documentRepo,
		"chat_request":  chatRequestRepo,
		"chat_steplock": stepLockRepo,
	} {
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Printf("⚠️  Warning: failed to create %s indexes: %v", name, err)
		}
	}

	// Seed the default onboarding flow template
	if _, err := onboarding.EnsureDefaultFlow(ctx, onboardingRepo); err != nil {
		log.Fatalf("❌ Failed to seed default onboarding flow: %v", err)
	}

	// Onboarding engine + requirement synthesis on interview completion
	engine := onboarding.NewEngine(onboardingRepo)
	requirementService := onboarding.NewRequirementService(requirementRepo, onboardingRepo, database.WithTransaction)
	engine.Subscribe(requirementService)

	// LLM client (chat runs disabled without a key)
	var llmClient llm.Client
	if openaiKey != "" {
		llmClient = llm.NewOpenAI(openaiKey, openaiModel)
	} else {
		log.Println("⚠️  OPENAI_API_KEY not set, chat disabled")
		chatEnabled = false
	}

	limiter := chat.NewRateLimiter(chatRequestRepo, 10, time.Minute)
	chatService := chat.NewService(conversationRepo, stepLockRepo, onboardingRepo, engine, limiter, llmClient, chatEnabled, database.WithTransaction)

	// Document storage + OCR worker pool
	storage, err := documents.NewDiskStorage(uploadDir)
	if err != nil {
		log.Fatalf("❌ Failed to prepare upload dir: %v", err)
	}
	documentService := documents.NewService(requirementRepo, documentRepo, storage)
	ocrQueue := documents.NewOCRQueue(documentService, ocrWorkers, 64)
	documentService.SetQueue(ocrQueue)
	defer ocrQueue.Close()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(tokenRepo, userRepo, onboardingRepo, jwtSecret)
	onboardingHandler := handlers.NewOnboardingHandler(engine, userRepo)
	chatHandler := handlers.NewChatHandler(chatService, userRepo)
	documentHandler := handlers.NewDocumentHandler(documentService, userRepo)

	// Setup chi router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"holding-backend"}`))
	})

	// Public routes (no auth required)
	r.Post("/auth/request", authHandler.RequestLogin)
	r.Get("/auth/verify", authHandler.VerifyToken)

	// Protected routes (JWT required)
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.JWTAuth(jwtSecret))

		r.Get("/onboarding/flow", onboardingHandler.GetActiveFlow)
		r.Get("/onboarding/step/{stepID}", onboardingHandler.GetStep)
		r.Patch("/onboarding/step/{userStepID}/data", onboardingHandler.UpdateStepData)
		r.Patch("/onboarding/step/{userStepID}/status", onboardingHandler.UpdateStepStatus)

		r.Post("/chat/{stepID}/message/stream", chatHandler.StreamMessage)
		r.Post("/chat/{stepID}/message", chatHandler.SendMessage)
		r.Get("/chat/{stepID}/state", chatHandler.GetState)
		r.Get("/chat/{stepID}/structured-data", chatHandler.GetStructuredData)
		r.Get("/chat/{stepID}/progress", chatHandler.GetProgress)
		r.Get("/chat/{stepID}/messages", chatHandler.GetMessages)
		r.Post("/chat/{stepID}/reset", chatHandler.Reset)

		r.Get("/steps/{stepID}/requirements", documentHandler.ListRequirements)
		r.Post("/steps/{stepID}/requirements", documentHandler.CreateRequirement)
		r.Post("/requirements/{requirementID}/documents", documentHandler.Upload)
		r.Get("/requirements/{requirementID}/documents", documentHandler.ListByRequirement)
		r.Get("/documents/{documentID}", documentHandler.Get)
		r.Get("/documents/{documentID}/download", documentHandler.Download)
		r.Patch("/documents/{documentID}/status", documentHandler.Review)
		r.Get("/admin/documents", documentHandler.List)
	})

	// Start server
	log.Printf("🚀 Holding backend starting on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
