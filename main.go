package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"eco-quest-system/handlers"
	"eco-quest-system/middleware"
	"eco-quest-system/models"
	"eco-quest-system/services"
	"eco-quest-system/utils"
	"eco-quest-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		// Proof ceiling plus multipart overhead; anything bigger is refused
		// before the handler runs.
		BodyLimit: services.MaxProofBytes + 1024*1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Task{},
		&models.TaskSubmission{},
		&models.ProofArchive{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	taskService := services.NewTaskService(db)
	if err := taskService.SeedTasks(); err != nil {
		log.Fatal("failed to seed task catalog:", err)
	}

	geminiCfg := services.GeminiConfigFromEnv()
	if geminiCfg.APIKey == "" {
		log.Println("⚠️  GEMINI_API_KEY not set — proof verification degrades to unknown verdicts")
	}
	geminiClient := services.NewGeminiClient(geminiCfg)
	proofStore := services.NewProofStoreClient()

	submissionService := services.NewSubmissionService(db, proofStore, geminiClient)
	profileService := services.NewProfileService(db)
	battleService := services.NewBattleService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if utils.R2Enabled() {
		archiver := workers.NewProofArchiver(db)
		archiver.StartScheduler(ctx)
		log.Println("✅ Proof archive scheduler running (every 60s)")
	}

	// ✅ Setup routes — enforced Gateway auth + user context on /s/ prefix
	handlers.SetupSubmissionRoutes(app, submissionService)
	handlers.SetupProfileRoutes(app, profileService)
	handlers.SetupTaskRoutes(app, taskService)
	handlers.SetupBattleRoutes(app, battleService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
