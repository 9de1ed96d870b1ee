package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/api/handlers"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/api/middleware"
	job "github.com/GailMacleod/TheAgencyIQ-sub004/internal/jobs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/queue"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	mediaService := service.NewMediaService(*cfg, mediaAssetRepo)
	postService := service.NewPostService(postRepo, mediaService)
	platformService := service.NewPlatformService(*cfg, connectionRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)
	subscriptionService := service.NewSubscriptionService(*cfg, userRepo)

	quotaService := service.NewQuotaService(userRepo, postRepo)
	tokenService := service.NewTokenService(*cfg, connectionRepo)
	retryScheduler := service.NewRetryScheduler(service.PublishAttempts, 2*time.Second, cfg.PlatformSpacing)

	enforcerService := service.NewEnforcerService(*cfg, postRepo, connectionRepo, historyRepo,
		quotaService, tokenService, retryScheduler,
		service.NewFacebookPublisher(*cfg),
		service.NewInstagramPublisher(*cfg),
		service.NewLinkedInPublisher(*cfg),
		service.NewXPublisher(*cfg),
		service.NewYoutubePublisher(*cfg))

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/:platform", platform.ConnectPlatform)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	payment := handlers.NewPaymentHandler(subscriptionService)
	app.Post("/webhook/subscription", payment.PaymentWebhook)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/approve", post.ApprovePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	api.Get("/connections", platform.ListConnections)
	api.Post("/connections/remove", platform.DeleteConnection)

	enforce := handlers.NewEnforceHandler(enforcerService, quotaService)
	api.Post("/enforce-auto-posting", enforce.EnforceAutoPosting)
	api.Get("/quota-status", enforce.QuotaStatus)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(*cfg, connectionRepo, tokenService)

	// queue
	queueW := queue.NewQueue(postRepo, enforcerService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 00h10m00s", func() {
		if err := queue.EnqueueEnforceBatch(client); err != nil {
			log.Printf("Failed to enqueue batch enforcement: %v", err)
		}
	})
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeEnforcePost, queueW.HandleEnforcePostTask)
		mux.HandleFunc(queue.TaskTypeEnforceBatch, queueW.HandleEnforceBatchTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
