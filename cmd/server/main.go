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
	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/api/handlers"
	"github.com/postloom/postloom/internal/api/middleware"
	"github.com/postloom/postloom/internal/engine"
	job "github.com/postloom/postloom/internal/jobs"
	"github.com/postloom/postloom/internal/media"
	"github.com/postloom/postloom/internal/notify"
	"github.com/postloom/postloom/internal/platform"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/vault"
	"github.com/robfig/cron"
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
	asynqClient := asynq.NewClient(redisConn)
	defer asynqClient.Close()

	postRepo := repository.NewPostRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	userRepo := repository.NewUserRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	tokenVault := vault.New(cfg.EncryptionKey)

	mediaStore, err := media.NewStore(*cfg)
	if err != nil {
		log.Fatalf("Failed to build media store: %v", err)
	}

	registry := platform.NewRegistry(buildAdapters(cfg, mediaStore)...)
	log.Printf("Publishing enabled for platforms: %v", registry.Platforms())

	fetcher := engine.NewFetcher(postRepo, accountRepo, mediaRepo)
	dispatcher := engine.NewDispatcher(registry, tokenVault)
	notifier := notify.NewFailureNotifier(settingsRepo, userRepo, notify.NewQueueTransport(asynqClient))
	loop := engine.NewLoop(fetcher, dispatcher, postRepo, accountRepo, historyRepo, notifier, engine.LoopOptions{
		BatchSize:      cfg.BatchSize,
		PublishTimeout: cfg.PublishTimeout,
	})
	reconcileJob := job.NewReconcileJob(postRepo, cfg.ReconcileAfter)

	// cron jobs
	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %s", cfg.TickInterval), loop.Tick)
	c.AddFunc("@every 00h05m00s", reconcileJob.ResetStuck)
	c.Start()
	defer c.Stop()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mailer := notify.NewMailer(*cfg)
		mux.HandleFunc(notify.TaskTypeFailureEmail, mailer.HandleFailureEmailTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	engineHandler := handlers.NewEngineHandler(loop, reconcileJob, postRepo)

	app.Get("/healthz", engineHandler.Health)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())
	api.Get("/engine/stats", engineHandler.Stats)
	api.Get("/posts/failed", engineHandler.ListFailed)
	api.Post("/engine/tick", engineHandler.TriggerTick)
	api.Post("/engine/reconcile", engineHandler.TriggerReconcile)

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

// buildAdapters turns the platform toggles into registered adapters. An
// unknown platform name in the config is a startup error, not something to
// discover at dispatch time.
func buildAdapters(cfg *config.Config, mediaStore *media.Store) []platform.Adapter {
	var adapters []platform.Adapter
	for _, name := range cfg.EnabledPlatforms {
		switch name {
		case "twitter":
			adapters = append(adapters, platform.NewTwitter(mediaStore))
		case "linkedin":
			adapters = append(adapters, platform.NewLinkedin(mediaStore))
		case "instagram":
			adapters = append(adapters, platform.NewInstagram(mediaStore))
		case "youtube":
			adapters = append(adapters, platform.NewYoutube(mediaStore))
		default:
			log.Fatalf("Unknown platform in PLATFORMS_ENABLED: %q", name)
		}
	}
	return adapters
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

	log.Println("Server shutdown complete.")
}
