package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diaryhub-backend/internal/cache"
	"diaryhub-backend/internal/config"
	"diaryhub-backend/internal/handlers"
	"diaryhub-backend/internal/middleware"
	"diaryhub-backend/internal/repository"
	"diaryhub-backend/internal/services"
	"diaryhub-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Apply migrations before the pool is opened
	if err := repository.Migrate(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Optional lookup cache
	var userCache services.UserCache
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, running without user cache")
		} else {
			userCache = cache.NewUserCache(rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("User cache enabled")
		}
	}

	// Attachment store
	blobStore, err := storage.NewS3Store(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create attachment store")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	diaryRepo := repository.NewDiaryRepository(db)

	// Initialize services
	attachments := services.NewAttachments(blobStore)
	userService := services.NewUserService(userRepo, diaryRepo, attachments, userCache, cfg.JWT.Secret, cfg.JWT.TTLDays)
	diaryService := services.NewDiaryService(diaryRepo, attachments, cfg.Uploads.MaxImages)
	feedService := services.NewFeedService(diaryRepo, userService, cfg.Feed.AllRegions)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	diaryHandler := handlers.NewDiaryHandler(diaryService, cfg.Uploads.MaxMemoryMB, cfg.Uploads.MaxRequestMB, cfg.Uploads.MaxImages)
	feedHandler := handlers.NewFeedHandler(feedService)

	r := newRouter(cfg, userService, userHandler, diaryHandler, feedHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func newRouter(
	cfg *config.Config,
	verifier middleware.TokenVerifier,
	userHandler *handlers.UserHandler,
	diaryHandler *handlers.DiaryHandler,
	feedHandler *handlers.FeedHandler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := middleware.AuthMiddleware(verifier)
	optionalAuth := middleware.OptionalAuthMiddleware(verifier)
	lenientAuth := middleware.LenientAuthMiddleware(verifier)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("diaryhub backend is running"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", userHandler.Signup)
		r.Post("/login", userHandler.Login)
		r.With(requireAuth).Delete("/delete", userHandler.DeleteAccount)
	})

	r.Route("/diaries", func(r chi.Router) {
		// Public routes
		r.Get("/public-diaries/{username}", feedHandler.DiariesByUsername)
		r.Get("/friend/{friendId}", feedHandler.FriendDiaries)

		// Anonymous callers allowed, tokens still checked when sent
		r.With(optionalAuth).Get("/public-diaries", feedHandler.PublicDiaries)

		// Anonymous callers allowed, a bad token only loses the owner's view
		r.Group(func(r chi.Router) {
			r.Use(lenientAuth)
			r.Get("/{id}", feedHandler.GetDiary)
			r.Get("/{id}/comments", feedHandler.GetComments)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", diaryHandler.CreateDiary)
			r.Get("/my-diaries", feedHandler.MyDiaries)
			r.Put("/{id}", diaryHandler.UpdateDiary)
			r.Delete("/{id}", diaryHandler.DeleteDiary)
			r.Post("/like/{id}", diaryHandler.ToggleLike)
			r.Post("/{id}/comments", diaryHandler.AddComment)
			r.Put("/{id}/comments/{commentId}", diaryHandler.UpdateComment)
			r.Delete("/{id}/comments/{commentId}", diaryHandler.DeleteComment)
		})
	})

	return r
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
