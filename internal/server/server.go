// Package server contains the HTTP handlers for the messaging API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"courtyard/internal/cache"
	"courtyard/internal/config"
	"courtyard/internal/database"
	"courtyard/internal/directory"
	"courtyard/internal/middleware"
	"courtyard/internal/repository"
	"courtyard/internal/service"
	"courtyard/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	roomRepo       repository.RoomRepository
	msgRepo        repository.MessageRepository
	attRepo        repository.AttachmentRepository
	localStore     *storage.LocalStore
	directory      *directory.CachedDirectory
	roomSvc        *service.RoomService
	messageSvc     *service.MessageService
	attachmentSvc  *service.AttachmentService
}

// NewServer creates a server instance, establishing database and Redis
// connections from the config.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	roomRepo := repository.NewRoomRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	attRepo := repository.NewAttachmentRepository(db)

	prom := middleware.InitMetrics("courtyard-api")

	local := storage.NewLocalStore(cfg.UploadDir, "/media")
	var primary storage.BlobStore
	if cfg.BlobEndpoint != "" {
		primary = storage.NewRemoteStore(cfg.BlobEndpoint, cfg.BlobBucket, cfg.BlobAccessToken, cfg.BlobPublicBaseURL)
	}
	store := storage.NewTieredStore(primary, local)

	dir := directory.NewCachedDirectory(
		directory.NewGormDirectory(db),
		redisClient,
		time.Duration(cfg.RosterCacheTTLSeconds)*time.Second,
	)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		roomRepo:       roomRepo,
		msgRepo:        msgRepo,
		attRepo:        attRepo,
		localStore:     local,
		directory:      dir,
	}
	server.roomSvc = service.NewRoomService(roomRepo, dir, cfg.CommunityName)
	server.messageSvc = service.NewMessageService(msgRepo, roomRepo, attRepo)
	server.attachmentSvc = service.NewAttachmentService(attRepo, store, cfg.MaxUploadSizeBytes())

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Propagate request ID / actor ID / trace ID into the request context
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter) so
	// browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Actor-ID, X-Actor-Name, X-Actor-Role",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting. Polling clients hit the API often; keep this
	// comfortably above the poll cadence.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Locally stored attachment blobs
	app.Static("/media", s.localStore.Dir())

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Courtyard Metrics Dashboard",
	}))

	// Every API route requires a verified actor identity
	protected := api.Group("", middleware.ActorRequired())

	rooms := protected.Group("/rooms")
	rooms.Get("/", s.ListRooms)
	rooms.Post("/direct", s.ResolveDirectRoom)
	rooms.Post("/group", s.ReconcileGroupRoom)
	rooms.Post("/community", s.ReconcileCommunityRoom)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	rooms.Get("/:id/messages", s.GetMessages)
	rooms.Post("/:id/messages", middleware.RateLimit(
		s.redis, 30, time.Minute, "send_message"), s.AppendMessage)
	rooms.Get("/:id", s.GetRoom)

	messages := protected.Group("/messages")
	messages.Put("/:id", s.EditMessage)
	messages.Delete("/:id", s.DeleteMessage)

	attachments := protected.Group("/attachments")
	attachments.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "upload"), s.UploadAttachment)
	attachments.Get("/:id", s.GetAttachment)
}

// Shutdown releases server resources after the HTTP listener has stopped.
func (s *Server) Shutdown(_ context.Context) error {
	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional (the
// service degrades to uncached rosters and no rate limiting), so only the
// database gates readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
