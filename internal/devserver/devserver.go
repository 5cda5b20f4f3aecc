// Package devserver is the local fixture API the client SDK develops and
// tests against. It serves the same twit endpoints and wire shapes the
// production gateway exposes, backed by gorm over sqlite (or postgres) with
// an optional redis feed cache.
package devserver

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"twitline/internal/config"
	"twitline/internal/models"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const tokenIssuer = "twitline-dev"

// Server holds the dev server's dependencies and provides its handlers.
type Server struct {
	config *config.Config
	db     *gorm.DB
	cache  *Cache
	prom   *fiberprometheus.FiberPrometheus
}

// NewServer creates a dev server instance with all dependencies wired.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := connectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Redis connection warning: %v (continuing without cache)", err)
			redisClient = nil
		}
		cancel()
	}

	return &Server{
		config: cfg,
		db:     db,
		cache:  NewCache(redisClient),
		prom:   fiberprometheus.New("twitline-devserver"),
	}, nil
}

// NewServerWithDeps creates a dev server over pre-built dependencies.
// Used by tests to inject an in-memory database and a fake redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	return &Server{
		config: cfg,
		db:     db,
		cache:  NewCache(redisClient),
	}
}

// connectDB opens postgres when a host is configured, sqlite otherwise, and
// migrates the schema.
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	if cfg.DBHost != "" {
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	} else {
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), gormCfg)
	}
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema for all dev server models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
	)
}

// App builds the Fiber app with middleware and routes configured.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Twitline Dev API",
		BodyLimit: 10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewServerError("Internal server error", err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(requestid.New())

	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
		app.Use(s.prom.Middleware)
	}

	app.Use(StructuredLogger())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:5173,http://localhost:3000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the dev server.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)

	auth := app.Group("/auth")
	auth.Post("/signup", s.Signup)
	auth.Post("/signin", s.Signin)

	app.Get("/media/placeholder/:seed", s.PlaceholderImage)

	twits := app.Group("/api/twits", s.AuthRequired())
	twits.Get("/", s.GetAllTwits)
	twits.Post("/create", s.CreateTwit)
	twits.Get("/user/:id", s.GetUserTwits)
	twits.Get("/liked/:id", s.GetLikedTwits)
	// Specific /:id/:resource routes before the generic /:id routes.
	twits.Put("/:id/like", s.LikeTwit)
	twits.Put("/:id/unlike", s.UnlikeTwit)
	twits.Post("/:id/comment", s.CreateComment)
	twits.Put("/:id", s.UpdateTwit)
	twits.Delete("/:id", s.DeleteTwit)
}

// HealthCheck handles health check requests.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
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
	if s.cache.Available() {
		redisStatus = "healthy"
		if err := s.cache.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status": "healthy",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthError("Authorization required"))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthError("Invalid token claims"))
		}
		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != tokenIssuer {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthError("Invalid token issuer"))
		}
		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthError("Invalid subject claim"))
		}
		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewAuthError("Invalid user ID in token"))
		}

		c.Locals("userID", uint(userID))
		return c.Next()
	}
}

// generateToken creates a signed JWT carrying the user's identity claims.
// The client decodes name and avatar from these claims for its profile view.
func (s *Server) generateToken(user *models.User) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    strconv.FormatUint(uint64(user.ID), 10),
		"iss":    tokenIssuer,
		"name":   user.FullName,
		"avatar": user.Avatar,
		"exp":    now.Add(time.Hour * 24 * 7).Unix(),
		"iat":    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// Shutdown releases the server's database and cache connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}
	if err := s.cache.Close(); err != nil {
		log.Printf("error closing redis: %v", err)
	}
	return nil
}
