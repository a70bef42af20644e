package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wanderplan/wanderplan-server/internal/api"
	"github.com/wanderplan/wanderplan-server/internal/cache"
	"github.com/wanderplan/wanderplan-server/internal/config"
	"github.com/wanderplan/wanderplan-server/internal/realtime"
	"github.com/wanderplan/wanderplan-server/internal/repository"
	"github.com/wanderplan/wanderplan-server/internal/service"
	"github.com/wanderplan/wanderplan-server/internal/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	logger := utils.NewLogger()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Set up Redis-backed caches
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to set up redis: %v", err)
	}

	insights := cache.NewPlaceInsightCache(redisCache, cfg.Cache.InsightTTL)
	nudges := cache.NewFeedbackNudge(redisCache, cfg.Cache.NudgeCooldown, cfg.Cache.NudgeSessions, cfg.Cache.NudgeEditCount)

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo)

	// Create the realtime hub for collaborative editing rooms
	hub := realtime.NewHub(svc, logger, cfg.Realtime)

	// Create API handler
	handler := api.NewHandler(svc, hub, insights, nudges, logger)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
