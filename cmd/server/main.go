package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/querystream-gateway/backend/api/handlers"
	"github.com/querystream-gateway/backend/internal/dashboards"
	"github.com/querystream-gateway/backend/internal/db"
	"github.com/querystream-gateway/backend/internal/repository"
	"github.com/querystream-gateway/backend/internal/ws"
)

func main() {
	// Local development overrides; missing .env is fine.
	_ = godotenv.Load()

	// Get configuration from environment
	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "data/gateway.db")
	proxyUpstreamURL := getEnv("PROXY_UPSTREAM_URL", "ws://localhost:8081/ws")

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	// Initialize dashboard storage
	dashboardRepo := repository.NewDashboardRepository(database)
	dashboardService := dashboards.NewService(dashboardRepo)

	// Initialize session routing
	registry := ws.NewRegistry()
	bus := ws.NewBus()
	defer bus.Close()
	wsHandler := ws.NewHandler(registry, bus, ws.Config{})

	// Initialize handlers
	websocketHandler := handlers.NewWebSocketHandler(wsHandler)
	tunnelHandler := handlers.NewTunnelHandler(proxyUpstreamURL)
	eventHandler := handlers.NewEventHandler(bus)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	folderHandler := handlers.NewFolderHandler(dashboardService)

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		websocketHandler.RegisterRoutes(api)
		tunnelHandler.RegisterRoutes(api)
		eventHandler.RegisterRoutes(api)
		dashboardHandler.RegisterRoutes(api)
		folderHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		bus.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting server on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
