package main

import (
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	v1 "github.com/launchforge-api/api/v1"
	"github.com/launchforge-api/config"
	"github.com/launchforge-api/database"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	// Connect to database and run migrations
	database.Initialize()

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Initialize router
	router := gin.Default()

	// CORS configuration
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		AllowCredentials: true,
	}))

	// Register v1 API routes
	v1.RegisterRoutes(router.Group("/api/v1"))

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	log.Printf("🚀 LaunchForge API starting on port %s", port)
	log.Printf("💡 API Authentication: %s", func() string {
		if os.Getenv("LAUNCHFORGE_API_KEY") != "" {
			return "Enabled"
		}
		return "Disabled (INSECURE)"
	}())
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
