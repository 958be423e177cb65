package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/launchforge-api/middleware"
)

// RegisterRoutes registers all v1 API routes
func RegisterRoutes(router *gin.RouterGroup) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// Deployment endpoints - protected by API key
	deploymentGroup := router.Group("/deployments")
	deploymentGroup.Use(middleware.APIKeyMiddleware())
	{
		deploymentGroup.GET("", ListDeployments)
		deploymentGroup.POST("", CreateDeployment)
		deploymentGroup.GET("/:id", GetDeployment)
		deploymentGroup.GET("/:id/events", StreamDeploymentEvents)
	}

	// Provider setup status - protected by API key
	providerGroup := router.Group("/providers")
	providerGroup.Use(middleware.APIKeyMiddleware())
	{
		providerGroup.GET("", GetProviderStatus)
	}
}
