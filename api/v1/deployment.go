package v1

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchforge-api/dto"
	"github.com/launchforge-api/models"
	"github.com/launchforge-api/services"
	"github.com/launchforge-api/utils"
	"gorm.io/gorm"
)

var progressService = services.NewProgressService()
var deploymentService = services.NewDeploymentService(progressService)

const keepAliveInterval = 15 * time.Second

// CreateDeployment godoc
// @Summary Submit a new deployment
// @Description Validates the deployment request and starts provisioning in the background
// @Tags deployments
// @Accept json
// @Produce json
// @Param deployment body dto.CreateDeploymentRequest true "Deployment Data"
// @Success 202 {object} dto.CreateDeploymentResponse
// @Router /deployments [post]
func CreateDeployment(c *gin.Context) {
	var req dto.CreateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	response, err := deploymentService.CreateDeployment(req)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "Invalid deployment request",
				"fields":  validationErr.Fields,
			})
			return
		}

		var missingErr *services.MissingConfigurationError
		if errors.As(err, &missingErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "Missing required provider configuration",
				"fields":  missingErr.Fields,
			})
			return
		}

		log.Println("Error starting deployment:", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to start deployment: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "success",
		"data":   response,
	})
}

// ListDeployments godoc
// @Summary List deployments
// @Description Get all deployment records, newest first
// @Tags deployments
// @Produce json
// @Success 200 {array} dto.DeploymentResponse
// @Router /deployments [get]
func ListDeployments(c *gin.Context) {
	deployments, err := deploymentService.ListDeployments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to retrieve deployments: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   deployments,
	})
}

// GetDeployment godoc
// @Summary Get a deployment by ID
// @Description Get the current record of a deployment, including step states and produced resources
// @Tags deployments
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {object} dto.DeploymentResponse
// @Router /deployments/{id} [get]
func GetDeployment(c *gin.Context) {
	deploymentID := c.Param("id")
	if deploymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Deployment ID is required"})
		return
	}

	deployment, err := deploymentService.GetDeploymentByID(deploymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Deployment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to retrieve deployment: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   deployment,
	})
}

// StreamDeploymentEvents godoc
// @Summary Stream deployment progress
// @Description Opens an SSE stream of step transitions for one deployment, with keep-alives and a terminal sentinel
// @Tags deployments
// @Produce text/event-stream
// @Param id path string true "Deployment ID"
// @Router /deployments/{id}/events [get]
func StreamDeploymentEvents(c *gin.Context) {
	deploymentID := c.Param("id")
	if deploymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Deployment ID is required"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Streaming not supported"})
		return
	}

	// Subscribe before reading the record so no transition between the
	// snapshot and the first event is lost
	events, cancelSubscription := progressService.Subscribe(deploymentID)
	defer cancelSubscription()

	deployment, err := deploymentService.GetDeploymentByID(deploymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Deployment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to retrieve deployment: " + err.Error(),
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// A late subscriber reconstructs state from the snapshot, then follows
	// live events
	utils.WriteSSEEvent(c.Writer, "snapshot", deployment)
	flusher.Flush()

	if deployment.Status == models.DeploymentStatusCompleted || deployment.Status == models.DeploymentStatusFailed {
		writeDone(c, flusher, deploymentID, string(deployment.Status))
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if event.Terminal() {
				writeDone(c, flusher, deploymentID, event.Status)
				return
			}
			utils.WriteSSEEvent(c.Writer, "step", event)
			flusher.Flush()
		case <-keepAlive.C:
			utils.WriteSSEComment(c.Writer, "ping")
			flusher.Flush()
		}
	}
}

func writeDone(c *gin.Context, flusher http.Flusher, deploymentID, status string) {
	utils.WriteSSEEvent(c.Writer, "done", gin.H{
		"deploymentId": deploymentID,
		"status":       status,
	})
	flusher.Flush()
}
