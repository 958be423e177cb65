package repositories

import (
	"github.com/launchforge-api/database"
	"github.com/launchforge-api/models"
	"gorm.io/gorm"
)

// DeploymentRepository handles database operations for deployment records.
// The orchestrator is the only writer; everything else only reads.
type DeploymentRepository struct{}

// NewDeploymentRepository creates a new deployment repository instance
func NewDeploymentRepository() *DeploymentRepository {
	return &DeploymentRepository{}
}

// Create inserts a new deployment record together with its pending steps
func (r *DeploymentRepository) Create(deployment models.Deployment) (models.Deployment, error) {
	result := database.DB.Create(&deployment)
	return deployment, result.Error
}

// FindByID retrieves a deployment with its steps in execution order
func (r *DeploymentRepository) FindByID(id string) (models.Deployment, error) {
	var deployment models.Deployment
	result := database.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("deployment_steps.position ASC")
		}).
		First(&deployment, "id = ?", id)
	return deployment, result.Error
}

// FindAll retrieves all deployments, newest first
func (r *DeploymentRepository) FindAll() ([]models.Deployment, error) {
	var deployments []models.Deployment
	result := database.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("deployment_steps.position ASC")
		}).
		Order("created_at DESC").
		Find(&deployments)
	return deployments, result.Error
}

// UpdateStep applies a patch to one step of one deployment. Empty patch
// fields are left untouched.
func (r *DeploymentRepository) UpdateStep(deploymentID string, stepID models.StepID, patch models.StepPatch) error {
	updates := map[string]interface{}{}
	if patch.Status != "" {
		updates["status"] = patch.Status
	}
	if patch.Message != "" {
		updates["message"] = patch.Message
	}
	if patch.Error != "" {
		updates["error"] = patch.Error
	}
	if patch.StartedAt != nil {
		updates["started_at"] = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		updates["completed_at"] = patch.CompletedAt
	}
	if len(updates) == 0 {
		return nil
	}

	result := database.DB.Model(&models.DeploymentStep{}).
		Where("deployment_id = ? AND step_id = ?", deploymentID, stepID).
		Updates(updates)
	return result.Error
}

// UpdateFields applies top-level field updates to a deployment record
func (r *DeploymentRepository) UpdateFields(deploymentID string, fields map[string]interface{}) error {
	result := database.DB.Model(&models.Deployment{}).
		Where("id = ?", deploymentID).
		Updates(fields)
	return result.Error
}
