package dto

import (
	"time"

	"github.com/launchforge-api/models"
)

// StepResponse is the API view of one provisioning step
type StepResponse struct {
	ID          models.StepID     `json:"id"`
	Name        string            `json:"name"`
	Status      models.StepStatus `json:"status"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// DeploymentResponse is the API view of a deployment record
type DeploymentResponse struct {
	ID           string                  `json:"id"`
	ProjectName  string                  `json:"projectName"`
	Description  string                  `json:"description"`
	Template     string                  `json:"template"`
	CustomDomain string                  `json:"customDomain,omitempty"`
	Status       models.DeploymentStatus `json:"status"`
	Steps        []StepResponse          `json:"steps"`
	Resources    map[string]string       `json:"resources"`
	Error        string                  `json:"error,omitempty"`
	ErrorStep    string                  `json:"errorStep,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
	CompletedAt  *time.Time              `json:"completedAt,omitempty"`
}

// NewDeploymentResponseFromModel maps a deployment record to its API view
func NewDeploymentResponseFromModel(deployment models.Deployment) DeploymentResponse {
	steps := make([]StepResponse, 0, len(deployment.Steps))
	for _, step := range deployment.Steps {
		steps = append(steps, StepResponse{
			ID:          step.StepID,
			Name:        step.Name,
			Status:      step.Status,
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
			Message:     step.Message,
			Error:       step.Error,
		})
	}

	resources := deployment.Resources
	if resources == nil {
		resources = models.ResourceMap{}
	}

	return DeploymentResponse{
		ID:           deployment.ID,
		ProjectName:  deployment.ProjectName,
		Description:  deployment.Description,
		Template:     deployment.Template,
		CustomDomain: deployment.CustomDomain,
		Status:       deployment.Status,
		Steps:        steps,
		Resources:    resources,
		Error:        deployment.Error,
		ErrorStep:    deployment.ErrorStep,
		CreatedAt:    deployment.CreatedAt,
		UpdatedAt:    deployment.UpdatedAt,
		CompletedAt:  deployment.CompletedAt,
	}
}
