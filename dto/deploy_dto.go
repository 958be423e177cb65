package dto

// FeatureSelection selects the optional provisioning steps for a deployment
type FeatureSelection struct {
	Database     bool `json:"database"`
	Identity     bool `json:"identity"`
	CloudProject bool `json:"cloudProject"`
	CustomDomain bool `json:"customDomain"`
}

// CreateDeploymentRequest represents a request to provision a new application
type CreateDeploymentRequest struct {
	ProjectName  string           `json:"projectName" validate:"required,min=3,max=64"`
	Description  string           `json:"description" validate:"required,max=500"`
	Template     string           `json:"template" validate:"omitempty,oneof=minimal saas blog landing"`
	CustomDomain string           `json:"customDomain" validate:"omitempty,fqdn"`
	Features     FeatureSelection `json:"features"`
}

// CreateDeploymentResponse is returned as soon as orchestration has been
// started in the background; all further detail is discoverable only through
// the deployment record and the event stream
type CreateDeploymentResponse struct {
	DeploymentID string `json:"deploymentId"`
	Status       string `json:"status"`
}
