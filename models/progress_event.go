package models

// ProgressEvent is emitted once per step-status transition, plus a final
// event with an empty step ID carrying the deployment's terminal status.
// Events are observational only; the Deployment record is authoritative.
type ProgressEvent struct {
	DeploymentID string            `json:"deploymentId"`
	StepID       StepID            `json:"stepId,omitempty"`
	Status       string            `json:"status"`
	Message      string            `json:"message,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

// Terminal reports whether the event carries the deployment's final status
func (e ProgressEvent) Terminal() bool {
	return e.StepID == "" &&
		(e.Status == string(DeploymentStatusCompleted) || e.Status == string(DeploymentStatusFailed))
}
