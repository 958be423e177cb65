package models

import "time"

// StepID identifies one provisioning step. The set is fixed and the order
// below is the execution order.
type StepID string

const (
	StepRepository StepID = "repository"
	StepHosting    StepID = "hosting"
	StepDatabase   StepID = "database"
	StepIdentity   StepID = "identity"
	StepCloud      StepID = "cloud"
)

// StepStatus represents the state of one step. Steps move
// pending -> in_progress -> completed|error and never regress.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusError      StepStatus = "error"
)

// DeploymentStep represents one unit of provisioning work against one provider
type DeploymentStep struct {
	ID           string     `json:"-" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	DeploymentID string     `json:"-" gorm:"type:uuid;not null;index"`
	StepID       StepID     `json:"id" gorm:"type:varchar(20);not null"`
	Name         string     `json:"name" gorm:"not null"`
	Position     int        `json:"-" gorm:"not null"`
	Status       StepStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Message      string     `json:"message,omitempty" gorm:"default:null"`
	Error        string     `json:"error,omitempty" gorm:"default:null"`
	CreatedAt    time.Time  `json:"-"`
	UpdatedAt    time.Time  `json:"-"`
}

// TableName sets the table name for DeploymentStep model
func (DeploymentStep) TableName() string {
	return "deployment_steps"
}

// StepPatch carries the fields a step update may change. Nil/empty fields are
// left untouched.
type StepPatch struct {
	Status      StepStatus
	Message     string
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewPendingSteps returns the full ordered step list for a fresh deployment
func NewPendingSteps() []DeploymentStep {
	labels := []struct {
		id   StepID
		name string
	}{
		{StepRepository, "Create source repository"},
		{StepHosting, "Create hosting project and deploy"},
		{StepDatabase, "Provision database cluster"},
		{StepIdentity, "Configure identity tenant"},
		{StepCloud, "Create cloud project"},
	}

	steps := make([]DeploymentStep, 0, len(labels))
	for i, label := range labels {
		steps = append(steps, DeploymentStep{
			StepID:   label.id,
			Name:     label.name,
			Position: i,
			Status:   StepStatusPending,
		})
	}
	return steps
}
