package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// DeploymentStatus represents the overall state of a deployment
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusInProgress DeploymentStatus = "in_progress"
	DeploymentStatusCompleted  DeploymentStatus = "completed"
	DeploymentStatusFailed     DeploymentStatus = "failed"
)

// ResourceMap custom type for JSON storage of provisioned resource identifiers.
// Keys are written once each by the step that produced them.
type ResourceMap map[string]string

func (r ResourceMap) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *ResourceMap) Scan(value interface{}) error {
	if value == nil {
		*r = make(map[string]string)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, r)
}

// Clone returns an independent copy, so a snapshot handed to a concurrent
// reader is not affected by later writes
func (r ResourceMap) Clone() ResourceMap {
	if r == nil {
		return nil
	}
	out := make(ResourceMap, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Resource keys produced by the provisioning steps
const (
	ResourceRepoURL        = "repositoryUrl"
	ResourceRepoFullName   = "repositoryFullName"
	ResourceRepoID         = "repositoryId"
	ResourceHostingProject = "hostingProjectId"
	ResourceDeployURL      = "deploymentUrl"
	ResourceDatabaseName   = "databaseCluster"
	ResourceDatabaseURI    = "databaseUri"
	ResourceIdentityClient = "identityClientId"
	ResourceIdentityDomain = "identityDomain"
	ResourceCloudProject   = "cloudProjectId"
	ResourceCustomDomain   = "customDomain"
)

// Deployment represents one end-to-end provisioning attempt. It is created
// once at submission with every step pending, then mutated only by the
// orchestrator, one step at a time.
type Deployment struct {
	ID           string           `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectName  string           `json:"projectName" gorm:"not null"`
	Description  string           `json:"description" gorm:"default:null"`
	Template     string           `json:"template" gorm:"default:minimal"`
	CustomDomain string           `json:"customDomain,omitempty" gorm:"default:null"`
	Status       DeploymentStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	Resources    ResourceMap      `json:"resources" gorm:"type:jsonb;default:'{}'"`
	Error        string           `json:"error,omitempty" gorm:"default:null"`
	ErrorStep    string           `json:"errorStep,omitempty" gorm:"default:null"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	DeletedAt    gorm.DeletedAt   `json:"-" gorm:"index"`

	// Relations
	Steps []DeploymentStep `json:"steps,omitempty" gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for Deployment model
func (Deployment) TableName() string {
	return "deployments"
}
