package models

import (
	"github.com/launchforge-api/lib/atlas"
	"github.com/launchforge-api/lib/auth0"
	"github.com/launchforge-api/lib/gcloud"
	"github.com/launchforge-api/lib/github"
	"github.com/launchforge-api/lib/vercel"
)

// FeatureToggles gates the optional provisioning steps. A toggle is only
// honored when the matching provider credentials are configured; the resolver
// clears toggles whose credentials are absent.
type FeatureToggles struct {
	Database     bool
	Identity     bool
	CloudProject bool
	CustomDomain bool
}

// DeploymentConfig is the validated, fully resolved input the orchestrator
// runs from. It is immutable once built and never persisted.
type DeploymentConfig struct {
	ProjectName  string
	Description  string
	Template     string
	CustomDomain string
	Features     FeatureToggles

	GitHub github.Credentials
	Vercel vercel.Credentials
	Atlas  atlas.Credentials
	Auth0  auth0.Credentials
	GCloud gcloud.Credentials
}
