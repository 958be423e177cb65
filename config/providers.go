package config

// Environment keys per provider
const (
	EnvGitHubToken             = "GITHUB_TOKEN"
	EnvGitHubOwner             = "GITHUB_OWNER"
	EnvGitHubAppID             = "GITHUB_APP_ID"
	EnvGitHubAppInstallationID = "GITHUB_APP_INSTALLATION_ID"
	EnvGitHubAppPrivateKey     = "GITHUB_APP_PRIVATE_KEY"

	EnvVercelToken  = "VERCEL_TOKEN"
	EnvVercelTeamID = "VERCEL_TEAM_ID"

	EnvAtlasPublicKey  = "ATLAS_PUBLIC_KEY"
	EnvAtlasPrivateKey = "ATLAS_PRIVATE_KEY"
	EnvAtlasGroupID    = "ATLAS_GROUP_ID"
	EnvAtlasRegion     = "ATLAS_REGION"

	EnvAuth0Domain          = "AUTH0_DOMAIN"
	EnvAuth0ManagementToken = "AUTH0_MGMT_TOKEN"

	EnvGCloudAccessToken = "GCLOUD_ACCESS_TOKEN"
	EnvGCloudParent      = "GCLOUD_PARENT"
)

// ProviderRequirement declares which configuration keys a provider needs.
// Core providers must be fully configured before any deployment can start;
// non-core providers simply gate their optional step.
type ProviderRequirement struct {
	Provider string
	Label    string
	Core     bool
	Required []string
	Optional []string
}

// ProviderRequirements is the declarative credential table consumed by the
// resolver and the provider-status endpoint
func ProviderRequirements() []ProviderRequirement {
	return []ProviderRequirement{
		{
			Provider: "github",
			Label:    "GitHub",
			Core:     true,
			Required: []string{EnvGitHubToken, EnvGitHubOwner},
			Optional: []string{EnvGitHubAppID, EnvGitHubAppInstallationID, EnvGitHubAppPrivateKey},
		},
		{
			Provider: "vercel",
			Label:    "Vercel",
			Core:     true,
			Required: []string{EnvVercelToken},
			Optional: []string{EnvVercelTeamID},
		},
		{
			Provider: "atlas",
			Label:    "MongoDB Atlas",
			Required: []string{EnvAtlasPublicKey, EnvAtlasPrivateKey, EnvAtlasGroupID},
			Optional: []string{EnvAtlasRegion},
		},
		{
			Provider: "auth0",
			Label:    "Auth0",
			Required: []string{EnvAuth0Domain, EnvAuth0ManagementToken},
		},
		{
			Provider: "gcloud",
			Label:    "Google Cloud",
			Required: []string{EnvGCloudAccessToken},
			Optional: []string{EnvGCloudParent},
		},
	}
}

// MissingKeys returns the required keys that the lookup cannot resolve
func (r ProviderRequirement) MissingKeys(lookup func(string) (string, bool)) []string {
	var missing []string
	for _, key := range r.Required {
		if value, ok := lookup(key); !ok || value == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Configured reports whether every required key for the provider is set
func (r ProviderRequirement) Configured(lookup func(string) (string, bool)) bool {
	return len(r.MissingKeys(lookup)) == 0
}
