package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/launchforge-api/config"
	"github.com/launchforge-api/dto"
	"github.com/launchforge-api/lib/atlas"
	"github.com/launchforge-api/lib/auth0"
	"github.com/launchforge-api/lib/gcloud"
	"github.com/launchforge-api/lib/github"
	"github.com/launchforge-api/lib/vercel"
	"github.com/launchforge-api/models"
)

// ValidationError reports every invalid request field in one pass so the
// caller can fix all of them in a single round trip
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid deployment request: " + strings.Join(e.Fields, ", ")
}

// MissingConfigurationError reports every required credential key that is
// absent from the environment
type MissingConfigurationError struct {
	Fields []string
}

func (e *MissingConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Fields, ", ")
}

// ResolverService validates a deployment request and assembles the resolved
// configuration from environment credentials. It is pure validation and
// assembly; it never contacts a provider.
type ResolverService struct {
	lookup   func(string) (string, bool)
	validate *validator.Validate
}

// NewResolverService creates a resolver backed by the process environment
func NewResolverService() *ResolverService {
	return &ResolverService{
		lookup:   func(key string) (string, bool) { return config.LookupEnv(key) },
		validate: validator.New(),
	}
}

// Resolve validates the request and builds the immutable DeploymentConfig.
// It returns *ValidationError for bad request fields and
// *MissingConfigurationError for absent core provider credentials; optional
// providers whose credentials are absent just have their feature disabled.
func (s *ResolverService) Resolve(req dto.CreateDeploymentRequest) (models.DeploymentConfig, error) {
	var cfg models.DeploymentConfig

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldName(fe), fe.Tag()))
			}
			return cfg, &ValidationError{Fields: fields}
		}
		return cfg, err
	}

	if req.Features.CustomDomain && strings.TrimSpace(req.CustomDomain) == "" {
		return cfg, &ValidationError{Fields: []string{"customDomain (required when the custom domain feature is enabled)"}}
	}

	requirements := map[string]config.ProviderRequirement{}
	var missing []string
	for _, r := range config.ProviderRequirements() {
		requirements[r.Provider] = r
		if r.Core {
			missing = append(missing, r.MissingKeys(s.lookup)...)
		}
	}
	if len(missing) > 0 {
		return cfg, &MissingConfigurationError{Fields: missing}
	}

	template := req.Template
	if template == "" {
		template = "minimal"
	}

	cfg = models.DeploymentConfig{
		ProjectName:  req.ProjectName,
		Description:  req.Description,
		Template:     template,
		CustomDomain: req.CustomDomain,
		Features: models.FeatureToggles{
			Database:     req.Features.Database && requirements["atlas"].Configured(s.lookup),
			Identity:     req.Features.Identity && requirements["auth0"].Configured(s.lookup),
			CloudProject: req.Features.CloudProject && requirements["gcloud"].Configured(s.lookup),
			CustomDomain: req.Features.CustomDomain,
		},
		GitHub: github.Credentials{
			Token:          s.get(config.EnvGitHubToken),
			Owner:          s.get(config.EnvGitHubOwner),
			AppID:          s.get(config.EnvGitHubAppID),
			InstallationID: s.get(config.EnvGitHubAppInstallationID),
			PrivateKeyPEM:  s.get(config.EnvGitHubAppPrivateKey),
		},
		Vercel: vercel.Credentials{
			Token:  s.get(config.EnvVercelToken),
			TeamID: s.get(config.EnvVercelTeamID),
		},
		Atlas: atlas.Credentials{
			PublicKey:  s.get(config.EnvAtlasPublicKey),
			PrivateKey: s.get(config.EnvAtlasPrivateKey),
			GroupID:    s.get(config.EnvAtlasGroupID),
			Region:     s.getDefault(config.EnvAtlasRegion, "US_EAST_1"),
		},
		Auth0: auth0.Credentials{
			Domain:          s.get(config.EnvAuth0Domain),
			ManagementToken: s.get(config.EnvAuth0ManagementToken),
		},
		GCloud: gcloud.Credentials{
			AccessToken: s.get(config.EnvGCloudAccessToken),
			Parent:      s.get(config.EnvGCloudParent),
		},
	}

	return cfg, nil
}

func (s *ResolverService) get(key string) string {
	value, _ := s.lookup(key)
	return value
}

func (s *ResolverService) getDefault(key, fallback string) string {
	if value, ok := s.lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

// fieldName prefers the json tag name reported by the validator
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.StructField()
	}
	return name
}
