package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/launchforge-api/dto"
	"github.com/launchforge-api/lib/atlas"
	"github.com/launchforge-api/lib/auth0"
	"github.com/launchforge-api/lib/gcloud"
	"github.com/launchforge-api/lib/github"
	"github.com/launchforge-api/lib/providers"
	"github.com/launchforge-api/lib/vercel"
	"github.com/launchforge-api/models"
	"github.com/launchforge-api/repositories"
	"github.com/launchforge-api/utils"
)

// DeploymentStore is the record store contract the orchestrator writes
// through. The gorm repository implements it; tests substitute a fake.
type DeploymentStore interface {
	Create(deployment models.Deployment) (models.Deployment, error)
	FindByID(id string) (models.Deployment, error)
	FindAll() ([]models.Deployment, error)
	UpdateStep(deploymentID string, stepID models.StepID, patch models.StepPatch) error
	UpdateFields(deploymentID string, fields map[string]interface{}) error
}

// RepositoryClient provisions the source repository
type RepositoryClient interface {
	CreateRepository(ctx context.Context, spec github.RepositorySpec) (*github.Repository, error)
	CreateFile(ctx context.Context, repo, path, message string, content []byte) error
}

// HostingClient provisions the hosting project and its first deployment
type HostingClient interface {
	CreateProject(ctx context.Context, name, repoFullName string) (*vercel.Project, error)
	CreateDeployment(ctx context.Context, projectName, repoID string) (*vercel.Deployment, error)
	WaitUntilReady(ctx context.Context, deploymentID string, policy providers.PollPolicy) (*vercel.Deployment, error)
	AddDomain(ctx context.Context, projectID, domain string) error
}

// DatabaseClient provisions the database cluster
type DatabaseClient interface {
	CreateCluster(ctx context.Context, spec atlas.ClusterSpec) (*atlas.Cluster, error)
	CreateDatabaseUser(ctx context.Context, username, password string) error
	WaitUntilReady(ctx context.Context, name string, policy providers.PollPolicy) (*atlas.Cluster, error)
}

// IdentityClient provisions the identity tenant application
type IdentityClient interface {
	CreateApplication(ctx context.Context, spec auth0.ApplicationSpec) (*auth0.Application, error)
	UpdateCallbacks(ctx context.Context, clientID, siteURL string) error
	Domain() string
}

// CloudClient provisions the cloud project
type CloudClient interface {
	CreateProject(ctx context.Context, spec gcloud.ProjectSpec) (*gcloud.Operation, error)
	WaitUntilReady(ctx context.Context, operationName string, policy providers.PollPolicy) (*gcloud.Operation, error)
}

// ProviderSet bundles the per-deployment provider clients
type ProviderSet struct {
	Repos    RepositoryClient
	Hosting  HostingClient
	Database DatabaseClient
	Identity IdentityClient
	Cloud    CloudClient
}

// DeploymentService runs the provisioning state machine. Steps execute in a
// fixed order, one at a time; required step failure aborts the deployment,
// optional step failure is recorded and skipped over.
type DeploymentService struct {
	store    DeploymentStore
	progress *ProgressService
	resolver *ResolverService

	atlasCache   *atlas.ClientCache
	newProviders func(cfg models.DeploymentConfig) ProviderSet

	hostingPoll  providers.PollPolicy
	databasePoll providers.PollPolicy
	cloudPoll    providers.PollPolicy
	runTimeout   time.Duration
}

// NewDeploymentService wires the orchestrator against the real record store
// and provider clients
func NewDeploymentService(progress *ProgressService) *DeploymentService {
	s := &DeploymentService{
		store:        repositories.NewDeploymentRepository(),
		progress:     progress,
		resolver:     NewResolverService(),
		atlasCache:   atlas.NewClientCache(),
		hostingPoll:  vercel.DefaultPollPolicy,
		databasePoll: atlas.DefaultPollPolicy,
		cloudPoll:    gcloud.DefaultPollPolicy,
		runTimeout:   time.Hour,
	}
	s.newProviders = s.defaultProviders
	return s
}

func (s *DeploymentService) defaultProviders(cfg models.DeploymentConfig) ProviderSet {
	return ProviderSet{
		Repos:    github.NewClient(cfg.GitHub),
		Hosting:  vercel.NewClient(cfg.Vercel),
		Database: s.atlasCache.Get(cfg.Atlas),
		Identity: auth0.NewClient(cfg.Auth0),
		Cloud:    gcloud.NewClient(cfg.GCloud),
	}
}

// CreateDeployment validates the request, creates the deployment record with
// every step pending, and starts the orchestration run in the background. The
// response only confirms the start; all failure detail after this point lives
// on the record.
func (s *DeploymentService) CreateDeployment(req dto.CreateDeploymentRequest) (dto.CreateDeploymentResponse, error) {
	cfg, err := s.resolver.Resolve(req)
	if err != nil {
		return dto.CreateDeploymentResponse{}, err
	}

	deployment := models.Deployment{
		ID:           uuid.NewString(),
		ProjectName:  cfg.ProjectName,
		Description:  cfg.Description,
		Template:     cfg.Template,
		CustomDomain: cfg.CustomDomain,
		Status:       models.DeploymentStatusPending,
		Resources:    models.ResourceMap{},
		Steps:        models.NewPendingSteps(),
	}

	deployment, err = s.store.Create(deployment)
	if err != nil {
		log.Println("Error creating deployment record:", err)
		return dto.CreateDeploymentResponse{}, err
	}

	log.Printf("🚀 Starting deployment %s for project %q", deployment.ID, cfg.ProjectName)
	go s.runDeployment(cfg, deployment.ID)

	return dto.CreateDeploymentResponse{
		DeploymentID: deployment.ID,
		Status:       "started",
	}, nil
}

// GetDeploymentByID returns the current record for one deployment
func (s *DeploymentService) GetDeploymentByID(id string) (*dto.DeploymentResponse, error) {
	deployment, err := s.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	response := dto.NewDeploymentResponseFromModel(deployment)
	return &response, nil
}

// ListDeployments returns all deployment records, newest first
func (s *DeploymentService) ListDeployments() ([]dto.DeploymentResponse, error) {
	deployments, err := s.store.FindAll()
	if err != nil {
		return nil, err
	}
	responses := make([]dto.DeploymentResponse, 0, len(deployments))
	for _, deployment := range deployments {
		responses = append(responses, dto.NewDeploymentResponseFromModel(deployment))
	}
	return responses, nil
}

// runDeployment executes the provisioning steps sequentially. It owns all
// writes to the record for this deployment ID.
func (s *DeploymentService) runDeployment(cfg models.DeploymentConfig, deploymentID string) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	set := s.newProviders(cfg)
	resources := models.ResourceMap{}
	slug := utils.SanitizeProjectName(cfg.ProjectName)

	log.Printf("================ DEPLOYMENT %s STARTED ================", deploymentID)

	if err := s.store.UpdateFields(deploymentID, map[string]interface{}{
		"status": models.DeploymentStatusInProgress,
	}); err != nil {
		log.Println("Error marking deployment in progress:", err)
	}

	defer func() {
		log.Printf("⏱️ Deployment %s finished in %v", deploymentID, time.Since(startTime))
	}()

	// Step 1: source repository (required)
	if !s.execStep(ctx, deploymentID, models.StepRepository, true, resources, func(ctx context.Context) (string, error) {
		return s.provisionRepository(ctx, cfg, set, slug, resources)
	}) {
		return
	}

	// Step 2: hosting project and first deployment (required)
	if !s.execStep(ctx, deploymentID, models.StepHosting, true, resources, func(ctx context.Context) (string, error) {
		return s.provisionHosting(ctx, cfg, set, slug, resources)
	}) {
		return
	}

	// Steps 3-5 are best-effort: a failure is recorded on the step and the
	// run keeps going
	if cfg.Features.Database {
		s.execStep(ctx, deploymentID, models.StepDatabase, false, resources, func(ctx context.Context) (string, error) {
			return s.provisionDatabase(ctx, set, slug, resources)
		})
	}

	if cfg.Features.Identity {
		s.execStep(ctx, deploymentID, models.StepIdentity, false, resources, func(ctx context.Context) (string, error) {
			return s.provisionIdentity(ctx, cfg, set, resources)
		})
	}

	if cfg.Features.CloudProject {
		s.execStep(ctx, deploymentID, models.StepCloud, false, resources, func(ctx context.Context) (string, error) {
			return s.provisionCloudProject(ctx, cfg, set, slug, deploymentID, resources)
		})
	}

	s.finishDeployment(deploymentID, models.DeploymentStatusCompleted, "", "")
	log.Printf("✅ Deployment %s completed", deploymentID)
}

// execStep drives one step through in_progress -> completed|error, persisting
// each transition before publishing it. Returns false when the run must stop.
func (s *DeploymentService) execStep(ctx context.Context, deploymentID string, stepID models.StepID, required bool, resources models.ResourceMap, fn func(ctx context.Context) (string, error)) bool {
	started := time.Now()
	if err := s.store.UpdateStep(deploymentID, stepID, models.StepPatch{
		Status:    models.StepStatusInProgress,
		StartedAt: &started,
	}); err != nil {
		log.Printf("Error marking step %s in progress: %v", stepID, err)
	}
	s.publishStep(deploymentID, stepID, models.StepStatusInProgress, "", nil)

	message, err := fn(ctx)
	completed := time.Now()

	if err != nil {
		log.Printf("❌ Step %s failed for deployment %s: %v", stepID, deploymentID, err)
		if uerr := s.store.UpdateStep(deploymentID, stepID, models.StepPatch{
			Status:      models.StepStatusError,
			Error:       err.Error(),
			CompletedAt: &completed,
		}); uerr != nil {
			log.Printf("Error recording step %s failure: %v", stepID, uerr)
		}
		s.publishStep(deploymentID, stepID, models.StepStatusError, err.Error(), nil)

		if required {
			s.finishDeployment(deploymentID, models.DeploymentStatusFailed, err.Error(), string(stepID))
			log.Printf("🛑 Deployment %s aborted at required step %s", deploymentID, stepID)
			return false
		}
		return true
	}

	if uerr := s.store.UpdateStep(deploymentID, stepID, models.StepPatch{
		Status:      models.StepStatusCompleted,
		Message:     message,
		CompletedAt: &completed,
	}); uerr != nil {
		log.Printf("Error recording step %s completion: %v", stepID, uerr)
	}
	if uerr := s.store.UpdateFields(deploymentID, map[string]interface{}{
		"resources": resources,
	}); uerr != nil {
		log.Printf("Error persisting resources after step %s: %v", stepID, uerr)
	}
	s.publishStep(deploymentID, stepID, models.StepStatusCompleted, message, resources)
	log.Printf("✅ Step %s completed for deployment %s", stepID, deploymentID)
	return true
}

func (s *DeploymentService) finishDeployment(deploymentID string, status models.DeploymentStatus, errMessage, errStep string) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":       status,
		"completed_at": &now,
	}
	if status == models.DeploymentStatusFailed {
		fields["error"] = errMessage
		fields["error_step"] = errStep
	}
	if err := s.store.UpdateFields(deploymentID, fields); err != nil {
		log.Printf("Error recording terminal status for deployment %s: %v", deploymentID, err)
	}

	s.progress.Publish(models.ProgressEvent{
		DeploymentID: deploymentID,
		Status:       string(status),
		Message:      errMessage,
	})
}

func (s *DeploymentService) publishStep(deploymentID string, stepID models.StepID, status models.StepStatus, message string, resources models.ResourceMap) {
	event := models.ProgressEvent{
		DeploymentID: deploymentID,
		StepID:       stepID,
		Status:       string(status),
		Message:      message,
	}
	// Subscribers read events concurrently with the run goroutine's later
	// writes, so each event carries its own snapshot of the resources
	if len(resources) > 0 {
		event.Data = resources.Clone()
	}
	s.progress.Publish(event)
}

func (s *DeploymentService) provisionRepository(ctx context.Context, cfg models.DeploymentConfig, set ProviderSet, slug string, resources models.ResourceMap) (string, error) {
	repo, err := set.Repos.CreateRepository(ctx, github.RepositorySpec{
		Name:        slug,
		Description: cfg.Description,
		Private:     true,
		AutoInit:    true,
	})
	if err != nil {
		return "", err
	}

	resources[models.ResourceRepoURL] = repo.HTMLURL
	resources[models.ResourceRepoFullName] = repo.FullName
	resources[models.ResourceRepoID] = strconv.FormatInt(repo.ID, 10)

	marker := fmt.Sprintf("{\n  \"project\": %q,\n  \"template\": %q\n}\n", cfg.ProjectName, cfg.Template)
	if err := set.Repos.CreateFile(ctx, repo.Name, ".launchforge.json", "Add project template marker", []byte(marker)); err != nil {
		return "", err
	}

	return fmt.Sprintf("Repository %s created", repo.FullName), nil
}

func (s *DeploymentService) provisionHosting(ctx context.Context, cfg models.DeploymentConfig, set ProviderSet, slug string, resources models.ResourceMap) (string, error) {
	project, err := set.Hosting.CreateProject(ctx, slug, resources[models.ResourceRepoFullName])
	if err != nil {
		return "", err
	}

	deployment, err := set.Hosting.CreateDeployment(ctx, project.Name, resources[models.ResourceRepoID])
	if err != nil {
		return "", err
	}

	ready, err := set.Hosting.WaitUntilReady(ctx, deployment.ID, s.hostingPoll)
	if err != nil {
		return "", err
	}

	// Resources are written only once the step can no longer fail
	resources[models.ResourceHostingProject] = project.ID

	siteURL := ready.URL
	if !strings.HasPrefix(siteURL, "https://") {
		siteURL = "https://" + siteURL
	}
	resources[models.ResourceDeployURL] = siteURL

	message := fmt.Sprintf("Deployed to %s", siteURL)
	if cfg.Features.CustomDomain && cfg.CustomDomain != "" {
		if err := set.Hosting.AddDomain(ctx, project.ID, cfg.CustomDomain); err != nil {
			// The site is live either way; domain attach failure is worth a
			// note but not a failed deployment
			log.Printf("⚠️ Could not attach custom domain %s: %v", cfg.CustomDomain, err)
			message += fmt.Sprintf("; custom domain %s not attached: %v", cfg.CustomDomain, err)
		} else {
			resources[models.ResourceCustomDomain] = cfg.CustomDomain
			message += fmt.Sprintf("; custom domain %s attached", cfg.CustomDomain)
		}
	}

	return message, nil
}

func (s *DeploymentService) provisionDatabase(ctx context.Context, set ProviderSet, slug string, resources models.ResourceMap) (string, error) {
	clusterName := slug
	if _, err := set.Database.CreateCluster(ctx, atlas.ClusterSpec{
		Name: clusterName,
		Tier: "M10",
	}); err != nil {
		return "", err
	}

	username := slug + "-app"
	password := utils.GenerateSecret(18)
	if err := set.Database.CreateDatabaseUser(ctx, username, password); err != nil {
		return "", err
	}

	cluster, err := set.Database.WaitUntilReady(ctx, clusterName, s.databasePoll)
	if err != nil {
		return "", err
	}

	resources[models.ResourceDatabaseName] = clusterName
	resources[models.ResourceDatabaseURI] = connectionURI(cluster.ConnectionStrings.StandardSrv, username, password)

	return fmt.Sprintf("Cluster %s ready", clusterName), nil
}

func (s *DeploymentService) provisionIdentity(ctx context.Context, cfg models.DeploymentConfig, set ProviderSet, resources models.ResourceMap) (string, error) {
	app, err := set.Identity.CreateApplication(ctx, auth0.ApplicationSpec{
		Name:    cfg.ProjectName,
		AppType: "regular_web",
	})
	if err != nil {
		return "", err
	}

	if siteURL := resources[models.ResourceDeployURL]; siteURL != "" {
		if err := set.Identity.UpdateCallbacks(ctx, app.ClientID, siteURL); err != nil {
			return "", err
		}
	}

	resources[models.ResourceIdentityClient] = app.ClientID
	resources[models.ResourceIdentityDomain] = set.Identity.Domain()

	return fmt.Sprintf("Identity application %s configured", app.ClientID), nil
}

func (s *DeploymentService) provisionCloudProject(ctx context.Context, cfg models.DeploymentConfig, set ProviderSet, slug, deploymentID string, resources models.ResourceMap) (string, error) {
	projectID := slug + "-" + utils.ShortID(deploymentID)
	op, err := set.Cloud.CreateProject(ctx, gcloud.ProjectSpec{
		ProjectID:   projectID,
		DisplayName: cfg.ProjectName,
	})
	if err != nil {
		return "", err
	}

	finished, err := set.Cloud.WaitUntilReady(ctx, op.Name, s.cloudPoll)
	if err != nil {
		return "", err
	}

	created := finished.Response.ProjectID
	if created == "" {
		created = projectID
	}
	resources[models.ResourceCloudProject] = created

	return fmt.Sprintf("Cloud project %s created", created), nil
}

// connectionURI injects the generated user credentials into the cluster's
// SRV connection string
func connectionURI(standardSrv, username, password string) string {
	const scheme = "mongodb+srv://"
	if !strings.HasPrefix(standardSrv, scheme) {
		return standardSrv
	}
	return scheme + username + ":" + password + "@" + strings.TrimPrefix(standardSrv, scheme)
}
