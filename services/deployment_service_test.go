package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/launchforge-api/lib/atlas"
	"github.com/launchforge-api/lib/auth0"
	"github.com/launchforge-api/lib/gcloud"
	"github.com/launchforge-api/lib/github"
	"github.com/launchforge-api/lib/providers"
	"github.com/launchforge-api/lib/vercel"
	"github.com/launchforge-api/models"
)

// fakeStore is an in-memory DeploymentStore that records every step
// transition in the order it was written
type fakeStore struct {
	mu          sync.Mutex
	deployment  models.Deployment
	transitions []string
}

func (f *fakeStore) Create(deployment models.Deployment) (models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployment = deployment
	return deployment, nil
}

func (f *fakeStore) FindByID(id string) (models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deployment, nil
}

func (f *fakeStore) FindAll() ([]models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []models.Deployment{f.deployment}, nil
}

func (f *fakeStore) UpdateStep(deploymentID string, stepID models.StepID, patch models.StepPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.deployment.Steps {
		if f.deployment.Steps[i].StepID != stepID {
			continue
		}
		if patch.Status != "" {
			f.deployment.Steps[i].Status = patch.Status
			f.transitions = append(f.transitions, string(stepID)+":"+string(patch.Status))
		}
		if patch.Message != "" {
			f.deployment.Steps[i].Message = patch.Message
		}
		if patch.Error != "" {
			f.deployment.Steps[i].Error = patch.Error
		}
		if patch.StartedAt != nil {
			f.deployment.Steps[i].StartedAt = patch.StartedAt
		}
		if patch.CompletedAt != nil {
			f.deployment.Steps[i].CompletedAt = patch.CompletedAt
		}
	}
	return nil
}

func (f *fakeStore) UpdateFields(deploymentID string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := fields["status"].(models.DeploymentStatus); ok {
		f.deployment.Status = status
	}
	if errMessage, ok := fields["error"].(string); ok {
		f.deployment.Error = errMessage
	}
	if errStep, ok := fields["error_step"].(string); ok {
		f.deployment.ErrorStep = errStep
	}
	if resources, ok := fields["resources"].(models.ResourceMap); ok {
		merged := models.ResourceMap{}
		for k, v := range resources {
			merged[k] = v
		}
		f.deployment.Resources = merged
	}
	if completedAt, ok := fields["completed_at"].(*time.Time); ok {
		f.deployment.CompletedAt = completedAt
	}
	return nil
}

func (f *fakeStore) step(stepID models.StepID) models.DeploymentStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, step := range f.deployment.Steps {
		if step.StepID == stepID {
			return step
		}
	}
	return models.DeploymentStep{}
}

func (f *fakeStore) stepTransitions(stepID models.StepID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.transitions {
		if strings.HasPrefix(t, string(stepID)+":") {
			out = append(out, strings.TrimPrefix(t, string(stepID)+":"))
		}
	}
	return out
}

type fakeRepoClient struct {
	createErr error
	fileErr   error
	files     []string
}

func (f *fakeRepoClient) CreateRepository(ctx context.Context, spec github.RepositorySpec) (*github.Repository, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &github.Repository{
		ID:       4242,
		Name:     spec.Name,
		FullName: "acme/" + spec.Name,
		HTMLURL:  "https://github.com/acme/" + spec.Name,
		CloneURL: "https://github.com/acme/" + spec.Name + ".git",
	}, nil
}

func (f *fakeRepoClient) CreateFile(ctx context.Context, repo, path, message string, content []byte) error {
	if f.fileErr != nil {
		return f.fileErr
	}
	f.files = append(f.files, path)
	return nil
}

type fakeHostingClient struct {
	createErr  error
	waitErr    error
	domainErr  error
	domainsSet []string
}

func (f *fakeHostingClient) CreateProject(ctx context.Context, name, repoFullName string) (*vercel.Project, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &vercel.Project{ID: "prj_1", Name: name}, nil
}

func (f *fakeHostingClient) CreateDeployment(ctx context.Context, projectName, repoID string) (*vercel.Deployment, error) {
	return &vercel.Deployment{ID: "dpl_1", ReadyState: "QUEUED"}, nil
}

func (f *fakeHostingClient) WaitUntilReady(ctx context.Context, deploymentID string, policy providers.PollPolicy) (*vercel.Deployment, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &vercel.Deployment{ID: deploymentID, URL: "myapp.vercel.app", ReadyState: "READY"}, nil
}

func (f *fakeHostingClient) AddDomain(ctx context.Context, projectID, domain string) error {
	if f.domainErr != nil {
		return f.domainErr
	}
	f.domainsSet = append(f.domainsSet, domain)
	return nil
}

type fakeDatabaseClient struct {
	createErr error
	waitErr   error
	users     []string
}

func (f *fakeDatabaseClient) CreateCluster(ctx context.Context, spec atlas.ClusterSpec) (*atlas.Cluster, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &atlas.Cluster{Name: spec.Name, StateName: "CREATING"}, nil
}

func (f *fakeDatabaseClient) CreateDatabaseUser(ctx context.Context, username, password string) error {
	f.users = append(f.users, username)
	return nil
}

func (f *fakeDatabaseClient) WaitUntilReady(ctx context.Context, name string, policy providers.PollPolicy) (*atlas.Cluster, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	cluster := &atlas.Cluster{Name: name, StateName: "IDLE"}
	cluster.ConnectionStrings.StandardSrv = "mongodb+srv://" + name + ".example.mongodb.net"
	return cluster, nil
}

type fakeIdentityClient struct {
	createErr   error
	callbackURL string
}

func (f *fakeIdentityClient) CreateApplication(ctx context.Context, spec auth0.ApplicationSpec) (*auth0.Application, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &auth0.Application{ClientID: "client_1", Name: spec.Name}, nil
}

func (f *fakeIdentityClient) UpdateCallbacks(ctx context.Context, clientID, siteURL string) error {
	f.callbackURL = siteURL
	return nil
}

func (f *fakeIdentityClient) Domain() string {
	return "acme.us.auth0.com"
}

type fakeCloudClient struct {
	createErr error
	waitErr   error
}

func (f *fakeCloudClient) CreateProject(ctx context.Context, spec gcloud.ProjectSpec) (*gcloud.Operation, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gcloud.Operation{Name: "operations/op-1"}, nil
}

func (f *fakeCloudClient) WaitUntilReady(ctx context.Context, operationName string, policy providers.PollPolicy) (*gcloud.Operation, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	op := &gcloud.Operation{Name: operationName, Done: true}
	op.Response.ProjectID = "my-app-12345678"
	return op, nil
}

func defaultProviderSet() (ProviderSet, *fakeRepoClient, *fakeHostingClient, *fakeDatabaseClient, *fakeIdentityClient, *fakeCloudClient) {
	repos := &fakeRepoClient{}
	hosting := &fakeHostingClient{}
	database := &fakeDatabaseClient{}
	identity := &fakeIdentityClient{}
	cloud := &fakeCloudClient{}
	return ProviderSet{
		Repos:    repos,
		Hosting:  hosting,
		Database: database,
		Identity: identity,
		Cloud:    cloud,
	}, repos, hosting, database, identity, cloud
}

func newTestService(store *fakeStore, set ProviderSet) *DeploymentService {
	s := &DeploymentService{
		store:      store,
		progress:   NewProgressService(),
		runTimeout: time.Minute,
	}
	s.newProviders = func(models.DeploymentConfig) ProviderSet { return set }
	return s
}

func startRecord(t *testing.T, store *fakeStore) string {
	t.Helper()
	deployment := models.Deployment{
		ID:          uuid.NewString(),
		ProjectName: "My App",
		Status:      models.DeploymentStatusPending,
		Resources:   models.ResourceMap{},
		Steps:       models.NewPendingSteps(),
	}
	if _, err := store.Create(deployment); err != nil {
		t.Fatalf("creating record: %v", err)
	}
	return deployment.ID
}

func TestRunDeploymentCompletesWithOnlyRequiredSteps(t *testing.T) {
	set, _, _, _, _, _ := defaultProviderSet()
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	svc.runDeployment(models.DeploymentConfig{ProjectName: "My App", Template: "minimal"}, id)

	record, _ := store.FindByID(id)
	if record.Status != models.DeploymentStatusCompleted {
		t.Fatalf("expected completed, got %s (error: %s)", record.Status, record.Error)
	}
	if record.CompletedAt == nil {
		t.Fatal("expected completedAt to be set")
	}

	for _, stepID := range []models.StepID{models.StepRepository, models.StepHosting} {
		if got := store.step(stepID).Status; got != models.StepStatusCompleted {
			t.Fatalf("expected step %s completed, got %s", stepID, got)
		}
	}
	for _, stepID := range []models.StepID{models.StepDatabase, models.StepIdentity, models.StepCloud} {
		if got := store.step(stepID).Status; got != models.StepStatusPending {
			t.Fatalf("expected step %s untouched, got %s", stepID, got)
		}
	}

	if record.Resources[models.ResourceRepoURL] != "https://github.com/acme/my-app" {
		t.Fatalf("unexpected repository URL: %q", record.Resources[models.ResourceRepoURL])
	}
	if record.Resources[models.ResourceDeployURL] != "https://myapp.vercel.app" {
		t.Fatalf("unexpected deployment URL: %q", record.Resources[models.ResourceDeployURL])
	}
	if _, ok := record.Resources[models.ResourceDatabaseURI]; ok {
		t.Fatal("expected no database resource for a skipped step")
	}
	if _, ok := record.Resources[models.ResourceIdentityClient]; ok {
		t.Fatal("expected no identity resource for a skipped step")
	}
}

func TestRunDeploymentAbortsWhenRepositoryCreationFails(t *testing.T) {
	set, repos, _, _, _, _ := defaultProviderSet()
	repos.createErr = &providers.RequestError{Provider: "github", StatusCode: 422, Message: "name already exists on this account"}
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	svc.runDeployment(models.DeploymentConfig{
		ProjectName: "My App",
		Features:    models.FeatureToggles{Database: true, Identity: true, CloudProject: true},
	}, id)

	record, _ := store.FindByID(id)
	if record.Status != models.DeploymentStatusFailed {
		t.Fatalf("expected failed, got %s", record.Status)
	}
	if record.ErrorStep != string(models.StepRepository) {
		t.Fatalf("expected errorStep repository, got %q", record.ErrorStep)
	}
	if !strings.Contains(record.Error, "422") {
		t.Fatalf("expected error to carry the provider status, got %q", record.Error)
	}

	if got := store.step(models.StepRepository).Status; got != models.StepStatusError {
		t.Fatalf("expected repository step error, got %s", got)
	}
	// No later step may ever leave pending after a required step fails
	for _, stepID := range []models.StepID{models.StepHosting, models.StepDatabase, models.StepIdentity, models.StepCloud} {
		if transitions := store.stepTransitions(stepID); len(transitions) != 0 {
			t.Fatalf("expected no transitions for step %s, got %v", stepID, transitions)
		}
	}
}

func TestRunDeploymentTreatsDatabaseTimeoutAsBestEffort(t *testing.T) {
	set, _, _, database, _, _ := defaultProviderSet()
	database.waitErr = &providers.TimeoutError{Provider: "atlas", Elapsed: 30 * time.Minute}
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	svc.runDeployment(models.DeploymentConfig{
		ProjectName: "My App",
		Features:    models.FeatureToggles{Database: true, Identity: true},
	}, id)

	record, _ := store.FindByID(id)
	if record.Status != models.DeploymentStatusCompleted {
		t.Fatalf("expected completed despite database timeout, got %s", record.Status)
	}
	if record.ErrorStep != "" {
		t.Fatalf("expected no errorStep for an optional failure, got %q", record.ErrorStep)
	}

	dbStep := store.step(models.StepDatabase)
	if dbStep.Status != models.StepStatusError {
		t.Fatalf("expected database step error, got %s", dbStep.Status)
	}
	if !strings.Contains(dbStep.Error, "timed out") {
		t.Fatalf("expected timeout error on the step, got %q", dbStep.Error)
	}
	if _, ok := record.Resources[models.ResourceDatabaseURI]; ok {
		t.Fatal("expected no database resource after a timeout")
	}

	// The run moved on to the identity step
	if got := store.step(models.StepIdentity).Status; got != models.StepStatusCompleted {
		t.Fatalf("expected identity step completed, got %s", got)
	}
}

func TestRunDeploymentAbortsWhenHostingBuildFails(t *testing.T) {
	set, _, hosting, _, _, _ := defaultProviderSet()
	hosting.waitErr = &providers.ProvisioningFailedError{Provider: "vercel", State: "ERROR"}
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	svc.runDeployment(models.DeploymentConfig{
		ProjectName: "My App",
		Features:    models.FeatureToggles{Database: true},
	}, id)

	record, _ := store.FindByID(id)
	if record.Status != models.DeploymentStatusFailed {
		t.Fatalf("expected failed, got %s", record.Status)
	}
	if record.ErrorStep != string(models.StepHosting) {
		t.Fatalf("expected errorStep hosting, got %q", record.ErrorStep)
	}
	if transitions := store.stepTransitions(models.StepDatabase); len(transitions) != 0 {
		t.Fatalf("expected database to stay pending, got %v", transitions)
	}
	// The repository step succeeded before the abort and its resources remain
	if record.Resources[models.ResourceRepoFullName] != "acme/my-app" {
		t.Fatalf("expected repository resources retained, got %v", record.Resources)
	}
}

func TestRunDeploymentStepTransitionsAreMonotonic(t *testing.T) {
	set, _, _, _, _, _ := defaultProviderSet()
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	svc.runDeployment(models.DeploymentConfig{
		ProjectName: "My App",
		Features:    models.FeatureToggles{Database: true, Identity: true, CloudProject: true},
	}, id)

	for _, stepID := range []models.StepID{models.StepRepository, models.StepHosting, models.StepDatabase, models.StepIdentity, models.StepCloud} {
		transitions := store.stepTransitions(stepID)
		want := []string{string(models.StepStatusInProgress), string(models.StepStatusCompleted)}
		if len(transitions) != len(want) || transitions[0] != want[0] || transitions[1] != want[1] {
			t.Fatalf("step %s transitions = %v, want %v", stepID, transitions, want)
		}
	}
}

func TestRunDeploymentWiresResourcesBetweenSteps(t *testing.T) {
	set, _, hosting, database, identity, _ := defaultProviderSet()
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	svc.runDeployment(models.DeploymentConfig{
		ProjectName:  "My App",
		CustomDomain: "myapp.example.com",
		Features:     models.FeatureToggles{Database: true, Identity: true, CustomDomain: true},
	}, id)

	record, _ := store.FindByID(id)
	if record.Status != models.DeploymentStatusCompleted {
		t.Fatalf("expected completed, got %s", record.Status)
	}

	// Identity callbacks point at the URL the hosting step produced
	if identity.callbackURL != "https://myapp.vercel.app" {
		t.Fatalf("expected identity callbacks at the deploy URL, got %q", identity.callbackURL)
	}
	if len(hosting.domainsSet) != 1 || hosting.domainsSet[0] != "myapp.example.com" {
		t.Fatalf("expected custom domain attached, got %v", hosting.domainsSet)
	}
	if record.Resources[models.ResourceCustomDomain] != "myapp.example.com" {
		t.Fatalf("expected custom domain resource, got %v", record.Resources)
	}

	uri := record.Resources[models.ResourceDatabaseURI]
	if !strings.HasPrefix(uri, "mongodb+srv://my-app-app:") || !strings.HasSuffix(uri, "@my-app.example.mongodb.net") {
		t.Fatalf("unexpected database URI: %q", uri)
	}
	if len(database.users) != 1 || database.users[0] != "my-app-app" {
		t.Fatalf("expected one database user, got %v", database.users)
	}
}

func TestRunDeploymentPublishesEventsInOrderWithTerminalSentinel(t *testing.T) {
	set, _, _, _, _, _ := defaultProviderSet()
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	events, cancel := svc.progress.Subscribe(id)
	defer cancel()

	svc.runDeployment(models.DeploymentConfig{ProjectName: "My App"}, id)

	var got []string
	for {
		select {
		case event := <-events:
			if event.Terminal() {
				if event.Status != string(models.DeploymentStatusCompleted) {
					t.Fatalf("expected completed sentinel, got %s", event.Status)
				}
				want := []string{
					"repository:in_progress", "repository:completed",
					"hosting:in_progress", "hosting:completed",
				}
				if len(got) != len(want) {
					t.Fatalf("events = %v, want %v", got, want)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("events = %v, want %v", got, want)
					}
				}
				return
			}
			got = append(got, string(event.StepID)+":"+string(event.Status))
		default:
			t.Fatalf("event stream ended early, got %v", got)
		}
	}
}

func TestProvisionHostingWritesNoResourcesOnFailure(t *testing.T) {
	set, _, hosting, _, _, _ := defaultProviderSet()
	hosting.waitErr = &providers.ProvisioningFailedError{Provider: "vercel", State: "ERROR"}
	svc := newTestService(&fakeStore{}, set)

	resources := models.ResourceMap{models.ResourceRepoFullName: "acme/my-app"}
	_, err := svc.provisionHosting(context.Background(), models.DeploymentConfig{ProjectName: "My App"}, set, "my-app", resources)
	if err == nil {
		t.Fatal("expected the hosting failure back")
	}

	// A failed step must leave no trace in the resources map, even for the
	// intermediate resources it created before failing
	for _, key := range []string{models.ResourceHostingProject, models.ResourceDeployURL} {
		if _, ok := resources[key]; ok {
			t.Fatalf("failed hosting step wrote resource %s: %v", key, resources)
		}
	}
}

func TestStepEventsCarryResourceSnapshots(t *testing.T) {
	set, _, _, _, _, _ := defaultProviderSet()
	store := &fakeStore{}
	svc := newTestService(store, set)
	id := startRecord(t, store)

	events, cancel := svc.progress.Subscribe(id)
	defer cancel()

	svc.runDeployment(models.DeploymentConfig{
		ProjectName: "My App",
		Features:    models.FeatureToggles{Database: true, Identity: true},
	}, id)

	// The run is over and every step mutated the resources map; each event
	// must still show only what existed when it was published
	var hostingData map[string]string
	drained := false
	for !drained {
		select {
		case event := <-events:
			if event.StepID == models.StepHosting && event.Status == string(models.StepStatusCompleted) {
				hostingData = event.Data
			}
			drained = event.Terminal()
		default:
			drained = true
		}
	}

	if hostingData == nil {
		t.Fatal("expected a hosting completed event with resource data")
	}
	if hostingData[models.ResourceDeployURL] != "https://myapp.vercel.app" {
		t.Fatalf("expected the deploy URL in the hosting event, got %v", hostingData)
	}
	for _, later := range []string{models.ResourceDatabaseURI, models.ResourceIdentityClient} {
		if _, ok := hostingData[later]; ok {
			t.Fatalf("hosting event leaked a later step's resource %s: %v", later, hostingData)
		}
	}

	record, _ := store.FindByID(id)
	if _, ok := record.Resources[models.ResourceDatabaseURI]; !ok {
		t.Fatalf("expected the final record to carry the database resource, got %v", record.Resources)
	}
}

func TestCreateDeploymentRejectsInvalidRequestWithoutTouchingStore(t *testing.T) {
	set, _, _, _, _, _ := defaultProviderSet()
	store := &fakeStore{}
	svc := newTestService(store, set)
	svc.resolver = &ResolverService{
		lookup:   func(string) (string, bool) { return "", false },
		validate: newTestValidator(),
	}

	_, err := svc.CreateDeployment(testRequest("", ""))
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if store.deployment.ID != "" {
		t.Fatal("expected no record to be created")
	}
	if len(store.transitions) != 0 {
		t.Fatalf("expected no step transitions, got %v", store.transitions)
	}
}

func TestCreateDeploymentRunsToCompletionInBackground(t *testing.T) {
	set, _, _, _, _, _ := defaultProviderSet()
	store := &fakeStore{}
	svc := newTestService(store, set)
	svc.resolver = &ResolverService{
		lookup:   coreEnvLookup(),
		validate: newTestValidator(),
	}

	response, err := svc.CreateDeployment(testRequest("My App", "A test application"))
	if err != nil {
		t.Fatalf("CreateDeployment returned error: %v", err)
	}
	if response.Status != "started" {
		t.Fatalf("expected status started, got %q", response.Status)
	}
	if response.DeploymentID == "" {
		t.Fatal("expected a deployment ID")
	}

	waitForStatus(t, store, models.DeploymentStatusCompleted)
}

func waitForStatus(t *testing.T, store *fakeStore, want models.DeploymentStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, _ := store.FindByID("")
		if record.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	record, _ := store.FindByID("")
	t.Fatalf("deployment never reached %s, last status %s", want, record.Status)
}
