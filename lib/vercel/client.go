package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/launchforge-api/lib/providers"
)

const defaultBaseURL = "https://api.vercel.com"

const providerName = "vercel"

// DefaultPollPolicy matches the typical latency of a Vercel build
var DefaultPollPolicy = providers.PollPolicy{
	Interval: 5 * time.Second,
	Deadline: 10 * time.Minute,
}

// Credentials holds the Vercel API token and optional team scope
type Credentials struct {
	Token  string
	TeamID string
}

// Project represents a Vercel project linked to a Git repository
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Deployment represents one Vercel deployment and its build state.
// ReadyState moves QUEUED -> BUILDING -> READY, or ERROR/CANCELED.
type Deployment struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ReadyState string `json:"readyState"`
}

// Client wraps the Vercel REST API for the hosting step
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

func NewClient(creds Credentials) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// CreateProject creates a project linked to the given GitHub repository
func (c *Client) CreateProject(ctx context.Context, name, repoFullName string) (*Project, error) {
	payload := map[string]interface{}{
		"name":      name,
		"framework": nil,
		"gitRepository": map[string]string{
			"type": "github",
			"repo": repoFullName,
		},
	}

	var project Project
	if err := c.doJSON(ctx, http.MethodPost, "/v10/projects", payload, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateDeployment triggers a deployment of the linked repository's default branch
func (c *Client) CreateDeployment(ctx context.Context, projectName, repoID string) (*Deployment, error) {
	payload := map[string]interface{}{
		"name": projectName,
		"gitSource": map[string]interface{}{
			"type":   "github",
			"repoId": repoID,
			"ref":    "main",
		},
	}

	var deployment Deployment
	if err := c.doJSON(ctx, http.MethodPost, "/v13/deployments", payload, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// GetDeployment reads the current build state of a deployment
func (c *Client) GetDeployment(ctx context.Context, deploymentID string) (*Deployment, error) {
	var deployment Deployment
	if err := c.doJSON(ctx, http.MethodGet, "/v13/deployments/"+deploymentID, nil, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// WaitUntilReady polls the deployment until its build reaches READY, fails
// terminally, or the policy deadline elapses
func (c *Client) WaitUntilReady(ctx context.Context, deploymentID string, policy providers.PollPolicy) (*Deployment, error) {
	var ready *Deployment
	err := providers.Poll(ctx, providerName, policy, func(ctx context.Context) (bool, error) {
		deployment, err := c.GetDeployment(ctx, deploymentID)
		if err != nil {
			return false, err
		}
		switch deployment.ReadyState {
		case "READY":
			ready = deployment
			return true, nil
		case "ERROR", "CANCELED", "DELETED":
			return false, &providers.ProvisioningFailedError{Provider: providerName, State: deployment.ReadyState}
		default:
			return false, nil
		}
	})
	return ready, err
}

// AddDomain attaches a custom domain to the project
func (c *Client) AddDomain(ctx context.Context, projectID, domain string) error {
	payload := map[string]string{"name": domain}
	path := fmt.Sprintf("/v10/projects/%s/domains", projectID)
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + path
	if c.creds.TeamID != "" {
		endpoint += "?teamId=" + url.QueryEscape(c.creds.TeamID)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vercel request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return &providers.RequestError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode vercel response: %v", err)
		}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return string(raw)
}
