package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/launchforge-api/lib/providers"
)

const defaultBaseURL = "https://api.github.com"

const providerName = "github"

// Credentials holds either a personal access token or GitHub App credentials.
// When AppID and PrivateKeyPEM are set the client authenticates as the app
// installation; otherwise it uses the token.
type Credentials struct {
	Token          string
	Owner          string
	AppID          string
	InstallationID string
	PrivateKeyPEM  string
}

// RepositorySpec describes the repository to create
type RepositorySpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

// Repository represents a GitHub repository resource
type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}

// Client wraps the GitHub REST API for the repository provisioning step
type Client struct {
	baseURL    string
	owner      string
	auth       authStrategy
	httpClient *http.Client
}

// NewClient builds a client, selecting the auth strategy from the credentials
func NewClient(creds Credentials) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	var auth authStrategy
	if creds.AppID != "" && creds.PrivateKeyPEM != "" {
		auth = &appAuth{
			appID:          creds.AppID,
			installationID: creds.InstallationID,
			privateKey:     []byte(creds.PrivateKeyPEM),
			baseURL:        defaultBaseURL,
			httpClient:     httpClient,
		}
	} else {
		auth = &tokenAuth{accessToken: creds.Token}
	}

	return &Client{
		baseURL:    defaultBaseURL,
		owner:      creds.Owner,
		auth:       auth,
		httpClient: httpClient,
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	if app, ok := c.auth.(*appAuth); ok {
		app.baseURL = baseURL
	}
	return c
}

// CreateRepository creates a new repository under the authenticated user
func (c *Client) CreateRepository(ctx context.Context, spec RepositorySpec) (*Repository, error) {
	var repo Repository
	if err := c.doJSON(ctx, http.MethodPost, "/user/repos", spec, http.StatusCreated, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetRepository reads a repository by name under the configured owner
func (c *Client) GetRepository(ctx context.Context, name string) (*Repository, error) {
	var repo Repository
	path := fmt.Sprintf("/repos/%s/%s", c.owner, name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// WaitUntilReady confirms the repository exists. Repository creation is
// synchronous on GitHub's side, so a single successful get is terminal.
func (c *Client) WaitUntilReady(ctx context.Context, name string, policy providers.PollPolicy) (*Repository, error) {
	var repo *Repository
	err := providers.Poll(ctx, providerName, policy, func(ctx context.Context) (bool, error) {
		r, err := c.GetRepository(ctx, name)
		if err != nil {
			return false, err
		}
		repo = r
		return true, nil
	})
	return repo, err
}

// CreateFile commits a single file to the repository via the contents API
func (c *Client) CreateFile(ctx context.Context, repo, path, message string, content []byte) error {
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, path)
	return c.doJSON(ctx, http.MethodPut, apiPath, payload, http.StatusCreated, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	token, err := c.auth.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		return &providers.RequestError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode github response: %v", err)
		}
	}
	return nil
}

// errorMessage pulls the "message" field out of a GitHub error body, falling
// back to the raw body
func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(raw)
}
