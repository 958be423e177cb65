package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/launchforge-api/lib/providers"
)

const providerName = "auth0"

// Credentials holds the tenant domain and a management API token
type Credentials struct {
	Domain          string
	ManagementToken string
}

// ApplicationSpec describes the tenant application to create
type ApplicationSpec struct {
	Name       string   `json:"name"`
	AppType    string   `json:"app_type"`
	Callbacks  []string `json:"callbacks,omitempty"`
	WebOrigins []string `json:"web_origins,omitempty"`
	LogoutURLs []string `json:"allowed_logout_urls,omitempty"`
}

// Application represents an Auth0 client application resource
type Application struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Name         string   `json:"name"`
	Callbacks    []string `json:"callbacks"`
}

// Client wraps the Auth0 Management API for the identity tenant step
type Client struct {
	baseURL    string
	domain     string
	token      string
	httpClient *http.Client
}

func NewClient(creds Credentials) *Client {
	return &Client{
		baseURL:    "https://" + creds.Domain + "/api/v2",
		domain:     creds.Domain,
		token:      creds.ManagementToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// Domain returns the tenant domain the client is bound to
func (c *Client) Domain() string {
	return c.domain
}

// CreateApplication registers a new application on the tenant
func (c *Client) CreateApplication(ctx context.Context, spec ApplicationSpec) (*Application, error) {
	var app Application
	if err := c.doJSON(ctx, http.MethodPost, "/clients", spec, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApplication reads an application by client ID
func (c *Client) GetApplication(ctx context.Context, clientID string) (*Application, error) {
	var app Application
	if err := c.doJSON(ctx, http.MethodGet, "/clients/"+clientID, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// WaitUntilReady confirms the application exists. Application registration is
// synchronous on Auth0's side, so a single successful get is terminal.
func (c *Client) WaitUntilReady(ctx context.Context, clientID string, policy providers.PollPolicy) (*Application, error) {
	var app *Application
	err := providers.Poll(ctx, providerName, policy, func(ctx context.Context) (bool, error) {
		a, err := c.GetApplication(ctx, clientID)
		if err != nil {
			return false, err
		}
		app = a
		return true, nil
	})
	return app, err
}

// UpdateCallbacks points the application's allowed callback and origin URLs at
// the deployed site
func (c *Client) UpdateCallbacks(ctx context.Context, clientID, siteURL string) error {
	payload := map[string]interface{}{
		"callbacks":           []string{siteURL + "/api/auth/callback"},
		"web_origins":         []string{siteURL},
		"allowed_logout_urls": []string{siteURL},
	}
	return c.doJSON(ctx, http.MethodPatch, "/clients/"+clientID, payload, nil)
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

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth0 request failed: %v", err)
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
			return fmt.Errorf("failed to decode auth0 response: %v", err)
		}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(raw)
}
