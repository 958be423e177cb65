package gcloud

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

const defaultBaseURL = "https://cloudresourcemanager.googleapis.com/v3"

const providerName = "gcloud"

// DefaultPollPolicy matches the typical latency of project creation
var DefaultPollPolicy = providers.PollPolicy{
	Interval: 10 * time.Second,
	Deadline: 5 * time.Minute,
}

// Credentials holds an OAuth access token and the parent resource new
// projects are created under ("organizations/123" or "folders/456")
type Credentials struct {
	AccessToken string
	Parent      string
}

// ProjectSpec describes the cloud project to create
type ProjectSpec struct {
	ProjectID   string
	DisplayName string
}

// Operation represents a long-running project creation operation
type Operation struct {
	Name string `json:"name"`
	Done bool   `json:"done"`

	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`

	Response struct {
		ProjectID string `json:"projectId"`
	} `json:"response"`
}

// Client wraps the Cloud Resource Manager API for the cloud project step
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

// CreateProject starts project creation and returns the pending operation
func (c *Client) CreateProject(ctx context.Context, spec ProjectSpec) (*Operation, error) {
	payload := map[string]string{
		"projectId":   spec.ProjectID,
		"displayName": spec.DisplayName,
	}
	if c.creds.Parent != "" {
		payload["parent"] = c.creds.Parent
	}

	var op Operation
	if err := c.doJSON(ctx, http.MethodPost, "/projects", payload, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// GetOperation reads the current state of a long-running operation
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	var op Operation
	if err := c.doJSON(ctx, http.MethodGet, "/"+name, nil, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// WaitUntilReady polls the operation until it completes. An operation that
// completes carrying an error means the project never materialized.
func (c *Client) WaitUntilReady(ctx context.Context, operationName string, policy providers.PollPolicy) (*Operation, error) {
	var finished *Operation
	err := providers.Poll(ctx, providerName, policy, func(ctx context.Context) (bool, error) {
		op, err := c.GetOperation(ctx, operationName)
		if err != nil {
			return false, err
		}
		if !op.Done {
			return false, nil
		}
		if op.Error != nil {
			return false, &providers.ProvisioningFailedError{
				Provider: providerName,
				State:    fmt.Sprintf("error %d: %s", op.Error.Code, op.Error.Message),
			}
		}
		finished = op
		return true, nil
	})
	return finished, err
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
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gcloud request failed: %v", err)
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
			return fmt.Errorf("failed to decode gcloud response: %v", err)
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
