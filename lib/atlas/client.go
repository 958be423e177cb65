package atlas

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

const defaultBaseURL = "https://cloud.mongodb.com/api/atlas/v2"

const providerName = "atlas"

// DefaultPollPolicy matches the typical latency of Atlas cluster creation
var DefaultPollPolicy = providers.PollPolicy{
	Interval: 30 * time.Second,
	Deadline: 30 * time.Minute,
}

// Credentials holds an Atlas programmatic API key pair scoped to a project (group)
type Credentials struct {
	PublicKey  string
	PrivateKey string
	GroupID    string
	Region     string
}

// ClusterSpec describes the cluster to create
type ClusterSpec struct {
	Name   string
	Region string
	Tier   string
}

// Cluster represents a MongoDB Atlas cluster resource.
// StateName moves CREATING -> IDLE, or DELETING/DELETED on teardown.
type Cluster struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StateName string `json:"stateName"`

	ConnectionStrings struct {
		StandardSrv string `json:"standardSrv"`
	} `json:"connectionStrings"`
}

// Client wraps the Atlas Admin API for the database cluster step
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

func newClient(creds Credentials) *Client {
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

// CreateCluster creates a new free-tier-or-better cluster in the configured group
func (c *Client) CreateCluster(ctx context.Context, spec ClusterSpec) (*Cluster, error) {
	region := spec.Region
	if region == "" {
		region = c.creds.Region
	}
	payload := map[string]interface{}{
		"name": spec.Name,
		"replicationSpecs": []map[string]interface{}{
			{
				"regionConfigs": []map[string]interface{}{
					{
						"providerName": "AWS",
						"regionName":   region,
						"electableSpecs": map[string]interface{}{
							"instanceSize": spec.Tier,
							"nodeCount":    3,
						},
					},
				},
			},
		},
	}

	var cluster Cluster
	path := fmt.Sprintf("/groups/%s/clusters", c.creds.GroupID)
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &cluster); err != nil {
		return nil, err
	}
	return &cluster, nil
}

// GetCluster reads the current provisioning state of a cluster
func (c *Client) GetCluster(ctx context.Context, name string) (*Cluster, error) {
	var cluster Cluster
	path := fmt.Sprintf("/groups/%s/clusters/%s", c.creds.GroupID, name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &cluster); err != nil {
		return nil, err
	}
	return &cluster, nil
}

// WaitUntilReady polls the cluster until it reaches IDLE, is deleted out from
// under us, or the policy deadline elapses
func (c *Client) WaitUntilReady(ctx context.Context, name string, policy providers.PollPolicy) (*Cluster, error) {
	var ready *Cluster
	err := providers.Poll(ctx, providerName, policy, func(ctx context.Context) (bool, error) {
		cluster, err := c.GetCluster(ctx, name)
		if err != nil {
			return false, err
		}
		switch cluster.StateName {
		case "IDLE":
			ready = cluster
			return true, nil
		case "DELETING", "DELETED":
			return false, &providers.ProvisioningFailedError{Provider: providerName, State: cluster.StateName}
		default:
			return false, nil
		}
	})
	return ready, err
}

// CreateDatabaseUser provisions a database user so the produced connection
// string is actually usable
func (c *Client) CreateDatabaseUser(ctx context.Context, username, password string) error {
	payload := map[string]interface{}{
		"databaseName": "admin",
		"username":     username,
		"password":     password,
		"roles": []map[string]string{
			{"databaseName": "admin", "roleName": "readWriteAnyDatabase"},
		},
	}
	path := fmt.Sprintf("/groups/%s/databaseUsers", c.creds.GroupID)
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

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.creds.PublicKey, c.creds.PrivateKey)
	req.Header.Set("Accept", "application/vnd.atlas.2023-02-01+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("atlas request failed: %v", err)
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
			return fmt.Errorf("failed to decode atlas response: %v", err)
		}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return string(raw)
}
