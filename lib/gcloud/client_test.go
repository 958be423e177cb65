package gcloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/launchforge-api/lib/providers"
)

var fastPoll = providers.PollPolicy{
	Interval: time.Millisecond,
	Deadline: time.Second,
}

func TestCreateProjectIncludesParent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/projects" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token_test" {
			t.Fatalf("unexpected Authorization header: %q", got)
		}

		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if payload["projectId"] != "my-app-12345678" || payload["parent"] != "organizations/42" {
			t.Fatalf("unexpected payload: %v", payload)
		}

		json.NewEncoder(w).Encode(Operation{Name: "operations/op-1"})
	}))
	defer server.Close()

	client := NewClient(Credentials{AccessToken: "token_test", Parent: "organizations/42"}).WithBaseURL(server.URL)

	op, err := client.CreateProject(context.Background(), ProjectSpec{ProjectID: "my-app-12345678", DisplayName: "My App"})
	if err != nil {
		t.Fatalf("CreateProject returned error: %v", err)
	}
	if op.Name != "operations/op-1" {
		t.Fatalf("unexpected operation: %+v", op)
	}
}

func TestWaitUntilReadyPollsOperationUntilDone(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/operations/op-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		op := Operation{Name: "operations/op-1"}
		if probes.Add(1) >= 3 {
			op.Done = true
			op.Response.ProjectID = "my-app-12345678"
		}
		json.NewEncoder(w).Encode(op)
	}))
	defer server.Close()

	client := NewClient(Credentials{AccessToken: "token_test"}).WithBaseURL(server.URL)

	finished, err := client.WaitUntilReady(context.Background(), "operations/op-1", fastPoll)
	if err != nil {
		t.Fatalf("WaitUntilReady returned error: %v", err)
	}
	if !finished.Done || finished.Response.ProjectID != "my-app-12345678" {
		t.Fatalf("unexpected operation: %+v", finished)
	}
	if got := probes.Load(); got != 3 {
		t.Fatalf("expected 3 probes, got %d", got)
	}
}

func TestWaitUntilReadyFailsOnOperationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "operations/op-1", "done": true, "error": {"code": 8, "message": "project quota exceeded"}}`))
	}))
	defer server.Close()

	client := NewClient(Credentials{AccessToken: "token_test"}).WithBaseURL(server.URL)

	_, err := client.WaitUntilReady(context.Background(), "operations/op-1", fastPoll)

	var failedErr *providers.ProvisioningFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("expected *providers.ProvisioningFailedError, got %v", err)
	}
	if failedErr.Provider != "gcloud" || !strings.Contains(failedErr.State, "project quota exceeded") {
		t.Fatalf("unexpected error detail: %+v", failedErr)
	}
}

func TestRequestErrorCarriesGoogleErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "The caller does not have permission"}}`))
	}))
	defer server.Close()

	client := NewClient(Credentials{AccessToken: "token_test"}).WithBaseURL(server.URL)

	_, err := client.CreateProject(context.Background(), ProjectSpec{ProjectID: "my-app"})

	var reqErr *providers.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *providers.RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusForbidden || reqErr.Message != "The caller does not have permission" {
		t.Fatalf("unexpected error detail: %+v", reqErr)
	}
}
