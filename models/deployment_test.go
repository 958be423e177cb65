package models

import (
	"testing"
)

func TestResourceMapScan(t *testing.T) {
	var resources ResourceMap
	if err := resources.Scan([]byte(`{"repositoryUrl": "https://github.com/acme/my-app"}`)); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if resources[ResourceRepoURL] != "https://github.com/acme/my-app" {
		t.Fatalf("unexpected map: %v", resources)
	}
}

func TestResourceMapScanNilYieldsEmptyMap(t *testing.T) {
	var resources ResourceMap
	if err := resources.Scan(nil); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if resources == nil || len(resources) != 0 {
		t.Fatalf("expected an empty map, got %v", resources)
	}
}

func TestResourceMapScanRejectsNonBytes(t *testing.T) {
	var resources ResourceMap
	if err := resources.Scan(42); err == nil {
		t.Fatal("expected an error for a non-byte value")
	}
}

func TestNewPendingStepsOrder(t *testing.T) {
	steps := NewPendingSteps()

	wantOrder := []StepID{StepRepository, StepHosting, StepDatabase, StepIdentity, StepCloud}
	if len(steps) != len(wantOrder) {
		t.Fatalf("expected %d steps, got %d", len(wantOrder), len(steps))
	}
	for i, step := range steps {
		if step.StepID != wantOrder[i] {
			t.Fatalf("step %d = %s, want %s", i, step.StepID, wantOrder[i])
		}
		if step.Position != i {
			t.Fatalf("step %s position = %d, want %d", step.StepID, step.Position, i)
		}
		if step.Status != StepStatusPending {
			t.Fatalf("step %s status = %s, want pending", step.StepID, step.Status)
		}
		if step.Name == "" {
			t.Fatalf("step %s has no display name", step.StepID)
		}
	}
}
