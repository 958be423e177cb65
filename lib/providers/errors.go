package providers

import (
	"fmt"
	"time"
)

// RequestError represents a non-success response from a provider's synchronous API call
type RequestError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: request failed with status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ProvisioningFailedError represents a polled resource that reached a terminal failure state
type ProvisioningFailedError struct {
	Provider string
	State    string
}

func (e *ProvisioningFailedError) Error() string {
	return fmt.Sprintf("%s: provisioning failed, resource reached state %q", e.Provider, e.State)
}

// TimeoutError represents a polling deadline that elapsed before the resource became ready
type TimeoutError struct {
	Provider string
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: provisioning timed out after %s", e.Provider, e.Elapsed.Round(time.Second))
}
