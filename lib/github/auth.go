package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// authStrategy yields the bearer token attached to every API request.
// It is selected once when the client is constructed, so callers never
// branch on credential kind.
type authStrategy interface {
	token(ctx context.Context) (string, error)
}

// tokenAuth authenticates with a static personal access token.
type tokenAuth struct {
	accessToken string
}

func (a *tokenAuth) token(ctx context.Context) (string, error) {
	return a.accessToken, nil
}

// appAuth authenticates as a GitHub App installation: it mints a short-lived
// RS256 JWT from the app's private key and exchanges it for an installation
// token, which is cached until shortly before expiry.
type appAuth struct {
	appID          string
	installationID string
	privateKey     []byte
	baseURL        string
	httpClient     *http.Client

	mu          sync.Mutex
	cachedToken string
	expiresAt   time.Time
}

func (a *appAuth) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cachedToken != "" && time.Now().Before(a.expiresAt.Add(-time.Minute)) {
		return a.cachedToken, nil
	}

	appJWT, err := a.signAppJWT()
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %v", err)
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", a.baseURL, a.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("installation token request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("installation token request returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode installation token response: %v", err)
	}

	a.cachedToken = payload.Token
	a.expiresAt = payload.ExpiresAt
	return a.cachedToken, nil
}

func (a *appAuth) signAppJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("invalid app private key: %v", err)
	}

	appID, err := strconv.ParseInt(a.appID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID %q: %v", a.appID, err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer: strconv.FormatInt(appID, 10),
		// Backdated a minute to tolerate clock skew between us and GitHub
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
