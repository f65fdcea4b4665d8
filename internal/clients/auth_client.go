package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Auth outcomes. Handlers map the first three to 401 and the last to 503.
var (
	ErrMissingAuthHeader   = errors.New("authorization header is required")
	ErrMalformedAuthHeader = errors.New("authorization header format must be 'Bearer <token>'")
	ErrUnauthorized        = errors.New("invalid or expired token")
	ErrAuthUnavailable     = errors.New("auth service unavailable")
)

// Principal is the authenticated caller as reported by the auth service,
// together with the raw bearer token so it can be forwarded to other
// services on the caller's behalf.
type Principal struct {
	User  map[string]interface{}
	Token string
}

// AuthClient validates bearer tokens against the remote auth service.
// Token issuance and parsing live entirely in that service; here the token
// is an opaque string.
type AuthClient struct {
	verifyURL string
	client    *http.Client
}

// NewAuthClient creates a client for the auth service's verify endpoint.
func NewAuthClient(baseURL, verifyPath string) *AuthClient {
	return &AuthClient{
		verifyURL: strings.TrimRight(baseURL, "/") + verifyPath,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Authenticate validates a raw Authorization header. The header must be
// exactly "Bearer <token>"; the token is forwarded to the verify endpoint
// and any non-200 answer is treated as a rejection.
func (c *AuthClient) Authenticate(header string) (*Principal, error) {
	if header == "" {
		return nil, ErrMissingAuthHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, ErrMalformedAuthHeader
	}
	token := parts[1]

	req, err := http.NewRequest(http.MethodGet, c.verifyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", header)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrUnauthorized
	}

	var body struct {
		User map[string]interface{} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrUnauthorized
	}

	return &Principal{User: body.User, Token: token}, nil
}
