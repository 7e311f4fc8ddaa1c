// Package verifier calls the companion backend to validate a username and
// password pair during the WebSocket handshake. No example repo in the
// corpus wires a dedicated REST client library for a simple
// request/decode-JSON round trip (the teacher's own outbound calls, where
// present, use net/http directly), so this is built on net/http.Client —
// the one component in the repo where the standard library is used in
// place of a third-party dependency; see the design ledger for the full
// justification.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamspace-dev/notify-push/internal/apperrors"
	"github.com/streamspace-dev/notify-push/internal/user"
)

// Verifier validates credentials against the companion backend's
// credential-check endpoint.
type Verifier struct {
	baseURL string
	client  *http.Client
}

// New creates a Verifier against baseURL (e.g. the companion backend's
// internal verification endpoint). The http.Client has no timeout of its
// own: the caller is expected to bound the call with a context deadline
// drawn from the handshake's overall 15-second budget.
func New(baseURL string) *Verifier {
	return &Verifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

type verifyResponse struct {
	UserID string `json:"user_id"`
}

// Verify checks username/password against the companion backend, passing
// forwardedFor as the client's IP chain so the backend can apply its own
// per-IP throttling. Returns apperrors.ErrInvalidCredentials if the backend
// rejects the credentials or returns no user, wrapping any transport-level
// failure in a plain error.
func (v *Verifier) Verify(ctx context.Context, username, password string, forwardedFor []string) (user.ID, error) {
	endpoint := v.baseURL + "/ocs/v2.php/apps/notify_push/api/v1/credentials"

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("forwarded_for", strings.Join(forwardedFor, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build verifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("OCS-APIRequest", "true")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("verifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", apperrors.ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode verifier response: %w", err)
	}
	if body.UserID == "" {
		return "", apperrors.ErrInvalidCredentials
	}
	return user.ID(body.UserID), nil
}

// WithTimeout returns a copy of v whose underlying client enforces an
// overall per-call timeout, for callers that want a hard ceiling
// independent of the caller's context deadline.
func (v *Verifier) WithTimeout(d time.Duration) *Verifier {
	return &Verifier{
		baseURL: v.baseURL,
		client:  &http.Client{Timeout: d},
	}
}
