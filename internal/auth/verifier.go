// Package auth verifies bearer tokens against the external
// authentication service and resolves them to user identifiers.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wb-go/wbf/retry"
)

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid or expired authentication token")
)

// Verifier checks tokens by calling the auth service's user endpoint.
type Verifier struct {
	baseURL  string
	anonKey  string
	client   *http.Client
	strategy retry.Strategy
}

// NewVerifier creates a Verifier for the auth service at baseURL.
// Transport-level failures are retried per the given strategy; token
// rejections are not.
func NewVerifier(baseURL, anonKey string, timeout time.Duration, strategy retry.Strategy) *Verifier {
	return &Verifier{
		baseURL:  baseURL,
		anonKey:  anonKey,
		client:   &http.Client{Timeout: timeout},
		strategy: strategy,
	}
}

type userInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerifyToken resolves a bearer token to the user identifier it was
// issued for. ErrMissingToken and ErrInvalidToken are terminal; other
// errors mean the auth service could not be reached.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	var (
		userID   string
		terminal error
	)

	err := retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("apikey", v.anonKey)

		resp, err := v.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		// A rejected token is a final answer; stop retrying.
		if resp.StatusCode == http.StatusUnauthorized {
			terminal = ErrInvalidToken
			return nil
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("auth service returned status %d", resp.StatusCode)
		}

		var info userInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return fmt.Errorf("failed to decode auth response: %w", err)
		}

		if info.ID == "" {
			terminal = fmt.Errorf("%w: token does not contain user id", ErrInvalidToken)
			return nil
		}

		userID = info.ID

		return nil
	}, v.strategy)

	if err != nil {
		return "", fmt.Errorf("auth service unavailable: %w", err)
	}
	if terminal != nil {
		return "", terminal
	}

	return userID, nil
}
