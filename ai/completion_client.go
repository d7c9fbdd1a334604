// Package ai holds the client for the external completion service: one HTTP
// POST per question, authenticated with a credential from a rotating pool.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "qna-chatbot/backend/pkg/errors"
	"qna-chatbot/backend/pkg/logger"
	"qna-chatbot/backend/pkg/resilience"
)

// maxAttempts bounds one logical Complete call: the initial attempt plus at
// most one retry with the (possibly rotated) credential.
const maxAttempts = 2

// CompletionClient sends questions to the remote completion endpoint.
// Authorization and rate-limit failures (401/403/429) and transport errors
// feed the credential pool, which may rotate to the next key between the two
// attempts. Other failures are generic and never trigger rotation.
type CompletionClient struct {
	client  *http.Client
	baseURL string
	pool    *resilience.CredentialPool
	log     *logger.Logger
}

// CompletionClientConfig holds configuration for the completion client
type CompletionClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewCompletionClient(config CompletionClientConfig, pool *resilience.CredentialPool, log *logger.Logger) *CompletionClient {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &CompletionClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
		pool:    pool,
		log:     log,
	}
}

// Complete sends the question and returns the response text. At most two
// attempts are made; if both fail on rotation-eligible errors the pool is
// considered exhausted for this call and the caller gets a retryable error.
func (c *CompletionClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cred := c.pool.Active()

		answer, err := c.attempt(ctx, body, cred, req.Backend)
		if err == nil {
			c.pool.RecordSuccess(cred)
			completionAttempts.WithLabelValues(req.Backend, "success").Inc()
			return answer, nil
		}
		lastErr = err

		if !isRotationEligible(err) {
			completionAttempts.WithLabelValues(req.Backend, "error").Inc()
			return "", err
		}

		completionAttempts.WithLabelValues(req.Backend, "rejected").Inc()
		if c.pool.RecordFailure(cred) {
			credentialRotations.Inc()
		}
		c.log.Warn("completion attempt rejected",
			"attempt", attempt,
			"credential", cred.Name,
			"session_id", req.SessionID,
			"error", err.Error(),
		)
	}

	c.log.Error("completion credential pool exhausted",
		"session_id", req.SessionID,
		"error", lastErr.Error(),
	)
	return "", apperrors.NewCredentialPoolExhaustedError()
}

// attempt performs a single HTTP round trip with the given credential.
func (c *CompletionClient) attempt(ctx context.Context, body []byte, cred resilience.Credential, backend string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cred.Key)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		io.Copy(io.Discard, httpResp.Body)
		return "", &rejectedError{status: httpResp.StatusCode}
	default:
		io.Copy(io.Discard, httpResp.Body)
		return "", fmt.Errorf("completion service returned status %d", httpResp.StatusCode)
	}

	var decoded struct {
		Response string `json:"response"`
		Error    string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("completion service error: %s", decoded.Error)
	}
	return decoded.Response, nil
}

// transportError marks a failure before any HTTP status was received
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "completion transport failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// rejectedError marks an authorization or rate-limit class HTTP status
type rejectedError struct {
	status int
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("completion request rejected with status %d", e.status)
}

// isRotationEligible reports whether a failure should count against the
// active credential slot.
func isRotationEligible(err error) bool {
	switch err.(type) {
	case *transportError, *rejectedError:
		return true
	}
	return false
}
