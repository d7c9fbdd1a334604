package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "qna-chatbot/backend/pkg/errors"
	"qna-chatbot/backend/pkg/logger"
	"qna-chatbot/backend/pkg/resilience"
)

func newTestPool(t *testing.T) *resilience.CredentialPool {
	t.Helper()

	pool, err := resilience.NewCredentialPool(
		resilience.CredentialPoolConfig{Name: "completion", FailureThreshold: 3, Cooldown: time.Hour},
		logger.New(logger.DefaultConfig()),
		resilience.Credential{Name: "primary", Key: "key-primary"},
		resilience.Credential{Name: "secondary", Key: "key-secondary"},
	)
	require.NoError(t, err)
	return pool
}

func newTestClient(t *testing.T, serverURL string, pool *resilience.CredentialPool) *CompletionClient {
	t.Helper()
	return NewCompletionClient(
		CompletionClientConfig{BaseURL: serverURL, Timeout: 5 * time.Second},
		pool,
		logger.New(logger.DefaultConfig()),
	)
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat", r.URL.Path)
		w.Write([]byte(`{"response": "Hi there!"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, newTestPool(t))

	answer, err := client.Complete(context.Background(), CompletionRequest{
		SessionID: "chat-1",
		Question:  "Hello",
		Backend:   "Groq",
		Engine:    "llama-3.3-70b-versatile",
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", answer)
	assert.Equal(t, "Bearer key-primary", gotAuth)
}

func TestCompleteRetriesOnAuthFailure(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"response": "second time lucky"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, newTestPool(t))

	answer, err := client.Complete(context.Background(), CompletionRequest{Question: "q", Backend: "Groq"})

	require.NoError(t, err)
	assert.Equal(t, "second time lucky", answer)
	assert.Equal(t, 2, attempts)
}

func TestCompleteBoundedAtTwoAttempts(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, newTestPool(t))

	_, err := client.Complete(context.Background(), CompletionRequest{Question: "q", Backend: "Groq"})

	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeCredentialPoolExhausted, appErr.Code)
	assert.Equal(t, 2, attempts, "never more than one retry per logical call")
}

func TestCompleteGenericFailureDoesNotRetry(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	pool := newTestPool(t)
	client := newTestClient(t, server.URL, pool)

	_, err := client.Complete(context.Background(), CompletionRequest{Question: "q", Backend: "Groq"})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "generic failures are not retried")
	assert.Equal(t, "primary", pool.Active().Name, "generic failures never rotate")
}

func TestCompleteRotationAfterThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer key-primary" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"response": "served by secondary"}`))
	}))
	defer server.Close()

	pool := newTestPool(t)
	client := newTestClient(t, server.URL, pool)

	// First call: primary fails twice (counter 2), pool not yet rotated, so
	// the retry also hits primary and the call exhausts.
	_, err := client.Complete(context.Background(), CompletionRequest{Question: "q", Backend: "Groq"})
	require.Error(t, err)
	assert.Equal(t, "primary", pool.Active().Name)

	// Second call: the third failure reaches the threshold and rotates, and
	// the retry succeeds on the secondary key.
	answer, err := client.Complete(context.Background(), CompletionRequest{Question: "q", Backend: "Groq"})
	require.NoError(t, err)
	assert.Equal(t, "served by secondary", answer)
	assert.Equal(t, "secondary", pool.Active().Name)
}

func TestCompleteServiceErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "", "error": "model overloaded"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, newTestPool(t))

	_, err := client.Complete(context.Background(), CompletionRequest{Question: "q", Backend: "Groq"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestCompleteTransportFailureCountsAgainstSlot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // immediately unreachable

	pool := newTestPool(t)
	client := newTestClient(t, server.URL, pool)

	_, err := client.Complete(context.Background(), CompletionRequest{Question: "q", Backend: "Groq"})

	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeCredentialPoolExhausted, appErr.Code)
}
