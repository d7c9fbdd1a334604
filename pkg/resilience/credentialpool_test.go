package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qna-chatbot/backend/pkg/logger"
)

func newTestPool(t *testing.T, cooldown time.Duration) *CredentialPool {
	t.Helper()

	config := CredentialPoolConfig{
		Name:             "test",
		FailureThreshold: 3,
		Cooldown:         cooldown,
	}
	pool, err := NewCredentialPool(config, logger.New(logger.DefaultConfig()),
		Credential{Name: "primary", Key: "key-1"},
		Credential{Name: "secondary", Key: "key-2"},
	)
	require.NoError(t, err)
	return pool
}

func TestCredentialPoolRequiresSlots(t *testing.T) {
	_, err := NewCredentialPool(DefaultCredentialPoolConfig("empty"), logger.New(logger.DefaultConfig()))
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestCredentialPoolAdvancesAtThreshold(t *testing.T) {
	pool := newTestPool(t, time.Hour)

	assert.Equal(t, "primary", pool.Active().Name)

	cred := pool.Active()
	assert.False(t, pool.RecordFailure(cred))
	assert.False(t, pool.RecordFailure(cred))
	assert.Equal(t, "primary", pool.Active().Name, "below threshold must not rotate")

	assert.True(t, pool.RecordFailure(cred))
	assert.Equal(t, "secondary", pool.Active().Name, "third consecutive failure rotates")

	// A single failure on the new slot stays within the two-slot pool
	assert.False(t, pool.RecordFailure(pool.Active()))
	assert.Equal(t, "secondary", pool.Active().Name)
}

func TestCredentialPoolWrapsAround(t *testing.T) {
	pool := newTestPool(t, time.Hour)

	for i := 0; i < 3; i++ {
		pool.RecordFailure(pool.Active())
	}
	assert.Equal(t, "secondary", pool.Active().Name)

	for i := 0; i < 3; i++ {
		pool.RecordFailure(pool.Active())
	}
	assert.Equal(t, "primary", pool.Active().Name, "exhausting the secondary wraps back")
}

func TestCredentialPoolStaleFailureDoesNotDoubleAdvance(t *testing.T) {
	pool := newTestPool(t, time.Hour)

	// Two concurrent calls hold the same primary credential snapshot
	first := pool.Active()
	second := pool.Active()

	pool.RecordFailure(first)
	pool.RecordFailure(first)
	assert.True(t, pool.RecordFailure(first), "threshold reached, rotate")

	// The straggler's report lands after rotation; it must not advance the
	// cursor past the live secondary.
	assert.False(t, pool.RecordFailure(second))
	assert.Equal(t, "secondary", pool.Active().Name)
}

func TestCredentialPoolSuccessResetsCounter(t *testing.T) {
	pool := newTestPool(t, time.Hour)

	cred := pool.Active()
	pool.RecordFailure(cred)
	pool.RecordFailure(cred)
	pool.RecordSuccess(cred)

	// Counter was reset, so two more failures stay below threshold
	assert.False(t, pool.RecordFailure(cred))
	assert.False(t, pool.RecordFailure(cred))
	assert.Equal(t, "primary", pool.Active().Name)
}

func TestCredentialPoolCooldownResetsExhaustedSlot(t *testing.T) {
	pool := newTestPool(t, 20*time.Millisecond)

	cred := pool.Active()
	pool.RecordFailure(cred)
	pool.RecordFailure(cred)
	pool.RecordFailure(cred)
	assert.Equal(t, "secondary", pool.Active().Name)

	time.Sleep(60 * time.Millisecond)

	// After cooldown the primary's counter is back to zero: failures against
	// it (now stale) accumulate from scratch.
	pool.mutex.Lock()
	primaryFailures := pool.failures[0]
	pool.mutex.Unlock()
	assert.Zero(t, primaryFailures)
}

func TestCredentialPoolMetrics(t *testing.T) {
	pool := newTestPool(t, time.Hour)

	cred := pool.Active()
	pool.RecordFailure(cred)
	pool.RecordSuccess(cred)

	metrics := pool.GetMetrics()
	assert.Equal(t, uint64(1), metrics["total_failures"])
	assert.Equal(t, uint64(1), metrics["total_successes"])
	assert.Equal(t, "primary", metrics["active_slot"])
}
