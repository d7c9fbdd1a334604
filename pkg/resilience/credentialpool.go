package resilience

import (
	"errors"
	"sync"
	"time"

	"qna-chatbot/backend/pkg/logger"
)

// ErrNoCredentials indicates the pool was constructed without any usable slots
var ErrNoCredentials = errors.New("credential pool has no slots")

// Credential is a snapshot of the pool's active slot, handed to a caller for
// one request attempt. The slot index ties a later success/failure report
// back to the slot that actually served the attempt.
type Credential struct {
	Name string
	Key  string
	slot int
}

// CredentialPool rotates between an ordered set of API credentials. A
// process-wide cursor tracks the active slot; consecutive rotation-eligible
// failures on the active slot advance the cursor to the next one, and the
// exhausted slot's failure counter is reset after a cooldown so it can be
// tried again later. All state is guarded by a mutex: the pool is shared by
// every concurrent outbound call, and two failing calls must not
// double-advance the cursor past a live credential.
type CredentialPool struct {
	name             string
	slots            []Credential
	cursor           int
	failures         []uint
	failureThreshold uint
	cooldown         time.Duration
	mutex            sync.Mutex
	log              *logger.Logger
	// Metrics
	totalFailures  uint64
	totalSuccesses uint64
	rotationCount  uint64
}

// CredentialPoolConfig holds configuration for a credential pool
type CredentialPoolConfig struct {
	Name             string
	FailureThreshold uint
	Cooldown         time.Duration
}

// DefaultCredentialPoolConfig returns a default pool configuration
func DefaultCredentialPoolConfig(name string) CredentialPoolConfig {
	return CredentialPoolConfig{
		Name:             name,
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
	}
}

// NewCredentialPool creates a pool over the given named credentials, in
// rotation order.
func NewCredentialPool(config CredentialPoolConfig, log *logger.Logger, slots ...Credential) (*CredentialPool, error) {
	if len(slots) == 0 {
		return nil, ErrNoCredentials
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 3
	}
	for i := range slots {
		slots[i].slot = i
	}
	return &CredentialPool{
		name:             config.Name,
		slots:            slots,
		failures:         make([]uint, len(slots)),
		failureThreshold: config.FailureThreshold,
		cooldown:         config.Cooldown,
		log:              log,
	}, nil
}

// Active returns the credential currently selected by the cursor.
func (p *CredentialPool) Active() Credential {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.slots[p.cursor]
}

// RecordFailure reports a rotation-eligible failure (auth, rate limit, or
// transport) for the slot that served the attempt. When the slot's
// consecutive failures reach the threshold and it is still the active slot,
// the cursor advances to the next slot and the old slot's counter is
// scheduled to reset after the cooldown window. Returns true if the cursor
// advanced.
func (p *CredentialPool) RecordFailure(cred Credential) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.totalFailures++
	p.failures[cred.slot]++

	if p.failures[cred.slot] < p.failureThreshold || cred.slot != p.cursor {
		// Not at threshold yet, or another call already rotated away
		return false
	}

	p.cursor = (p.cursor + 1) % len(p.slots)
	p.rotationCount++

	p.log.Warn("Credential pool rotated",
		"pool", p.name,
		"from", cred.Name,
		"to", p.slots[p.cursor].Name,
		"failures", p.failures[cred.slot],
	)

	// Deferred reset: the exhausted slot becomes eligible again after the
	// cooldown, not synchronously.
	exhausted := cred.slot
	time.AfterFunc(p.cooldown, func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()
		p.failures[exhausted] = 0
		p.log.Info("Credential slot cooled down", "pool", p.name, "slot", p.slots[exhausted].Name)
	})

	return true
}

// RecordSuccess reports a successful attempt on the given slot and resets
// its failure counter immediately (fast recovery signal).
func (p *CredentialPool) RecordSuccess(cred Credential) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.totalSuccesses++
	p.failures[cred.slot] = 0
}

// Size returns the number of slots in the pool.
func (p *CredentialPool) Size() int {
	return len(p.slots)
}

// GetMetrics returns the current metrics of the credential pool
func (p *CredentialPool) GetMetrics() map[string]interface{} {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return map[string]interface{}{
		"pool":            p.name,
		"active_slot":     p.slots[p.cursor].Name,
		"total_failures":  p.totalFailures,
		"total_successes": p.totalSuccesses,
		"rotation_count":  p.rotationCount,
	}
}
