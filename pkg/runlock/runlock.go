// Package runlock de-duplicates live automation runs when the bus redelivers
// an event.
package runlock

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL keeps a run key locked long enough to absorb redeliveries.
const DefaultTTL = 24 * time.Hour

// Locker claims keys for a limited time.
type Locker interface {
	// Acquire returns true when the key was free and is now held until ttl expires.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees a key so the next delivery can claim it again.
	Release(ctx context.Context, key string) error
}

// Key builds the lock key of one automation reacting to one event.
func Key(eventID, automationID string) string {
	return eventID + ":" + automationID
}

// Memory is a process-local Locker.
type Memory struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if expires, held := m.keys[key]; held && now.Before(expires) {
		return false, nil
	}

	m.keys[key] = now.Add(ttl)

	for k, expires := range m.keys {
		if !now.Before(expires) {
			delete(m.keys, k)
		}
	}

	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)

	return nil
}
