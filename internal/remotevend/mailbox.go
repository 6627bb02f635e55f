// Package remotevend holds the single-slot "dispense this slot" mailbox per
// kiosk. A second Put before the device polls overwrites the first; Take
// consumes the entry so each request is delivered at most once.
package remotevend

import (
	"context"
	"sync"
	"time"
)

// Mailbox is a keyed single-slot store.
type Mailbox interface {
	Put(ctx context.Context, kioskID, slotID int64) error
	// Take returns the pending slot id and clears it, or nil when empty.
	Take(ctx context.Context, kioskID int64) (*int64, error)
}

type memoryEntry struct {
	slotID    int64
	expiresAt time.Time
}

// MemoryMailbox keeps entries in process. Suitable for a single API instance.
type MemoryMailbox struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryMailbox returns an in-process mailbox. A non-positive ttl keeps
// entries until taken.
func NewMemoryMailbox(ttl time.Duration, now func() time.Time) *MemoryMailbox {
	if now == nil {
		now = time.Now
	}
	return &MemoryMailbox{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (m *MemoryMailbox) Put(_ context.Context, kioskID, slotID int64) error {
	entry := memoryEntry{slotID: slotID}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[kioskID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryMailbox) Take(_ context.Context, kioskID int64) (*int64, error) {
	m.mu.Lock()
	entry, ok := m.entries[kioskID]
	if ok {
		delete(m.entries, kioskID)
	}
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		return nil, nil
	}
	slotID := entry.slotID
	return &slotID, nil
}
