package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process fingerprint set guarded by a mutex, so
// concurrent submissions cannot both race past the duplicate check for the
// same key. Unbounded, no eviction; entries live for the process lifetime.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		seen: make(map[string]struct{}),
	}
}

// Seen reports whether the key has been recorded, without recording it.
func (l *MemoryLedger) Seen(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok, nil
}

// Record adds a key to the ledger.
func (l *MemoryLedger) Record(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key] = struct{}{}
	return nil
}

// CheckAndRecord atomically records the key and reports whether it was
// already present.
func (l *MemoryLedger) CheckAndRecord(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	if !ok {
		l.seen[key] = struct{}{}
	}
	return ok, nil
}

// Reset clears all recorded keys.
func (l *MemoryLedger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
	return nil
}

// Ping always succeeds for the in-memory ledger.
func (l *MemoryLedger) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error {
	return nil
}

// Size returns the number of recorded fingerprints.
func (l *MemoryLedger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
