package kv

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Store implementation. It is safe for concurrent
// use and intended primarily for testing.
//
// Expiry is enforced lazily: an expired entry is removed the next time it
// is read. The clock can be overridden for deterministic TTL tests.
type Memory struct {
	mu   sync.Mutex
	data map[string]memEntry
	opts *Options

	// now is the clock used for expiry checks. Tests may replace it.
	now func() time.Time
}

type memEntry struct {
	value    []byte
	expireAt time.Time // zero means no expiry
}

// NewMemory creates a new in-memory Store.
// Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{
		data: make(map[string]memEntry),
		opts: opts,
		now:  time.Now,
	}
}

// SetClock replaces the clock used for expiry checks. For tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.encode(key))
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[k]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expireAt.IsZero() && !m.now().Before(e.expireAt) {
		delete(m.data, k)
		return nil, ErrNotFound
	}
	// Return a copy to prevent mutation.
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte) error {
	return m.SetTTL(ctx, key, value, 0)
}

func (m *Memory) SetTTL(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	k := string(m.opts.encode(key))
	cp := make([]byte, len(value))
	copy(cp, value)
	m.mu.Lock()
	e := memEntry{value: cp}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}
	m.data[k] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(m.opts.encode(key))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)
