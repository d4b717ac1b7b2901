package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/earshot/earshot/pkg/kv"
)

// newTestStore creates a new Store for testing. Tests in this file use the
// Memory implementation, but the same test logic can be reused for other
// backends by changing the factory.
func newTestStore(t *testing.T, opts *kv.Options) *kv.Memory {
	t.Helper()
	s := kv.NewMemory(opts)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	key := kv.Key{"ticket", "ab12"}
	val := []byte("hello")

	// Get non-existent key.
	_, err := s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Set and Get.
	if err := s.Set(ctx, key, val); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("Get = %q, want %q", got, val)
	}

	// Overwrite.
	val2 := []byte("world")
	if err := s.Set(ctx, key, val2); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != string(val2) {
		t.Fatalf("Get = %q, want %q", got, val2)
	}

	// Delete.
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Delete non-existent key should not error.
	if err := s.Delete(ctx, kv.Key{"no", "such", "key"}); err != nil {
		t.Fatalf("Delete non-existent: %v", err)
	}
}

func TestSetTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	key := kv.Key{"ticket", "deadbeef"}
	if err := s.SetTTL(ctx, key, []byte("v"), 300*time.Second); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}

	// Still valid just before expiry.
	now = base.Add(299 * time.Second)
	if _, err := s.Get(ctx, key); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	// Gone at expiry.
	now = base.Add(300 * time.Second)
	if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry, got %v", err)
	}

	// Zero TTL never expires.
	if err := s.SetTTL(ctx, key, []byte("v"), 0); err != nil {
		t.Fatalf("SetTTL zero: %v", err)
	}
	now = base.Add(10 * 365 * 24 * time.Hour)
	if _, err := s.Get(ctx, key); err != nil {
		t.Fatalf("Get with zero ttl: %v", err)
	}
}

func TestValueIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	key := kv.Key{"k"}
	val := []byte("abc")
	if err := s.Set(ctx, key, val); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Mutating the stored slice must not affect the store.
	val[0] = 'x'
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("stored value mutated: %q", got)
	}

	// Mutating the returned slice must not affect the store.
	got[0] = 'y'
	got2, _ := s.Get(ctx, key)
	if string(got2) != "abc" {
		t.Fatalf("returned value aliased: %q", got2)
	}
}

func TestCustomSeparator(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &kv.Options{Separator: '/'})

	if err := s.Set(ctx, kv.Key{"a", "b"}, []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, kv.Key{"a", "b"})
	if err != nil || string(got) != "1" {
		t.Fatalf("Get = %q, %v", got, err)
	}
}
