package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/earshot/earshot/pkg/kv"
)

func newBadgerStore(t *testing.T) *kv.Badger {
	t.Helper()
	s, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	key := kv.Key{"ticket", "ab12"}

	_, err := s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, key, []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBadgerSetTTL(t *testing.T) {
	ctx := context.Background()
	s := newBadgerStore(t)

	key := kv.Key{"ticket", "shortlived"}
	if err := s.SetTTL(ctx, key, []byte("v"), 250*time.Millisecond); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}
	if _, err := s.Get(ctx, key); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestBadgerRequiresDir(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error for missing Dir")
	}
}
