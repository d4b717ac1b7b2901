// Package kv provides a small key-value store interface with hierarchical
// path-based keys and per-entry time-to-live. Keys are represented as string
// slices (e.g., ["ticket", "ab12"]) and encoded internally using a
// configurable separator (default ':').
//
// The package includes a BadgerDB-backed implementation for production use
// and an in-memory implementation for testing. Both enforce TTL server-side:
// an expired entry is indistinguishable from a missing one.
package kv

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store,
	// or existed but has expired.
	ErrNotFound = errors.New("kv: not found")
)

// Key is a hierarchical path represented as a slice of string segments.
// For example, Key{"ticket", "ab12cd"} encodes to "ticket:ab12cd" using
// the default separator ':'.
//
// Segments must not contain the configured separator character.
type Key []string

// String returns the key as a human-readable string using ':' as separator.
// This is for display/debug only; use Options.encode for storage encoding.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Store is the interface for a key-value store with path-based keys
// and optional per-entry expiry.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if the key
	// is not present or its TTL has elapsed.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair without expiry. Overwrites any
	// existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// SetTTL stores a key-value pair that the store drops after ttl.
	// A non-positive ttl behaves like Set.
	SetTTL(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// Close releases any resources held by the store.
	Close() error
}

// DefaultSeparator is the default separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator is the byte used to join key segments when encoding to storage.
	// Default is ':' if zero.
	Separator byte
}

// sep returns the effective separator.
func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode converts a Key to its byte representation using the separator.
func (o *Options) encode(k Key) []byte {
	s := o.sep()
	// Calculate total length to avoid allocations.
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++ // separator
		}
		n += len(seg)
	}
	buf := make([]byte, n)
	pos := 0
	for i, seg := range k {
		if i > 0 {
			buf[pos] = s
			pos++
		}
		pos += copy(buf[pos:], seg)
	}
	return buf
}
