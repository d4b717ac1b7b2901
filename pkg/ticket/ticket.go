// Package ticket implements one-use bearer tickets for WebSocket session
// authentication.
//
// A ticket is a 32-byte random identifier rendered as 64 lowercase hex
// characters. It is minted in exchange for a verified user credential,
// stored with a server-side TTL, and consumed (deleted) the first time it
// is presented. Consumption is the single success path: a ticket that has
// been consumed, has expired, or never existed are all indistinguishable
// to the caller.
package ticket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/earshot/earshot/pkg/kv"
)

// TTL is the server-side lifetime of an issued ticket.
const TTL = 300 * time.Second

// IDLen is the length of a ticket identifier in hex characters.
const IDLen = 64

// ErrInvalid is returned by Consume for any ticket that cannot be
// redeemed: unknown, expired, already used, or malformed. Callers must
// not distinguish these cases to the client.
var ErrInvalid = errors.New("ticket: invalid or expired")

// keyPrefix is the kv namespace for ticket records.
const keyPrefix = "ticket"

// Record is the stored form of an issued ticket.
type Record struct {
	Subject   string    `msgpack:"subject"`
	ExpiresAt time.Time `msgpack:"expires_at"`
	Used      bool      `msgpack:"used"`
}

// Store issues and consumes tickets against a kv.Store.
type Store struct {
	kv kv.Store

	// now is the clock used for expiry checks. Tests may replace it.
	now func() time.Time
}

// NewStore creates a ticket Store backed by the given kv store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store, now: time.Now}
}

// SetClock replaces the clock used for expiry checks. For tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Issue mints a new one-use ticket bound to subject and stores it with
// a server-side TTL of 300 seconds. It returns the 64-char hex id.
func (s *Store) Issue(ctx context.Context, subject string) (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("ticket: generate id: %w", err)
	}
	id := hex.EncodeToString(raw[:])

	rec := Record{
		Subject:   subject,
		ExpiresAt: s.now().Add(TTL),
	}
	val, err := msgpack.Marshal(&rec)
	if err != nil {
		return "", fmt.Errorf("ticket: encode record: %w", err)
	}
	if err := s.kv.SetTTL(ctx, kv.Key{keyPrefix, id}, val, TTL); err != nil {
		return "", fmt.Errorf("ticket: store %s: %w", Redact(id), err)
	}
	return id, nil
}

// Consume validates and atomically retires the ticket with the given id.
// On success it returns the subject the ticket was issued for. Any
// failure returns ErrInvalid; the ticket (if it existed) is deleted
// either way, so a ticket can succeed at most once.
func (s *Store) Consume(ctx context.Context, id string) (string, error) {
	if !validID(id) {
		return "", ErrInvalid
	}
	key := kv.Key{keyPrefix, id}

	val, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrInvalid
	}
	if err != nil {
		return "", fmt.Errorf("ticket: lookup %s: %w", Redact(id), err)
	}

	// Delete before deciding: the ticket must not remain redeemable
	// whatever the outcome. A read-then-delete race has one winner.
	if err := s.kv.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("ticket: retire %s: %w", Redact(id), err)
	}

	var rec Record
	if err := msgpack.Unmarshal(val, &rec); err != nil {
		return "", ErrInvalid
	}
	if rec.Used || !s.now().Before(rec.ExpiresAt) {
		return "", ErrInvalid
	}
	return rec.Subject, nil
}

// Redact returns the loggable prefix of a ticket id. Tickets are bearer
// credentials; only the first 8 hex characters may appear in logs.
func Redact(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func validID(id string) bool {
	if len(id) != IDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
