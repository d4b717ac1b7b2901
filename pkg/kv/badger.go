package kv

import (
	"context"
	"errors"
	"log"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store implementation backed by BadgerDB v4.
// TTL entries use badger's native entry expiry, so expiry survives
// restarts and is enforced by the engine itself.
type Badger struct {
	db   *badger.DB
	opts *Options
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Options is the common kv options (separator, etc.).
	Options *Options

	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool

	// Logger sets the badger logger. If nil, a quiet logger that only
	// surfaces warnings and errors is used.
	Logger badger.Logger
}

// NewBadger creates a new BadgerDB-backed Store.
func NewBadger(bopts BadgerOptions) (*Badger, error) {
	if !bopts.InMemory && bopts.Dir == "" {
		return nil, errors.New("kv: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(bopts.Dir)
	if bopts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if bopts.Logger != nil {
		dbOpts = dbOpts.WithLogger(bopts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(defaultLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db, opts: bopts.Options}, nil
}

func (b *Badger) Get(_ context.Context, key Key) ([]byte, error) {
	k := b.opts.encode(key)
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *Badger) Set(_ context.Context, key Key, value []byte) error {
	k := b.opts.encode(key)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	})
}

func (b *Badger) SetTTL(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	k := b.opts.encode(key)
	return b.db.Update(func(txn *badger.Txn) error {
		if ttl <= 0 {
			return txn.Set(k, value)
		}
		return txn.SetEntry(badger.NewEntry(k, value).WithTTL(ttl))
	})
}

func (b *Badger) Delete(_ context.Context, key Key) error {
	k := b.opts.encode(key)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// defaultLogger wraps the standard log package for badger, suppressing
// debug and info level messages.
type defaultLogger struct{}

func (defaultLogger) Errorf(f string, v ...interface{}) { log.Printf("[badger] ERROR: "+f, v...) }
func (defaultLogger) Warningf(f string, v ...interface{}) {
	log.Printf("[badger] WARN: "+f, v...)
}
func (defaultLogger) Infof(string, ...interface{})  {}
func (defaultLogger) Debugf(string, ...interface{}) {}

// Compile-time interface check.
var _ Store = (*Badger)(nil)
