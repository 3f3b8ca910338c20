package cache

import (
	"encoding/json"
	"errors"
	"time"
)

// Entry is a cached JSON payload and the time it was written. StoredAt drives
// both freshness clocks; the tiers never expire entries on their own.
type Entry struct {
	Payload  json.RawMessage
	StoredAt time.Time
}

// Durable defines the durable tier contract. Implementations must be safe for
// concurrent use by multiple goroutines and are free to fail writes; callers
// only look at whether a write succeeded, never at why it failed.
type Durable interface {
	Get(key string) (Entry, error)
	Put(key string, e Entry) error
	Delete(key string) error
	Clear() error
}

var (
	ErrNotFound = errors.New("cache: not found")
	ErrTooLarge = errors.New("cache: value exceeds capacity")
	ErrCorrupt  = errors.New("cache: corrupt entry")
)

// Nop is a Durable that stores nothing.
type Nop struct{}

func (Nop) Get(string) (Entry, error) { return Entry{}, ErrNotFound }
func (Nop) Put(string, Entry) error   { return nil }
func (Nop) Delete(string) error       { return nil }
func (Nop) Clear() error              { return nil }
