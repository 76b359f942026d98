package domain

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTTL is returned by CacheStore.Set when the caller supplies a
// zero or negative lifetime. The write is rejected synchronously and any
// prior entry for the key is left untouched.
var ErrInvalidTTL = errors.New("cache TTL must be a positive duration")

// Namespace classifies a cache key and decides which tiers hold its entries.
// It is an explicit tag carried alongside the key at every call site; the
// CacheStore never infers it from the shape of the key string.
type Namespace string

const (
	NamespaceTicketDetail Namespace = "ticket_detail"
	NamespaceTicketList   Namespace = "ticket_list"
	NamespaceSearch       Namespace = "search"
	NamespaceReference    Namespace = "reference"
	NamespaceSession      Namespace = "session"
)

// Persistable reports whether entries in this namespace are written to the
// durable storage backend in addition to the volatile tier. Ticket data and
// reference lists tolerate reload-surviving staleness; search results and
// session-scoped data do not.
func (n Namespace) Persistable() bool {
	switch n {
	case NamespaceTicketDetail, NamespaceTicketList, NamespaceReference:
		return true
	default:
		return false
	}
}

// CacheStore is the two-tier TTL cache: a volatile in-process map backed by a
// durable StorageBackend for persistable namespaces.
//
// Storage-tier failures are never surfaced through this interface; the store
// degrades silently to volatile-only behavior.
type CacheStore interface {
	// Set stores value under key with the given TTL. It returns ErrInvalidTTL
	// for a non-positive ttl. The volatile tier is written unconditionally;
	// the storage backend is written only for persistable namespaces.
	Set(ctx context.Context, key string, ns Namespace, value []byte, ttl time.Duration) error

	// Get returns the cached value and true on a hit. An expired entry is
	// deleted from both tiers and reported as a miss. A volatile miss in a
	// persistable namespace falls through to the storage backend; a valid
	// persisted record is promoted into the volatile tier before returning.
	Get(ctx context.Context, key string, ns Namespace) ([]byte, bool)

	// Invalidate removes the given keys from both tiers. It is idempotent on
	// keys that are not present.
	Invalidate(ctx context.Context, keys ...string)

	// Clear removes every volatile entry and every persisted record under the
	// service's storage prefix.
	Clear(ctx context.Context)
}

// StorageRecord is the durable representation of one cache entry: an opaque
// JSON payload plus its absolute expiry in epoch milliseconds. A record that
// is missing or fails to parse is a cache miss, never an error.
type StorageRecord struct {
	Value  []byte `json:"value"`
	Expiry int64  `json:"expiry"`
}

// Expired reports whether the record's expiry has passed at the given time.
func (r *StorageRecord) Expired(now time.Time) bool {
	return now.UnixMilli() > r.Expiry
}

// StorageBackend abstracts the durable key-value store behind the cache's
// persistent tier. Implementations own key prefixing; callers pass bare cache
// keys.
type StorageBackend interface {
	// Load returns the record for key, or (nil, nil) when no record exists.
	Load(ctx context.Context, key string) (*StorageRecord, error)

	// Store writes the record for key. Implementations should bound the
	// record's physical lifetime by its expiry where the store supports it.
	Store(ctx context.Context, key string, record *StorageRecord) error

	// Delete removes the records for the given keys; missing keys are not an
	// error.
	Delete(ctx context.Context, keys ...string) error

	// Purge removes every record under the backend's prefix.
	Purge(ctx context.Context) error
}
