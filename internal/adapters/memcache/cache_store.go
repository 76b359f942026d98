// Package memcache implements the volatile tier of the two-tier cache and the
// orchestration between both tiers.
package memcache

import (
	"context"
	"sync"
	"time"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

const (
	tierVolatile   = "volatile"
	tierPersistent = "persistent"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store implements domain.CacheStore. The volatile tier is a mutex-guarded
// map; the persistent tier is an optional domain.StorageBackend consulted
// only for persistable namespaces. Every storage-tier failure is logged and
// swallowed, degrading to volatile-only behavior.
//
// Expired entries are purged lazily: each read checks its own entry, and a
// full sweep of the volatile tier runs as part of Get once the configured
// sweep interval has elapsed since the previous sweep.
type Store struct {
	mu        sync.Mutex
	entries   map[string]entry
	lastSweep time.Time

	storage       domain.StorageBackend // nil means volatile-only
	logger        domain.Logger
	sweepInterval time.Duration
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new two-tier cache store. storage may be nil, in which
// case persistable namespaces behave like ephemeral ones.
func NewStore(storage domain.StorageBackend, logger domain.Logger, sweepInterval time.Duration, opts ...Option) *Store {
	if logger == nil {
		panic("logger cannot be nil in NewStore")
	}
	if sweepInterval <= 0 {
		panic("sweepInterval must be positive in NewStore")
	}
	s := &Store{
		entries:       make(map[string]entry),
		storage:       storage,
		logger:        logger,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// Set stores value under key with the given TTL. A non-positive ttl is
// rejected with domain.ErrInvalidTTL before anything is written, leaving any
// prior entry for the key untouched.
func (s *Store) Set(ctx context.Context, key string, ns domain.Namespace, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return domain.ErrInvalidTTL
	}

	expiresAt := s.now().Add(ttl)

	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()

	if ns.Persistable() && s.storage != nil {
		record := &domain.StorageRecord{Value: value, Expiry: expiresAt.UnixMilli()}
		if err := s.storage.Store(ctx, key, record); err != nil {
			s.logger.Warn(ctx, "Persistent tier write failed; entry is volatile-only", "key", key, "error", err.Error())
		}
	}
	return nil
}

// Get returns the cached value for key and whether it was found. The volatile
// tier is checked first; a persistable namespace falls through to the storage
// backend on a volatile miss, and a valid persisted record is promoted into
// the volatile tier (write-through) before being returned.
func (s *Store) Get(ctx context.Context, key string, ns domain.Namespace) ([]byte, bool) {
	now := s.now()

	s.mu.Lock()
	s.maybeSweepLocked(ctx, now)
	ent, ok := s.entries[key]
	if ok && !now.After(ent.expiresAt) {
		s.mu.Unlock()
		metrics.IncrementCacheHit(tierVolatile)
		return ent.value, true
	}
	if ok {
		// Expired in place; drop it from both tiers.
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if ok {
		metrics.AddCacheEvictions(1)
		s.deleteFromStorage(ctx, ns, key)
		metrics.IncrementCacheMiss()
		return nil, false
	}

	if !ns.Persistable() || s.storage == nil {
		metrics.IncrementCacheMiss()
		return nil, false
	}

	record, err := s.storage.Load(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "Persistent tier read failed; treating as miss", "key", key, "error", err.Error())
		metrics.IncrementCacheMiss()
		return nil, false
	}
	if record == nil {
		metrics.IncrementCacheMiss()
		return nil, false
	}
	if record.Expired(now) {
		s.deleteFromStorage(ctx, ns, key)
		metrics.IncrementCacheMiss()
		return nil, false
	}

	// Promote so repeated reads within the session skip the storage round
	// trip. The promoted entry keeps the persisted expiry: the volatile tier
	// must never outlive its storage counterpart.
	s.mu.Lock()
	s.entries[key] = entry{value: record.Value, expiresAt: time.UnixMilli(record.Expiry)}
	s.mu.Unlock()

	s.logger.Debug(ctx, "Promoted persisted cache record into volatile tier", "key", key)
	metrics.IncrementCacheHit(tierPersistent)
	return record.Value, true
}

// Invalidate removes the given keys from both tiers. It is idempotent on keys
// that are not present.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.Delete(ctx, keys...); err != nil {
			s.logger.Warn(ctx, "Persistent tier invalidation failed", "keys", keys, "error", err.Error())
		}
	}

	metrics.AddCacheInvalidations(len(keys))
	s.logger.Debug(ctx, "Invalidated cache keys", "keys", keys)
}

// Clear removes all volatile entries and purges every persisted record under
// the service's storage prefix.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.Purge(ctx); err != nil {
			s.logger.Warn(ctx, "Persistent tier purge failed", "error", err.Error())
		}
	}
	s.logger.Info(ctx, "Cache cleared")
}

// maybeSweepLocked evicts every expired volatile entry once per sweep
// interval. Amortizing the pass over reads keeps cleanup off a dedicated
// timer without paying a full scan on every access. Caller must hold s.mu.
func (s *Store) maybeSweepLocked(ctx context.Context, now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.lastSweep = now

	evicted := 0
	for key, ent := range s.entries {
		if now.After(ent.expiresAt) {
			delete(s.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.AddCacheEvictions(evicted)
		s.logger.Debug(ctx, "Swept expired volatile cache entries", "evicted", evicted)
	}
}

func (s *Store) deleteFromStorage(ctx context.Context, ns domain.Namespace, key string) {
	if !ns.Persistable() || s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "Failed to delete expired record from persistent tier", "key", key, "error", err.Error())
	}
}
