package application

import (
	"time"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

// TTLCategory classifies an entity for cache-lifetime selection. It is an
// input to the TTL policy only and is never persisted.
type TTLCategory string

const (
	// CategoryArchived covers entities from a prior period; their content is
	// immutable in practice, so they cache for days.
	CategoryArchived TTLCategory = "archived"

	// CategoryCurrentClosed covers current-period entities in a terminal
	// status; rare updates are still possible, so they cache for hours.
	CategoryCurrentClosed TTLCategory = "current_closed"

	// CategoryCurrentActive covers current-period entities under active work;
	// they must feel fresh, so they cache for minutes.
	CategoryCurrentActive TTLCategory = "current_active"

	// CategoryReference covers selectable lookup data; it changes rarely and
	// is costly to refetch, so it caches for hours up to a day.
	CategoryReference TTLCategory = "reference"

	// CategorySearch covers search result sets; they must reflect near-live
	// content and are cheap to refetch, so they cache for a couple of minutes.
	CategorySearch TTLCategory = "search"
)

// TTLPolicy maps a TTL category to a lifetime, driven by the configured TTL
// table. Selection is deterministic given (category, referenceDate, now);
// the policy holds no state beyond the table snapshot it reads per call.
type TTLPolicy struct {
	cfgProvider config.Provider
}

// NewTTLPolicy creates a TTLPolicy reading the TTL table from the given
// configuration provider.
func NewTTLPolicy(cfgProvider config.Provider) *TTLPolicy {
	if cfgProvider == nil {
		panic("config provider cannot be nil in NewTTLPolicy")
	}
	return &TTLPolicy{cfgProvider: cfgProvider}
}

// Categorize derives the TTL category for a ticket-class entity from its
// status and reference date (typically the ticket's creation time). A
// reference date in a prior year marks the entity archived; a current-period
// entity is classified by whether its status is terminal. A zero reference
// date falls to the active category, the freshest of the class.
func (p *TTLPolicy) Categorize(status string, referenceDate time.Time, now time.Time) TTLCategory {
	if referenceDate.IsZero() {
		return CategoryCurrentActive
	}
	if referenceDate.Year() < now.Year() {
		return CategoryArchived
	}
	if status == domain.TicketStatusClosed {
		return CategoryCurrentClosed
	}
	return CategoryCurrentActive
}

// TTLFor returns the cache lifetime for the given category. A zero or future-
// dated referenceDate on a ticket-class category degrades to the shortest TTL
// of that class: when the age signal is unreliable the policy fails toward
// freshness, never toward staleness.
func (p *TTLPolicy) TTLFor(category TTLCategory, referenceDate time.Time, now time.Time) time.Duration {
	ttl := p.cfgProvider.Get().Cache.TTL

	switch category {
	case CategoryArchived, CategoryCurrentClosed:
		if referenceDate.IsZero() || referenceDate.After(now) {
			return time.Duration(ttl.ActiveMinutes) * time.Minute
		}
		if category == CategoryArchived {
			return time.Duration(ttl.ArchivedHours) * time.Hour
		}
		return time.Duration(ttl.ClosedHours) * time.Hour
	case CategoryCurrentActive:
		return time.Duration(ttl.ActiveMinutes) * time.Minute
	case CategoryReference:
		return time.Duration(ttl.ReferenceHours) * time.Hour
	case CategorySearch:
		return time.Duration(ttl.SearchMinutes) * time.Minute
	default:
		// Unknown categories are a programming error; serve them like search
		// results so the mistake cannot pin stale data for hours.
		return time.Duration(ttl.SearchMinutes) * time.Minute
	}
}
