package cachekeys

import (
	"fmt"
	"strings"

	"gitlab.com/timkado/api/daisi-helpdesk-service/pkg/crypto"
)

// Cache keys follow the grammar "<namespace>_<discriminators...>". The
// namespace token is informational only; persistability is decided by the
// explicit domain.Namespace tag passed alongside the key, never parsed back
// out of the string.

// TicketDetailKey generates the cache key for a single ticket's detail payload.
func TicketDetailKey(ticketID string) string {
	return fmt.Sprintf("ticket_%s", ticketID)
}

// TicketListKey generates the cache key for a filtered ticket list.
func TicketListKey(status string, year int, userID string) string {
	return fmt.Sprintf("tickets_%s_%d_%s", status, year, userID)
}

// SearchKey generates the cache key for a search result set.
// The query is normalized and hashed so arbitrary user input cannot produce
// unbounded or collision-prone key material.
func SearchKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	return fmt.Sprintf("search_%s", crypto.Sha256Hex(normalized))
}

// ReferenceKey generates the cache key for a reference-data list (categories,
// priorities, queues).
func ReferenceKey(kind string) string {
	return fmt.Sprintf("ref_%s", kind)
}
