package contextkeys

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for storing and retrieving a request ID.
	RequestIDKey contextKey = "request_id"

	// UserIDKey is the context key for storing and retrieving the acting portal user ID.
	UserIDKey contextKey = "user_id"

	// TicketIDKey is the context key for storing and retrieving the ticket ID a request operates on.
	TicketIDKey contextKey = "ticket_id"
)

// String makes contextKey satisfy fmt.Stringer to help with debugging/logging of keys themselves.
func (c contextKey) String() string {
	return string(c)
}
