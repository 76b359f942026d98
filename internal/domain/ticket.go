package domain

import (
	"time"
)

// Ticket statuses as reported by the upstream ticketing API.
const (
	TicketStatusOpen    = "open"
	TicketStatusPending = "pending"
	TicketStatusClosed  = "closed"
)

// Ticket is one helpdesk ticket as returned by the upstream API.
type Ticket struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	Queue     string    `json:"queue,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Articles  []Article `json:"articles,omitempty"`
}

// Closed reports whether the ticket is in a terminal status.
func (t *Ticket) Closed() bool {
	return t.Status == TicketStatusClosed
}

// Article is one message on a ticket thread (customer note, agent reply).
type Article struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketFilter identifies one filtered list view: a status category, the
// period (year) it covers, and the portal user whose tickets it lists.
type TicketFilter struct {
	Status string `json:"status"`
	Year   int    `json:"year"`
	UserID string `json:"user_id"`
}

// NewTicket is the payload for creating a ticket upstream.
type NewTicket struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Queue    string `json:"queue,omitempty"`
	Priority string `json:"priority,omitempty"`
	OwnerID  string `json:"owner_id"`
}

// Reply is the payload for appending an article to an existing ticket.
type Reply struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
	Author   string `json:"author"`
}

// SearchResult is one row of a ticket search response.
type SearchResult struct {
	TicketID string `json:"ticket_id"`
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	Snippet  string `json:"snippet,omitempty"`
}

// Reference-data kinds selectable in portal forms.
const (
	ReferenceKindCategories = "categories"
	ReferenceKindPriorities = "priorities"
	ReferenceKindQueues     = "queues"
)

// ReferenceItem is one selectable entry of a reference-data list.
type ReferenceItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
