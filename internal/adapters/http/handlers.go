package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/application"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
	"gitlab.com/timkado/api/daisi-helpdesk-service/pkg/contextkeys"
)

// PortalHandlers exposes the ticket service to the portal UI as a thin JSON
// surface. Handlers validate input and translate service errors; everything
// interesting happens in the application layer.
type PortalHandlers struct {
	logger  domain.Logger
	tickets *application.TicketService
}

// NewPortalHandlers creates the portal's HTTP handler set.
func NewPortalHandlers(logger domain.Logger, tickets *application.TicketService) *PortalHandlers {
	if logger == nil {
		panic("logger cannot be nil in NewPortalHandlers")
	}
	if tickets == nil {
		panic("ticket service cannot be nil in NewPortalHandlers")
	}
	return &PortalHandlers{
		logger:  logger,
		tickets: tickets,
	}
}

// RegisterRoutes attaches all portal routes to the mux.
func (h *PortalHandlers) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /api/tickets", wrap(http.HandlerFunc(h.ListTickets)))
	mux.Handle("GET /api/tickets/{id}", wrap(http.HandlerFunc(h.GetTicket)))
	mux.Handle("GET /api/search", wrap(http.HandlerFunc(h.SearchTickets)))
	mux.Handle("GET /api/reference/{kind}", wrap(http.HandlerFunc(h.ReferenceData)))
	mux.Handle("POST /api/tickets", wrap(http.HandlerFunc(h.CreateTicket)))
	mux.Handle("POST /api/tickets/{id}/replies", wrap(http.HandlerFunc(h.ReplyToTicket)))
	mux.Handle("POST /api/tickets/{id}/close", wrap(http.HandlerFunc(h.CloseTicket)))
}

// GetTicket serves one ticket's detail view.
func (h *PortalHandlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.tickets.GetTicket(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ticket)
}

// ListTickets serves a filtered list view. All three filter parameters are
// required; the cache key space is defined by them.
func (h *PortalHandlers) ListTickets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year, _ := strconv.Atoi(query.Get("year"))
	filter := domain.TicketFilter{
		Status: query.Get("status"),
		Year:   year,
		UserID: query.Get("user_id"),
	}

	tickets, err := h.tickets.ListTickets(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, tickets)
}

// SearchTickets serves free-text search results.
func (h *PortalHandlers) SearchTickets(w http.ResponseWriter, r *http.Request) {
	results, err := h.tickets.SearchTickets(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, results)
}

// ReferenceData serves a selectable reference list for portal forms.
func (h *PortalHandlers) ReferenceData(w http.ResponseWriter, r *http.Request) {
	items, err := h.tickets.ReferenceData(r.Context(), r.PathValue("kind"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

// CreateTicket creates a new ticket upstream.
func (h *PortalHandlers) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var payload domain.NewTicket
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn(r.Context(), "Failed to decode create ticket payload", "error", err.Error())
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid request payload", err.Error()).WriteJSON(w, http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.Subject == "" || payload.Body == "" || payload.OwnerID == "" {
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid payload", "subject, body and owner_id are required.").WriteJSON(w, http.StatusBadRequest)
		return
	}

	ticket, err := h.tickets.CreateTicket(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, ticket)
}

// ReplyToTicket appends a reply to a ticket.
func (h *PortalHandlers) ReplyToTicket(w http.ResponseWriter, r *http.Request) {
	var payload domain.Reply
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn(r.Context(), "Failed to decode reply payload", "error", err.Error())
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid request payload", err.Error()).WriteJSON(w, http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.Body == "" || payload.Author == "" {
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid payload", "body and author are required.").WriteJSON(w, http.StatusBadRequest)
		return
	}

	if err := h.tickets.ReplyToTicket(r.Context(), r.PathValue("id"), payload, payload.Author); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseTicket transitions a ticket to its terminal status. The acting user
// comes from the request context populated by UserContextMiddleware.
func (h *PortalHandlers) CloseTicket(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserIDKey).(string)
	if err := h.tickets.CloseTicket(r.Context(), r.PathValue("id"), userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PortalHandlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error(r.Context(), "Failed to encode response payload", "error", err.Error())
	}
}

// writeServiceError maps application errors onto the portal's error taxonomy.
// A surfaced transport failure tells the UI to show retry guidance; an
// upstream error status is passed through for caller-specific interpretation.
func (h *PortalHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, application.ErrTicketNotFound):
		domain.NewErrorResponse(domain.ErrNotFound, "Ticket not found", "").WriteJSON(w, http.StatusNotFound)
	case errors.Is(err, application.ErrInvalidFilter),
		errors.Is(err, application.ErrEmptyQuery),
		errors.Is(err, application.ErrUnknownReferenceKind):
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid request", err.Error()).WriteJSON(w, http.StatusBadRequest)
	default:
		var statusErr *domain.UpstreamStatusError
		if errors.As(err, &statusErr) {
			h.logger.Warn(r.Context(), "Upstream rejected the operation", "status", statusErr.StatusCode)
			domain.NewErrorResponse(domain.ErrUpstream, "The ticketing system rejected the request", statusErr.Error()).WriteJSON(w, http.StatusBadGateway)
			return
		}
		h.logger.Error(r.Context(), "Upstream request failed after all retries", "error", err.Error())
		domain.NewErrorResponse(domain.ErrTransport, "The ticketing system is unreachable, please try again", "").WriteJSON(w, http.StatusServiceUnavailable)
	}
}
