// Package handler exposes adjudication ticket review over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"hope/internal/adjudication/models"
	"hope/internal/audit"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/requestcontext"
)

// ActorHeader names the reviewer acting on a ticket.
const ActorHeader = "X-Actor-ID"

// Service is the review surface of the adjudication state machine.
type Service interface {
	GetTicket(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error)
	SelectIndividual(ctx context.Context, ticketID id.TicketID, individualID id.IndividualID, asDuplicate bool) (*models.Ticket, error)
	ClearSelection(ctx context.Context, ticketID id.TicketID, individualID id.IndividualID) (*models.Ticket, error)
	ValidateCloseable(ctx context.Context, ticketID id.TicketID) error
	CloseTicket(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error)
}

// Trail lists the recorded review decisions of a ticket.
type Trail interface {
	List(ctx context.Context, ticketID id.TicketID) ([]audit.Event, error)
}

type Handler struct {
	service Service
	trail   Trail
	logger  *slog.Logger
}

func New(service Service, trail Trail, logger *slog.Logger) *Handler {
	return &Handler{service: service, trail: trail, logger: logger}
}

// Register mounts the review endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/tickets/{ticketID}", func(r chi.Router) {
		r.Use(reviewContext)
		r.Get("/", h.HandleGetTicket)
		r.Get("/review-trail", h.HandleReviewTrail)
		r.Post("/selections", h.HandleSelect)
		r.Delete("/selections/{individualID}", h.HandleClearSelection)
		r.Get("/closeable", h.HandleCloseable)
		r.Post("/close", h.HandleClose)
	})
}

// reviewContext carries the request ID and reviewer into the review trail.
func reviewContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := chimw.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		if actor := r.Header.Get(ActorHeader); actor != "" {
			ctx = requestcontext.WithActorID(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandleGetTicket handles GET /tickets/{ticketID}.
func (h *Handler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.fail(w, r, "get ticket failed", err)
		return
	}
	writeJSON(w, http.StatusOK, FromTicket(t))
}

// HandleReviewTrail handles GET /tickets/{ticketID}/review-trail.
func (h *Handler) HandleReviewTrail(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.GetTicket(r.Context(), ticketID); err != nil {
		h.fail(w, r, "get ticket failed", err)
		return
	}
	events, err := h.trail.List(r.Context(), ticketID)
	if err != nil {
		h.fail(w, r, "list review trail failed", dErrors.Wrap(err, dErrors.CodeInternal, "failed to list review trail"))
		return
	}
	writeJSON(w, http.StatusOK, FromEvents(events))
}

// HandleSelect handles POST /tickets/{ticketID}/selections.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	individualID, err := req.Validate()
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.service.SelectIndividual(r.Context(), ticketID, individualID, req.Duplicate)
	if err != nil {
		h.fail(w, r, "select individual failed", err)
		return
	}
	h.logger.InfoContext(r.Context(), "individual selected",
		"ticket_id", ticketID.String(),
		"individual_id", individualID.String(),
		"duplicate", req.Duplicate,
		"actor_id", requestcontext.ActorID(r.Context()),
	)
	writeJSON(w, http.StatusOK, FromTicket(t))
}

// HandleClearSelection handles DELETE /tickets/{ticketID}/selections/{individualID}.
func (h *Handler) HandleClearSelection(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	individualID, err := id.ParseIndividualID(chi.URLParam(r, "individualID"))
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.service.ClearSelection(r.Context(), ticketID, individualID)
	if err != nil {
		h.fail(w, r, "clear selection failed", err)
		return
	}
	writeJSON(w, http.StatusOK, FromTicket(t))
}

// HandleCloseable handles GET /tickets/{ticketID}/closeable.
func (h *Handler) HandleCloseable(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	err := h.service.ValidateCloseable(r.Context(), ticketID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CloseableResponse{Closeable: true})
	case dErrors.HasCode(err, dErrors.CodeValidation):
		writeJSON(w, http.StatusOK, CloseableResponse{Closeable: false, Reason: message(err)})
	default:
		h.fail(w, r, "validate closeable failed", err)
	}
}

// HandleClose handles POST /tickets/{ticketID}/close.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	t, err := h.service.CloseTicket(r.Context(), ticketID)
	if err != nil {
		h.fail(w, r, "close ticket failed", err)
		return
	}
	writeJSON(w, http.StatusOK, FromTicket(t))
}

func (h *Handler) ticketID(w http.ResponseWriter, r *http.Request) (id.TicketID, bool) {
	ticketID, err := id.ParseTicketID(chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, err)
		return id.TicketID{}, false
	}
	return ticketID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	writeError(w, err)
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError omits the description of internal errors.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.Description = message(err)
	}
	writeJSON(w, statusOf(code), body)
}

func message(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
