// Package service exposes the adjudication state machine of review tickets:
// reviewers flag candidates as duplicate or distinct, and a ticket closes only
// once the review rules hold. Closing publishes a ticket.closed event for the
// downstream merge and withdraw pipeline.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hope/internal/adjudication/models"
	"hope/internal/audit"
	"hope/internal/platform/metrics"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/platform/sentinel"
	"hope/pkg/requestcontext"
)

type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTicket(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error)
	GetTicketForUpdate(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error)
	GetIndividualRefs(ctx context.Context, ids []id.IndividualID) ([]regmodels.IndividualRef, error)
	SaveTicketReview(ctx context.Context, t *models.Ticket) error
}

// Auditor records reviewer decisions inside the review transaction.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Publisher receives closed tickets after the close is committed.
type Publisher interface {
	TicketClosed(ctx context.Context, t *models.Ticket) error
}

type Service struct {
	store     Store
	publisher Publisher
	auditor   Auditor
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("hope/adjudication"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) GetTicket(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, ticketErr(err)
	}
	return t, nil
}

// SelectIndividual flags a candidate of the ticket as duplicate or distinct.
// Non-candidates and withdrawn individuals are rejected with a validation error.
func (s *Service) SelectIndividual(ctx context.Context, ticketID id.TicketID, individualID id.IndividualID, asDuplicate bool) (*models.Ticket, error) {
	return s.review(ctx, ticketID, func(ctx context.Context, t *models.Ticket) error {
		if !t.IsCandidate(individualID) {
			return dErrors.New(dErrors.CodeValidation, "individual is not a candidate of this ticket")
		}
		ref, err := s.individual(ctx, individualID)
		if err != nil {
			return err
		}
		if err := t.SelectIndividual(ref, asDuplicate, requestcontext.Now(ctx)); err != nil {
			return err
		}
		decision := audit.DecisionDistinct
		if asDuplicate {
			decision = audit.DecisionDuplicate
		}
		return s.recordDecision(ctx, audit.Event{
			TicketID:     ticketID,
			Action:       audit.ActionIndividualSelected,
			IndividualID: individualID,
			Decision:     decision,
		})
	})
}

// ClearSelection removes the individual from both selections.
func (s *Service) ClearSelection(ctx context.Context, ticketID id.TicketID, individualID id.IndividualID) (*models.Ticket, error) {
	return s.review(ctx, ticketID, func(ctx context.Context, t *models.Ticket) error {
		if err := t.ClearSelection(individualID, requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.recordDecision(ctx, audit.Event{
			TicketID:     ticketID,
			Action:       audit.ActionSelectionCleared,
			IndividualID: individualID,
		})
	})
}

func (s *Service) review(ctx context.Context, ticketID id.TicketID, apply func(ctx context.Context, t *models.Ticket) error) (*models.Ticket, error) {
	var out *models.Ticket
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.store.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return ticketErr(err)
		}
		if err := apply(ctx, t); err != nil {
			return err
		}
		if err := s.store.SaveTicketReview(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save ticket review")
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateCloseable reports why the ticket cannot be closed yet, or nil.
func (s *Service) ValidateCloseable(ctx context.Context, ticketID id.TicketID) error {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return ticketErr(err)
	}
	withdrawn, err := s.withdrawnCandidates(ctx, t)
	if err != nil {
		return err
	}
	return t.ValidateCloseable(withdrawn)
}

// CloseTicket closes a ticket whose review is complete and publishes
// ticket.closed. A publish failure is logged; the close stands.
func (s *Service) CloseTicket(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "CloseTicket",
		trace.WithAttributes(attribute.String("ticket.id", ticketID.String())))
	defer span.End()

	var closed *models.Ticket
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.store.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return ticketErr(err)
		}
		withdrawn, err := s.withdrawnCandidates(ctx, t)
		if err != nil {
			return err
		}
		if err := t.Close(withdrawn, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.SaveTicketReview(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save ticket review")
		}
		if err := s.recordDecision(ctx, audit.Event{TicketID: t.ID, Action: audit.ActionTicketClosed}); err != nil {
			return err
		}
		closed = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close rejected")
		return nil, err
	}

	s.metrics.IncrementTicketsClosed(string(closed.IssueType))
	s.logger.InfoContext(ctx, "adjudication ticket closed",
		"ticket_id", closed.ID.String(),
		"duplicates", len(closed.Details.SelectedIndividuals),
		"distinct", len(closed.Details.SelectedDistinct),
	)
	if s.publisher != nil {
		if err := s.publisher.TicketClosed(ctx, closed); err != nil {
			s.metrics.IncrementNotificationErrors()
			s.logger.WarnContext(ctx, "failed to publish ticket closed notification",
				"ticket_id", closed.ID.String(),
				"error", err,
			)
		}
	}
	return closed, nil
}

func (s *Service) recordDecision(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record review decision")
	}
	return nil
}

func (s *Service) individual(ctx context.Context, individualID id.IndividualID) (regmodels.IndividualRef, error) {
	refs, err := s.store.GetIndividualRefs(ctx, []id.IndividualID{individualID})
	if err != nil {
		return regmodels.IndividualRef{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load individual")
	}
	if len(refs) == 0 {
		return regmodels.IndividualRef{}, dErrors.New(dErrors.CodeNotFound, "individual not found")
	}
	return refs[0], nil
}

func (s *Service) withdrawnCandidates(ctx context.Context, t *models.Ticket) (map[id.IndividualID]bool, error) {
	refs, err := s.store.GetIndividualRefs(ctx, t.Candidates())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket candidates")
	}
	withdrawn := make(map[id.IndividualID]bool, len(refs))
	for _, r := range refs {
		withdrawn[r.ID] = r.Withdrawn
	}
	return withdrawn, nil
}

func ticketErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "ticket not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
}
