// Package hard implements exact-match document deduplication.
//
// A run locks the candidate documents together with every VALID document that
// shares a candidate's program and normalized (type, country, number) key, in
// one transaction and in primary key order. Inside each group the original is
// the lowest-ID VALID document of an active individual, or failing that the
// lowest-ID eligible candidate, which becomes VALID. Every other eligible
// candidate is flagged NEED_INVESTIGATION and its owner becomes a possible
// duplicate of the original's owner on an adjudication ticket.
//
// The run issues a fixed number of storage operations whatever the number of
// candidates: begin, lock, status update, ticket lookup, three ticket bulk
// inserts, link insert, commit.
package hard

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hope/internal/adjudication/factory"
	adjmodels "hope/internal/adjudication/models"
	"hope/internal/platform/metrics"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
)

// Store is the slice of the Entity Store a run needs.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockDocumentsForDeduplication(ctx context.Context, candidates []id.DocumentID) ([]*regmodels.Document, error)
	UpdateDocumentStatuses(ctx context.Context, updates []regmodels.DocumentStatusUpdate) error
}

type TicketFactory interface {
	CreateOrAttach(ctx context.Context, issueType adjmodels.IssueType, groups []factory.Group) (*factory.Outcome, error)
	NotifyCreated(ctx context.Context, created []*adjmodels.Ticket)
}

// Result summarizes a run.
type Result struct {
	Validated         []id.DocumentID
	NeedInvestigation []id.DocumentID
	TicketsCreated    []id.TicketID
	TicketsAttached   []id.TicketID
}

type Service struct {
	store   Store
	tickets TicketFactory
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

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

func New(store Store, tickets TicketFactory, opts ...Option) *Service {
	s := &Service{
		store:   store,
		tickets: tickets,
		logger:  slog.Default(),
		tracer:  otel.Tracer("hope/deduplication/hard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HardDeduplicateDocuments re-checks the candidate documents against each
// other and against the VALID documents already known. scopeImportBatch, when
// set, is recorded on created tickets. Any failure rolls the whole run back;
// re-running on the same candidates is safe and converges to the same state.
func (s *Service) HardDeduplicateDocuments(ctx context.Context, candidates []id.DocumentID, scopeImportBatch id.ImportBatchID) (*Result, error) {
	candidates = uniqueDocuments(candidates)
	if len(candidates) == 0 {
		return &Result{}, nil
	}

	ctx, span := s.tracer.Start(ctx, "HardDeduplicateDocuments",
		trace.WithAttributes(
			attribute.Int("dedup.candidates", len(candidates)),
			attribute.String("dedup.import_batch_id", optionalID(scopeImportBatch)),
		))
	defer span.End()
	start := time.Now()

	var (
		res     = &Result{}
		created []*adjmodels.Ticket
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		docs, err := s.store.LockDocumentsForDeduplication(ctx, candidates)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock documents")
		}

		p := plan(docs, candidates, scopeImportBatch)
		if err := s.store.UpdateDocumentStatuses(ctx, p.updates); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update document statuses")
		}

		outcome, err := s.tickets.CreateOrAttach(ctx, adjmodels.IssueTypeDocumentsDuplicate, p.groups)
		if err != nil {
			return err
		}

		res = p.result()
		created = outcome.Created
		for _, t := range outcome.Created {
			res.TicketsCreated = append(res.TicketsCreated, t.ID)
		}
		for _, t := range outcome.Attached {
			res.TicketsAttached = append(res.TicketsAttached, t.ID)
		}
		return nil
	})
	s.metrics.ObserveHardRun(time.Since(start))
	if err != nil {
		s.metrics.IncrementHardRunFailures()
		span.RecordError(err)
		span.SetStatus(codes.Error, "deduplication rolled back")
		s.logger.ErrorContext(ctx, "hard deduplication rolled back",
			"candidates", len(candidates),
			"import_batch_id", optionalID(scopeImportBatch),
			"error", err,
		)
		return nil, err
	}

	s.tickets.NotifyCreated(ctx, created)

	s.metrics.AddDocumentsFlagged(string(regmodels.DocumentStatusValid), len(res.Validated))
	s.metrics.AddDocumentsFlagged(string(regmodels.DocumentStatusNeedInvestigation), len(res.NeedInvestigation))
	span.SetAttributes(
		attribute.Int("dedup.need_investigation", len(res.NeedInvestigation)),
		attribute.Int("dedup.tickets_created", len(res.TicketsCreated)),
	)
	s.logger.InfoContext(ctx, "hard deduplication finished",
		"candidates", len(candidates),
		"validated", len(res.Validated),
		"need_investigation", len(res.NeedInvestigation),
		"tickets_created", len(res.TicketsCreated),
		"tickets_attached", len(res.TicketsAttached),
	)
	return res, nil
}

func uniqueDocuments(ids []id.DocumentID) []id.DocumentID {
	seen := make(map[id.DocumentID]struct{}, len(ids))
	out := make([]id.DocumentID, 0, len(ids))
	for _, d := range ids {
		if d.IsNil() {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func optionalID(batch id.ImportBatchID) string {
	if batch.IsNil() {
		return ""
	}
	return batch.String()
}
