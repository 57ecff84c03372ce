// Package biometric drives the external biometric deduplication engine for a
// program: it keeps the program's deduplication set, uploads the photos of
// pending import batches, starts matching and turns the engine's findings
// into golden record statuses and adjudication tickets.
//
// Batch lifecycle:
//
//	PENDING → UPLOADED → IN_PROGRESS → FINISHED
//	PENDING → UPLOAD_ERROR          (re-queued to PENDING by an operator)
//	UPLOADED → ERROR                (engine refused to process)
//
// Engine failures on a single batch become that batch's status; only
// precondition failures, a processing conflict and a run where every upload
// failed are returned to the caller.
package biometric

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"hope/internal/adjudication/factory"
	adjmodels "hope/internal/adjudication/models"
	"hope/internal/deduplication/biometric/client"
	"hope/internal/platform/metrics"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
)

// Engine is the external matching service.
type Engine interface {
	CreateDeduplicationSet(ctx context.Context, name, referenceID string) (string, error)
	BulkUploadImages(ctx context.Context, setID string, images []client.Image) error
	ProcessDeduplication(ctx context.Context, setID string) (int, error)
	DeleteDeduplicationSet(ctx context.Context, setID string) error
	GetDuplicates(ctx context.Context, setID string) ([]client.Finding, error)
}

// Store is the slice of the Entity Store the orchestrator needs.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProgram(ctx context.Context, programID id.ProgramID) (*regmodels.Program, error)
	ListImportBatches(ctx context.Context, programID id.ProgramID, statuses ...regmodels.DeduplicationEngineStatus) ([]*regmodels.ImportBatch, error)
	ListBatchImages(ctx context.Context, batchID id.ImportBatchID) ([]regmodels.ImageRef, error)
	UpdateImportBatchStatus(ctx context.Context, ids []id.ImportBatchID, status regmodels.DeduplicationEngineStatus) error
	ClaimDeduplicationSet(ctx context.Context, programID id.ProgramID, setID string) (string, error)
	ReleaseDeduplicationSet(ctx context.Context, programID id.ProgramID) error
	SaveSimilarityPairs(ctx context.Context, pairs []regmodels.SimilarityPair) error
	GetIndividualRefs(ctx context.Context, ids []id.IndividualID) ([]regmodels.IndividualRef, error)
	UpdateGoldenRecordResults(ctx context.Context, updates []regmodels.GoldenRecordUpdate) error
}

type TicketFactory interface {
	CreateOrAttach(ctx context.Context, issueType adjmodels.IssueType, groups []factory.Group) (*factory.Outcome, error)
	NotifyCreated(ctx context.Context, created []*adjmodels.Ticket)
}

// Locker serializes runs of one program across workers. Acquire returns an
// error wrapping sentinel.ErrLocked when another holder has the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Thresholds classify finding scores. A score at or above Duplicate marks a
// golden record DUPLICATE; a score at or above Similarity marks it SIMILAR and
// is kept as a similarity pair.
type Thresholds struct {
	Duplicate  float64
	Similarity float64
}

type Service struct {
	engine            Engine
	store             Store
	tickets           TicketFactory
	locker            Locker
	thresholds        Thresholds
	uploadConcurrency int
	logger            *slog.Logger
	metrics           *metrics.Metrics
	tracer            trace.Tracer
}

type Option func(*Service)

func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithThresholds(t Thresholds) Option {
	return func(s *Service) {
		if t.Duplicate > 0 {
			s.thresholds.Duplicate = t.Duplicate
		}
		if t.Similarity > 0 {
			s.thresholds.Similarity = t.Similarity
		}
	}
}

// WithUploadConcurrency bounds the number of batches uploaded at once.
func WithUploadConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.uploadConcurrency = n
		}
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

func New(engine Engine, store Store, tickets TicketFactory, opts ...Option) *Service {
	s := &Service{
		engine:            engine,
		store:             store,
		tickets:           tickets,
		thresholds:        Thresholds{Duplicate: 0.9, Similarity: 0.6},
		uploadConcurrency: 4,
		logger:            slog.Default(),
		tracer:            otel.Tracer("hope/deduplication/biometric"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// setStatus moves batches to status. Failures are logged: the engine call
// already happened and the caller cannot undo it.
func (s *Service) setStatus(ctx context.Context, batches []*regmodels.ImportBatch, status regmodels.DeduplicationEngineStatus) error {
	if len(batches) == 0 {
		return nil
	}
	ids := make([]id.ImportBatchID, len(batches))
	for k, b := range batches {
		ids[k] = b.ID
	}
	if err := s.store.UpdateImportBatchStatus(ctx, ids, status); err != nil {
		s.logger.ErrorContext(ctx, "failed to update import batch status",
			"program_id", batches[0].ProgramID.String(),
			"import_batch_ids", batchIDStrings(ids),
			"status", string(status),
			"error", err,
		)
		return err
	}
	for _, b := range batches {
		b.DeduplicationEngineStatus = status
	}
	s.metrics.AddBatchTransitions(string(status), len(batches))
	return nil
}

func batchIDStrings(ids []id.ImportBatchID) []string {
	out := make([]string, len(ids))
	for k, b := range ids {
		out[k] = b.String()
	}
	return out
}

func isNotFound(err error) bool {
	return client.StatusCodeOf(err) == http.StatusNotFound
}

func elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
