package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hope/internal/deduplication/biometric"
	"hope/internal/deduplication/hard"
	"hope/internal/platform/kafka/consumer"
	"hope/internal/platform/metrics"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/requestcontext"
)

type HardDeduplicator interface {
	HardDeduplicateDocuments(ctx context.Context, candidates []id.DocumentID, scopeImportBatch id.ImportBatchID) (*hard.Result, error)
}

type Biometric interface {
	UploadAndProcess(ctx context.Context, programID id.ProgramID) (*biometric.RunSummary, error)
	ReconcileFindings(ctx context.Context, programID id.ProgramID) (*biometric.ReconcileResult, error)
	CreateDeduplicationSet(ctx context.Context, programID id.ProgramID) (string, error)
	DeleteDeduplicationSet(ctx context.Context, programID id.ProgramID) error
}

// HandlerFunc runs one decoded job.
type HandlerFunc func(ctx context.Context, job *Job) error

const (
	outcomeOK       = "ok"
	outcomeFailed   = "failed"
	outcomeSkipped  = "skipped"
	outcomeRejected = "rejected"
)

// Dispatcher routes jobs to the handler registered for their kind.
type Dispatcher struct {
	handlers map[Kind]HandlerFunc
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher registers the deduplication entry points. A nil biometric
// service leaves the biometric kinds unregistered.
func NewDispatcher(hardDedup HardDeduplicator, bio Biometric, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[Kind]HandlerFunc),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if hardDedup != nil {
		d.Register(KindHardDeduplicateDocuments, func(ctx context.Context, job *Job) error {
			res, err := hardDedup.HardDeduplicateDocuments(ctx, job.DocumentIDs, job.ImportBatchID)
			if err != nil {
				return err
			}
			d.logger.InfoContext(ctx, "hard deduplication finished",
				"documents", len(job.DocumentIDs),
				"need_investigation", len(res.NeedInvestigation),
				"tickets_created", len(res.TicketsCreated),
				"tickets_attached", len(res.TicketsAttached),
			)
			return nil
		})
	}
	if bio != nil {
		d.Register(KindBiometricUploadAndProcess, func(ctx context.Context, job *Job) error {
			summary, err := bio.UploadAndProcess(ctx, job.ProgramID)
			if err != nil {
				return err
			}
			d.logger.InfoContext(ctx, "biometric upload finished",
				"program_id", job.ProgramID,
				"set_id", summary.SetID,
				"uploaded", len(summary.Uploaded),
				"failed", len(summary.Failed),
				"processing", summary.Processing,
			)
			return nil
		})
		d.Register(KindBiometricReconcile, func(ctx context.Context, job *Job) error {
			res, err := bio.ReconcileFindings(ctx, job.ProgramID)
			if err != nil {
				return err
			}
			d.logger.InfoContext(ctx, "biometric findings reconciled",
				"program_id", job.ProgramID,
				"finished_batches", len(res.Finished),
				"pairs", res.Pairs,
				"tickets_created", len(res.TicketsCreated),
			)
			return nil
		})
		d.Register(KindBiometricCreateSet, func(ctx context.Context, job *Job) error {
			_, err := bio.CreateDeduplicationSet(ctx, job.ProgramID)
			return err
		})
		d.Register(KindBiometricDeleteSet, func(ctx context.Context, job *Job) error {
			return bio.DeleteDeduplicationSet(ctx, job.ProgramID)
		})
	}
	return d
}

// Register adds or replaces the handler for a kind.
func (d *Dispatcher) Register(kind Kind, fn HandlerFunc) {
	d.handlers[kind] = fn
}

// Dispatch runs the job. Jobs whose precondition no longer holds (a run
// already in progress, biometrics disabled) are skipped without error so the
// scheduler does not redeliver them.
func (d *Dispatcher) Dispatch(ctx context.Context, job *Job) error {
	handler, ok := d.handlers[job.Kind]
	if !ok {
		d.metrics.IncrementJob(string(job.Kind), outcomeRejected)
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("no handler for job kind %q", job.Kind))
	}
	if job.RequestID != "" {
		ctx = requestcontext.WithRequestID(ctx, job.RequestID)
	}
	ctx = requestcontext.WithTime(ctx, time.Now())

	err := handler(ctx, job)
	switch {
	case err == nil:
		d.metrics.IncrementJob(string(job.Kind), outcomeOK)
		return nil
	case errors.Is(err, biometric.ErrAlreadyInProgress), errors.Is(err, biometric.ErrNotEnabled):
		d.metrics.IncrementJob(string(job.Kind), outcomeSkipped)
		d.logger.WarnContext(ctx, "job skipped",
			"kind", job.Kind,
			"program_id", job.ProgramID,
			"reason", err,
		)
		return nil
	default:
		d.metrics.IncrementJob(string(job.Kind), outcomeFailed)
		return fmt.Errorf("job %s: %w", job.Kind, err)
	}
}

// Handle decodes a consumed message and dispatches it. Malformed messages are
// logged and dropped.
func (d *Dispatcher) Handle(ctx context.Context, msg *consumer.Message) error {
	job, err := Decode(msg.Value)
	if err != nil {
		d.metrics.IncrementJob("unknown", outcomeRejected)
		d.logger.WarnContext(ctx, "dropping invalid job message",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	return d.Dispatch(ctx, job)
}
