package biometric

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"hope/internal/deduplication/biometric/client"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/platform/sentinel"
)

// RunSummary reports what UploadAndProcess did.
type RunSummary struct {
	SetID    string
	Uploaded []id.ImportBatchID
	Failed   []id.ImportBatchID
	// Processing is the final status of the uploaded batches: IN_PROGRESS when
	// the engine accepted the run, ERROR when it refused.
	Processing regmodels.DeduplicationEngineStatus
}

// UploadBatch uploads the photos of every active individual of the batch in a
// single engine call and marks the batch UPLOADED. A batch without photos is
// UPLOADED without calling the engine. On failure the batch is marked
// UPLOAD_ERROR and an *UploadError is returned.
func (s *Service) UploadBatch(ctx context.Context, setID string, batch *regmodels.ImportBatch) error {
	images, err := s.store.ListBatchImages(ctx, batch.ID)
	if err != nil {
		return s.uploadFailed(ctx, batch, fmt.Errorf("list batch images: %w", err))
	}

	if len(images) > 0 {
		payload := make([]client.Image, len(images))
		for k, img := range images {
			payload[k] = client.Image{ReferenceID: img.IndividualID.String(), ImageURL: img.ImageURL}
		}
		if err := s.engine.BulkUploadImages(ctx, setID, payload); err != nil {
			return s.uploadFailed(ctx, batch, err)
		}
	}

	if err := s.setStatus(ctx, []*regmodels.ImportBatch{batch}, regmodels.EngineStatusUploaded); err != nil {
		return &UploadError{BatchID: batch.ID, Err: err}
	}
	s.logger.InfoContext(ctx, "import batch uploaded",
		"program_id", batch.ProgramID.String(),
		"import_batch_id", batch.ID.String(),
		"images", len(images),
	)
	return nil
}

func (s *Service) uploadFailed(ctx context.Context, batch *regmodels.ImportBatch, cause error) error {
	s.logger.ErrorContext(ctx, "import batch upload failed",
		"program_id", batch.ProgramID.String(),
		"import_batch_id", batch.ID.String(),
		"error", cause,
	)
	_ = s.setStatus(ctx, []*regmodels.ImportBatch{batch}, regmodels.EngineStatusUploadError)
	return &UploadError{BatchID: batch.ID, Err: cause}
}

// ProcessDeduplicationSet starts matching on the engine. When the engine
// accepts, the batches move to IN_PROGRESS. A 409 means a run is already
// active: ErrProcessingConflict is returned and no batch changes. Any other
// failure moves the batches to ERROR and is not returned.
func (s *Service) ProcessDeduplicationSet(ctx context.Context, setID string, batches []*regmodels.ImportBatch) error {
	status, err := s.engine.ProcessDeduplication(ctx, setID)
	switch {
	case err == nil:
		return s.setStatus(ctx, batches, regmodels.EngineStatusInProgress)
	case status == http.StatusConflict:
		return dErrors.Wrap(fmt.Errorf("%w: %w", ErrProcessingConflict, err), dErrors.CodeConflict,
			"deduplication set is already being processed")
	}

	attrs := []any{"set_id", setID, "status", status, "error", err}
	if len(batches) > 0 {
		attrs = append(attrs, "program_id", batches[0].ProgramID.String())
	}
	for _, b := range batches {
		s.logger.ErrorContext(ctx, "deduplication engine refused to process import batch",
			append(attrs, "import_batch_id", b.ID.String())...)
	}
	return s.setStatus(ctx, batches, regmodels.EngineStatusError)
}

// UploadAndProcess runs biometric deduplication for every PENDING import batch
// of the program. Preconditions are checked before any engine call. Uploads
// fan out per batch and one batch's failure never stops the others; matching
// starts once every upload has finished, for the batches that made it.
func (s *Service) UploadAndProcess(ctx context.Context, programID id.ProgramID) (*RunSummary, error) {
	ctx, span := s.tracer.Start(ctx, "UploadAndProcess",
		trace.WithAttributes(attribute.String("program.id", programID.String())))
	defer span.End()
	start := time.Now()

	summary, err := s.uploadAndProcess(ctx, programID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "biometric run failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("batches.uploaded", len(summary.Uploaded)),
		attribute.Int("batches.failed", len(summary.Failed)),
	)
	s.logger.InfoContext(ctx, "biometric deduplication run started",
		"program_id", programID.String(),
		"set_id", summary.SetID,
		"uploaded", len(summary.Uploaded),
		"failed", len(summary.Failed),
		"processing", string(summary.Processing),
		elapsed(start),
	)
	return summary, nil
}

func (s *Service) uploadAndProcess(ctx context.Context, programID id.ProgramID) (*RunSummary, error) {
	program, err := s.store.GetProgram(ctx, programID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load program")
	}
	if !program.BiometricDeduplicationEnabled {
		return nil, dErrors.Wrap(ErrNotEnabled, dErrors.CodePreconditionFailed, "cannot run biometric deduplication")
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "biometric-dedup:program:"+programID.String())
		if errors.Is(err, sentinel.ErrLocked) {
			return nil, dErrors.Wrap(ErrAlreadyInProgress, dErrors.CodePreconditionFailed, "program is locked by another run")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to lock program")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release program lock",
					"program_id", programID.String(),
					"error", err,
				)
			}
		}()
	}

	running, err := s.store.ListImportBatches(ctx, programID, regmodels.EngineStatusInProgress)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list import batches")
	}
	if len(running) > 0 {
		return nil, dErrors.Wrap(ErrAlreadyInProgress, dErrors.CodePreconditionFailed,
			fmt.Sprintf("%d import batches are still processing", len(running)))
	}

	setID, err := s.CreateDeduplicationSet(ctx, programID)
	if err != nil {
		return nil, err
	}
	summary := &RunSummary{SetID: setID}

	pending, err := s.store.ListImportBatches(ctx, programID, regmodels.EngineStatusPending)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list import batches")
	}
	if len(pending) == 0 {
		return summary, nil
	}

	uploaded := s.uploadAll(ctx, setID, pending)
	for k, b := range pending {
		if uploaded[k] {
			summary.Uploaded = append(summary.Uploaded, b.ID)
		} else {
			summary.Failed = append(summary.Failed, b.ID)
		}
	}
	if len(summary.Uploaded) == 0 {
		return nil, dErrors.Wrap(ErrAllUploadsFailed, dErrors.CodeUnavailable,
			fmt.Sprintf("%d import batches failed to upload", len(summary.Failed)))
	}

	var ready []*regmodels.ImportBatch
	for k, b := range pending {
		if uploaded[k] {
			ready = append(ready, b)
		}
	}
	if err := s.ProcessDeduplicationSet(ctx, setID, ready); err != nil {
		return nil, err
	}
	summary.Processing = ready[0].DeduplicationEngineStatus
	return summary, nil
}

// uploadAll uploads every batch and reports which succeeded, by index.
func (s *Service) uploadAll(ctx context.Context, setID string, batches []*regmodels.ImportBatch) []bool {
	ok := make([]bool, len(batches))
	var g errgroup.Group
	g.SetLimit(s.uploadConcurrency)
	for k, b := range batches {
		g.Go(func() error {
			ok[k] = s.UploadBatch(ctx, setID, b) == nil
			return nil
		})
	}
	_ = g.Wait()
	return ok
}
