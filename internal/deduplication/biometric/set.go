package biometric

import (
	"context"
	"errors"

	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/platform/sentinel"
)

// CreateDeduplicationSet returns the program's deduplication set, allocating
// one on the engine when the program has none. Two concurrent callers may both
// allocate; the first claim wins and the loser deletes its own set.
func (s *Service) CreateDeduplicationSet(ctx context.Context, programID id.ProgramID) (string, error) {
	program, err := s.store.GetProgram(ctx, programID)
	if err != nil {
		return "", wrapStoreErr(err, "failed to load program")
	}
	if program.HasDeduplicationSet() {
		return program.DeduplicationSetID, nil
	}

	setID, err := s.engine.CreateDeduplicationSet(ctx, program.Name, program.ID.String())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create deduplication set",
			"program_id", programID.String(),
			"error", err,
		)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create deduplication set")
	}

	var winner string
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		winner, err = s.store.ClaimDeduplicationSet(ctx, programID, setID)
		return err
	})
	if err != nil {
		s.discardSet(ctx, programID, setID)
		return "", wrapStoreErr(err, "failed to record deduplication set")
	}
	if winner != setID {
		s.logger.InfoContext(ctx, "deduplication set claimed concurrently, discarding ours",
			"program_id", programID.String(),
			"set_id", winner,
			"discarded_set_id", setID,
		)
		s.discardSet(ctx, programID, setID)
	}
	return winner, nil
}

// discardSet deletes a set nothing points to.
func (s *Service) discardSet(ctx context.Context, programID id.ProgramID, setID string) {
	if err := s.engine.DeleteDeduplicationSet(ctx, setID); err != nil && !isNotFound(err) {
		s.logger.WarnContext(ctx, "failed to delete orphaned deduplication set",
			"program_id", programID.String(),
			"set_id", setID,
			"error", err,
		)
	}
}

// DeleteDeduplicationSet deletes the program's set on the engine and clears
// the program's pointer. A set the engine no longer knows counts as deleted;
// any other engine failure keeps the pointer so the delete can be retried.
func (s *Service) DeleteDeduplicationSet(ctx context.Context, programID id.ProgramID) error {
	program, err := s.store.GetProgram(ctx, programID)
	if err != nil {
		return wrapStoreErr(err, "failed to load program")
	}
	if !program.HasDeduplicationSet() {
		return nil
	}

	if err := s.engine.DeleteDeduplicationSet(ctx, program.DeduplicationSetID); err != nil && !isNotFound(err) {
		s.logger.ErrorContext(ctx, "failed to delete deduplication set",
			"program_id", programID.String(),
			"set_id", program.DeduplicationSetID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete deduplication set")
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.ReleaseDeduplicationSet(ctx, programID)
	})
	if err != nil {
		return wrapStoreErr(err, "failed to clear deduplication set")
	}
	s.logger.InfoContext(ctx, "deduplication set deleted",
		"program_id", programID.String(),
		"set_id", program.DeduplicationSetID,
	)
	return nil
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
