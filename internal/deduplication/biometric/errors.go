package biometric

import (
	"errors"
	"fmt"

	id "hope/pkg/domain"
)

var (
	// ErrNotEnabled means the program has biometric deduplication switched off.
	ErrNotEnabled = errors.New("biometric deduplication is not enabled for the program")
	// ErrAlreadyInProgress means a previous run of the program is still
	// processing on the engine, or another worker holds the program.
	ErrAlreadyInProgress = errors.New("biometric deduplication is already in progress")
	// ErrAllUploadsFailed means no pending batch could be uploaded.
	ErrAllUploadsFailed = errors.New("all import batch uploads failed")
	// ErrProcessingConflict means the engine refused to start because a run is
	// active. Batch statuses are left unchanged; retry the whole operation later.
	ErrProcessingConflict = errors.New("deduplication engine is already processing the set")
	// ErrNoDeduplicationSet means findings were requested before a set exists.
	ErrNoDeduplicationSet = errors.New("program has no deduplication set")
)

// UploadError records why one batch could not be uploaded. It never crosses
// the fan-out of UploadAndProcess.
type UploadError struct {
	BatchID id.ImportBatchID
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload import batch %s: %v", e.BatchID, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
