// Package jobs turns scheduled-job messages into calls on the deduplication
// entry points.
package jobs

import (
	"encoding/json"
	"fmt"

	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
)

type Kind string

const (
	KindHardDeduplicateDocuments  Kind = "hard_deduplicate_documents"
	KindBiometricUploadAndProcess Kind = "biometric_upload_and_process"
	KindBiometricReconcile        Kind = "biometric_reconcile"
	KindBiometricCreateSet        Kind = "biometric_create_set"
	KindBiometricDeleteSet        Kind = "biometric_delete_set"
)

// Job is the JSON body of a job message.
type Job struct {
	Kind          Kind             `json:"kind"`
	RequestID     string           `json:"request_id,omitempty"`
	ProgramID     id.ProgramID     `json:"program_id"`
	DocumentIDs   []id.DocumentID  `json:"document_ids,omitempty"`
	ImportBatchID id.ImportBatchID `json:"import_batch_id"`
}

// Decode parses and validates a job message.
func Decode(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed job message")
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *Job) Validate() error {
	switch j.Kind {
	case KindHardDeduplicateDocuments:
		if len(j.DocumentIDs) == 0 {
			return dErrors.New(dErrors.CodeValidation, "document_ids is required")
		}
		for _, docID := range j.DocumentIDs {
			if docID.IsNil() {
				return dErrors.New(dErrors.CodeValidation, "document_ids must not contain a nil id")
			}
		}
	case KindBiometricUploadAndProcess, KindBiometricReconcile, KindBiometricCreateSet, KindBiometricDeleteSet:
		if j.ProgramID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "program_id is required")
		}
	case "":
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	default:
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown job kind %q", j.Kind))
	}
	return nil
}
