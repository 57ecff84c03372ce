package models

import (
	"time"

	id "hope/pkg/domain"
)

// DeduplicationEngineStatus is an import batch's biometric deduplication lifecycle.
//
//	PENDING → UPLOADED → IN_PROGRESS → FINISHED | ERROR
//	PENDING → UPLOAD_ERROR
//	UPLOADED → ERROR (processing refused by the engine)
//	UPLOAD_ERROR | ERROR → PENDING (explicit re-queue only)
type DeduplicationEngineStatus string

const (
	EngineStatusPending     DeduplicationEngineStatus = "PENDING"
	EngineStatusUploaded    DeduplicationEngineStatus = "UPLOADED"
	EngineStatusUploadError DeduplicationEngineStatus = "UPLOAD_ERROR"
	EngineStatusInProgress  DeduplicationEngineStatus = "IN_PROGRESS"
	EngineStatusError       DeduplicationEngineStatus = "ERROR"
	EngineStatusFinished    DeduplicationEngineStatus = "FINISHED"
)

var engineTransitions = map[DeduplicationEngineStatus][]DeduplicationEngineStatus{
	EngineStatusPending:     {EngineStatusUploaded, EngineStatusUploadError},
	EngineStatusUploaded:    {EngineStatusInProgress, EngineStatusError},
	EngineStatusInProgress:  {EngineStatusFinished, EngineStatusError},
	EngineStatusUploadError: {EngineStatusPending},
	EngineStatusError:       {EngineStatusPending},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s DeduplicationEngineStatus) CanTransitionTo(next DeduplicationEngineStatus) bool {
	for _, allowed := range engineTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ImportBatch (registration data import) groups individuals submitted together.
type ImportBatch struct {
	ID                        id.ImportBatchID
	ProgramID                 id.ProgramID
	BusinessAreaID            id.BusinessAreaID
	Name                      string
	DeduplicationEngineStatus DeduplicationEngineStatus
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Program owns at most one biometric deduplication set.
type Program struct {
	ID                            id.ProgramID
	BusinessAreaID                id.BusinessAreaID
	Name                          string
	BiometricDeduplicationEnabled bool
	DeduplicationSetID            string
}

// HasDeduplicationSet reports whether an engine workspace is allocated.
func (p *Program) HasDeduplicationSet() bool {
	return p.DeduplicationSetID != ""
}

// ImageRef pairs an individual with the image the engine should fetch.
type ImageRef struct {
	IndividualID id.IndividualID
	ImageURL     string
}

// SimilarityPair is a biometric finding between two individuals of a program.
// IndividualA always sorts before IndividualB so pairs are stored once.
type SimilarityPair struct {
	ProgramID   id.ProgramID
	IndividualA id.IndividualID
	IndividualB id.IndividualID
	Score       float64
}

// NewSimilarityPair orders the two individuals canonically.
func NewSimilarityPair(programID id.ProgramID, a, b id.IndividualID, score float64) SimilarityPair {
	if b.Less(a) {
		a, b = b, a
	}
	return SimilarityPair{ProgramID: programID, IndividualA: a, IndividualB: b, Score: score}
}
