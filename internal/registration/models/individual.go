package models

import (
	"time"

	id "hope/pkg/domain"
)

// DeduplicationBatchStatus is the within-import-batch deduplication verdict.
type DeduplicationBatchStatus string

const (
	BatchStatusNotProcessed     DeduplicationBatchStatus = "NOT_PROCESSED"
	BatchStatusUniqueInBatch    DeduplicationBatchStatus = "UNIQUE_IN_BATCH"
	BatchStatusSimilarInBatch   DeduplicationBatchStatus = "SIMILAR_IN_BATCH"
	BatchStatusDuplicateInBatch DeduplicationBatchStatus = "DUPLICATE_IN_BATCH"
)

// DeduplicationGoldenRecordStatus is the verdict against the population.
type DeduplicationGoldenRecordStatus string

const (
	GoldenRecordNotProcessed DeduplicationGoldenRecordStatus = "NOT_PROCESSED"
	GoldenRecordUnique       DeduplicationGoldenRecordStatus = "UNIQUE"
	GoldenRecordSimilar      DeduplicationGoldenRecordStatus = "SIMILAR"
	GoldenRecordDuplicate    DeduplicationGoldenRecordStatus = "DUPLICATE"
)

// DuplicateHit is one entry of a structured deduplication result.
type DuplicateHit struct {
	IndividualID id.IndividualID `json:"individual_id"`
	Score        float64         `json:"score"`
}

// DeduplicationResults is the score summary and hit list persisted next to a status.
type DeduplicationResults struct {
	ScoreMin   float64        `json:"score_min"`
	ScoreMax   float64        `json:"score_max"`
	Duplicates []DuplicateHit `json:"duplicates"`
}

// Add appends a hit and widens the score range.
func (r *DeduplicationResults) Add(hit DuplicateHit) {
	if len(r.Duplicates) == 0 || hit.Score < r.ScoreMin {
		r.ScoreMin = hit.Score
	}
	if len(r.Duplicates) == 0 || hit.Score > r.ScoreMax {
		r.ScoreMax = hit.Score
	}
	r.Duplicates = append(r.Duplicates, hit)
}

// Individual is a registered person.
//
// Invariants:
//   - belongs to exactly one import batch and one program
//   - a withdrawn individual takes no part in new matching and is not required
//     to be reviewed before an adjudication ticket closes
type Individual struct {
	ID             id.IndividualID
	HouseholdID    id.HouseholdID
	ImportBatchID  id.ImportBatchID
	ProgramID      id.ProgramID
	BusinessAreaID id.BusinessAreaID
	AdminAreaID    id.AreaID
	FullName       string
	Photo          string
	Withdrawn      bool

	DeduplicationBatchStatus         DeduplicationBatchStatus
	DeduplicationGoldenRecordStatus  DeduplicationGoldenRecordStatus
	DeduplicationBatchResults        DeduplicationResults
	DeduplicationGoldenRecordResults DeduplicationResults

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ref projects the attributes deduplication and ticketing need.
func (i *Individual) Ref() IndividualRef {
	return IndividualRef{
		ID:             i.ID,
		HouseholdID:    i.HouseholdID,
		ProgramID:      i.ProgramID,
		BusinessAreaID: i.BusinessAreaID,
		AdminAreaID:    i.AdminAreaID,
		Withdrawn:      i.Withdrawn,
	}
}

// HasPhoto reports whether the individual can take part in biometric deduplication.
func (i *Individual) HasPhoto() bool {
	return i.Photo != ""
}

// IndividualRef is a read-only snapshot of an individual used across contexts.
type IndividualRef struct {
	ID             id.IndividualID
	HouseholdID    id.HouseholdID
	ProgramID      id.ProgramID
	BusinessAreaID id.BusinessAreaID
	AdminAreaID    id.AreaID
	Withdrawn      bool
}

// Household groups individuals registered together.
type Household struct {
	ID             id.HouseholdID
	ImportBatchID  id.ImportBatchID
	ProgramID      id.ProgramID
	BusinessAreaID id.BusinessAreaID
	AdminAreaID    id.AreaID
	Withdrawn      bool
}

// GoldenRecordUpdate is one row of a bulk golden record verdict change.
type GoldenRecordUpdate struct {
	IndividualID id.IndividualID
	Status       DeduplicationGoldenRecordStatus
	Results      DeduplicationResults
}
