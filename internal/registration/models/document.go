package models

import (
	"strings"
	"time"

	id "hope/pkg/domain"
	pstrings "hope/pkg/platform/strings"
)

// DocumentStatus is the identity-document validation state.
//
// Transitions performed by exact-match deduplication:
//   - PENDING → VALID (no pre-existing VALID match, first of its group in the run)
//   - PENDING/VALID/NEED_INVESTIGATION → NEED_INVESTIGATION (matches an original)
//
// INVALID is only ever set by human adjudication.
type DocumentStatus string

const (
	DocumentStatusPending           DocumentStatus = "PENDING"
	DocumentStatusValid             DocumentStatus = "VALID"
	DocumentStatusNeedInvestigation DocumentStatus = "NEED_INVESTIGATION"
	DocumentStatusInvalid           DocumentStatus = "INVALID"
)

// DocumentKey is the normalized comparison key for exact-match deduplication.
// Two documents are duplicates when their keys are equal.
type DocumentKey struct {
	TypeKey string
	Country string
	Number  string
}

// NewDocumentKey normalizes the identifying fields of a document.
func NewDocumentKey(typeKey, country, number string) DocumentKey {
	return DocumentKey{
		TypeKey: strings.ToLower(strings.TrimSpace(typeKey)),
		Country: strings.ToUpper(strings.TrimSpace(country)),
		Number:  pstrings.NormalizeIdentifier(number),
	}
}

// IsZero reports whether the key cannot identify anything. Documents with a
// blank number never take part in matching.
func (k DocumentKey) IsZero() bool {
	return k.Number == "" || k.TypeKey == ""
}

func (k DocumentKey) String() string {
	return k.TypeKey + "|" + k.Country + "|" + k.Number
}

// Document is an identifying artifact owned by exactly one Individual.
type Document struct {
	ID             id.DocumentID
	IndividualID   id.IndividualID
	ProgramID      id.ProgramID
	TypeKey        string
	Country        string
	DocumentNumber string
	Status         DocumentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Owner is the owning individual's snapshot, loaded together with the
	// document when rows are locked for deduplication.
	Owner IndividualRef
}

// Key returns the normalized comparison key.
func (d *Document) Key() DocumentKey {
	return NewDocumentKey(d.TypeKey, d.Country, d.DocumentNumber)
}

// DocumentStatusUpdate is one row of a bulk status change.
type DocumentStatusUpdate struct {
	ID     id.DocumentID
	Status DocumentStatus
}
