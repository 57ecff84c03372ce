// Package domain holds typed identifiers shared across bounded contexts.
//
// Every entity ID is a distinct named type over uuid.UUID so the compiler
// rejects passing a DocumentID where an IndividualID is expected.
package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"

	dErrors "hope/pkg/domain-errors"
)

type (
	BusinessAreaID uuid.UUID
	ProgramID      uuid.UUID
	ImportBatchID  uuid.UUID
	HouseholdID    uuid.UUID
	IndividualID   uuid.UUID
	DocumentID     uuid.UUID
	TicketID       uuid.UUID
	AreaID         uuid.UUID
)

func (id BusinessAreaID) String() string { return uuid.UUID(id).String() }
func (id ProgramID) String() string      { return uuid.UUID(id).String() }
func (id ImportBatchID) String() string  { return uuid.UUID(id).String() }
func (id HouseholdID) String() string    { return uuid.UUID(id).String() }
func (id IndividualID) String() string   { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id TicketID) String() string       { return uuid.UUID(id).String() }
func (id AreaID) String() string         { return uuid.UUID(id).String() }

func (id BusinessAreaID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProgramID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ImportBatchID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id HouseholdID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id IndividualID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TicketID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AreaID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// Value lets typed IDs be passed straight into database/sql statements.
func (id IndividualID) Value() (driver.Value, error) { return uuid.UUID(id).String(), nil }
func (id DocumentID) Value() (driver.Value, error)   { return uuid.UUID(id).String(), nil }
func (id TicketID) Value() (driver.Value, error)     { return uuid.UUID(id).String(), nil }
func (id ProgramID) Value() (driver.Value, error)    { return uuid.UUID(id).String(), nil }
func (id ImportBatchID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}
func (id BusinessAreaID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}

// Scan implementations mirror Value so rows decode into typed IDs.
func (id *IndividualID) Scan(src any) error   { return scanUUID((*uuid.UUID)(id), src) }
func (id *DocumentID) Scan(src any) error     { return scanUUID((*uuid.UUID)(id), src) }
func (id *TicketID) Scan(src any) error       { return scanUUID((*uuid.UUID)(id), src) }
func (id *ProgramID) Scan(src any) error      { return scanUUID((*uuid.UUID)(id), src) }
func (id *ImportBatchID) Scan(src any) error  { return scanUUID((*uuid.UUID)(id), src) }
func (id *BusinessAreaID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id *HouseholdID) Scan(src any) error    { return scanUUID((*uuid.UUID)(id), src) }
func (id *AreaID) Scan(src any) error         { return scanUUID((*uuid.UUID)(id), src) }

// MarshalText and UnmarshalText encode IDs as canonical UUID strings in JSON
// payloads such as job messages and ticket events.
func (id IndividualID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id TicketID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ProgramID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ImportBatchID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id BusinessAreaID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *IndividualID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TicketID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProgramID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ImportBatchID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BusinessAreaID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func scanUUID(dst *uuid.UUID, src any) error {
	if src == nil {
		*dst = uuid.Nil
		return nil
	}
	if err := dst.Scan(src); err != nil {
		return fmt.Errorf("scan uuid: %w", err)
	}
	return nil
}

func parseUUID(kind, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

func ParseProgramID(raw string) (ProgramID, error) {
	u, err := parseUUID("program id", raw)
	return ProgramID(u), err
}

func ParseImportBatchID(raw string) (ImportBatchID, error) {
	u, err := parseUUID("import batch id", raw)
	return ImportBatchID(u), err
}

func ParseIndividualID(raw string) (IndividualID, error) {
	u, err := parseUUID("individual id", raw)
	return IndividualID(u), err
}

func ParseDocumentID(raw string) (DocumentID, error) {
	u, err := parseUUID("document id", raw)
	return DocumentID(u), err
}

func ParseTicketID(raw string) (TicketID, error) {
	u, err := parseUUID("ticket id", raw)
	return TicketID(u), err
}

// Less orders document IDs by their byte representation, which is the same
// order Postgres uses for the uuid primary key.
func (id DocumentID) Less(other DocumentID) bool {
	a, b := uuid.UUID(id), uuid.UUID(other)
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Less orders individual IDs the same way as DocumentID.Less.
func (id IndividualID) Less(other IndividualID) bool {
	return DocumentID(id).Less(DocumentID(other))
}
