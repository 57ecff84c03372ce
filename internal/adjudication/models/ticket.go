package models

import (
	"slices"
	"time"

	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
)

// Category routes a ticket to the right review queue.
type Category string

const (
	CategoryNeedsAdjudication Category = "NEEDS_ADJUDICATION"
	CategorySystemFlagging    Category = "SYSTEM_FLAGGING"
)

// IssueType records which deduplicator raised the ticket.
type IssueType string

const (
	IssueTypeDocumentsDuplicate   IssueType = "DOCUMENTS_DUPLICATE"
	IssueTypeBiometricsSimilarity IssueType = "BIOMETRICS_SIMILARITY"
)

// Status is the resolution state: OPEN → PARTIALLY_RESOLVED → CLOSED.
type Status string

const (
	StatusOpen              Status = "OPEN"
	StatusPartiallyResolved Status = "PARTIALLY_RESOLVED"
	StatusClosed            Status = "CLOSED"
)

// PossibleDuplicate links a ticket to an individual suspected to be the same
// person as the golden record individual.
type PossibleDuplicate struct {
	TicketID     id.TicketID
	IndividualID id.IndividualID
	AddedAt      time.Time
}

// NeedsAdjudicationDetails is the review payload of an adjudication ticket.
type NeedsAdjudicationDetails struct {
	GoldenRecordsIndividual id.IndividualID
	// PossibleDuplicate is the single-duplicate field kept for older tickets.
	// New tickets set it to their first possible duplicate.
	PossibleDuplicate           id.IndividualID
	PossibleDuplicates          []PossibleDuplicate
	SelectedIndividuals         []id.IndividualID
	SelectedDistinct            []id.IndividualID
	IsCrossArea                 bool
	IsMultipleDuplicatesVersion bool
	ScoreMin                    float64
	ScoreMax                    float64
}

// Ticket is an adjudication ticket (grievance ticket of the needs-adjudication kind).
//
// Invariants:
//   - the golden record individual is never one of its own possible duplicates
//   - at most one open ticket exists per golden record and overlapping duplicate set
//   - a ticket closes only when ValidateCloseable passes
type Ticket struct {
	ID             id.TicketID
	Category       Category
	IssueType      IssueType
	Status         Status
	BusinessAreaID id.BusinessAreaID
	ImportBatchID  id.ImportBatchID
	Description    string
	Programs       []id.ProgramID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Details        NeedsAdjudicationDetails
}

// NewTicketParams carries everything needed to open a ticket.
type NewTicketParams struct {
	ID                 id.TicketID
	Category           Category
	IssueType          IssueType
	BusinessAreaID     id.BusinessAreaID
	ImportBatchID      id.ImportBatchID
	Description        string
	GoldenRecord       regmodels.IndividualRef
	PossibleDuplicates []regmodels.IndividualRef
	Programs           []id.ProgramID
	ScoreMin           float64
	ScoreMax           float64
	Now                time.Time
}

// NewTicket validates the params and builds an open ticket.
func NewTicket(p NewTicketParams) (*Ticket, error) {
	if p.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket id is required")
	}
	if p.GoldenRecord.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "golden record individual is required")
	}
	if len(p.PossibleDuplicates) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "at least one possible duplicate is required")
	}
	category := p.Category
	if category == "" {
		category = CategoryNeedsAdjudication
	}

	t := &Ticket{
		ID:             p.ID,
		Category:       category,
		IssueType:      p.IssueType,
		Status:         StatusOpen,
		BusinessAreaID: p.BusinessAreaID,
		ImportBatchID:  p.ImportBatchID,
		Description:    p.Description,
		Programs:       ProgramsOf(p.Programs, p.GoldenRecord, p.PossibleDuplicates),
		CreatedAt:      p.Now,
		UpdatedAt:      p.Now,
		Details: NeedsAdjudicationDetails{
			GoldenRecordsIndividual:     p.GoldenRecord.ID,
			IsMultipleDuplicatesVersion: true,
			ScoreMin:                    p.ScoreMin,
			ScoreMax:                    p.ScoreMax,
		},
	}
	for _, dup := range p.PossibleDuplicates {
		if dup.ID == p.GoldenRecord.ID {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "golden record cannot be its own duplicate")
		}
	}
	t.Attach(p.GoldenRecord, p.PossibleDuplicates, p.Now)
	t.Details.PossibleDuplicate = t.Details.PossibleDuplicates[0].IndividualID
	return t, nil
}

// CrossArea reports whether any duplicate lives in a different administrative
// area than the golden record. Unknown areas never count as different.
func CrossArea(golden regmodels.IndividualRef, dups []regmodels.IndividualRef) bool {
	if golden.AdminAreaID.IsNil() {
		return false
	}
	for _, d := range dups {
		if !d.AdminAreaID.IsNil() && d.AdminAreaID != golden.AdminAreaID {
			return true
		}
	}
	return false
}

// ProgramsOf unions the explicit programs with those of every involved individual.
func ProgramsOf(explicit []id.ProgramID, golden regmodels.IndividualRef, dups []regmodels.IndividualRef) []id.ProgramID {
	seen := make(map[id.ProgramID]struct{})
	var out []id.ProgramID
	add := func(p id.ProgramID) {
		if p.IsNil() {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range explicit {
		add(p)
	}
	add(golden.ProgramID)
	for _, d := range dups {
		add(d.ProgramID)
	}
	return out
}

// AddPrograms links additional programs and reports whether any was new.
func (t *Ticket) AddPrograms(programs ...id.ProgramID) bool {
	changed := false
	for _, p := range programs {
		if p.IsNil() || slices.Contains(t.Programs, p) {
			continue
		}
		t.Programs = append(t.Programs, p)
		changed = true
	}
	return changed
}

func (t *Ticket) IsOpen() bool {
	return t.Status != StatusClosed
}

// PossibleDuplicateIDs lists the linked possible duplicates in link order.
func (t *Ticket) PossibleDuplicateIDs() []id.IndividualID {
	out := make([]id.IndividualID, 0, len(t.Details.PossibleDuplicates))
	for _, pd := range t.Details.PossibleDuplicates {
		out = append(out, pd.IndividualID)
	}
	return out
}

func (t *Ticket) HasPossibleDuplicate(individualID id.IndividualID) bool {
	for _, pd := range t.Details.PossibleDuplicates {
		if pd.IndividualID == individualID {
			return true
		}
	}
	return false
}

// Overlaps reports whether any of ids is already a possible duplicate.
func (t *Ticket) Overlaps(ids []id.IndividualID) bool {
	for _, i := range ids {
		if t.HasPossibleDuplicate(i) {
			return true
		}
	}
	return false
}

// Attach extends the possible duplicates with the individuals not yet linked
// and refreshes the cross-area flag. It returns only the new links.
func (t *Ticket) Attach(golden regmodels.IndividualRef, dups []regmodels.IndividualRef, now time.Time) []PossibleDuplicate {
	var added []PossibleDuplicate
	for _, d := range dups {
		if d.ID == t.Details.GoldenRecordsIndividual || t.HasPossibleDuplicate(d.ID) {
			continue
		}
		link := PossibleDuplicate{TicketID: t.ID, IndividualID: d.ID, AddedAt: now}
		t.Details.PossibleDuplicates = append(t.Details.PossibleDuplicates, link)
		added = append(added, link)
	}
	if CrossArea(golden, dups) {
		t.Details.IsCrossArea = true
	}
	if len(added) > 0 {
		t.UpdatedAt = now
	}
	return added
}

// IsCandidate reports whether the individual is under review on this ticket:
// the golden record, the legacy single duplicate, or a linked possible duplicate.
func (t *Ticket) IsCandidate(individualID id.IndividualID) bool {
	if individualID.IsNil() {
		return false
	}
	return individualID == t.Details.GoldenRecordsIndividual ||
		individualID == t.Details.PossibleDuplicate ||
		t.HasPossibleDuplicate(individualID)
}

// CanSelect checks whether the individual may be flagged on this ticket.
func (t *Ticket) CanSelect(individual regmodels.IndividualRef) error {
	if !t.IsOpen() {
		return dErrors.New(dErrors.CodeInvariantViolation, "ticket is closed")
	}
	if !t.IsCandidate(individual.ID) {
		return dErrors.New(dErrors.CodeValidation, "individual is not a candidate of this ticket")
	}
	if individual.Withdrawn {
		return dErrors.New(dErrors.CodeValidation, "withdrawn individual cannot be selected")
	}
	return nil
}

// ApplySelection flags the individual as duplicate or distinct, removing any
// opposite flag. Call CanSelect first.
func (t *Ticket) ApplySelection(individualID id.IndividualID, asDuplicate bool, now time.Time) {
	d := &t.Details
	if asDuplicate {
		d.SelectedDistinct = remove(d.SelectedDistinct, individualID)
		d.SelectedIndividuals = add(d.SelectedIndividuals, individualID)
	} else {
		d.SelectedIndividuals = remove(d.SelectedIndividuals, individualID)
		d.SelectedDistinct = add(d.SelectedDistinct, individualID)
	}
	t.Status = StatusPartiallyResolved
	t.UpdatedAt = now
}

// SelectIndividual validates and applies a selection in one call.
func (t *Ticket) SelectIndividual(individual regmodels.IndividualRef, asDuplicate bool, now time.Time) error {
	if err := t.CanSelect(individual); err != nil {
		return err
	}
	t.ApplySelection(individual.ID, asDuplicate, now)
	return nil
}

// ClearSelection removes the individual from both selections. A ticket with
// no selection left goes back to OPEN.
func (t *Ticket) ClearSelection(individualID id.IndividualID, now time.Time) error {
	if !t.IsOpen() {
		return dErrors.New(dErrors.CodeInvariantViolation, "ticket is closed")
	}
	if !t.IsCandidate(individualID) {
		return dErrors.New(dErrors.CodeValidation, "individual is not a candidate of this ticket")
	}
	d := &t.Details
	d.SelectedIndividuals = remove(d.SelectedIndividuals, individualID)
	d.SelectedDistinct = remove(d.SelectedDistinct, individualID)
	if len(d.SelectedIndividuals) == 0 && len(d.SelectedDistinct) == 0 {
		t.Status = StatusOpen
	}
	t.UpdatedAt = now
	return nil
}

// Candidates returns possible duplicates plus the golden record individual.
func (t *Ticket) Candidates() []id.IndividualID {
	out := []id.IndividualID{t.Details.GoldenRecordsIndividual}
	for _, pd := range t.Details.PossibleDuplicates {
		if pd.IndividualID != t.Details.GoldenRecordsIndividual {
			out = append(out, pd.IndividualID)
		}
	}
	return out
}

// ValidateCloseable enforces the close-time review rules. withdrawn reports
// the withdrawn flag of each candidate.
//
// Rejected when no candidate is flagged distinct and either every active
// candidate is flagged duplicate (nobody survives) or nothing was decided at
// all with no withdrawn candidate. Otherwise every active candidate must be
// flagged one way or the other.
func (t *Ticket) ValidateCloseable(withdrawn map[id.IndividualID]bool) error {
	if !t.IsOpen() {
		return dErrors.New(dErrors.CodeInvariantViolation, "ticket is already closed")
	}
	candidates := t.Candidates()
	withdrawnCount := 0
	duplicates, distinct := 0, 0
	var unreviewed []id.IndividualID
	for _, c := range candidates {
		if withdrawn[c] {
			withdrawnCount++
		}
		isDup := slices.Contains(t.Details.SelectedIndividuals, c)
		isDistinct := slices.Contains(t.Details.SelectedDistinct, c)
		if isDup {
			duplicates++
		}
		if isDistinct {
			distinct++
		}
		if !withdrawn[c] && !isDup && !isDistinct {
			unreviewed = append(unreviewed, c)
		}
	}

	if distinct == 0 && duplicates == len(candidates)-withdrawnCount {
		return dErrors.New(dErrors.CodeValidation,
			"close ticket is not possible when all individuals are flagged as duplicates")
	}
	if distinct == 0 && withdrawnCount == 0 && duplicates == 0 {
		return dErrors.New(dErrors.CodeValidation,
			"close ticket is possible when at least one individual is flagged as distinct or one of the individuals is withdrawn or duplicate")
	}
	if len(unreviewed) > 0 {
		return dErrors.New(dErrors.CodeValidation,
			"close ticket is possible only when every active individual is flagged as duplicate or distinct")
	}
	return nil
}

// Close validates and transitions the ticket to CLOSED.
func (t *Ticket) Close(withdrawn map[id.IndividualID]bool, now time.Time) error {
	if err := t.ValidateCloseable(withdrawn); err != nil {
		return err
	}
	t.Status = StatusClosed
	t.UpdatedAt = now
	return nil
}

func add(ids []id.IndividualID, v id.IndividualID) []id.IndividualID {
	if slices.Contains(ids, v) {
		return ids
	}
	return append(ids, v)
}

func remove(ids []id.IndividualID, v id.IndividualID) []id.IndividualID {
	return slices.DeleteFunc(ids, func(x id.IndividualID) bool { return x == v })
}
