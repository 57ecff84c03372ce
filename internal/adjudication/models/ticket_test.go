package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/testutil"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ref(area id.AreaID) regmodels.IndividualRef {
	return regmodels.IndividualRef{
		ID:          id.IndividualID(uuid.New()),
		ProgramID:   id.ProgramID(uuid.New()),
		AdminAreaID: area,
	}
}

func newTicket(t *testing.T, golden regmodels.IndividualRef, dups ...regmodels.IndividualRef) *Ticket {
	t.Helper()
	ticket, err := NewTicket(NewTicketParams{
		ID:                 id.TicketID(uuid.New()),
		IssueType:          IssueTypeDocumentsDuplicate,
		GoldenRecord:       golden,
		PossibleDuplicates: dups,
		Now:                now,
	})
	require.NoError(t, err)
	return ticket
}

func TestNewTicket(t *testing.T) {
	area := id.AreaID(uuid.New())

	t.Run("builds an open needs-adjudication ticket", func(t *testing.T) {
		golden, a, b := ref(area), ref(area), ref(area)
		ticket := newTicket(t, golden, a, b)

		assert.Equal(t, StatusOpen, ticket.Status)
		assert.Equal(t, CategoryNeedsAdjudication, ticket.Category)
		assert.Equal(t, golden.ID, ticket.Details.GoldenRecordsIndividual)
		assert.Equal(t, a.ID, ticket.Details.PossibleDuplicate)
		assert.Equal(t, []id.IndividualID{a.ID, b.ID}, ticket.PossibleDuplicateIDs())
		assert.True(t, ticket.Details.IsMultipleDuplicatesVersion)
		assert.False(t, ticket.Details.IsCrossArea)
		assert.Len(t, ticket.Programs, 3)
	})

	t.Run("flags cross area when a duplicate lives elsewhere", func(t *testing.T) {
		ticket := newTicket(t, ref(area), ref(area), ref(id.AreaID(uuid.New())))
		assert.True(t, ticket.Details.IsCrossArea)
	})

	t.Run("unknown area never counts as cross area", func(t *testing.T) {
		ticket := newTicket(t, ref(area), ref(id.AreaID{}))
		assert.False(t, ticket.Details.IsCrossArea)
	})

	t.Run("rejects a ticket without duplicates", func(t *testing.T) {
		_, err := NewTicket(NewTicketParams{ID: id.TicketID(uuid.New()), GoldenRecord: ref(area), Now: now})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects golden record listed as its own duplicate", func(t *testing.T) {
		golden := ref(area)
		_, err := NewTicket(NewTicketParams{
			ID:                 id.TicketID(uuid.New()),
			GoldenRecord:       golden,
			PossibleDuplicates: []regmodels.IndividualRef{golden},
			Now:                now,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestTicket_Attach(t *testing.T) {
	area := id.AreaID(uuid.New())
	golden, a, b := ref(area), ref(area), ref(id.AreaID(uuid.New()))
	ticket := newTicket(t, golden, a)

	later := now.Add(time.Hour)
	added := ticket.Attach(golden, []regmodels.IndividualRef{a, b, golden}, later)

	require.Len(t, added, 1)
	assert.Equal(t, b.ID, added[0].IndividualID)
	assert.Equal(t, ticket.ID, added[0].TicketID)
	assert.Equal(t, []id.IndividualID{a.ID, b.ID}, ticket.PossibleDuplicateIDs())
	assert.True(t, ticket.Details.IsCrossArea)
	assert.Equal(t, later, ticket.UpdatedAt)
	assert.True(t, ticket.Overlaps([]id.IndividualID{b.ID}))
	assert.False(t, ticket.Overlaps([]id.IndividualID{golden.ID}))
}

func TestTicket_SelectIndividual(t *testing.T) {
	area := id.AreaID(uuid.New())

	testutil.Given(t, "an open ticket", func(t *testing.T) {
		golden, a := ref(area), ref(area)

		testutil.When(t, "selecting a candidate as duplicate then distinct", func(t *testing.T) {
			ticket := newTicket(t, golden, a)
			require.NoError(t, ticket.SelectIndividual(a, true, now))
			require.NoError(t, ticket.SelectIndividual(a, false, now))

			testutil.Then(t, "the latest flag wins", func(t *testing.T) {
				assert.Empty(t, ticket.Details.SelectedIndividuals)
				assert.Equal(t, []id.IndividualID{a.ID}, ticket.Details.SelectedDistinct)
				assert.Equal(t, StatusPartiallyResolved, ticket.Status)
			})
		})

		testutil.When(t, "selecting a stranger", func(t *testing.T) {
			ticket := newTicket(t, golden, a)
			err := ticket.SelectIndividual(ref(area), true, now)

			testutil.Then(t, "a validation error is returned", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			})
		})

		testutil.When(t, "selecting a withdrawn candidate", func(t *testing.T) {
			ticket := newTicket(t, golden, a)
			withdrawn := a
			withdrawn.Withdrawn = true
			err := ticket.SelectIndividual(withdrawn, true, now)

			testutil.Then(t, "a validation error is returned", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				assert.Empty(t, ticket.Details.SelectedIndividuals)
			})
		})

		testutil.When(t, "selecting the legacy single duplicate", func(t *testing.T) {
			ticket := newTicket(t, golden, a)
			legacy := ref(area)
			ticket.Details.PossibleDuplicate = legacy.ID

			testutil.Then(t, "it is accepted", func(t *testing.T) {
				assert.NoError(t, ticket.SelectIndividual(legacy, true, now))
			})
		})

		testutil.When(t, "clearing the only selection", func(t *testing.T) {
			ticket := newTicket(t, golden, a)
			require.NoError(t, ticket.SelectIndividual(golden, true, now))
			require.NoError(t, ticket.ClearSelection(golden.ID, now))

			testutil.Then(t, "the ticket goes back to open", func(t *testing.T) {
				assert.Empty(t, ticket.Details.SelectedIndividuals)
				assert.Equal(t, StatusOpen, ticket.Status)
			})
		})
	})

	t.Run("closed ticket rejects selection", func(t *testing.T) {
		golden, a := ref(area), ref(area)
		ticket := newTicket(t, golden, a)
		ticket.Status = StatusClosed
		err := ticket.SelectIndividual(a, true, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestTicket_ValidateCloseable(t *testing.T) {
	area := id.AreaID(uuid.New())
	x, y, z := ref(area), ref(area), ref(area)

	type flags struct {
		dup, distinct []regmodels.IndividualRef
		withdrawn     []regmodels.IndividualRef
	}
	tests := []struct {
		name    string
		flags   flags
		wantErr bool
	}{
		{"all flagged duplicate", flags{dup: []regmodels.IndividualRef{x, y, z}}, true},
		{"nothing decided", flags{}, true},
		{"one distinct rest duplicate", flags{dup: []regmodels.IndividualRef{x, y}, distinct: []regmodels.IndividualRef{z}}, false},
		{"partial review", flags{dup: []regmodels.IndividualRef{x}, distinct: []regmodels.IndividualRef{y}}, true},
		{"all distinct", flags{distinct: []regmodels.IndividualRef{x, y, z}}, false},
		{"withdrawn skipped, rest decided", flags{
			dup: []regmodels.IndividualRef{x}, distinct: []regmodels.IndividualRef{y}, withdrawn: []regmodels.IndividualRef{z},
		}, false},
		{"active flagged duplicate next to withdrawn", flags{
			dup: []regmodels.IndividualRef{x, y}, withdrawn: []regmodels.IndividualRef{z},
		}, true},
		{"withdrawn with one active left undecided", flags{
			dup: []regmodels.IndividualRef{x}, withdrawn: []regmodels.IndividualRef{z},
		}, true},
		{"everyone withdrawn", flags{withdrawn: []regmodels.IndividualRef{x, y, z}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTicket(t, x, y, z)
			for _, r := range tt.flags.dup {
				ticket.ApplySelection(r.ID, true, now)
			}
			for _, r := range tt.flags.distinct {
				ticket.ApplySelection(r.ID, false, now)
			}
			withdrawn := map[id.IndividualID]bool{}
			for _, r := range tt.flags.withdrawn {
				withdrawn[r.ID] = true
			}

			err := ticket.ValidateCloseable(withdrawn)
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTicket_Close(t *testing.T) {
	area := id.AreaID(uuid.New())
	x, y := ref(area), ref(area)
	ticket := newTicket(t, x, y)

	require.Error(t, ticket.Close(nil, now))
	assert.Equal(t, StatusOpen, ticket.Status)

	require.NoError(t, ticket.SelectIndividual(x, false, now))
	require.NoError(t, ticket.SelectIndividual(y, true, now))
	require.NoError(t, ticket.Close(nil, now))
	assert.Equal(t, StatusClosed, ticket.Status)

	err := ticket.Close(nil, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
