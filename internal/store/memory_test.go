package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	adjmodels "hope/internal/adjudication/models"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	"hope/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store   *InMemory
	ctx     context.Context
	program *regmodels.Program
	batch   *regmodels.ImportBatch
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.program = &regmodels.Program{
		ID:             id.ProgramID(uuid.New()),
		BusinessAreaID: id.BusinessAreaID(uuid.New()),
		Name:           "Cash for work",
	}
	s.Require().NoError(s.store.CreateProgram(s.ctx, s.program))
	s.batch = &regmodels.ImportBatch{
		ID:             id.ImportBatchID(uuid.New()),
		ProgramID:      s.program.ID,
		BusinessAreaID: s.program.BusinessAreaID,
		Name:           "batch",
		CreatedAt:      time.Now(),
	}
	s.Require().NoError(s.store.CreateImportBatch(s.ctx, s.batch))
}

func (s *InMemoryStoreSuite) individual(withdrawn bool) *regmodels.Individual {
	i := &regmodels.Individual{
		ID:             id.IndividualID(uuid.New()),
		ImportBatchID:  s.batch.ID,
		ProgramID:      s.program.ID,
		BusinessAreaID: s.program.BusinessAreaID,
		Withdrawn:      withdrawn,
		Photo:          "https://img.example/" + uuid.NewString(),
	}
	s.Require().NoError(s.store.CreateIndividuals(s.ctx, []*regmodels.Individual{i}))
	return i
}

func (s *InMemoryStoreSuite) document(owner *regmodels.Individual, number string, status regmodels.DocumentStatus) *regmodels.Document {
	d := &regmodels.Document{
		ID:             id.DocumentID(uuid.New()),
		IndividualID:   owner.ID,
		ProgramID:      owner.ProgramID,
		TypeKey:        "national_id",
		Country:        "pl",
		DocumentNumber: number,
		Status:         status,
	}
	s.Require().NoError(s.store.CreateDocuments(s.ctx, []*regmodels.Document{d}))
	return d
}

func (s *InMemoryStoreSuite) TestRunInTx() {
	s.Run("rolls back every write when the callback fails", func() {
		owner := s.individual(false)
		doc := s.document(owner, "A1", regmodels.DocumentStatusPending)
		boom := errors.New("boom")

		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			s.Require().NoError(s.store.UpdateDocumentStatuses(ctx, []regmodels.DocumentStatusUpdate{
				{ID: doc.ID, Status: regmodels.DocumentStatusValid},
			}))
			return boom
		})
		s.Require().ErrorIs(err, boom)

		got, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(regmodels.DocumentStatusPending, got.Status)
	})

	s.Run("counts begin and commit as operations", func() {
		s.store.ResetOps()
		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			_, err := s.store.GetProgram(ctx, s.program.ID)
			return err
		})
		s.Require().NoError(err)
		s.Equal(int64(3), s.store.Ops())
	})

	s.Run("nested transactions join the outer one", func() {
		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			return s.store.RunInTx(ctx, func(context.Context) error { return nil })
		})
		s.NoError(err)
	})
}

func (s *InMemoryStoreSuite) TestLockDocumentsForDeduplication() {
	a, b, c, gone := s.individual(false), s.individual(false), s.individual(false), s.individual(true)
	original := s.document(a, "ASD-123", regmodels.DocumentStatusValid)
	candidate := s.document(b, "asd123", regmodels.DocumentStatusPending)
	flagged := s.document(c, "ASD123", regmodels.DocumentStatusNeedInvestigation)
	s.document(c, "ASD 123", regmodels.DocumentStatusInvalid)
	s.document(gone, "ASD123", regmodels.DocumentStatusValid)
	s.document(c, "OTHER", regmodels.DocumentStatusValid)

	docs, err := s.store.LockDocumentsForDeduplication(s.ctx, []id.DocumentID{candidate.ID})
	s.Require().NoError(err)

	s.Require().Len(docs, 3)
	ids := []id.DocumentID{docs[0].ID, docs[1].ID, docs[2].ID}
	s.ElementsMatch([]id.DocumentID{original.ID, candidate.ID, flagged.ID}, ids)
	s.True(docs[0].ID.Less(docs[1].ID))
	s.True(docs[1].ID.Less(docs[2].ID))
	for _, d := range docs {
		s.Equal(d.IndividualID, d.Owner.ID)
	}
}

func (s *InMemoryStoreSuite) TestTickets() {
	golden, dup, extra := s.individual(false), s.individual(false), s.individual(false)
	now := time.Now().UTC()
	ticket, err := adjmodels.NewTicket(adjmodels.NewTicketParams{
		ID:                 id.TicketID(uuid.New()),
		IssueType:          adjmodels.IssueTypeDocumentsDuplicate,
		BusinessAreaID:     s.program.BusinessAreaID,
		GoldenRecord:       golden.Ref(),
		PossibleDuplicates: []regmodels.IndividualRef{dup.Ref()},
		Now:                now,
	})
	s.Require().NoError(err)

	tickets := []*adjmodels.Ticket{ticket}
	s.Require().NoError(s.store.InsertTickets(s.ctx, tickets))
	s.Require().NoError(s.store.InsertTicketPrograms(s.ctx, tickets))
	s.Require().NoError(s.store.InsertTicketDetails(s.ctx, tickets))
	s.Require().NoError(s.store.InsertPossibleDuplicates(s.ctx, ticket.Details.PossibleDuplicates, nil))

	s.Run("finds the open ticket by golden record", func() {
		found, err := s.store.FindOpenTickets(s.ctx, adjmodels.IssueTypeDocumentsDuplicate, []id.IndividualID{golden.ID})
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal([]id.IndividualID{dup.ID}, found[0].PossibleDuplicateIDs())
		s.Equal([]id.ProgramID{s.program.ID}, found[0].Programs)
	})

	s.Run("ignores other issue types", func() {
		found, err := s.store.FindOpenTickets(s.ctx, adjmodels.IssueTypeBiometricsSimilarity, []id.IndividualID{golden.ID})
		s.Require().NoError(err)
		s.Empty(found)
	})

	s.Run("attaching links skips existing ones and raises cross area", func() {
		links := []adjmodels.PossibleDuplicate{
			{TicketID: ticket.ID, IndividualID: dup.ID, AddedAt: now},
			{TicketID: ticket.ID, IndividualID: extra.ID, AddedAt: now.Add(time.Minute)},
		}
		s.Require().NoError(s.store.InsertPossibleDuplicates(s.ctx, links, []id.TicketID{ticket.ID}))

		got, err := s.store.GetTicket(s.ctx, ticket.ID)
		s.Require().NoError(err)
		s.Equal([]id.IndividualID{dup.ID, extra.ID}, got.PossibleDuplicateIDs())
		s.True(got.Details.IsCrossArea)
		s.Equal(now.Add(time.Minute), got.UpdatedAt)
	})

	s.Run("saves review selections", func() {
		got, err := s.store.GetTicketForUpdate(s.ctx, ticket.ID)
		s.Require().NoError(err)
		s.Require().NoError(got.SelectIndividual(golden.Ref(), false, now))
		s.Require().NoError(s.store.SaveTicketReview(s.ctx, got))

		reloaded, err := s.store.GetTicket(s.ctx, ticket.ID)
		s.Require().NoError(err)
		s.Equal(adjmodels.StatusPartiallyResolved, reloaded.Status)
		s.Equal([]id.IndividualID{golden.ID}, reloaded.Details.SelectedDistinct)
	})

	s.Run("unknown ticket is not found", func() {
		_, err := s.store.GetTicket(s.ctx, id.TicketID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestDeduplicationSetClaim() {
	s.Run("first claim wins", func() {
		winner, err := s.store.ClaimDeduplicationSet(s.ctx, s.program.ID, "set-1")
		s.Require().NoError(err)
		s.Equal("set-1", winner)

		winner, err = s.store.ClaimDeduplicationSet(s.ctx, s.program.ID, "set-2")
		s.Require().NoError(err)
		s.Equal("set-1", winner)

		p, err := s.store.GetProgram(s.ctx, s.program.ID)
		s.Require().NoError(err)
		s.Equal("set-1", p.DeduplicationSetID)
	})

	s.Run("release clears the pointer and allows a new claim", func() {
		s.Require().NoError(s.store.ReleaseDeduplicationSet(s.ctx, s.program.ID))
		p, err := s.store.GetProgram(s.ctx, s.program.ID)
		s.Require().NoError(err)
		s.False(p.HasDeduplicationSet())

		winner, err := s.store.ClaimDeduplicationSet(s.ctx, s.program.ID, "set-3")
		s.Require().NoError(err)
		s.Equal("set-3", winner)
	})

	s.Run("unknown program", func() {
		_, err := s.store.ClaimDeduplicationSet(s.ctx, id.ProgramID(uuid.New()), "x")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestImportBatches() {
	active := s.individual(false)
	s.individual(true)
	noPhoto := &regmodels.Individual{
		ID:            id.IndividualID(uuid.New()),
		ImportBatchID: s.batch.ID,
		ProgramID:     s.program.ID,
	}
	s.Require().NoError(s.store.CreateIndividuals(s.ctx, []*regmodels.Individual{noPhoto}))

	images, err := s.store.ListBatchImages(s.ctx, s.batch.ID)
	s.Require().NoError(err)
	s.Require().Len(images, 1)
	s.Equal(active.ID, images[0].IndividualID)

	pending, err := s.store.ListImportBatches(s.ctx, s.program.ID, regmodels.EngineStatusPending)
	s.Require().NoError(err)
	s.Len(pending, 1)

	s.Require().NoError(s.store.UpdateImportBatchStatus(s.ctx, []id.ImportBatchID{s.batch.ID}, regmodels.EngineStatusUploaded))
	pending, err = s.store.ListImportBatches(s.ctx, s.program.ID, regmodels.EngineStatusPending)
	s.Require().NoError(err)
	s.Empty(pending)

	all, err := s.store.ListImportBatches(s.ctx, s.program.ID)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(regmodels.EngineStatusUploaded, all[0].DeduplicationEngineStatus)
}

func (s *InMemoryStoreSuite) TestGoldenRecordResults() {
	a, b := s.individual(false), s.individual(false)
	results := regmodels.DeduplicationResults{}
	results.Add(regmodels.DuplicateHit{IndividualID: b.ID, Score: 0.93})

	s.Require().NoError(s.store.UpdateGoldenRecordResults(s.ctx, []regmodels.GoldenRecordUpdate{
		{IndividualID: a.ID, Status: regmodels.GoldenRecordDuplicate, Results: results},
	}))
	got, err := s.store.GetIndividual(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(regmodels.GoldenRecordDuplicate, got.DeduplicationGoldenRecordStatus)
	s.Equal(results, got.DeduplicationGoldenRecordResults)

	pair := regmodels.NewSimilarityPair(s.program.ID, a.ID, b.ID, 0.93)
	s.Require().NoError(s.store.SaveSimilarityPairs(s.ctx, []regmodels.SimilarityPair{pair, pair}))
	pairs, err := s.store.ListSimilarityPairs(s.ctx, s.program.ID)
	s.Require().NoError(err)
	s.Equal([]regmodels.SimilarityPair{pair}, pairs)
}

func (s *InMemoryStoreSuite) TestWithdrawStampsStoreClock() {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemory(WithMemoryClock(func() time.Time { return fixed }))
	s.Require().NoError(s.store.CreateProgram(s.ctx, s.program))
	s.Require().NoError(s.store.CreateImportBatch(s.ctx, s.batch))
	ind := s.individual(false)

	s.Require().NoError(s.store.SetIndividualWithdrawn(s.ctx, ind.ID, true))

	got, err := s.store.GetIndividual(s.ctx, ind.ID)
	s.Require().NoError(err)
	s.True(got.Withdrawn)
	s.Equal(fixed, got.UpdatedAt)
}
