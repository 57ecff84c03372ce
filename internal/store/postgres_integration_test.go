//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	adjmodels "hope/internal/adjudication/models"
	regmodels "hope/internal/registration/models"
	"hope/internal/store"
	id "hope/pkg/domain"
	"hope/pkg/platform/sentinel"
	"hope/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
	program  *regmodels.Program
	batch    *regmodels.ImportBatch
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(s.ctx,
		"ticket_possible_duplicates", "ticket_needs_adjudication_details", "grievance_ticket_programs",
		"grievance_tickets", "biometric_similarity_pairs", "documents", "individuals", "households",
		"import_batches", "deduplication_sets", "programs")
	s.Require().NoError(err)

	s.program = &regmodels.Program{
		ID:             id.ProgramID(uuid.New()),
		BusinessAreaID: id.BusinessAreaID(uuid.New()),
		Name:           "Winter support",
	}
	s.Require().NoError(s.store.CreateProgram(s.ctx, s.program))
	s.batch = &regmodels.ImportBatch{
		ID:             id.ImportBatchID(uuid.New()),
		ProgramID:      s.program.ID,
		BusinessAreaID: s.program.BusinessAreaID,
		Name:           "rdi-1",
		CreatedAt:      time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateImportBatch(s.ctx, s.batch))
}

func (s *PostgresStoreSuite) individual(withdrawn bool) *regmodels.Individual {
	now := time.Now().UTC()
	i := &regmodels.Individual{
		ID:             id.IndividualID(uuid.New()),
		ImportBatchID:  s.batch.ID,
		ProgramID:      s.program.ID,
		BusinessAreaID: s.program.BusinessAreaID,
		AdminAreaID:    id.AreaID(uuid.New()),
		Photo:          "https://img.example/" + uuid.NewString(),
		Withdrawn:      withdrawn,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Require().NoError(s.store.CreateIndividuals(s.ctx, []*regmodels.Individual{i}))
	return i
}

func (s *PostgresStoreSuite) document(owner *regmodels.Individual, number string, status regmodels.DocumentStatus) *regmodels.Document {
	d := &regmodels.Document{
		ID:             id.DocumentID(uuid.New()),
		IndividualID:   owner.ID,
		ProgramID:      owner.ProgramID,
		TypeKey:        "NATIONAL_ID",
		Country:        "pl",
		DocumentNumber: number,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateDocuments(s.ctx, []*regmodels.Document{d}))
	return d
}

func (s *PostgresStoreSuite) TestLockDocumentsForDeduplication() {
	a, b, c, gone := s.individual(false), s.individual(false), s.individual(false), s.individual(true)
	original := s.document(a, "ASD-123", regmodels.DocumentStatusValid)
	candidate := s.document(b, "asd 123", regmodels.DocumentStatusPending)
	queued := s.document(c, "ASD123", regmodels.DocumentStatusPending)
	s.document(c, "ASD-123", regmodels.DocumentStatusInvalid)
	s.document(gone, "ASD123", regmodels.DocumentStatusValid)

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		docs, err := s.store.LockDocumentsForDeduplication(ctx, []id.DocumentID{candidate.ID})
		s.Require().NoError(err)
		s.Require().Len(docs, 3)
		s.ElementsMatch([]id.DocumentID{original.ID, candidate.ID, queued.ID}, []id.DocumentID{docs[0].ID, docs[1].ID, docs[2].ID})
		s.True(docs[0].ID.Less(docs[1].ID))
		s.True(docs[1].ID.Less(docs[2].ID))
		for _, d := range docs {
			s.Equal(d.IndividualID, d.Owner.ID)
			s.False(d.Owner.AdminAreaID.IsNil())
		}
		return nil
	})
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestLockIndividualsBlocksConcurrentTransactions() {
	golden := s.individual(false)
	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			if err := s.store.LockIndividuals(ctx, []id.IndividualID{golden.ID}); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(s.ctx, 200*time.Millisecond)
	defer cancel()
	err := s.store.RunInTx(waitCtx, func(ctx context.Context) error {
		return s.store.LockIndividuals(ctx, []id.IndividualID{golden.ID})
	})
	s.Require().Error(err, "second lock must wait for the first transaction")

	close(release)
	s.Require().NoError(<-done)
	s.Require().NoError(s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		return s.store.LockIndividuals(ctx, []id.IndividualID{golden.ID})
	}))
}

func (s *PostgresStoreSuite) TestRollback() {
	owner := s.individual(false)
	doc := s.document(owner, "X1", regmodels.DocumentStatusPending)

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.UpdateDocumentStatuses(ctx, []regmodels.DocumentStatusUpdate{
			{ID: doc.ID, Status: regmodels.DocumentStatusValid},
		}))
		return sentinel.ErrInvalidState
	})
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.GetDocument(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(regmodels.DocumentStatusPending, got.Status)
}

func (s *PostgresStoreSuite) TestTicketRoundTrip() {
	golden, dup, extra := s.individual(false), s.individual(false), s.individual(false)
	now := time.Now().UTC().Truncate(time.Microsecond)
	ticket, err := adjmodels.NewTicket(adjmodels.NewTicketParams{
		ID:                 id.TicketID(uuid.New()),
		IssueType:          adjmodels.IssueTypeDocumentsDuplicate,
		BusinessAreaID:     s.program.BusinessAreaID,
		ImportBatchID:      s.batch.ID,
		GoldenRecord:       golden.Ref(),
		PossibleDuplicates: []regmodels.IndividualRef{dup.Ref()},
		Now:                now,
	})
	s.Require().NoError(err)

	err = s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		tickets := []*adjmodels.Ticket{ticket}
		s.Require().NoError(s.store.InsertTickets(ctx, tickets))
		s.Require().NoError(s.store.InsertTicketPrograms(ctx, tickets))
		s.Require().NoError(s.store.InsertTicketDetails(ctx, tickets))
		return s.store.InsertPossibleDuplicates(ctx, ticket.Details.PossibleDuplicates, nil)
	})
	s.Require().NoError(err)

	found, err := s.store.FindOpenTickets(s.ctx, adjmodels.IssueTypeDocumentsDuplicate, []id.IndividualID{golden.ID})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	got := found[0]
	s.Equal(ticket.ID, got.ID)
	s.Equal(s.batch.ID, got.ImportBatchID)
	s.Equal(dup.ID, got.Details.PossibleDuplicate)
	s.Equal([]id.IndividualID{dup.ID}, got.PossibleDuplicateIDs())
	s.Equal([]id.ProgramID{s.program.ID}, got.Programs)
	s.True(got.Details.IsCrossArea, "individuals were created in distinct areas")

	later := now.Add(time.Minute)
	links := []adjmodels.PossibleDuplicate{{TicketID: ticket.ID, IndividualID: extra.ID, AddedAt: later}}
	s.Require().NoError(s.store.InsertPossibleDuplicates(s.ctx, links, []id.TicketID{ticket.ID}))

	got, err = s.store.GetTicketForUpdate(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Equal([]id.IndividualID{dup.ID, extra.ID}, got.PossibleDuplicateIDs())
	s.True(got.UpdatedAt.Equal(later))

	s.Require().NoError(got.SelectIndividual(golden.Ref(), false, later))
	s.Require().NoError(got.SelectIndividual(dup.Ref(), true, later))
	s.Require().NoError(s.store.SaveTicketReview(s.ctx, got))

	reloaded, err := s.store.GetTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Equal(adjmodels.StatusPartiallyResolved, reloaded.Status)
	s.Equal([]id.IndividualID{dup.ID}, reloaded.Details.SelectedIndividuals)
	s.Equal([]id.IndividualID{golden.ID}, reloaded.Details.SelectedDistinct)
}

func (s *PostgresStoreSuite) TestConcurrentSetClaims() {
	const claimers = 8
	winners := make([]string, claimers)
	var wg sync.WaitGroup
	for k := 0; k < claimers; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			w, err := s.store.ClaimDeduplicationSet(s.ctx, s.program.ID, uuid.NewString())
			s.NoError(err)
			winners[k] = w
		}(k)
	}
	wg.Wait()

	for _, w := range winners {
		s.Equal(winners[0], w)
	}
	p, err := s.store.GetProgram(s.ctx, s.program.ID)
	s.Require().NoError(err)
	s.Equal(winners[0], p.DeduplicationSetID)

	s.Require().NoError(s.store.ReleaseDeduplicationSet(s.ctx, s.program.ID))
	p, err = s.store.GetProgram(s.ctx, s.program.ID)
	s.Require().NoError(err)
	s.Empty(p.DeduplicationSetID)
}

func (s *PostgresStoreSuite) TestBiometricBookkeeping() {
	a, b := s.individual(false), s.individual(false)

	images, err := s.store.ListBatchImages(s.ctx, s.batch.ID)
	s.Require().NoError(err)
	s.Len(images, 2)

	s.Require().NoError(s.store.UpdateImportBatchStatus(s.ctx, []id.ImportBatchID{s.batch.ID}, regmodels.EngineStatusUploaded))
	batches, err := s.store.ListImportBatches(s.ctx, s.program.ID, regmodels.EngineStatusUploaded, regmodels.EngineStatusInProgress)
	s.Require().NoError(err)
	s.Len(batches, 1)

	results := regmodels.DeduplicationResults{}
	results.Add(regmodels.DuplicateHit{IndividualID: b.ID, Score: 0.97})
	s.Require().NoError(s.store.UpdateGoldenRecordResults(s.ctx, []regmodels.GoldenRecordUpdate{
		{IndividualID: a.ID, Status: regmodels.GoldenRecordDuplicate, Results: results},
	}))
	got, err := s.store.GetIndividual(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(regmodels.GoldenRecordDuplicate, got.DeduplicationGoldenRecordStatus)
	s.Equal(results, got.DeduplicationGoldenRecordResults)

	pair := regmodels.NewSimilarityPair(s.program.ID, a.ID, b.ID, 0.97)
	s.Require().NoError(s.store.SaveSimilarityPairs(s.ctx, []regmodels.SimilarityPair{pair}))
	pairs, err := s.store.ListSimilarityPairs(s.ctx, s.program.ID)
	s.Require().NoError(err)
	s.Equal([]regmodels.SimilarityPair{pair}, pairs)
}
