package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"hope/internal/adjudication/factory"
	"hope/internal/adjudication/models"
	"hope/internal/audit"
	"hope/internal/platform/metrics"
	regmodels "hope/internal/registration/models"
	"hope/internal/store"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/requestcontext"
)

type recordingPublisher struct {
	closed []*models.Ticket
	err    error
}

func (p *recordingPublisher) TicketClosed(_ context.Context, t *models.Ticket) error {
	p.closed = append(p.closed, t)
	return p.err
}

type AdjudicationServiceSuite struct {
	suite.Suite
	store     *store.InMemory
	publisher *recordingPublisher
	trail     *audit.InMemoryStore
	metrics   *metrics.Metrics
	service   *Service
	ctx       context.Context
	x, y, z   *regmodels.Individual
	ticketID  id.TicketID
}

func TestAdjudicationServiceSuite(t *testing.T) {
	suite.Run(t, new(AdjudicationServiceSuite))
}

func (s *AdjudicationServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.publisher = &recordingPublisher{}
	s.trail = audit.NewInMemoryStore()
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	var err error
	s.service, err = New(s.store,
		WithPublisher(s.publisher),
		WithAuditor(audit.NewPublisher(s.trail)),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC))

	programID := id.ProgramID(uuid.New())
	area := id.BusinessAreaID(uuid.New())
	newIndividual := func() *regmodels.Individual {
		return &regmodels.Individual{ID: id.IndividualID(uuid.New()), ProgramID: programID, BusinessAreaID: area}
	}
	s.x, s.y, s.z = newIndividual(), newIndividual(), newIndividual()
	s.Require().NoError(s.store.CreateIndividuals(s.ctx, []*regmodels.Individual{s.x, s.y, s.z}))

	s.ticketID, err = factory.New(s.store, s.store).CreateOrAttachAdjudicationTicket(s.ctx, models.IssueTypeDocumentsDuplicate, factory.Group{
		GoldenRecord:       s.x.Ref(),
		PossibleDuplicates: []regmodels.IndividualRef{s.y.Ref(), s.z.Ref()},
		BusinessAreaID:     area,
	})
	s.Require().NoError(err)
}

func (s *AdjudicationServiceSuite) selectAs(i *regmodels.Individual, asDuplicate bool) {
	_, err := s.service.SelectIndividual(s.ctx, s.ticketID, i.ID, asDuplicate)
	s.Require().NoError(err)
}

func (s *AdjudicationServiceSuite) TestSelectIndividual() {
	s.Run("flags a candidate and partially resolves the ticket", func() {
		t, err := s.service.SelectIndividual(s.ctx, s.ticketID, s.y.ID, true)
		s.Require().NoError(err)
		s.Equal(models.StatusPartiallyResolved, t.Status)
		s.Equal([]id.IndividualID{s.y.ID}, t.Details.SelectedIndividuals)

		stored, err := s.service.GetTicket(s.ctx, s.ticketID)
		s.Require().NoError(err)
		s.Equal([]id.IndividualID{s.y.ID}, stored.Details.SelectedIndividuals)
	})

	s.Run("switching a flag moves the individual between selections", func() {
		t, err := s.service.SelectIndividual(s.ctx, s.ticketID, s.y.ID, false)
		s.Require().NoError(err)
		s.Empty(t.Details.SelectedIndividuals)
		s.Equal([]id.IndividualID{s.y.ID}, t.Details.SelectedDistinct)
	})

	s.Run("rejects an individual outside the ticket", func() {
		stranger := &regmodels.Individual{ID: id.IndividualID(uuid.New()), ProgramID: s.x.ProgramID}
		s.Require().NoError(s.store.CreateIndividuals(s.ctx, []*regmodels.Individual{stranger}))

		_, err := s.service.SelectIndividual(s.ctx, s.ticketID, stranger.ID, true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an individual the registry does not know", func() {
		_, err := s.service.SelectIndividual(s.ctx, s.ticketID, id.IndividualID(uuid.New()), true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects a withdrawn candidate", func() {
		s.Require().NoError(s.store.SetIndividualWithdrawn(s.ctx, s.z.ID, true))

		_, err := s.service.SelectIndividual(s.ctx, s.ticketID, s.z.ID, false)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown ticket", func() {
		_, err := s.service.SelectIndividual(s.ctx, id.TicketID(uuid.New()), s.y.ID, true)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *AdjudicationServiceSuite) TestClearSelectionReopens() {
	s.selectAs(s.y, true)

	t, err := s.service.ClearSelection(s.ctx, s.ticketID, s.y.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusOpen, t.Status)
	s.Empty(t.Details.SelectedIndividuals)
}

func (s *AdjudicationServiceSuite) TestCloseRequiresASurvivor() {
	s.selectAs(s.x, true)
	s.selectAs(s.y, true)
	s.selectAs(s.z, true)

	err := s.service.ValidateCloseable(s.ctx, s.ticketID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = s.service.CloseTicket(s.ctx, s.ticketID)
	s.Require().Error(err)
	s.Empty(s.publisher.closed)

	s.selectAs(s.x, false)
	s.NoError(s.service.ValidateCloseable(s.ctx, s.ticketID))
	closed, err := s.service.CloseTicket(s.ctx, s.ticketID)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, closed.Status)

	s.Require().Len(s.publisher.closed, 1)
	s.ElementsMatch([]id.IndividualID{s.y.ID, s.z.ID}, s.publisher.closed[0].Details.SelectedIndividuals)
	s.Equal([]id.IndividualID{s.x.ID}, s.publisher.closed[0].Details.SelectedDistinct)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.TicketsClosed.WithLabelValues(string(models.IssueTypeDocumentsDuplicate))))
}

func (s *AdjudicationServiceSuite) TestCloseRequiresFullReview() {
	s.selectAs(s.x, false)
	s.selectAs(s.y, true)

	_, err := s.service.CloseTicket(s.ctx, s.ticketID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	stored, err := s.service.GetTicket(s.ctx, s.ticketID)
	s.Require().NoError(err)
	s.Equal(models.StatusPartiallyResolved, stored.Status)
}

func (s *AdjudicationServiceSuite) TestWithdrawnCandidatesNeedNoReview() {
	s.Require().NoError(s.store.SetIndividualWithdrawn(s.ctx, s.z.ID, true))
	s.selectAs(s.x, false)
	s.selectAs(s.y, true)

	_, err := s.service.CloseTicket(s.ctx, s.ticketID)
	s.Require().NoError(err)
}

func (s *AdjudicationServiceSuite) TestClosedTicketRejectsChanges() {
	s.selectAs(s.x, false)
	s.selectAs(s.y, true)
	s.selectAs(s.z, true)
	_, err := s.service.CloseTicket(s.ctx, s.ticketID)
	s.Require().NoError(err)

	_, err = s.service.SelectIndividual(s.ctx, s.ticketID, s.y.ID, false)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	_, err = s.service.CloseTicket(s.ctx, s.ticketID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *AdjudicationServiceSuite) TestPublishFailureKeepsTheClose() {
	s.publisher.err = errors.New("broker down")
	s.selectAs(s.x, false)
	s.selectAs(s.y, true)
	s.selectAs(s.z, true)

	closed, err := s.service.CloseTicket(s.ctx, s.ticketID)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, closed.Status)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.NotificationErrs))
}

func (s *AdjudicationServiceSuite) TestReviewTrailIsRecorded() {
	ctx := requestcontext.WithActorID(s.ctx, "reviewer-1")
	for _, step := range []struct {
		individual  *regmodels.Individual
		asDuplicate bool
	}{{s.x, false}, {s.y, true}, {s.z, true}} {
		_, err := s.service.SelectIndividual(ctx, s.ticketID, step.individual.ID, step.asDuplicate)
		s.Require().NoError(err)
	}
	_, err := s.service.ClearSelection(ctx, s.ticketID, s.z.ID)
	s.Require().NoError(err)
	_, err = s.service.SelectIndividual(ctx, s.ticketID, s.z.ID, true)
	s.Require().NoError(err)
	_, err = s.service.CloseTicket(ctx, s.ticketID)
	s.Require().NoError(err)

	events, err := s.trail.ListByTicket(s.ctx, s.ticketID)
	s.Require().NoError(err)
	actions := make([]audit.Action, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
		s.Equal("reviewer-1", e.ActorID)
	}
	s.Equal([]audit.Action{
		audit.ActionIndividualSelected,
		audit.ActionIndividualSelected,
		audit.ActionIndividualSelected,
		audit.ActionSelectionCleared,
		audit.ActionIndividualSelected,
		audit.ActionTicketClosed,
	}, actions)
	s.Equal(audit.DecisionDistinct, events[0].Decision)
	s.Equal(s.z.ID, events[3].IndividualID)
}

type failingAuditor struct{}

func (failingAuditor) Emit(context.Context, audit.Event) error { return errors.New("disk full") }

func (s *AdjudicationServiceSuite) TestAuditFailureRollsBackTheDecision() {
	svc, err := New(s.store, WithAuditor(failingAuditor{}))
	s.Require().NoError(err)

	_, err = svc.SelectIndividual(s.ctx, s.ticketID, s.y.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	t, err := s.service.GetTicket(s.ctx, s.ticketID)
	s.Require().NoError(err)
	s.Empty(t.Details.SelectedIndividuals)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
