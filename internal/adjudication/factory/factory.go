// Package factory turns duplicate groups found by either deduplicator into
// adjudication tickets.
//
// A group attaches to an open ticket of the same issue type that has the same
// golden record individual and at least one possible duplicate in common;
// otherwise a new ticket is created. All rows of a run are written with one
// bulk statement per table so the number of storage operations does not grow
// with the number of groups.
package factory

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"hope/internal/adjudication/models"
	regmodels "hope/internal/registration/models"
	"hope/internal/platform/metrics"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
	"hope/pkg/requestcontext"
)

// Repository is the slice of the Entity Store the factory writes through.
// Calls made with a transactional context join that transaction.
type Repository interface {
	// LockIndividuals row-locks the golden records for the rest of the
	// transaction so concurrent runs cannot both miss each other's ticket.
	LockIndividuals(ctx context.Context, ids []id.IndividualID) error
	FindOpenTickets(ctx context.Context, issueType models.IssueType, goldens []id.IndividualID) ([]*models.Ticket, error)
	InsertTickets(ctx context.Context, tickets []*models.Ticket) error
	InsertTicketPrograms(ctx context.Context, tickets []*models.Ticket) error
	InsertTicketDetails(ctx context.Context, tickets []*models.Ticket) error
	InsertPossibleDuplicates(ctx context.Context, links []models.PossibleDuplicate, crossArea []id.TicketID) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier announces newly created tickets.
type Notifier interface {
	TicketCreated(ctx context.Context, ticket *models.Ticket) error
}

// Group is one duplicate group: a golden record individual and the
// individuals suspected to be the same person.
type Group struct {
	GoldenRecord       regmodels.IndividualRef
	PossibleDuplicates []regmodels.IndividualRef
	Category           models.Category
	BusinessAreaID     id.BusinessAreaID
	ImportBatchID      id.ImportBatchID
	Programs           []id.ProgramID
	ScoreMin           float64
	ScoreMax           float64
}

// Outcome reports what a run did. TicketIDs is parallel to the input groups;
// a group that needed no ticket has a nil ID.
type Outcome struct {
	Created   []*models.Ticket
	Attached  []*models.Ticket
	TicketIDs []id.TicketID
}

type Factory struct {
	repo     Repository
	tx       TxRunner
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	newID    func() id.TicketID
}

type Option func(*Factory)

func WithNotifier(n Notifier) Option {
	return func(f *Factory) {
		f.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Factory) {
		f.metrics = m
	}
}

// WithIDGenerator overrides ticket ID generation.
func WithIDGenerator(gen func() id.TicketID) Option {
	return func(f *Factory) {
		if gen != nil {
			f.newID = gen
		}
	}
}

func New(repo Repository, tx TxRunner, opts ...Option) *Factory {
	f := &Factory{
		repo:   repo,
		tx:     tx,
		logger: slog.Default(),
		newID:  func() id.TicketID { return id.TicketID(uuid.New()) },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type ticketState struct {
	ticket        *models.Ticket
	isNew         bool
	wasCrossArea  bool
	programsAdded bool
	attachedInRun bool
}

// CreateOrAttach applies the attach-or-create rule to every group and
// persists the result with one golden-record lock, at most one lookup and
// four bulk writes. It must run inside the caller's transaction;
// notifications are left to the caller (NotifyCreated) once that transaction
// commits.
func (f *Factory) CreateOrAttach(ctx context.Context, issueType models.IssueType, groups []Group) (*Outcome, error) {
	now := requestcontext.Now(ctx)
	out := &Outcome{TicketIDs: make([]id.TicketID, len(groups))}

	cleaned := make([]Group, len(groups))
	var goldens []id.IndividualID
	seenGolden := make(map[id.IndividualID]struct{})
	for k, g := range groups {
		cleaned[k] = clean(g)
		if len(cleaned[k].PossibleDuplicates) == 0 {
			continue
		}
		if _, ok := seenGolden[g.GoldenRecord.ID]; !ok {
			seenGolden[g.GoldenRecord.ID] = struct{}{}
			goldens = append(goldens, g.GoldenRecord.ID)
		}
	}
	if len(goldens) == 0 {
		return out, nil
	}

	if err := f.repo.LockIndividuals(ctx, goldens); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock golden records")
	}
	existing, err := f.repo.FindOpenTickets(ctx, issueType, goldens)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up open tickets")
	}
	byGolden := make(map[id.IndividualID][]*ticketState)
	for _, t := range existing {
		g := t.Details.GoldenRecordsIndividual
		byGolden[g] = append(byGolden[g], &ticketState{ticket: t, wasCrossArea: t.Details.IsCrossArea})
	}

	var (
		created   []*ticketState
		attached  []*ticketState
		links     []models.PossibleDuplicate
		crossArea []id.TicketID
	)
	for k, g := range cleaned {
		if len(g.PossibleDuplicates) == 0 {
			continue
		}
		dupIDs := refIDs(g.PossibleDuplicates)
		programs := models.ProgramsOf(g.Programs, g.GoldenRecord, g.PossibleDuplicates)

		if st := findOverlapping(byGolden[g.GoldenRecord.ID], dupIDs); st != nil {
			added := st.ticket.Attach(g.GoldenRecord, g.PossibleDuplicates, now)
			if st.ticket.AddPrograms(programs...) {
				st.programsAdded = true
			}
			if !st.isNew {
				links = append(links, added...)
				if !st.attachedInRun {
					st.attachedInRun = true
					attached = append(attached, st)
				}
			}
			out.TicketIDs[k] = st.ticket.ID
			continue
		}

		ticket, err := models.NewTicket(models.NewTicketParams{
			ID:                 f.newID(),
			Category:           g.Category,
			IssueType:          issueType,
			BusinessAreaID:     g.BusinessAreaID,
			ImportBatchID:      g.ImportBatchID,
			Description:        describe(issueType),
			GoldenRecord:       g.GoldenRecord,
			PossibleDuplicates: g.PossibleDuplicates,
			Programs:           programs,
			ScoreMin:           g.ScoreMin,
			ScoreMax:           g.ScoreMax,
			Now:                now,
		})
		if err != nil {
			return nil, err
		}
		st := &ticketState{ticket: ticket, isNew: true}
		byGolden[g.GoldenRecord.ID] = append(byGolden[g.GoldenRecord.ID], st)
		created = append(created, st)
		out.TicketIDs[k] = ticket.ID
	}

	newTickets := tickets(created)
	programRows := slices.Concat(newTickets, programsChanged(attached))
	for _, st := range created {
		links = append(links, st.ticket.Details.PossibleDuplicates...)
	}
	for _, st := range attached {
		if st.ticket.Details.IsCrossArea && !st.wasCrossArea {
			crossArea = append(crossArea, st.ticket.ID)
		}
	}

	if err := f.repo.InsertTickets(ctx, newTickets); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tickets")
	}
	if err := f.repo.InsertTicketPrograms(ctx, programRows); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link ticket programs")
	}
	if err := f.repo.InsertTicketDetails(ctx, newTickets); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create ticket details")
	}
	if err := f.repo.InsertPossibleDuplicates(ctx, links, crossArea); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link possible duplicates")
	}

	out.Created = newTickets
	out.Attached = tickets(attached)
	f.metrics.AddTicketsCreated(string(issueType), len(out.Created))
	f.metrics.AddTicketsAttached(string(issueType), len(out.Attached))
	return out, nil
}

// CreateOrAttachAdjudicationTicket handles a single group in its own
// transaction and notifies if a ticket was created. It returns the ticket the
// group ended up on, or a nil ID when the group had no eligible duplicate.
func (f *Factory) CreateOrAttachAdjudicationTicket(ctx context.Context, issueType models.IssueType, group Group) (id.TicketID, error) {
	var outcome *Outcome
	err := f.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = f.CreateOrAttach(ctx, issueType, []Group{group})
		return err
	})
	if err != nil {
		return id.TicketID{}, err
	}
	f.NotifyCreated(ctx, outcome.Created)
	return outcome.TicketIDs[0], nil
}

// NotifyCreated sends one notification per created ticket. Failures are
// logged and counted; the tickets are already committed.
func (f *Factory) NotifyCreated(ctx context.Context, created []*models.Ticket) {
	if f.notifier == nil {
		return
	}
	for _, t := range created {
		if err := f.notifier.TicketCreated(ctx, t); err != nil {
			f.metrics.IncrementNotificationErrors()
			f.logger.WarnContext(ctx, "failed to publish ticket created notification",
				"ticket_id", t.ID.String(),
				"issue_type", string(t.IssueType),
				"error", err,
			)
		}
	}
}

// clean drops the golden record, withdrawn individuals and repeats from the
// possible duplicates.
func clean(g Group) Group {
	seen := make(map[id.IndividualID]struct{}, len(g.PossibleDuplicates))
	dups := make([]regmodels.IndividualRef, 0, len(g.PossibleDuplicates))
	for _, d := range g.PossibleDuplicates {
		if d.ID.IsNil() || d.ID == g.GoldenRecord.ID || d.Withdrawn {
			continue
		}
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		dups = append(dups, d)
	}
	g.PossibleDuplicates = dups
	return g
}

func findOverlapping(candidates []*ticketState, dupIDs []id.IndividualID) *ticketState {
	for _, st := range candidates {
		if st.ticket.Overlaps(dupIDs) {
			return st
		}
	}
	return nil
}

func describe(issueType models.IssueType) string {
	switch issueType {
	case models.IssueTypeBiometricsSimilarity:
		return "Possible duplicate individuals found by biometric deduplication"
	default:
		return "Possible duplicate identity documents found"
	}
}

func refIDs(refs []regmodels.IndividualRef) []id.IndividualID {
	out := make([]id.IndividualID, len(refs))
	for k, r := range refs {
		out[k] = r.ID
	}
	return out
}

func tickets(states []*ticketState) []*models.Ticket {
	out := make([]*models.Ticket, len(states))
	for k, st := range states {
		out[k] = st.ticket
	}
	return out
}

func programsChanged(states []*ticketState) []*models.Ticket {
	var out []*models.Ticket
	for _, st := range states {
		if st.programsAdded {
			out = append(out, st.ticket)
		}
	}
	return out
}
