package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	adjmodels "hope/internal/adjudication/models"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	"hope/pkg/platform/sentinel"
)

// InMemory is an Entity Store kept in process memory. RunInTx serializes
// transactions and restores a snapshot when the callback fails, so it gives
// the same all-or-nothing outcome as the Postgres store.
//
// Every call counts as one storage operation (Ops), with begin and
// commit/rollback counted like their SQL counterparts.
type InMemory struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	data  state
	ops   atomic.Int64
	clock func() time.Time
}

type state struct {
	programs    map[id.ProgramID]*regmodels.Program
	sets        map[id.ProgramID]string
	batches     map[id.ImportBatchID]*regmodels.ImportBatch
	households  map[id.HouseholdID]*regmodels.Household
	individuals map[id.IndividualID]*regmodels.Individual
	documents   map[id.DocumentID]*regmodels.Document
	tickets     map[id.TicketID]*adjmodels.Ticket
	pairs       map[pairKey]regmodels.SimilarityPair
}

type pairKey struct {
	program id.ProgramID
	a, b    id.IndividualID
}

type memTxKey struct{}

// InMemoryOption configures an InMemory store.
type InMemoryOption func(*InMemory)

// WithMemoryClock sets the clock used for updated_at stamps.
func WithMemoryClock(clock func() time.Time) InMemoryOption {
	return func(s *InMemory) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{data: newState(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newState() state {
	return state{
		programs:    make(map[id.ProgramID]*regmodels.Program),
		sets:        make(map[id.ProgramID]string),
		batches:     make(map[id.ImportBatchID]*regmodels.ImportBatch),
		households:  make(map[id.HouseholdID]*regmodels.Household),
		individuals: make(map[id.IndividualID]*regmodels.Individual),
		documents:   make(map[id.DocumentID]*regmodels.Document),
		tickets:     make(map[id.TicketID]*adjmodels.Ticket),
		pairs:       make(map[pairKey]regmodels.SimilarityPair),
	}
}

func (st state) clone() state {
	out := newState()
	for k, v := range st.programs {
		p := *v
		out.programs[k] = &p
	}
	for k, v := range st.sets {
		out.sets[k] = v
	}
	for k, v := range st.batches {
		b := *v
		out.batches[k] = &b
	}
	for k, v := range st.households {
		h := *v
		out.households[k] = &h
	}
	for k, v := range st.individuals {
		out.individuals[k] = cloneIndividual(v)
	}
	for k, v := range st.documents {
		d := *v
		out.documents[k] = &d
	}
	for k, v := range st.tickets {
		out.tickets[k] = cloneTicket(v)
	}
	for k, v := range st.pairs {
		out.pairs[k] = v
	}
	return out
}

func cloneIndividual(i *regmodels.Individual) *regmodels.Individual {
	c := *i
	c.DeduplicationBatchResults.Duplicates = slices.Clone(i.DeduplicationBatchResults.Duplicates)
	c.DeduplicationGoldenRecordResults.Duplicates = slices.Clone(i.DeduplicationGoldenRecordResults.Duplicates)
	return &c
}

func cloneTicket(t *adjmodels.Ticket) *adjmodels.Ticket {
	c := *t
	c.Programs = slices.Clone(t.Programs)
	c.Details.PossibleDuplicates = slices.Clone(t.Details.PossibleDuplicates)
	c.Details.SelectedIndividuals = slices.Clone(t.Details.SelectedIndividuals)
	c.Details.SelectedDistinct = slices.Clone(t.Details.SelectedDistinct)
	return &c
}

// Ops returns the number of storage operations issued so far.
func (s *InMemory) Ops() int64 {
	return s.ops.Load()
}

// ResetOps zeroes the operation counter.
func (s *InMemory) ResetOps() {
	s.ops.Store(0)
}

func (s *InMemory) op() {
	s.ops.Add(1)
}

// RunInTx runs fn inside a serialized transaction. Nested calls join the
// outer transaction.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.op()
	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		s.op()
		return err
	}
	s.op()
	return nil
}

// --- intake ---

func (s *InMemory) CreateProgram(_ context.Context, p *regmodels.Program) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.programs[p.ID]; ok {
		return sentinel.ErrConflict
	}
	c := *p
	s.data.programs[p.ID] = &c
	return nil
}

func (s *InMemory) SetBiometricDeduplicationEnabled(_ context.Context, programID id.ProgramID, enabled bool) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.programs[programID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.BiometricDeduplicationEnabled = enabled
	return nil
}

func (s *InMemory) CreateImportBatch(_ context.Context, b *regmodels.ImportBatch) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.batches[b.ID]; ok {
		return sentinel.ErrConflict
	}
	c := *b
	if c.DeduplicationEngineStatus == "" {
		c.DeduplicationEngineStatus = regmodels.EngineStatusPending
	}
	s.data.batches[b.ID] = &c
	return nil
}

func (s *InMemory) CreateHousehold(_ context.Context, h *regmodels.Household) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.households[h.ID]; ok {
		return sentinel.ErrConflict
	}
	c := *h
	s.data.households[h.ID] = &c
	return nil
}

func (s *InMemory) CreateIndividuals(_ context.Context, individuals []*regmodels.Individual) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range individuals {
		if _, ok := s.data.individuals[i.ID]; ok {
			return sentinel.ErrConflict
		}
	}
	for _, i := range individuals {
		c := cloneIndividual(i)
		if c.DeduplicationBatchStatus == "" {
			c.DeduplicationBatchStatus = regmodels.BatchStatusNotProcessed
		}
		if c.DeduplicationGoldenRecordStatus == "" {
			c.DeduplicationGoldenRecordStatus = regmodels.GoldenRecordNotProcessed
		}
		s.data.individuals[i.ID] = c
	}
	return nil
}

// CreateDocuments inserts documents with their comparison fields normalized.
// Documents without an explicit status start PENDING.
func (s *InMemory) CreateDocuments(_ context.Context, docs []*regmodels.Document) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if _, ok := s.data.documents[d.ID]; ok {
			return sentinel.ErrConflict
		}
		if _, ok := s.data.individuals[d.IndividualID]; !ok {
			return sentinel.ErrNotFound
		}
	}
	for _, d := range docs {
		c := *d
		key := d.Key()
		c.TypeKey, c.Country = key.TypeKey, key.Country
		if c.Status == "" {
			c.Status = regmodels.DocumentStatusPending
		}
		c.Owner = regmodels.IndividualRef{}
		s.data.documents[d.ID] = &c
	}
	return nil
}

func (s *InMemory) SetIndividualWithdrawn(_ context.Context, individualID id.IndividualID, withdrawn bool) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.data.individuals[individualID]
	if !ok {
		return sentinel.ErrNotFound
	}
	i.Withdrawn = withdrawn
	i.UpdatedAt = s.clock()
	return nil
}

func (s *InMemory) GetDocument(_ context.Context, documentID id.DocumentID) (*regmodels.Document, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data.documents[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.withOwner(d), nil
}

func (s *InMemory) GetIndividual(_ context.Context, individualID id.IndividualID) (*regmodels.Individual, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.data.individuals[individualID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneIndividual(i), nil
}

// GetIndividualRefs returns snapshots of the known individuals among ids.
func (s *InMemory) GetIndividualRefs(_ context.Context, ids []id.IndividualID) ([]regmodels.IndividualRef, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]regmodels.IndividualRef, 0, len(ids))
	seen := make(map[id.IndividualID]struct{}, len(ids))
	for _, iid := range ids {
		if _, dup := seen[iid]; dup {
			continue
		}
		seen[iid] = struct{}{}
		if i, ok := s.data.individuals[iid]; ok {
			out = append(out, i.Ref())
		}
	}
	return out, nil
}

// caller holds s.mu
func (s *InMemory) withOwner(d *regmodels.Document) *regmodels.Document {
	c := *d
	if owner, ok := s.data.individuals[d.IndividualID]; ok {
		c.Owner = owner.Ref()
	}
	return &c
}

// --- exact-match deduplication ---

// LockDocumentsForDeduplication returns the candidates together with every
// non-INVALID document of an active individual sharing a candidate's program and
// comparison key, ordered by document ID.
func (s *InMemory) LockDocumentsForDeduplication(_ context.Context, candidates []id.DocumentID) ([]*regmodels.Document, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scopedKey struct {
		program id.ProgramID
		key     regmodels.DocumentKey
	}
	isCandidate := make(map[id.DocumentID]struct{}, len(candidates))
	keys := make(map[scopedKey]struct{}, len(candidates))
	for _, cid := range candidates {
		d, ok := s.data.documents[cid]
		if !ok {
			continue
		}
		isCandidate[cid] = struct{}{}
		keys[scopedKey{d.ProgramID, d.Key()}] = struct{}{}
	}

	var out []*regmodels.Document
	for did, d := range s.data.documents {
		if _, ok := isCandidate[did]; ok {
			out = append(out, s.withOwner(d))
			continue
		}
		if d.Status == regmodels.DocumentStatusInvalid {
			continue
		}
		if _, ok := keys[scopedKey{d.ProgramID, d.Key()}]; !ok {
			continue
		}
		owner, ok := s.data.individuals[d.IndividualID]
		if !ok || owner.Withdrawn {
			continue
		}
		out = append(out, s.withOwner(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out, nil
}

func (s *InMemory) UpdateDocumentStatuses(_ context.Context, updates []regmodels.DocumentStatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for _, u := range updates {
		if d, ok := s.data.documents[u.ID]; ok {
			d.Status = u.Status
			d.UpdatedAt = now
		}
	}
	return nil
}

// --- tickets ---

// LockIndividuals only counts the operation; RunInTx already serializes
// transactions.
func (s *InMemory) LockIndividuals(_ context.Context, ids []id.IndividualID) error {
	if len(ids) == 0 {
		return nil
	}
	s.op()
	return nil
}

// FindOpenTickets returns open tickets of the issue type whose golden record
// is one of goldens, with their possible duplicates and programs loaded.
func (s *InMemory) FindOpenTickets(_ context.Context, issueType adjmodels.IssueType, goldens []id.IndividualID) ([]*adjmodels.Ticket, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[id.IndividualID]struct{}, len(goldens))
	for _, g := range goldens {
		want[g] = struct{}{}
	}
	var out []*adjmodels.Ticket
	for _, t := range s.data.tickets {
		if !t.IsOpen() || t.IssueType != issueType {
			continue
		}
		if _, ok := want[t.Details.GoldenRecordsIndividual]; ok {
			out = append(out, cloneTicket(t))
		}
	}
	sortTickets(out)
	return out, nil
}

func (s *InMemory) InsertTickets(_ context.Context, tickets []*adjmodels.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		if _, ok := s.data.tickets[t.ID]; ok {
			return sentinel.ErrConflict
		}
	}
	for _, t := range tickets {
		c := &adjmodels.Ticket{
			ID:             t.ID,
			Category:       t.Category,
			IssueType:      t.IssueType,
			Status:         t.Status,
			BusinessAreaID: t.BusinessAreaID,
			ImportBatchID:  t.ImportBatchID,
			Description:    t.Description,
			CreatedAt:      t.CreatedAt,
			UpdatedAt:      t.UpdatedAt,
		}
		s.data.tickets[t.ID] = c
	}
	return nil
}

func (s *InMemory) InsertTicketPrograms(_ context.Context, tickets []*adjmodels.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		stored, ok := s.data.tickets[t.ID]
		if !ok {
			return sentinel.ErrNotFound
		}
		for _, p := range t.Programs {
			if !slices.Contains(stored.Programs, p) {
				stored.Programs = append(stored.Programs, p)
			}
		}
	}
	return nil
}

func (s *InMemory) InsertTicketDetails(_ context.Context, tickets []*adjmodels.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		stored, ok := s.data.tickets[t.ID]
		if !ok {
			return sentinel.ErrNotFound
		}
		d := t.Details
		d.PossibleDuplicates = stored.Details.PossibleDuplicates
		d.SelectedIndividuals = slices.Clone(t.Details.SelectedIndividuals)
		d.SelectedDistinct = slices.Clone(t.Details.SelectedDistinct)
		stored.Details = d
	}
	return nil
}

// InsertPossibleDuplicates links individuals to tickets, skipping existing
// links, and raises the cross-area flag of the crossArea tickets.
func (s *InMemory) InsertPossibleDuplicates(_ context.Context, links []adjmodels.PossibleDuplicate, crossArea []id.TicketID) error {
	if len(links) == 0 && len(crossArea) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		t, ok := s.data.tickets[l.TicketID]
		if !ok {
			return sentinel.ErrNotFound
		}
		if t.HasPossibleDuplicate(l.IndividualID) {
			continue
		}
		t.Details.PossibleDuplicates = append(t.Details.PossibleDuplicates, l)
		if l.AddedAt.After(t.UpdatedAt) {
			t.UpdatedAt = l.AddedAt
		}
	}
	for _, tid := range crossArea {
		if t, ok := s.data.tickets[tid]; ok {
			t.Details.IsCrossArea = true
		}
	}
	return nil
}

func (s *InMemory) GetTicket(_ context.Context, ticketID id.TicketID) (*adjmodels.Ticket, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data.tickets[ticketID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTicket(t), nil
}

// GetTicketForUpdate is GetTicket; transactions are already serialized.
func (s *InMemory) GetTicketForUpdate(ctx context.Context, ticketID id.TicketID) (*adjmodels.Ticket, error) {
	return s.GetTicket(ctx, ticketID)
}

// ListTickets returns every ticket ordered by creation time.
func (s *InMemory) ListTickets(_ context.Context) ([]*adjmodels.Ticket, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*adjmodels.Ticket, 0, len(s.data.tickets))
	for _, t := range s.data.tickets {
		out = append(out, cloneTicket(t))
	}
	sortTickets(out)
	return out, nil
}

// SaveTicketReview persists the reviewer selections and resolution status.
func (s *InMemory) SaveTicketReview(_ context.Context, t *adjmodels.Ticket) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.tickets[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Status = t.Status
	stored.UpdatedAt = t.UpdatedAt
	stored.Details.SelectedIndividuals = slices.Clone(t.Details.SelectedIndividuals)
	stored.Details.SelectedDistinct = slices.Clone(t.Details.SelectedDistinct)
	return nil
}

func sortTickets(ts []*adjmodels.Ticket) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return id.DocumentID(ts[i].ID).Less(id.DocumentID(ts[j].ID))
	})
}

// --- biometric ---

func (s *InMemory) GetProgram(_ context.Context, programID id.ProgramID) (*regmodels.Program, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.programs[programID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *p
	return &c, nil
}

// ListImportBatches returns the program's batches in any of statuses (all
// batches when none are given), oldest first.
func (s *InMemory) ListImportBatches(_ context.Context, programID id.ProgramID, statuses ...regmodels.DeduplicationEngineStatus) ([]*regmodels.ImportBatch, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*regmodels.ImportBatch
	for _, b := range s.data.batches {
		if b.ProgramID != programID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, b.DeduplicationEngineStatus) {
			continue
		}
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return id.DocumentID(out[i].ID).Less(id.DocumentID(out[j].ID))
	})
	return out, nil
}

// ListBatchImages returns an image reference for every active individual of
// the batch that has a photo.
func (s *InMemory) ListBatchImages(_ context.Context, batchID id.ImportBatchID) ([]regmodels.ImageRef, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []regmodels.ImageRef
	for _, i := range s.data.individuals {
		if i.ImportBatchID != batchID || i.Withdrawn || !i.HasPhoto() {
			continue
		}
		out = append(out, regmodels.ImageRef{IndividualID: i.ID, ImageURL: i.Photo})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].IndividualID.Less(out[b].IndividualID) })
	return out, nil
}

func (s *InMemory) UpdateImportBatchStatus(_ context.Context, ids []id.ImportBatchID, status regmodels.DeduplicationEngineStatus) error {
	if len(ids) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for _, bid := range ids {
		if b, ok := s.data.batches[bid]; ok {
			b.DeduplicationEngineStatus = status
			b.UpdatedAt = now
		}
	}
	return nil
}

// ClaimDeduplicationSet records setID as the program's deduplication set
// unless another set was claimed first. It returns the set that holds the claim.
func (s *InMemory) ClaimDeduplicationSet(_ context.Context, programID id.ProgramID, setID string) (string, error) {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.programs[programID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	if existing, ok := s.data.sets[programID]; ok {
		return existing, nil
	}
	s.data.sets[programID] = setID
	p.DeduplicationSetID = setID
	return setID, nil
}

// ReleaseDeduplicationSet drops the claim and clears the program pointer.
func (s *InMemory) ReleaseDeduplicationSet(_ context.Context, programID id.ProgramID) error {
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.programs[programID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.data.sets, programID)
	p.DeduplicationSetID = ""
	return nil
}

// SaveSimilarityPairs upserts biometric findings.
func (s *InMemory) SaveSimilarityPairs(_ context.Context, pairs []regmodels.SimilarityPair) error {
	if len(pairs) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		s.data.pairs[pairKey{p.ProgramID, p.IndividualA, p.IndividualB}] = p
	}
	return nil
}

// ListSimilarityPairs returns the program's findings ordered by individuals.
func (s *InMemory) ListSimilarityPairs(_ context.Context, programID id.ProgramID) ([]regmodels.SimilarityPair, error) {
	s.op()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []regmodels.SimilarityPair
	for k, p := range s.data.pairs {
		if k.program == programID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IndividualA != out[j].IndividualA {
			return out[i].IndividualA.Less(out[j].IndividualA)
		}
		return out[i].IndividualB.Less(out[j].IndividualB)
	})
	return out, nil
}

func (s *InMemory) UpdateGoldenRecordResults(_ context.Context, updates []regmodels.GoldenRecordUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	s.op()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for _, u := range updates {
		if i, ok := s.data.individuals[u.IndividualID]; ok {
			i.DeduplicationGoldenRecordStatus = u.Status
			i.DeduplicationGoldenRecordResults = u.Results
			i.DeduplicationGoldenRecordResults.Duplicates = slices.Clone(u.Results.Duplicates)
			i.UpdatedAt = now
		}
	}
	return nil
}
