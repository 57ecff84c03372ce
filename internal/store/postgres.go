package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	adjmodels "hope/internal/adjudication/models"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	"hope/pkg/platform/sentinel"
	txcontext "hope/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

const defaultTxTimeout = 30 * time.Second

// PostgresStore is the Entity Store backed by PostgreSQL. All multi-row
// writes are single set-based statements over unnest'ed arrays so the number
// of round trips never depends on the number of rows.
type PostgresStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTxTimeout bounds transactions started without a deadline.
func WithTxTimeout(timeout time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if timeout > 0 {
			s.txTimeout = timeout
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, txTimeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) conn(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

// RunInTx runs fn in a database transaction carried by the context. Nested
// calls join the outer transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, s.txTimeout, fn)
}

// --- intake ---

func (s *PostgresStore) CreateProgram(ctx context.Context, p *regmodels.Program) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO programs (id, business_area_id, name, biometric_deduplication_enabled, deduplication_set_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
	`, p.ID, p.BusinessAreaID, p.Name, p.BiometricDeduplicationEnabled, p.DeduplicationSetID)
	if err != nil {
		return wrapWrite("create program", err)
	}
	return nil
}

func (s *PostgresStore) SetBiometricDeduplicationEnabled(ctx context.Context, programID id.ProgramID, enabled bool) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE programs SET biometric_deduplication_enabled = $2 WHERE id = $1`, programID, enabled)
	if err != nil {
		return fmt.Errorf("set biometric deduplication flag: %w", err)
	}
	return requireRows(res, "set biometric deduplication flag")
}

func (s *PostgresStore) CreateImportBatch(ctx context.Context, b *regmodels.ImportBatch) error {
	status := b.DeduplicationEngineStatus
	if status == "" {
		status = regmodels.EngineStatusPending
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO import_batches (id, program_id, business_area_id, name, deduplication_engine_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, b.ID, b.ProgramID, b.BusinessAreaID, b.Name, string(status), b.CreatedAt)
	if err != nil {
		return wrapWrite("create import batch", err)
	}
	return nil
}

func (s *PostgresStore) CreateHousehold(ctx context.Context, h *regmodels.Household) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO households (id, import_batch_id, program_id, business_area_id, admin_area_id, withdrawn)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(h.ID).String(), h.ImportBatchID, h.ProgramID, h.BusinessAreaID, nullableUUID(h.AdminAreaID), h.Withdrawn)
	if err != nil {
		return wrapWrite("create household", err)
	}
	return nil
}

func (s *PostgresStore) CreateIndividuals(ctx context.Context, individuals []*regmodels.Individual) error {
	if len(individuals) == 0 {
		return nil
	}
	n := len(individuals)
	ids, households, batches, programs := make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	areas, adminAreas, names, photos := make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	batchStatuses, goldenStatuses, created := make([]string, n), make([]string, n), make([]string, n)
	withdrawn := make([]bool, n)
	for k, i := range individuals {
		ids[k] = i.ID.String()
		households[k] = nullableString(i.HouseholdID)
		batches[k] = i.ImportBatchID.String()
		programs[k] = i.ProgramID.String()
		areas[k] = i.BusinessAreaID.String()
		adminAreas[k] = nullableString(i.AdminAreaID)
		names[k] = i.FullName
		photos[k] = i.Photo
		withdrawn[k] = i.Withdrawn
		batchStatuses[k] = string(orDefault(i.DeduplicationBatchStatus, regmodels.BatchStatusNotProcessed))
		goldenStatuses[k] = string(orDefault(i.DeduplicationGoldenRecordStatus, regmodels.GoldenRecordNotProcessed))
		created[k] = formatTime(i.CreatedAt)
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO individuals (
			id, household_id, import_batch_id, program_id, business_area_id, admin_area_id,
			full_name, photo, withdrawn, deduplication_batch_status, deduplication_golden_record_status,
			created_at, updated_at
		)
		SELECT u.id, NULLIF(u.household_id, '')::uuid, u.import_batch_id, u.program_id, u.business_area_id,
		       NULLIF(u.admin_area_id, '')::uuid, u.full_name, u.photo, u.withdrawn, u.batch_status,
		       u.golden_status, u.created_at, u.created_at
		FROM unnest($1::uuid[], $2::text[], $3::uuid[], $4::uuid[], $5::uuid[], $6::text[],
		            $7::text[], $8::text[], $9::bool[], $10::text[], $11::text[], $12::timestamptz[])
		  AS u(id, household_id, import_batch_id, program_id, business_area_id, admin_area_id,
		       full_name, photo, withdrawn, batch_status, golden_status, created_at)
	`, pq.Array(ids), pq.Array(households), pq.Array(batches), pq.Array(programs), pq.Array(areas),
		pq.Array(adminAreas), pq.Array(names), pq.Array(photos), pq.Array(withdrawn),
		pq.Array(batchStatuses), pq.Array(goldenStatuses), pq.Array(created))
	if err != nil {
		return wrapWrite("create individuals", err)
	}
	return nil
}

// CreateDocuments inserts documents with their comparison fields normalized.
// Documents without an explicit status start PENDING.
func (s *PostgresStore) CreateDocuments(ctx context.Context, docs []*regmodels.Document) error {
	if len(docs) == 0 {
		return nil
	}
	n := len(docs)
	ids, owners, programs := make([]string, n), make([]string, n), make([]string, n)
	types, countries, numbers, normalized := make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	statuses, created := make([]string, n), make([]string, n)
	for k, d := range docs {
		key := d.Key()
		ids[k] = d.ID.String()
		owners[k] = d.IndividualID.String()
		programs[k] = d.ProgramID.String()
		types[k] = key.TypeKey
		countries[k] = key.Country
		numbers[k] = d.DocumentNumber
		normalized[k] = key.Number
		statuses[k] = string(orDefault(d.Status, regmodels.DocumentStatusPending))
		created[k] = formatTime(d.CreatedAt)
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO documents (
			id, individual_id, program_id, type_key, country, document_number, normalized_number,
			status, created_at, updated_at
		)
		SELECT u.id, u.individual_id, u.program_id, u.type_key, u.country, u.document_number,
		       u.normalized_number, u.status, u.created_at, u.created_at
		FROM unnest($1::uuid[], $2::uuid[], $3::uuid[], $4::text[], $5::text[], $6::text[], $7::text[],
		            $8::text[], $9::timestamptz[])
		  AS u(id, individual_id, program_id, type_key, country, document_number, normalized_number,
		       status, created_at)
	`, pq.Array(ids), pq.Array(owners), pq.Array(programs), pq.Array(types), pq.Array(countries),
		pq.Array(numbers), pq.Array(normalized), pq.Array(statuses), pq.Array(created))
	if err != nil {
		return wrapWrite("create documents", err)
	}
	return nil
}

func (s *PostgresStore) SetIndividualWithdrawn(ctx context.Context, individualID id.IndividualID, withdrawn bool) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE individuals SET withdrawn = $2, updated_at = $3 WHERE id = $1`, individualID, withdrawn, time.Now())
	if err != nil {
		return fmt.Errorf("set individual withdrawn: %w", err)
	}
	return requireRows(res, "set individual withdrawn")
}

const documentColumns = `
	d.id, d.individual_id, d.program_id, d.type_key, d.country, d.document_number, d.status,
	d.created_at, d.updated_at, i.household_id, i.business_area_id, i.admin_area_id, i.withdrawn`

func scanDocument(row interface{ Scan(...any) error }) (*regmodels.Document, error) {
	var (
		d         regmodels.Document
		household uuid.NullUUID
		adminArea uuid.NullUUID
	)
	err := row.Scan(&d.ID, &d.IndividualID, &d.ProgramID, &d.TypeKey, &d.Country, &d.DocumentNumber, &d.Status,
		&d.CreatedAt, &d.UpdatedAt, &household, &d.Owner.BusinessAreaID, &adminArea, &d.Owner.Withdrawn)
	if err != nil {
		return nil, err
	}
	d.Owner.ID = d.IndividualID
	d.Owner.ProgramID = d.ProgramID
	d.Owner.HouseholdID = id.HouseholdID(household.UUID)
	d.Owner.AdminAreaID = id.AreaID(adminArea.UUID)
	return &d, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID id.DocumentID) (*regmodels.Document, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		JOIN individuals i ON i.id = d.individual_id
		WHERE d.id = $1
	`, documentID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetIndividual(ctx context.Context, individualID id.IndividualID) (*regmodels.Individual, error) {
	var (
		i                     regmodels.Individual
		household, adminArea  uuid.NullUUID
		batchJSON, goldenJSON []byte
	)
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, household_id, import_batch_id, program_id, business_area_id, admin_area_id, full_name,
		       photo, withdrawn, deduplication_batch_status, deduplication_golden_record_status,
		       deduplication_batch_results, deduplication_golden_record_results, created_at, updated_at
		FROM individuals
		WHERE id = $1
	`, individualID).Scan(&i.ID, &household, &i.ImportBatchID, &i.ProgramID, &i.BusinessAreaID, &adminArea,
		&i.FullName, &i.Photo, &i.Withdrawn, &i.DeduplicationBatchStatus, &i.DeduplicationGoldenRecordStatus,
		&batchJSON, &goldenJSON, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get individual: %w", err)
	}
	i.HouseholdID = id.HouseholdID(household.UUID)
	i.AdminAreaID = id.AreaID(adminArea.UUID)
	if err := json.Unmarshal(batchJSON, &i.DeduplicationBatchResults); err != nil {
		return nil, fmt.Errorf("decode batch results: %w", err)
	}
	if err := json.Unmarshal(goldenJSON, &i.DeduplicationGoldenRecordResults); err != nil {
		return nil, fmt.Errorf("decode golden record results: %w", err)
	}
	return &i, nil
}

// GetIndividualRefs returns snapshots of the known individuals among ids.
func (s *PostgresStore) GetIndividualRefs(ctx context.Context, ids []id.IndividualID) ([]regmodels.IndividualRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, household_id, program_id, business_area_id, admin_area_id, withdrawn
		FROM individuals
		WHERE id = ANY($1::uuid[])
		ORDER BY id
	`, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("get individual refs: %w", err)
	}
	defer rows.Close()

	var out []regmodels.IndividualRef
	for rows.Next() {
		var (
			ref                  regmodels.IndividualRef
			household, adminArea uuid.NullUUID
		)
		if err := rows.Scan(&ref.ID, &household, &ref.ProgramID, &ref.BusinessAreaID, &adminArea, &ref.Withdrawn); err != nil {
			return nil, fmt.Errorf("scan individual ref: %w", err)
		}
		ref.HouseholdID = id.HouseholdID(household.UUID)
		ref.AdminAreaID = id.AreaID(adminArea.UUID)
		out = append(out, ref)
	}
	return out, rows.Err()
}

// --- exact-match deduplication ---

// LockDocumentsForDeduplication locks the candidates together with every
// non-INVALID document of an active individual sharing a candidate's program and
// comparison key. Rows are locked in primary key order so concurrent runs
// over overlapping groups queue instead of deadlocking.
func (s *PostgresStore) LockDocumentsForDeduplication(ctx context.Context, candidates []id.DocumentID) ([]*regmodels.Document, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		JOIN individuals i ON i.id = d.individual_id
		WHERE d.id = ANY($1::uuid[])
		   OR (d.status <> 'INVALID' AND NOT i.withdrawn AND EXISTS (
		        SELECT 1 FROM documents c
		        WHERE c.id = ANY($1::uuid[])
		          AND c.program_id = d.program_id
		          AND c.type_key = d.type_key
		          AND c.country = d.country
		          AND c.normalized_number = d.normalized_number))
		ORDER BY d.id
		FOR UPDATE OF d
	`, uuidArray(candidates))
	if err != nil {
		return nil, fmt.Errorf("lock documents: %w", err)
	}
	defer rows.Close()

	var out []*regmodels.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock documents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateDocumentStatuses(ctx context.Context, updates []regmodels.DocumentStatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	ids, statuses := make([]string, len(updates)), make([]string, len(updates))
	for k, u := range updates {
		ids[k] = u.ID.String()
		statuses[k] = string(u.Status)
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE documents AS d
		SET status = u.status, updated_at = $3
		FROM unnest($1::uuid[], $2::text[]) AS u(id, status)
		WHERE d.id = u.id
	`, pq.Array(ids), pq.Array(statuses), time.Now())
	if err != nil {
		return fmt.Errorf("update document statuses: %w", err)
	}
	return nil
}

// --- tickets ---

const ticketSelect = `
	SELECT t.id, t.category, t.issue_type, t.status, t.business_area_id, t.import_batch_id, t.description,
	       t.created_at, t.updated_at, d.golden_records_individual_id, d.possible_duplicate_id,
	       d.selected_individuals::text[], d.selected_distinct::text[], d.is_cross_area,
	       d.is_multiple_duplicates_version, d.score_min, d.score_max,
	       COALESCE((
	           SELECT json_agg(json_build_object('individual_id', pd.individual_id, 'added_at', pd.added_at)
	                           ORDER BY pd.added_at, pd.individual_id)
	           FROM ticket_possible_duplicates pd
	           WHERE pd.ticket_id = t.id
	       ), '[]'::json),
	       COALESCE((
	           SELECT array_agg(tp.program_id::text ORDER BY tp.program_id)
	           FROM grievance_ticket_programs tp
	           WHERE tp.ticket_id = t.id
	       ), '{}'::text[])
	FROM grievance_tickets t
	JOIN ticket_needs_adjudication_details d ON d.ticket_id = t.id`

type possibleDuplicateRow struct {
	IndividualID uuid.UUID `json:"individual_id"`
	AddedAt      time.Time `json:"added_at"`
}

func scanTicket(row interface{ Scan(...any) error }) (*adjmodels.Ticket, error) {
	var (
		t                            adjmodels.Ticket
		importBatch, possibleDup     uuid.NullUUID
		selected, distinct, programs pq.StringArray
		dupsJSON                     []byte
	)
	err := row.Scan(&t.ID, &t.Category, &t.IssueType, &t.Status, &t.BusinessAreaID, &importBatch, &t.Description,
		&t.CreatedAt, &t.UpdatedAt, &t.Details.GoldenRecordsIndividual, &possibleDup,
		&selected, &distinct, &t.Details.IsCrossArea,
		&t.Details.IsMultipleDuplicatesVersion, &t.Details.ScoreMin, &t.Details.ScoreMax,
		&dupsJSON, &programs)
	if err != nil {
		return nil, err
	}
	t.ImportBatchID = id.ImportBatchID(importBatch.UUID)
	t.Details.PossibleDuplicate = id.IndividualID(possibleDup.UUID)

	var dups []possibleDuplicateRow
	if err := json.Unmarshal(dupsJSON, &dups); err != nil {
		return nil, fmt.Errorf("decode possible duplicates: %w", err)
	}
	for _, pd := range dups {
		t.Details.PossibleDuplicates = append(t.Details.PossibleDuplicates, adjmodels.PossibleDuplicate{
			TicketID:     t.ID,
			IndividualID: id.IndividualID(pd.IndividualID),
			AddedAt:      pd.AddedAt,
		})
	}
	if t.Details.SelectedIndividuals, err = parseUUIDs[id.IndividualID](selected); err != nil {
		return nil, err
	}
	if t.Details.SelectedDistinct, err = parseUUIDs[id.IndividualID](distinct); err != nil {
		return nil, err
	}
	if t.Programs, err = parseUUIDs[id.ProgramID](programs); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) queryTickets(ctx context.Context, op, where string, args ...any) ([]*adjmodels.Ticket, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, ticketSelect+"\n"+where+"\nORDER BY t.created_at, t.id", args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*adjmodels.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan ticket: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// LockIndividuals takes row locks on ids in primary key order.
func (s *PostgresStore) LockIndividuals(ctx context.Context, ids []id.IndividualID) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id FROM individuals WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, uuidArray(ids))
	if err != nil {
		return fmt.Errorf("lock individuals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock individuals: %w", err)
	}
	return nil
}

// FindOpenTickets returns open tickets of the issue type whose golden record
// is one of goldens, with their possible duplicates and programs loaded.
func (s *PostgresStore) FindOpenTickets(ctx context.Context, issueType adjmodels.IssueType, goldens []id.IndividualID) ([]*adjmodels.Ticket, error) {
	if len(goldens) == 0 {
		return nil, nil
	}
	return s.queryTickets(ctx, "find open tickets",
		`WHERE t.status <> 'CLOSED' AND t.issue_type = $1 AND d.golden_records_individual_id = ANY($2::uuid[])`,
		string(issueType), uuidArray(goldens))
}

func (s *PostgresStore) InsertTickets(ctx context.Context, tickets []*adjmodels.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	n := len(tickets)
	ids, categories, issueTypes, statuses := make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	areas, batches, descriptions := make([]string, n), make([]string, n), make([]string, n)
	created, updated := make([]string, n), make([]string, n)
	for k, t := range tickets {
		ids[k] = t.ID.String()
		categories[k] = string(t.Category)
		issueTypes[k] = string(t.IssueType)
		statuses[k] = string(t.Status)
		areas[k] = t.BusinessAreaID.String()
		batches[k] = nullableString(t.ImportBatchID)
		descriptions[k] = t.Description
		created[k] = formatTime(t.CreatedAt)
		updated[k] = formatTime(t.UpdatedAt)
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO grievance_tickets (
			id, category, issue_type, status, business_area_id, import_batch_id, description, created_at, updated_at
		)
		SELECT u.id, u.category, u.issue_type, u.status, u.business_area_id, NULLIF(u.import_batch_id, '')::uuid,
		       u.description, u.created_at, u.updated_at
		FROM unnest($1::uuid[], $2::text[], $3::text[], $4::text[], $5::uuid[], $6::text[], $7::text[],
		            $8::timestamptz[], $9::timestamptz[])
		  AS u(id, category, issue_type, status, business_area_id, import_batch_id, description, created_at, updated_at)
	`, pq.Array(ids), pq.Array(categories), pq.Array(issueTypes), pq.Array(statuses), pq.Array(areas),
		pq.Array(batches), pq.Array(descriptions), pq.Array(created), pq.Array(updated))
	if err != nil {
		return wrapWrite("insert tickets", err)
	}
	return nil
}

func (s *PostgresStore) InsertTicketPrograms(ctx context.Context, tickets []*adjmodels.Ticket) error {
	var ticketIDs, programIDs []string
	for _, t := range tickets {
		for _, p := range t.Programs {
			ticketIDs = append(ticketIDs, t.ID.String())
			programIDs = append(programIDs, p.String())
		}
	}
	if len(ticketIDs) == 0 {
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO grievance_ticket_programs (ticket_id, program_id)
		SELECT * FROM unnest($1::uuid[], $2::uuid[])
		ON CONFLICT DO NOTHING
	`, pq.Array(ticketIDs), pq.Array(programIDs))
	if err != nil {
		return fmt.Errorf("insert ticket programs: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTicketDetails(ctx context.Context, tickets []*adjmodels.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	n := len(tickets)
	ids, goldens, legacy := make([]string, n), make([]string, n), make([]string, n)
	crossArea, multiple := make([]bool, n), make([]bool, n)
	scoreMin, scoreMax := make([]float64, n), make([]float64, n)
	for k, t := range tickets {
		ids[k] = t.ID.String()
		goldens[k] = t.Details.GoldenRecordsIndividual.String()
		legacy[k] = nullableString(t.Details.PossibleDuplicate)
		crossArea[k] = t.Details.IsCrossArea
		multiple[k] = t.Details.IsMultipleDuplicatesVersion
		scoreMin[k] = t.Details.ScoreMin
		scoreMax[k] = t.Details.ScoreMax
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO ticket_needs_adjudication_details (
			ticket_id, golden_records_individual_id, possible_duplicate_id, is_cross_area,
			is_multiple_duplicates_version, score_min, score_max
		)
		SELECT u.ticket_id, u.golden, NULLIF(u.legacy, '')::uuid, u.cross_area, u.multiple, u.score_min, u.score_max
		FROM unnest($1::uuid[], $2::uuid[], $3::text[], $4::bool[], $5::bool[], $6::float8[], $7::float8[])
		  AS u(ticket_id, golden, legacy, cross_area, multiple, score_min, score_max)
	`, pq.Array(ids), pq.Array(goldens), pq.Array(legacy), pq.Array(crossArea), pq.Array(multiple),
		pq.Array(scoreMin), pq.Array(scoreMax))
	if err != nil {
		return wrapWrite("insert ticket details", err)
	}
	return nil
}

// InsertPossibleDuplicates links individuals to tickets, skipping existing
// links, raises the cross-area flag of the crossArea tickets and touches the
// updated_at of every linked ticket, all in one statement.
func (s *PostgresStore) InsertPossibleDuplicates(ctx context.Context, links []adjmodels.PossibleDuplicate, crossArea []id.TicketID) error {
	if len(links) == 0 && len(crossArea) == 0 {
		return nil
	}
	n := len(links)
	ticketIDs, individualIDs, addedAt := make([]string, n), make([]string, n), make([]string, n)
	for k, l := range links {
		ticketIDs[k] = l.TicketID.String()
		individualIDs[k] = l.IndividualID.String()
		addedAt[k] = formatTime(l.AddedAt)
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		WITH cross_area AS (
			UPDATE ticket_needs_adjudication_details
			SET is_cross_area = TRUE
			WHERE ticket_id = ANY($4::uuid[]) AND NOT is_cross_area
		), touched AS (
			UPDATE grievance_tickets AS t
			SET updated_at = GREATEST(t.updated_at, l.added_at)
			FROM (
				SELECT ticket_id, max(added_at) AS added_at
				FROM unnest($1::uuid[], $3::timestamptz[]) AS x(ticket_id, added_at)
				GROUP BY ticket_id
			) AS l
			WHERE t.id = l.ticket_id
		)
		INSERT INTO ticket_possible_duplicates (ticket_id, individual_id, added_at)
		SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::timestamptz[])
		ON CONFLICT DO NOTHING
	`, pq.Array(ticketIDs), pq.Array(individualIDs), pq.Array(addedAt), uuidArray(crossArea))
	if err != nil {
		return fmt.Errorf("insert possible duplicates: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, ticketID id.TicketID) (*adjmodels.Ticket, error) {
	tickets, err := s.queryTickets(ctx, "get ticket", `WHERE t.id = $1`, ticketID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return tickets[0], nil
}

// GetTicketForUpdate row-locks the ticket for the rest of the transaction.
func (s *PostgresStore) GetTicketForUpdate(ctx context.Context, ticketID id.TicketID) (*adjmodels.Ticket, error) {
	var locked uuid.UUID
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id FROM grievance_tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock ticket: %w", err)
	}
	return s.GetTicket(ctx, ticketID)
}

// ListTickets returns every ticket ordered by creation time.
func (s *PostgresStore) ListTickets(ctx context.Context) ([]*adjmodels.Ticket, error) {
	return s.queryTickets(ctx, "list tickets", "")
}

// SaveTicketReview persists the reviewer selections and resolution status.
func (s *PostgresStore) SaveTicketReview(ctx context.Context, t *adjmodels.Ticket) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		WITH details AS (
			UPDATE ticket_needs_adjudication_details
			SET selected_individuals = $2::uuid[], selected_distinct = $3::uuid[]
			WHERE ticket_id = $1
		)
		UPDATE grievance_tickets SET status = $4, updated_at = $5 WHERE id = $1
	`, t.ID, uuidArray(t.Details.SelectedIndividuals), uuidArray(t.Details.SelectedDistinct),
		string(t.Status), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save ticket review: %w", err)
	}
	return requireRows(res, "save ticket review")
}

// --- biometric ---

func (s *PostgresStore) GetProgram(ctx context.Context, programID id.ProgramID) (*regmodels.Program, error) {
	var (
		p     regmodels.Program
		setID sql.NullString
	)
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, business_area_id, name, biometric_deduplication_enabled, deduplication_set_id
		FROM programs
		WHERE id = $1
	`, programID).Scan(&p.ID, &p.BusinessAreaID, &p.Name, &p.BiometricDeduplicationEnabled, &setID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	p.DeduplicationSetID = setID.String
	return &p, nil
}

// ListImportBatches returns the program's batches in any of statuses (all
// batches when none are given), oldest first.
func (s *PostgresStore) ListImportBatches(ctx context.Context, programID id.ProgramID, statuses ...regmodels.DeduplicationEngineStatus) ([]*regmodels.ImportBatch, error) {
	wanted := make([]string, len(statuses))
	for k, st := range statuses {
		wanted[k] = string(st)
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, program_id, business_area_id, name, deduplication_engine_status, created_at, updated_at
		FROM import_batches
		WHERE program_id = $1
		  AND (cardinality($2::text[]) = 0 OR deduplication_engine_status = ANY($2::text[]))
		ORDER BY created_at, id
	`, programID, pq.Array(wanted))
	if err != nil {
		return nil, fmt.Errorf("list import batches: %w", err)
	}
	defer rows.Close()

	var out []*regmodels.ImportBatch
	for rows.Next() {
		var b regmodels.ImportBatch
		if err := rows.Scan(&b.ID, &b.ProgramID, &b.BusinessAreaID, &b.Name, &b.DeduplicationEngineStatus,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan import batch: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// ListBatchImages returns an image reference for every active individual of
// the batch that has a photo.
func (s *PostgresStore) ListBatchImages(ctx context.Context, batchID id.ImportBatchID) ([]regmodels.ImageRef, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, photo
		FROM individuals
		WHERE import_batch_id = $1 AND NOT withdrawn AND photo <> ''
		ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch images: %w", err)
	}
	defer rows.Close()

	var out []regmodels.ImageRef
	for rows.Next() {
		var ref regmodels.ImageRef
		if err := rows.Scan(&ref.IndividualID, &ref.ImageURL); err != nil {
			return nil, fmt.Errorf("scan image ref: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateImportBatchStatus(ctx context.Context, ids []id.ImportBatchID, status regmodels.DeduplicationEngineStatus) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE import_batches
		SET deduplication_engine_status = $2, updated_at = $3
		WHERE id = ANY($1::uuid[])
	`, uuidArray(ids), string(status), time.Now())
	if err != nil {
		return fmt.Errorf("update import batch status: %w", err)
	}
	return nil
}

// ClaimDeduplicationSet records setID as the program's deduplication set
// unless another set was claimed first. It returns the set that holds the claim.
func (s *PostgresStore) ClaimDeduplicationSet(ctx context.Context, programID id.ProgramID, setID string) (string, error) {
	var claimed string
	err := s.conn(ctx).QueryRowContext(ctx, `
		WITH claim AS (
			INSERT INTO deduplication_sets (program_id, set_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (program_id) DO NOTHING
			RETURNING set_id
		), pointer AS (
			UPDATE programs SET deduplication_set_id = $2
			WHERE id = $1 AND EXISTS (SELECT 1 FROM claim)
		)
		SELECT set_id FROM claim
	`, programID, setID, time.Now()).Scan(&claimed)
	if err == nil {
		return claimed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", wrapWrite("claim deduplication set", err)
	}

	// Lost the race: a fresh statement sees the winner's committed row.
	err = s.conn(ctx).QueryRowContext(ctx,
		`SELECT set_id FROM deduplication_sets WHERE program_id = $1`, programID).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("read deduplication set claim: %w", err)
	}
	return claimed, nil
}

// ReleaseDeduplicationSet drops the claim and clears the program pointer.
func (s *PostgresStore) ReleaseDeduplicationSet(ctx context.Context, programID id.ProgramID) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		WITH released AS (
			DELETE FROM deduplication_sets WHERE program_id = $1
		)
		UPDATE programs SET deduplication_set_id = NULL WHERE id = $1
	`, programID)
	if err != nil {
		return fmt.Errorf("release deduplication set: %w", err)
	}
	return requireRows(res, "release deduplication set")
}

// SaveSimilarityPairs upserts biometric findings.
func (s *PostgresStore) SaveSimilarityPairs(ctx context.Context, pairs []regmodels.SimilarityPair) error {
	if len(pairs) == 0 {
		return nil
	}
	n := len(pairs)
	programs, as, bs := make([]string, n), make([]string, n), make([]string, n)
	scores := make([]float64, n)
	for k, p := range pairs {
		programs[k] = p.ProgramID.String()
		as[k] = p.IndividualA.String()
		bs[k] = p.IndividualB.String()
		scores[k] = p.Score
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO biometric_similarity_pairs (program_id, individual_a_id, individual_b_id, score)
		SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::uuid[], $4::float8[])
		ON CONFLICT (program_id, individual_a_id, individual_b_id) DO UPDATE SET score = EXCLUDED.score
	`, pq.Array(programs), pq.Array(as), pq.Array(bs), pq.Array(scores))
	if err != nil {
		return fmt.Errorf("save similarity pairs: %w", err)
	}
	return nil
}

// ListSimilarityPairs returns the program's findings ordered by individuals.
func (s *PostgresStore) ListSimilarityPairs(ctx context.Context, programID id.ProgramID) ([]regmodels.SimilarityPair, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT program_id, individual_a_id, individual_b_id, score
		FROM biometric_similarity_pairs
		WHERE program_id = $1
		ORDER BY individual_a_id, individual_b_id
	`, programID)
	if err != nil {
		return nil, fmt.Errorf("list similarity pairs: %w", err)
	}
	defer rows.Close()

	var out []regmodels.SimilarityPair
	for rows.Next() {
		var p regmodels.SimilarityPair
		if err := rows.Scan(&p.ProgramID, &p.IndividualA, &p.IndividualB, &p.Score); err != nil {
			return nil, fmt.Errorf("scan similarity pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateGoldenRecordResults(ctx context.Context, updates []regmodels.GoldenRecordUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	n := len(updates)
	ids, statuses, results := make([]string, n), make([]string, n), make([]string, n)
	for k, u := range updates {
		raw, err := json.Marshal(u.Results)
		if err != nil {
			return fmt.Errorf("encode golden record results: %w", err)
		}
		ids[k] = u.IndividualID.String()
		statuses[k] = string(u.Status)
		results[k] = string(raw)
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE individuals AS i
		SET deduplication_golden_record_status = u.status,
		    deduplication_golden_record_results = u.results::jsonb,
		    updated_at = $4
		FROM unnest($1::uuid[], $2::text[], $3::text[]) AS u(id, status, results)
		WHERE i.id = u.id
	`, pq.Array(ids), pq.Array(statuses), pq.Array(results), time.Now())
	if err != nil {
		return fmt.Errorf("update golden record results: %w", err)
	}
	return nil
}

// --- helpers ---

type uuidLike interface {
	~[16]byte
}

func uuidArray[T uuidLike](ids []T) any {
	out := make([]string, len(ids))
	for k, v := range ids {
		out[k] = uuid.UUID(v).String()
	}
	return pq.Array(out)
}

func parseUUIDs[T uuidLike](raw []string) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		u, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", r, err)
		}
		out = append(out, T(u))
	}
	return out, nil
}

func nullableUUID[T uuidLike](v T) any {
	if uuid.UUID(v) == uuid.Nil {
		return nil
	}
	return uuid.UUID(v).String()
}

func nullableString[T uuidLike](v T) string {
	if uuid.UUID(v) == uuid.Nil {
		return ""
	}
	return uuid.UUID(v).String()
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func requireRows(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func wrapWrite(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
