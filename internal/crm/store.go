// internal/crm/store.go
package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"intake-crm/internal/common/database"
	"intake-crm/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrRecordNotFound = errors.New("crm record not found")

// Store persists CRM records. InsertIfAbsent must be a single atomic
// check-and-insert keyed on applicationId.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec *models.CRMRecord) (bool, error)
	FindByID(ctx context.Context, id string) (*models.CRMRecord, error)
	FindByApplicationID(ctx context.Context, applicationID string) (*models.CRMRecord, error)
	FindByApplicationIDs(ctx context.Context, applicationIDs []string) ([]models.CRMRecord, error)
	Query(ctx context.Context, params QueryParams) (*QueryResult, error)
	Update(ctx context.Context, id string, patch *Patch, now time.Time) (*models.CRMRecord, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var crmColumns = "id, application_id, transaction_id, session_id, " +
	database.ApplicantColumnList() +
	", thank_you_url, status, assigned_to, notes, tags, last_contacted_at, submitted_at, created_at, updated_at"

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, rec *models.CRMRecord) (bool, error) {
	args := []interface{}{rec.ID, rec.ApplicationID, rec.TransactionID, rec.SessionID}
	args = append(args, database.ApplicantArgs(&rec.Applicant)...)
	args = append(args,
		rec.ThankYouURL, string(rec.Status), rec.AssignedTo, rec.Notes, pq.Array(rec.Tags),
		rec.LastContactedAt, rec.SubmittedAt, rec.CreatedAt, rec.UpdatedAt,
	)

	query := fmt.Sprintf(
		`INSERT INTO crm_applications (%s) VALUES (%s) ON CONFLICT (application_id) DO NOTHING RETURNING id`,
		crmColumns, placeholders(1, len(args)),
	)

	var id string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindByID looks up by storage id. Ids that are not UUIDs cannot exist.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.CRMRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordNotFound
	}
	query := `SELECT ` + crmColumns + ` FROM crm_applications WHERE id = $1`
	return scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindByApplicationID(ctx context.Context, applicationID string) (*models.CRMRecord, error) {
	query := `SELECT ` + crmColumns + ` FROM crm_applications WHERE application_id = $1`
	return scanOne(s.db.QueryRowContext(ctx, query, applicationID))
}

// FindByApplicationIDs returns the matching records in the order of applicationIDs.
func (s *PostgresStore) FindByApplicationIDs(ctx context.Context, applicationIDs []string) ([]models.CRMRecord, error) {
	if len(applicationIDs) == 0 {
		return []models.CRMRecord{}, nil
	}
	query := `SELECT ` + crmColumns + ` FROM crm_applications WHERE application_id = ANY($1)`
	found, err := s.queryRecords(ctx, query, pq.Array(applicationIDs))
	if err != nil {
		return nil, err
	}

	byAppID := make(map[string]models.CRMRecord, len(found))
	for _, rec := range found {
		byAppID[rec.ApplicationID] = rec
	}
	ordered := make([]models.CRMRecord, 0, len(found))
	for _, appID := range applicationIDs {
		if rec, ok := byAppID[appID]; ok {
			ordered = append(ordered, rec)
		}
	}
	return ordered, nil
}

func (s *PostgresStore) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	where, args := buildFilter(params)

	var total int
	countQuery := `SELECT COUNT(*) FROM crm_applications` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = "submitted_at"
	}
	direction := "DESC"
	if params.SortOrder == SortAsc {
		direction = "ASC"
	}

	n := len(args)
	query := fmt.Sprintf(
		`SELECT %s FROM crm_applications%s ORDER BY %s %s NULLS LAST, id ASC LIMIT $%d OFFSET $%d`,
		crmColumns, where, column, direction, n+1, n+2,
	)
	items, err := s.queryRecords(ctx, query, append(args, params.Limit, params.offset())...)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Items: items, Total: total}, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch *Patch, now time.Time) (*models.CRMRecord, error) {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.AssignedTo != nil {
		set("assigned_to", *patch.AssignedTo)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.Tags != nil {
		set("tags", pq.Array(*patch.Tags))
	}
	if patch.LastContactedAt.Set {
		set("last_contacted_at", patch.LastContactedAt.Value)
	}
	set("updated_at", now)

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE crm_applications SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), crmColumns,
	)
	return scanOne(s.db.QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]models.CRMRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.CRMRecord, 0)
	for rows.Next() {
		var rec models.CRMRecord
		if err := rows.Scan(dest(&rec)...); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func buildFilter(params QueryParams) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if params.Status != "" {
		args = append(args, string(params.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		p := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR (first_name || ' ' || last_name) ILIKE $%[1]d OR email ILIKE $%[1]d)",
			p,
		))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOne(row rowScanner) (*models.CRMRecord, error) {
	var rec models.CRMRecord
	if err := row.Scan(dest(&rec)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func dest(rec *models.CRMRecord) []interface{} {
	out := []interface{}{&rec.ID, &rec.ApplicationID, &rec.TransactionID, &rec.SessionID}
	out = append(out, database.ApplicantDest(&rec.Applicant)...)
	return append(out,
		&rec.ThankYouURL, (*string)(&rec.Status), &rec.AssignedTo, &rec.Notes, pq.Array(&rec.Tags),
		&rec.LastContactedAt, &rec.SubmittedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
}

func placeholders(from, n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(p, ", ")
}
