// internal/intake/store.go
package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"intake-crm/internal/common/database"
	"intake-crm/internal/models"
)

var ErrRecordNotFound = errors.New("application record not found")

// Store persists intake records. Insert must be atomic with respect to the
// unique applicationId and transactionId constraints.
type Store interface {
	Insert(ctx context.Context, rec *models.ApplicationRecord) error
	FindByID(ctx context.Context, id string) (*models.ApplicationRecord, error)
	FindByApplicationID(ctx context.Context, applicationID string) (*models.ApplicationRecord, error)
	List(ctx context.Context) ([]models.ApplicationRecord, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var selectColumns = "id, application_id, transaction_id, session_id, " +
	database.ApplicantColumnList() +
	", thank_you_url, submitted_at, created_at, updated_at"

func (s *PostgresStore) Insert(ctx context.Context, rec *models.ApplicationRecord) error {
	args := []interface{}{rec.ID, rec.ApplicationID, rec.TransactionID, rec.SessionID}
	args = append(args, database.ApplicantArgs(&rec.Applicant)...)
	args = append(args, rec.ThankYouURL, rec.SubmittedAt, rec.CreatedAt, rec.UpdatedAt)

	query := fmt.Sprintf(
		`INSERT INTO applications (%s) VALUES (%s)`,
		selectColumns, placeholders(len(args)),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM applications WHERE id = $1`
	return scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindByApplicationID(ctx context.Context, applicationID string) (*models.ApplicationRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM applications WHERE application_id = $1`
	return scanOne(s.db.QueryRowContext(ctx, query, applicationID))
}

func (s *PostgresStore) List(ctx context.Context) ([]models.ApplicationRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM applications ORDER BY submitted_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.ApplicationRecord, 0)
	for rows.Next() {
		var rec models.ApplicationRecord
		if err := rows.Scan(dest(&rec)...); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOne(row rowScanner) (*models.ApplicationRecord, error) {
	var rec models.ApplicationRecord
	if err := row.Scan(dest(&rec)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func dest(rec *models.ApplicationRecord) []interface{} {
	out := []interface{}{&rec.ID, &rec.ApplicationID, &rec.TransactionID, &rec.SessionID}
	out = append(out, database.ApplicantDest(&rec.Applicant)...)
	return append(out, &rec.ThankYouURL, &rec.SubmittedAt, &rec.CreatedAt, &rec.UpdatedAt)
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}
