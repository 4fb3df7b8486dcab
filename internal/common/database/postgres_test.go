// internal/common/database/postgres_test.go
package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"intake-crm/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_RunsStatementsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS crm_applications`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS crm_applications_status_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS crm_applications_submitted_at_idx`).WillReturnResult(sqlmock.NewResult(0, 0))

	client := &PostgresClient{DB: db}
	require.NoError(t, client.Migrate(context.Background(), CRMSchema...))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS applications`).WillReturnError(errors.New("permission denied"))

	client := &PostgresClient{DB: db}
	err = client.Migrate(context.Background(), IntakeSchema...)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1 failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolationConstraint(t *testing.T) {
	pqErr := &pq.Error{Code: UniqueViolation, Constraint: CRMApplicationIDKey}

	constraint, ok := UniqueViolationConstraint(fmt.Errorf("insert: %w", pqErr))
	assert.True(t, ok)
	assert.Equal(t, CRMApplicationIDKey, constraint)

	_, ok = UniqueViolationConstraint(&pq.Error{Code: "23503"})
	assert.False(t, ok)

	_, ok = UniqueViolationConstraint(errors.New("boom"))
	assert.False(t, ok)
}

func TestApplicantColumnsMatchArgsAndDest(t *testing.T) {
	a := &models.Applicant{Skills: []string{"go"}}

	assert.Len(t, ApplicantArgs(a), len(ApplicantColumns))
	assert.Len(t, ApplicantDest(a), len(ApplicantColumns))
	assert.Contains(t, ApplicantColumnList(), "years_of_experience, skills")
}
