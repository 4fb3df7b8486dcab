// internal/common/database/schema.go
package database

import (
	"strings"

	"intake-crm/internal/models"

	"github.com/lib/pq"
)

// Constraint names checked when mapping unique violations.
const (
	IntakeApplicationIDKey = "applications_application_id_key"
	IntakeTransactionIDKey = "applications_transaction_id_key"
	CRMApplicationIDKey    = "crm_applications_application_id_key"
	CRMTransactionIDKey    = "crm_applications_transaction_id_key"
)

const applicantColumnsDDL = `
	first_name          TEXT NOT NULL,
	last_name           TEXT NOT NULL,
	email               TEXT NOT NULL,
	phone               TEXT NOT NULL,
	date_of_birth       DATE NOT NULL,
	street              TEXT NOT NULL,
	city                TEXT NOT NULL,
	state               TEXT NOT NULL,
	zip_code            TEXT NOT NULL,
	country             TEXT NOT NULL,
	highest_degree      TEXT NOT NULL,
	institution         TEXT NOT NULL,
	graduation_year     INTEGER NOT NULL,
	field_of_study      TEXT NOT NULL,
	current_employer    TEXT NOT NULL DEFAULT '',
	job_title           TEXT NOT NULL DEFAULT '',
	years_of_experience INTEGER NOT NULL,
	skills              TEXT[] NOT NULL DEFAULT '{}',`

// IntakeSchema creates the intake service tables.
var IntakeSchema = []string{
	`CREATE TABLE IF NOT EXISTS applications (
	id             UUID PRIMARY KEY,
	application_id TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	session_id     TEXT NOT NULL DEFAULT '',` + applicantColumnsDDL + `
	thank_you_url  TEXT NOT NULL DEFAULT '',
	submitted_at   TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	CONSTRAINT ` + IntakeApplicationIDKey + ` UNIQUE (application_id),
	CONSTRAINT ` + IntakeTransactionIDKey + ` UNIQUE (transaction_id)
)`,
	`CREATE INDEX IF NOT EXISTS applications_submitted_at_idx ON applications (submitted_at DESC)`,
}

// CRMSchema creates the CRM service tables.
var CRMSchema = []string{
	`CREATE TABLE IF NOT EXISTS crm_applications (
	id                UUID PRIMARY KEY,
	application_id    TEXT NOT NULL,
	transaction_id    TEXT NOT NULL,
	session_id        TEXT NOT NULL DEFAULT '',` + applicantColumnsDDL + `
	thank_you_url     TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'new'
	                  CHECK (status IN ('new','reviewed','contacted','interviewed','hired','rejected')),
	assigned_to       TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	tags              TEXT[] NOT NULL DEFAULT '{}',
	last_contacted_at TIMESTAMPTZ,
	submitted_at      TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	CONSTRAINT ` + CRMApplicationIDKey + ` UNIQUE (application_id),
	CONSTRAINT ` + CRMTransactionIDKey + ` UNIQUE (transaction_id)
)`,
	`CREATE INDEX IF NOT EXISTS crm_applications_status_idx ON crm_applications (status)`,
	`CREATE INDEX IF NOT EXISTS crm_applications_submitted_at_idx ON crm_applications (submitted_at DESC)`,
}

// ApplicantColumns are the applicant-data columns shared by both stores, in
// the order used by ApplicantArgs and ApplicantDest.
var ApplicantColumns = []string{
	"first_name", "last_name", "email", "phone", "date_of_birth",
	"street", "city", "state", "zip_code", "country",
	"highest_degree", "institution", "graduation_year", "field_of_study",
	"current_employer", "job_title", "years_of_experience", "skills",
}

// ApplicantColumnList joins ApplicantColumns for use in SQL text.
func ApplicantColumnList() string {
	return strings.Join(ApplicantColumns, ", ")
}

func ApplicantArgs(a *models.Applicant) []interface{} {
	return []interface{}{
		a.FirstName, a.LastName, a.Email, a.Phone, a.DateOfBirth,
		a.Street, a.City, a.State, a.ZipCode, a.Country,
		a.HighestDegree, a.Institution, a.GraduationYear, a.FieldOfStudy,
		a.CurrentEmployer, a.JobTitle, a.YearsOfExperience, pq.Array(a.Skills),
	}
}

func ApplicantDest(a *models.Applicant) []interface{} {
	return []interface{}{
		&a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.DateOfBirth,
		&a.Street, &a.City, &a.State, &a.ZipCode, &a.Country,
		&a.HighestDegree, &a.Institution, &a.GraduationYear, &a.FieldOfStudy,
		&a.CurrentEmployer, &a.JobTitle, &a.YearsOfExperience, pq.Array(&a.Skills),
	}
}
