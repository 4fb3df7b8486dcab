// internal/crm/models.go
package crm

import (
	"time"

	"intake-crm/internal/models"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// QueryParams filters, sorts and pages CRM records. Page is 1-based.
type QueryParams struct {
	Status    models.Status
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (p QueryParams) offset() int {
	return (p.Page - 1) * p.Limit
}

type QueryResult struct {
	Items []models.CRMRecord
	Total int
}

type IngestResult struct {
	Created       bool   `json:"created"`
	ApplicationID string `json:"applicationId"`
}

// OptionalTime distinguishes an absent value from an explicit null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// Patch holds the CRM-mutable fields of an update. Nil means untouched.
type Patch struct {
	Status          *models.Status
	AssignedTo      *string
	Notes           *string
	Tags            *[]string
	LastContactedAt OptionalTime
}

// mutableFields lists the JSON keys a patch may carry.
var mutableFields = map[string]bool{
	"status":          true,
	"assignedTo":      true,
	"notes":           true,
	"tags":            true,
	"lastContactedAt": true,
}

type WebhookResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ApplicationID string `json:"applicationId"`
}

type ListResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	Data    []models.CRMRecord `json:"data"`
}

type RecordResponse struct {
	Success bool              `json:"success"`
	Data    *models.CRMRecord `json:"data"`
}
