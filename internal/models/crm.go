// internal/models/crm.go
package models

import (
	"fmt"
	"time"
)

// Status is the CRM lifecycle state of an application.
type Status string

const (
	StatusNew         Status = "new"
	StatusReviewed    Status = "reviewed"
	StatusContacted   Status = "contacted"
	StatusInterviewed Status = "interviewed"
	StatusHired       Status = "hired"
	StatusRejected    Status = "rejected"
)

// AllStatuses lists every state. Any state may move to any other; new is the only initial state.
var AllStatuses = []Status{
	StatusNew, StatusReviewed, StatusContacted, StatusInterviewed, StatusHired, StatusRejected,
}

func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("status must be one of %v", AllStatuses)
	}
	return st, nil
}

// CRMRecord is the CRM-side copy of an application. The embedded record is a
// copy-on-create snapshot; only the CRM fields below change afterwards.
type CRMRecord struct {
	ApplicationRecord

	Status          Status     `json:"status"`
	AssignedTo      string     `json:"assignedTo,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Tags            []string   `json:"tags"`
	LastContactedAt *time.Time `json:"lastContactedAt,omitempty"`
}

// NewCRMRecord snapshots a relayed record into a fresh CRM record.
func NewCRMRecord(src ApplicationRecord, now time.Time) *CRMRecord {
	rec := &CRMRecord{
		ApplicationRecord: src,
		Status:            StatusNew,
		Tags:              []string{},
	}
	rec.ID = ""
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = now
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Skills == nil {
		rec.Skills = []string{}
	}
	return rec
}
