// internal/models/application.go
package models

import (
	"strings"
	"time"
)

// Applicant holds the applicant-submitted fields. Both stores keep an identical copy.
type Applicant struct {
	// Personal information
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth Date   `json:"dateOfBirth"`

	// Address
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`

	// Education
	HighestDegree  string `json:"highestDegree"`
	Institution    string `json:"institution"`
	GraduationYear int    `json:"graduationYear"`
	FieldOfStudy   string `json:"fieldOfStudy"`

	// Work experience
	CurrentEmployer   string   `json:"currentEmployer,omitempty"`
	JobTitle          string   `json:"jobTitle,omitempty"`
	YearsOfExperience int      `json:"yearsOfExperience"`
	Skills            []string `json:"skills"`
}

// Normalize trims string fields, lower-cases the email and drops blank skill tags.
func (a *Applicant) Normalize() {
	for _, f := range []*string{
		&a.FirstName, &a.LastName, &a.Email, &a.Phone,
		&a.Street, &a.City, &a.State, &a.ZipCode, &a.Country,
		&a.HighestDegree, &a.Institution, &a.FieldOfStudy,
		&a.CurrentEmployer, &a.JobTitle,
	} {
		*f = strings.TrimSpace(*f)
	}
	a.Email = strings.ToLower(a.Email)

	skills := make([]string, 0, len(a.Skills))
	for _, s := range a.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	a.Skills = skills
}

// ApplicationRecord is the canonical application shape. ID is the owning
// store's opaque id; ApplicationID is the join key between stores.
type ApplicationRecord struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	TransactionID string `json:"transactionId"`
	SessionID     string `json:"sessionId,omitempty"`

	Applicant

	ThankYouURL string    `json:"thankYouUrl,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ApplicationInput is the submit body. Identifiers and thankYouUrl are optional.
type ApplicationInput struct {
	ApplicationID string `json:"applicationId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	ThankYouURL   string `json:"thankYouUrl,omitempty"`

	Applicant
}
