// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

const (
	MinGraduationYear      = 1950
	GraduationYearLookhead = 10
	MinYearsOfExperience   = 0
	MaxYearsOfExperience   = 50
	MaxSkills              = 100

	phonePattern    = `^\+?[\d\s\-\(\)\.]{10,}$`
	nonBlankPattern = `\S`
)

type calendarDateChecker struct{}

func (calendarDateChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	_, err := models.ParseDate(s)
	return err == nil
}

func init() {
	gojsonschema.FormatCheckers.Add("calendar-date", calendarDateChecker{})
}

// Options tunes the applicant schema per entry point.
type Options struct {
	// RequireIdentifiers makes applicationId and transactionId mandatory, as on relayed payloads.
	RequireIdentifiers bool
	Now                time.Time
}

var requiredApplicantFields = []string{
	"firstName", "lastName", "email", "phone", "dateOfBirth",
	"street", "city", "state", "zipCode", "country",
	"highestDegree", "institution", "graduationYear", "fieldOfStudy",
	"yearsOfExperience",
}

// ApplicantSchema builds the JSON schema for an application body. The upper
// graduation year bound moves with the calendar, so the schema is built per call.
func ApplicantSchema(opts Options) map[string]interface{} {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	required := append([]string{}, requiredApplicantFields...)
	if opts.RequireIdentifiers {
		required = append(required, "applicationId", "transactionId")
	}

	text := func() map[string]interface{} {
		return map[string]interface{}{"type": "string", "minLength": 1, "pattern": nonBlankPattern}
	}
	optionalText := func() map[string]interface{} {
		return map[string]interface{}{"type": []string{"string", "null"}}
	}

	properties := map[string]interface{}{
		"applicationId": text(),
		"transactionId": text(),
		"sessionId":     optionalText(),
		"thankYouUrl":   optionalText(),

		"firstName":   text(),
		"lastName":    text(),
		"email":       map[string]interface{}{"type": "string", "format": "email"},
		"phone":       map[string]interface{}{"type": "string", "pattern": phonePattern},
		"dateOfBirth": map[string]interface{}{"type": "string", "format": "calendar-date"},

		"street":  text(),
		"city":    text(),
		"state":   text(),
		"zipCode": text(),
		"country": text(),

		"highestDegree": text(),
		"institution":   text(),
		"graduationYear": map[string]interface{}{
			"type":    "integer",
			"minimum": MinGraduationYear,
			"maximum": now.Year() + GraduationYearLookhead,
		},
		"fieldOfStudy": text(),

		"currentEmployer": optionalText(),
		"jobTitle":        optionalText(),
		"yearsOfExperience": map[string]interface{}{
			"type":    "integer",
			"minimum": MinYearsOfExperience,
			"maximum": MaxYearsOfExperience,
		},
		"skills": map[string]interface{}{
			"type":     []string{"array", "null"},
			"maxItems": MaxSkills,
			"items":    map[string]interface{}{"type": "string"},
		},
	}

	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": true,
	}
}

// ValidateApplicant validates a raw JSON body against ApplicantSchema and
// returns field-level errors sorted by field. A nil slice means the body is valid.
func ValidateApplicant(raw []byte, opts Options) ([]apperrors.FieldError, error) {
	schemaLoader := gojsonschema.NewGoLoader(ApplicantSchema(opts))
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	fieldErrors := make([]apperrors.FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		fieldErrors = append(fieldErrors, apperrors.FieldError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	sort.SliceStable(fieldErrors, func(i, j int) bool {
		return fieldErrors[i].Field < fieldErrors[j].Field
	})
	return fieldErrors, nil
}

func fieldName(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop
		}
	}
	return desc.Field()
}

// ValidatePatchStatus validates a CRM status value.
func ValidatePatchStatus(value string) *apperrors.FieldError {
	if _, err := models.ParseStatus(value); err != nil {
		return &apperrors.FieldError{Field: "status", Message: err.Error(), Code: "INVALID_ENUM_VALUE"}
	}
	return nil
}
