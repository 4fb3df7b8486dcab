// internal/crm/validation.go
package crm

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/common/validation"
	"intake-crm/internal/models"
)

// sortColumns whitelists sortable fields and maps them to columns.
var sortColumns = map[string]string{
	"submittedAt":     "submitted_at",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
	"lastContactedAt": "last_contacted_at",
	"firstName":       "first_name",
	"lastName":        "last_name",
	"email":           "email",
	"status":          "status",
}

// maxPage keeps (page-1)*limit within a valid OFFSET.
const maxPage = math.MaxInt32

// ParseQueryParams reads list parameters from a query string.
func ParseQueryParams(values url.Values, cfg *Config) (QueryParams, error) {
	params := QueryParams{
		Search:    strings.TrimSpace(values.Get("search")),
		Page:      1,
		Limit:     cfg.defaultLimit(),
		SortBy:    "submittedAt",
		SortOrder: SortDesc,
	}
	var fieldErrors []apperrors.FieldError

	if raw := values.Get("status"); raw != "" {
		if fe := validation.ValidatePatchStatus(raw); fe != nil {
			fieldErrors = append(fieldErrors, *fe)
		} else {
			params.Status = models.Status(raw)
		}
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > maxPage {
			fieldErrors = append(fieldErrors, apperrors.FieldError{Field: "page", Message: "must be a positive integer no greater than 2147483647", Code: "INVALID_VALUE"})
		} else {
			params.Page = page
		}
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			fieldErrors = append(fieldErrors, apperrors.FieldError{Field: "limit", Message: "must be a positive integer", Code: "INVALID_VALUE"})
		} else {
			params.Limit = limit
		}
	}
	if params.Limit > cfg.maxLimit() {
		params.Limit = cfg.maxLimit()
	}

	if raw := values.Get("sortBy"); raw != "" {
		if _, ok := sortColumns[raw]; !ok {
			fieldErrors = append(fieldErrors, apperrors.FieldError{Field: "sortBy", Message: "unsupported sort field", Code: "INVALID_VALUE"})
		} else {
			params.SortBy = raw
		}
	}

	if raw := strings.ToLower(values.Get("sortOrder")); raw != "" {
		if raw != SortAsc && raw != SortDesc {
			fieldErrors = append(fieldErrors, apperrors.FieldError{Field: "sortOrder", Message: "must be asc or desc", Code: "INVALID_VALUE"})
		} else {
			params.SortOrder = raw
		}
	}

	if len(fieldErrors) > 0 {
		return QueryParams{}, apperrors.NewValidationError(fieldErrors)
	}
	return params, nil
}

// DecodePatch parses an update body. Any key outside the CRM-mutable set
// rejects the whole patch.
func DecodePatch(body []byte) (*Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, apperrors.NewInvalidRequestError("request body must be a JSON object")
	}
	if len(raw) == 0 {
		return nil, apperrors.NewInvalidRequestError("no updatable fields supplied")
	}

	var fieldErrors []apperrors.FieldError
	for key := range raw {
		if !mutableFields[key] {
			fieldErrors = append(fieldErrors, apperrors.FieldError{Field: key, Message: "field cannot be modified", Code: "IMMUTABLE_FIELD"})
		}
	}

	patch := &Patch{}
	invalid := func(field, msg string) {
		fieldErrors = append(fieldErrors, apperrors.FieldError{Field: field, Message: msg, Code: "INVALID_VALUE"})
	}

	if v, ok := raw["status"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			invalid("status", "must be a string")
		} else if fe := validation.ValidatePatchStatus(s); fe != nil {
			fieldErrors = append(fieldErrors, *fe)
		} else {
			st := models.Status(s)
			patch.Status = &st
		}
	}

	for _, field := range []struct {
		key string
		dst **string
	}{{"assignedTo", &patch.AssignedTo}, {"notes", &patch.Notes}} {
		v, ok := raw[field.key]
		if !ok {
			continue
		}
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			invalid(field.key, "must be a string or null")
			continue
		}
		value := ""
		if s != nil {
			value = strings.TrimSpace(*s)
		}
		*field.dst = &value
	}

	if v, ok := raw["tags"]; ok {
		var tags []string
		if err := json.Unmarshal(v, &tags); err != nil {
			invalid("tags", "must be a list of strings")
		} else {
			cleaned := make([]string, 0, len(tags))
			for _, tag := range tags {
				if tag = strings.TrimSpace(tag); tag != "" {
					cleaned = append(cleaned, tag)
				}
			}
			patch.Tags = &cleaned
		}
	}

	if v, ok := raw["lastContactedAt"]; ok {
		patch.LastContactedAt.Set = true
		if !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			var ts time.Time
			if err := json.Unmarshal(v, &ts); err != nil {
				invalid("lastContactedAt", "must be an RFC 3339 timestamp or null")
			} else {
				ts = ts.UTC()
				patch.LastContactedAt.Value = &ts
			}
		}
	}

	if len(fieldErrors) > 0 {
		sort.SliceStable(fieldErrors, func(i, j int) bool { return fieldErrors[i].Field < fieldErrors[j].Field })
		return nil, apperrors.NewValidationError(fieldErrors)
	}
	return patch, nil
}
