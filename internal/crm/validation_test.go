// internal/crm/validation_test.go
package crm

import (
	"net/url"
	"testing"

	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryParams_Defaults(t *testing.T) {
	params, err := ParseQueryParams(url.Values{}, &Config{})

	require.NoError(t, err)
	assert.Equal(t, QueryParams{Page: 1, Limit: 50, SortBy: "submittedAt", SortOrder: SortDesc}, params)
}

func TestParseQueryParams_AllFields(t *testing.T) {
	values := url.Values{
		"status":    {"contacted"},
		"search":    {"  alice "},
		"page":      {"3"},
		"limit":     {"10"},
		"sortBy":    {"lastName"},
		"sortOrder": {"ASC"},
	}

	params, err := ParseQueryParams(values, &Config{})

	require.NoError(t, err)
	assert.Equal(t, models.StatusContacted, params.Status)
	assert.Equal(t, "alice", params.Search)
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, "lastName", params.SortBy)
	assert.Equal(t, SortAsc, params.SortOrder)
	assert.Equal(t, 20, params.offset())
}

func TestParseQueryParams_ClampsLimit(t *testing.T) {
	params, err := ParseQueryParams(url.Values{"limit": {"5000"}}, &Config{MaxLimit: 100})

	require.NoError(t, err)
	assert.Equal(t, 100, params.Limit)
}

func TestParseQueryParams_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown status", "status", "archived"},
		{"zero page", "page", "0"},
		{"text page", "page", "two"},
		{"page past offset range", "page", "2147483648"},
		{"page overflowing int", "page", "9223372036854775807"},
		{"negative limit", "limit", "-1"},
		{"unknown sort", "sortBy", "ssn"},
		{"bad order", "sortOrder", "sideways"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQueryParams(url.Values{tt.key: {tt.value}}, &Config{})

			require.Error(t, err)
			stdErr := apperrors.As(err)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
			require.Len(t, stdErr.Fields, 1)
			assert.Equal(t, tt.key, stdErr.Fields[0].Field)
		})
	}
}

func TestParseQueryParams_LargestPageKeepsOffsetPositive(t *testing.T) {
	params, err := ParseQueryParams(url.Values{"page": {"2147483647"}, "limit": {"200"}}, &Config{})

	require.NoError(t, err)
	assert.Equal(t, int64(2147483646)*200, int64(params.offset()))
	assert.Positive(t, params.offset())
}

func TestDecodePatch_MutableFields(t *testing.T) {
	patch, err := DecodePatch([]byte(`{
		"status": "interviewed",
		"assignedTo": " sam ",
		"notes": null,
		"tags": ["a", " ", "b "],
		"lastContactedAt": "2025-03-01T10:00:00+02:00"
	}`))

	require.NoError(t, err)
	require.NotNil(t, patch.Status)
	assert.Equal(t, models.StatusInterviewed, *patch.Status)
	assert.Equal(t, "sam", *patch.AssignedTo)
	assert.Equal(t, "", *patch.Notes)
	assert.Equal(t, []string{"a", "b"}, *patch.Tags)
	assert.True(t, patch.LastContactedAt.Set)
	require.NotNil(t, patch.LastContactedAt.Value)
	assert.Equal(t, 8, patch.LastContactedAt.Value.Hour())
}

func TestDecodePatch_NullClearsLastContacted(t *testing.T) {
	patch, err := DecodePatch([]byte(`{"lastContactedAt": null}`))

	require.NoError(t, err)
	assert.True(t, patch.LastContactedAt.Set)
	assert.Nil(t, patch.LastContactedAt.Value)
	assert.Nil(t, patch.Status)
}

func TestDecodePatch_RejectsImmutableFields(t *testing.T) {
	_, err := DecodePatch([]byte(`{"status": "reviewed", "email": "x@y.com", "applicationId": "other"}`))

	require.Error(t, err)
	stdErr := apperrors.As(err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
	require.Len(t, stdErr.Fields, 2)
	assert.Equal(t, "applicationId", stdErr.Fields[0].Field)
	assert.Equal(t, "email", stdErr.Fields[1].Field)
	assert.Equal(t, "IMMUTABLE_FIELD", stdErr.Fields[1].Code)
}

func TestDecodePatch_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad status", `{"status":"archived"}`, "status"},
		{"numeric status", `{"status":3}`, "status"},
		{"tags not list", `{"tags":"a,b"}`, "tags"},
		{"notes not string", `{"notes":42}`, "notes"},
		{"bad timestamp", `{"lastContactedAt":"yesterday"}`, "lastContactedAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePatch([]byte(tt.body))

			require.Error(t, err)
			stdErr := apperrors.As(err)
			require.NotEmpty(t, stdErr.Fields)
			assert.Equal(t, tt.field, stdErr.Fields[0].Field)
		})
	}
}

func TestDecodePatch_EmptyOrMalformed(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, `null`, `not json`} {
		_, err := DecodePatch([]byte(body))
		require.Error(t, err, body)
		assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.As(err).Code, body)
	}
}
