// internal/crm/search.go
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"intake-crm/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// IndexMapping is the CRM search index mapping. Name and email fields carry
// a keyword subfield for sorting.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "applicationId":   {"type": "keyword"},
      "firstName":       {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "lastName":        {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "fullName":        {"type": "text"},
      "email":           {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "status":          {"type": "keyword"},
      "submittedAt":     {"type": "date"},
      "createdAt":       {"type": "date"},
      "updatedAt":       {"type": "date"},
      "lastContactedAt": {"type": "date"}
    }
  }
}`

// Searcher finds applicationIds matching a free-text query.
type Searcher interface {
	Index(ctx context.Context, rec *models.CRMRecord) error
	Search(ctx context.Context, params QueryParams) ([]string, int, error)
}

type SearchIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewSearchIndex(client *elasticsearch.Client, index string) *SearchIndex {
	return &SearchIndex{client: client, index: index}
}

type searchDocument struct {
	ApplicationID   string        `json:"applicationId"`
	FirstName       string        `json:"firstName"`
	LastName        string        `json:"lastName"`
	FullName        string        `json:"fullName"`
	Email           string        `json:"email"`
	Status          models.Status `json:"status"`
	SubmittedAt     string        `json:"submittedAt"`
	CreatedAt       string        `json:"createdAt"`
	UpdatedAt       string        `json:"updatedAt"`
	LastContactedAt *string       `json:"lastContactedAt,omitempty"`
}

func newSearchDocument(rec *models.CRMRecord) searchDocument {
	const layout = "2006-01-02T15:04:05.000Z07:00"
	doc := searchDocument{
		ApplicationID: rec.ApplicationID,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		FullName:      strings.TrimSpace(rec.FirstName + " " + rec.LastName),
		Email:         rec.Email,
		Status:        rec.Status,
		SubmittedAt:   rec.SubmittedAt.UTC().Format(layout),
		CreatedAt:     rec.CreatedAt.UTC().Format(layout),
		UpdatedAt:     rec.UpdatedAt.UTC().Format(layout),
	}
	if rec.LastContactedAt != nil {
		ts := rec.LastContactedAt.UTC().Format(layout)
		doc.LastContactedAt = &ts
	}
	return doc
}

// Index upserts the record's document, keyed by applicationId.
func (s *SearchIndex) Index(ctx context.Context, rec *models.CRMRecord) error {
	body, err := json.Marshal(newSearchDocument(rec))
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.ApplicationID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index error: %s", res.Status())
	}
	return nil
}

// Search returns the page of matching applicationIds in rank order plus the total hit count.
func (s *SearchIndex) Search(ctx context.Context, params QueryParams) ([]string, int, error) {
	body, err := json.Marshal(buildSearchQuery(params))
	if err != nil {
		return nil, 0, err
	}

	from := params.offset()
	size := params.Limit
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, 0, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("search error: %s", res.Status())
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source struct {
					ApplicationID string `json:"applicationId"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}

	ids := make([]string, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		ids = append(ids, hit.Source.ApplicationID)
	}
	return ids, result.Hits.Total.Value, nil
}

var keywordSortFields = map[string]bool{"firstName": true, "lastName": true, "email": true}

func buildSearchQuery(params QueryParams) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  params.Search,
					"fields": []string{"firstName^2", "lastName^2", "fullName", "email"},
					"type":   "best_fields",
				},
			},
		},
	}

	if params.Status != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"status": string(params.Status)}},
		}
	}

	sortField := params.SortBy
	if sortField == "" {
		sortField = "submittedAt"
	}
	if keywordSortFields[sortField] {
		sortField += ".keyword"
	}
	order := params.SortOrder
	if order == "" {
		order = SortDesc
	}

	return map[string]interface{}{
		"query":            map[string]interface{}{"bool": boolQuery},
		"_source":          []string{"applicationId"},
		"track_total_hits": true,
		"sort": []interface{}{
			map[string]interface{}{sortField: map[string]interface{}{"order": order, "missing": "_last"}},
			map[string]interface{}{"applicationId": map[string]interface{}{"order": SortAsc}},
		},
	}
}
