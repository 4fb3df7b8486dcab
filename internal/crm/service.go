// internal/crm/service.go
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"intake-crm/internal/common/database"
	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/common/logger"
	"intake-crm/internal/common/metrics"
	"intake-crm/internal/common/validation"
	"intake-crm/internal/models"

	"github.com/google/uuid"
)

// Service implements the CRM upsert, query and update operations.
type Service struct {
	config   *Config
	store    Store
	search   Searcher
	notifier *Notifier
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
	wg       sync.WaitGroup
}

// NewService wires the CRM service. search and notifier are optional.
func NewService(config *Config, store Store, search Searcher, notifier *Notifier, log logger.Logger) *Service {
	return &Service{
		config:   config,
		store:    store,
		search:   search,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "crm-service"}),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Ingest creates the CRM record for a relayed application unless one already
// exists for its applicationId. Redelivery is a no-op.
func (s *Service) Ingest(ctx context.Context, body []byte) (*IngestResult, error) {
	now := s.now()

	fieldErrors, err := validation.ValidateApplicant(body, validation.Options{Now: now, RequireIdentifiers: true})
	if err != nil {
		metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, apperrors.NewInvalidRequestError("request body must be a JSON object")
	}
	if len(fieldErrors) > 0 {
		metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, apperrors.NewValidationError(fieldErrors)
	}

	var payload models.ApplicationRecord
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	payload.Applicant.Normalize()

	result := &IngestResult{ApplicationID: payload.ApplicationID}

	existing, err := s.store.FindByApplicationID(ctx, payload.ApplicationID)
	switch {
	case err == nil && existing != nil:
		s.logDuplicate(payload.ApplicationID, "existing")
		return result, nil
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.NewPersistenceError("saving application to CRM", err)
	}

	rec := models.NewCRMRecord(payload, now)
	rec.ID = s.newID()

	created, err := s.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		if constraint, ok := database.UniqueViolationConstraint(err); ok {
			if constraint == database.CRMTransactionIDKey {
				metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeError).Inc()
				return nil, apperrors.NewConflictError("transactionId", rec.TransactionID)
			}
			s.logDuplicate(payload.ApplicationID, "race")
			return result, nil
		}
		metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.NewPersistenceError("saving application to CRM", err)
	}
	if !created {
		s.logDuplicate(payload.ApplicationID, "race")
		return result, nil
	}

	result.Created = true
	metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeCreated).Inc()
	s.logger.Info("Application saved to CRM", map[string]interface{}{
		"event":         "crm_ingest_created",
		"applicationId": rec.ApplicationID,
		"transactionId": rec.TransactionID,
	})

	s.afterCreate(ctx, rec)
	return result, nil
}

// afterCreate indexes and announces a new record in the background so the
// webhook response does not wait on Elasticsearch or AWS.
func (s *Service) afterCreate(ctx context.Context, rec *models.CRMRecord) {
	if s.search == nil && s.notifier == nil {
		return
	}

	// detached from the request context
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reindex(bg, rec)
		s.notifier.NotifyCreated(bg, rec)
	}()
}

// Wait blocks until background indexing and notifications finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) logDuplicate(applicationID, via string) {
	metrics.CRMWebhookIngest.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	s.logger.Info("Application already exists", map[string]interface{}{
		"event":         "crm_ingest_duplicate",
		"applicationId": applicationID,
		"detectedBy":    via,
	})
}

// Query pages through CRM records. Free-text searches go to the search index
// when one is configured and fall back to the database if it fails.
func (s *Service) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	if params.Search != "" && s.search != nil {
		result, err := s.querySearchIndex(ctx, params)
		if err == nil {
			return result, nil
		}
		s.logger.Warn("Search index query failed, falling back to database", map[string]interface{}{
			"event": "crm_search_fallback",
			"error": err.Error(),
		})
	}

	result, err := s.store.Query(ctx, params)
	if err != nil {
		return nil, apperrors.NewPersistenceError("fetching applications", err)
	}
	return result, nil
}

func (s *Service) querySearchIndex(ctx context.Context, params QueryParams) (*QueryResult, error) {
	ids, total, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	items, err := s.store.FindByApplicationIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Items: items, Total: total}, nil
}

// Get looks a record up by storage id first, then by applicationId.
func (s *Service) Get(ctx context.Context, id string) (*models.CRMRecord, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, apperrors.NewPersistenceError("fetching application", err)
	}

	rec, err = s.store.FindByApplicationID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError(id)
		}
		return nil, apperrors.NewPersistenceError("fetching application", err)
	}
	return rec, nil
}

// Update applies a raw patch body to the record matching id. Applicant data
// and identifiers are never touched.
func (s *Service) Update(ctx context.Context, id string, body []byte) (*models.CRMRecord, error) {
	patch, err := DecodePatch(body)
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, current.ID, patch, s.now())
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError(id)
		}
		return nil, apperrors.NewPersistenceError("updating application", err)
	}

	s.logger.Info("Application updated", map[string]interface{}{
		"event":         "crm_update",
		"applicationId": updated.ApplicationID,
		"status":        string(updated.Status),
	})

	s.reindex(ctx, updated)
	return updated, nil
}

func (s *Service) reindex(ctx context.Context, rec *models.CRMRecord) {
	if s.search == nil {
		return
	}
	if err := s.search.Index(ctx, rec); err != nil {
		s.logger.Warn("Search index update failed", map[string]interface{}{
			"event":         "crm_index_failed",
			"applicationId": rec.ApplicationID,
			"error":         err.Error(),
		})
	}
}
