// internal/intake/service.go
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"intake-crm/internal/common/database"
	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/common/logger"
	"intake-crm/internal/common/validation"
	"intake-crm/internal/models"

	"github.com/google/uuid"
)

// Service implements submit, get and list over the intake store.
type Service struct {
	config *Config
	store  Store
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(config *Config, store Store, log logger.Logger) *Service {
	return &Service{
		config: config,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "intake-service"}),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Submit validates a raw application body, assigns identifiers, resolves the
// thank-you URL and persists the record in one write.
func (s *Service) Submit(ctx context.Context, body []byte) (*models.ApplicationRecord, error) {
	now := s.now()

	fieldErrors, err := validation.ValidateApplicant(body, validation.Options{Now: now})
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("request body must be a JSON object")
	}
	if len(fieldErrors) > 0 {
		return nil, apperrors.NewValidationError(fieldErrors)
	}

	var input models.ApplicationInput
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	input.Applicant.Normalize()

	rec := s.buildRecord(&input, now)

	s.logger.Info("Application submit attempt", map[string]interface{}{
		"event":         "submit_attempt",
		"applicationId": rec.ApplicationID,
		"sessionId":     rec.SessionID,
	})

	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, s.mapInsertError(rec, err)
	}

	s.logger.Info("Application submitted", map[string]interface{}{
		"event":         "submit_success",
		"applicationId": rec.ApplicationID,
		"transactionId": rec.TransactionID,
	})
	return rec, nil
}

func (s *Service) buildRecord(input *models.ApplicationInput, now time.Time) *models.ApplicationRecord {
	rec := &models.ApplicationRecord{
		ID:            s.newID(),
		ApplicationID: input.ApplicationID,
		TransactionID: input.TransactionID,
		SessionID:     input.SessionID,
		Applicant:     input.Applicant,
		ThankYouURL:   input.ThankYouURL,
		SubmittedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if rec.ApplicationID == "" {
		rec.ApplicationID = s.newID()
	}
	if rec.TransactionID == "" {
		rec.TransactionID = s.newID()
	}
	if rec.SessionID == "" {
		rec.SessionID = s.newID()
	}
	if rec.ThankYouURL == "" {
		rec.ThankYouURL = s.config.ThankYouURL(rec.ApplicationID)
	}
	return rec
}

func (s *Service) mapInsertError(rec *models.ApplicationRecord, err error) error {
	if constraint, ok := database.UniqueViolationConstraint(err); ok {
		switch constraint {
		case database.IntakeTransactionIDKey:
			return apperrors.NewConflictError("transactionId", rec.TransactionID)
		default:
			return apperrors.NewConflictError("applicationId", rec.ApplicationID)
		}
	}
	return apperrors.NewPersistenceError("submitting application", err)
}

// Get looks a record up by storage id first, then by applicationId.
func (s *Service) Get(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	if _, err := uuid.Parse(id); err == nil {
		rec, err := s.store.FindByID(ctx, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, apperrors.NewPersistenceError("fetching application", err)
		}
	}

	rec, err := s.store.FindByApplicationID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError(id)
		}
		return nil, apperrors.NewPersistenceError("fetching application", err)
	}
	return rec, nil
}

// List returns every record, newest submission first.
func (s *Service) List(ctx context.Context) ([]models.ApplicationRecord, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("fetching applications", err)
	}
	return records, nil
}
