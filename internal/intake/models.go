// internal/intake/models.go
package intake

import "intake-crm/internal/models"

type SubmitResponse struct {
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	ApplicationID string                    `json:"applicationId"`
	TransactionID string                    `json:"transactionId"`
	SessionID     string                    `json:"sessionId"`
	ThankYouURL   string                    `json:"thankYouUrl"`
	Data          *models.ApplicationRecord `json:"data"`
}

type ListResponse struct {
	Success bool                       `json:"success"`
	Count   int                        `json:"count"`
	Data    []models.ApplicationRecord `json:"data"`
}

type GetResponse struct {
	Success bool                      `json:"success"`
	Data    *models.ApplicationRecord `json:"data"`
}

// Relayer forwards a committed record to the CRM without blocking the caller.
type Relayer interface {
	Dispatch(rec models.ApplicationRecord)
}
