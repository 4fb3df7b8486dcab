// internal/session/store.go
package session

import (
	"context"
	"errors"

	"intake-crm/internal/models"
)

// ErrInvalidToken is returned for unknown, revoked or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Store issues and checks opaque CRM session tokens.
type Store interface {
	Create(ctx context.Context, username string) (*models.Session, error)
	Verify(ctx context.Context, token string) (*models.Session, error)
	Revoke(ctx context.Context, token string) (bool, error)
}
