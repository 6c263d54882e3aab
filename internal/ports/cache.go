package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenRevocationStore remembers logged-out token ids until their natural
// expiry, so a bearer token stops validating as soon as its owner logs out.
type TokenRevocationStore interface {
	MarkRevoked(ctx context.Context, tokenID uuid.UUID, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID uuid.UUID) (bool, error)
}
