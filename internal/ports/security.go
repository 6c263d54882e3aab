package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

type AuthClaims struct {
	UserID    uuid.UUID
	Username  string
	Role      string
	TokenID   uuid.UUID
	TokenUse  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	KeyID     string
}

type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(raw string) (AuthClaims, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// SSOProfile is the identity returned by the DingTalk code-for-profile exchange.
type SSOProfile struct {
	UnionID string
	UserID  string
	Name    string
	Nick    string
	Avatar  string
	Mobile  string
	Email   string
}

// SSOVerifier exchanges a one-time authorization code for a user profile.
type SSOVerifier interface {
	ExchangeCode(ctx context.Context, code string) (SSOProfile, error)
}
