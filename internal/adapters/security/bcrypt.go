package security

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes the portal's local-account passwords. Only bootstrap
// admin accounts carry a password; SSO accounts have no hash at all.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher builds a hasher with the configured cost, falling back to
// the bcrypt default for non-positive values.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
