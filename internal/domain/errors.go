package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether username or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrTokenExpired       = errors.New("token expired")
	ErrSessionRevoked     = errors.New("session revoked")

	// ErrPackageUnavailable signals an entry with no backing object in storage;
	// no download can be produced for it and the caller should not retry.
	ErrPackageUnavailable = errors.New("package unavailable")
	// ErrLinkGeneration is returned when the object store cannot sign a URL.
	// The stored URL and expiry are left untouched, so retrying the whole
	// operation is safe.
	ErrLinkGeneration = errors.New("link generation failed")
	// ErrGateway covers transport/auth failures against object storage outside
	// of the signing path (upload, delete).
	ErrGateway = errors.New("object storage gateway error")
	// ErrSSOExchange is returned when the DingTalk code-for-profile exchange fails.
	ErrSSOExchange = errors.New("sso code exchange failed")
	// ErrNotWhitelisted rejects SSO profiles outside the configured allow list.
	ErrNotWhitelisted = errors.New("account not permitted to sign in")
)
