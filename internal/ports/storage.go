package ports

import (
	"context"
	"io"
	"time"
)

type PutResult struct {
	Key  string
	ETag string
}

// ObjectStore is the object-storage gateway boundary. Signed URLs embed their
// own expiry; the store offers no server-side revocation, so issuing several
// URLs for the same key is harmless.
type ObjectStore interface {
	Put(ctx context.Context, key string, payload io.Reader, contentType string) (PutResult, error)
	// SignURL returns a capability URL authorizing a single GET until now+ttl.
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
