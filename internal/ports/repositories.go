package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/domain"
)

// SoftwareQuery narrows the catalog listing. Zero values mean "no filter";
// Published is a tri-state so admins can request unpublished entries too.
type SoftwareQuery struct {
	Published *bool
	Category  string
	Platform  string
	Limit     int
	Offset    int
}

type SoftwareUpdate struct {
	Name          *string
	Version       *string
	Description   *string
	Category      *string
	Platforms     []string
	SizeBytes     *int64
	Icon          *string
	OSSKey        *string
	IsPublished   *bool
	IsRecommended *bool
	// ClearDownloadURL drops the cached signed URL and its expiry in the same
	// statement as the rest of the update. Set when the object key changes.
	ClearDownloadURL bool
}

type SoftwareRepository interface {
	Create(ctx context.Context, row domain.SoftwareEntry) error
	GetByID(ctx context.Context, softwareID uuid.UUID) (*domain.SoftwareEntry, error)
	List(ctx context.Context, q SoftwareQuery) ([]domain.SoftwareEntry, int64, error)
	Search(ctx context.Context, keyword string, publishedOnly bool, limit, offset int) ([]domain.SoftwareEntry, int64, error)
	ListRecommended(ctx context.Context, limit int) ([]domain.SoftwareEntry, error)
	Update(ctx context.Context, softwareID uuid.UUID, upd SoftwareUpdate, at time.Time) error
	// SetDownloadURL persists a freshly signed URL together with its expiry.
	// Both fields are written in a single statement so any stored URL always
	// validates against the stored expiry.
	SetDownloadURL(ctx context.Context, softwareID uuid.UUID, url string, expires time.Time) error
	// IncrementDownloads bumps the counter by exactly one using a store-native
	// atomic update, so concurrent increments are never lost.
	IncrementDownloads(ctx context.Context, softwareID uuid.UUID) error
	// ListExpiring returns entries with a backing object whose cached URL is
	// missing or expires before threshold.
	ListExpiring(ctx context.Context, threshold time.Time, limit int) ([]domain.SoftwareEntry, error)
	Delete(ctx context.Context, softwareID uuid.UUID) error
}

type DownloadEventRepository interface {
	Append(ctx context.Context, row domain.DownloadEvent) error
	ListBySoftware(ctx context.Context, softwareID uuid.UUID, limit, offset int) ([]domain.DownloadEvent, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.DownloadEvent, int64, error)
	// Count tallies success events, optionally scoped to one entry and/or a
	// lower time bound.
	Count(ctx context.Context, softwareID *uuid.UUID, since *time.Time) (int64, error)
}

type UserUpdate struct {
	DisplayName *string
	Email       *string
	Mobile      *string
	Avatar      *string
	Department  *string
	Position    *string
	Role        *string
	IsActive    *bool
}

type UserRepository interface {
	Create(ctx context.Context, row domain.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	GetByDingTalkID(ctx context.Context, dingtalkID string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, int64, error)
	Update(ctx context.Context, userID uuid.UUID, upd UserUpdate, at time.Time) error
	TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, userID uuid.UUID) error
}
