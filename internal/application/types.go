package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/domain"
)

// Config carries the tunable policy knobs of the portal use-cases. Zero
// values are replaced by the defaults below in NewService callers; the
// bootstrap layer fills them from YAML and environment.
type Config struct {
	// OnDemandURLTTL is the validity window of links signed lazily at
	// download time.
	OnDemandURLTTL time.Duration
	// PublishURLTTL is the validity window of links signed at publish and
	// by the proactive refresh sweep.
	PublishURLTTL time.Duration
	// SweepHorizon is how far ahead of now the sweep treats a link as
	// expiring.
	SweepHorizon time.Duration
	// SweepBatchSize bounds a single sweep pass.
	SweepBatchSize int

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	DefaultPageSize int
	MaxPageSize     int

	MaxUploadBytes    int64
	AllowedExtensions []string

	DingTalkAppID       string
	DingTalkRedirectURI string
	// FrontendURL is where the SSO callback bounces the browser back to.
	FrontendURL string
}

const (
	defaultOnDemandURLTTL  = time.Hour
	defaultPublishURLTTL   = 7 * 24 * time.Hour
	defaultSweepHorizon    = 72 * time.Hour
	defaultSweepBatchSize  = 200
	defaultAccessTokenTTL  = 24 * time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultPageSize        = 10
	defaultMaxPageSize     = 100
	defaultMaxUploadBytes  = 2 << 30
)

func (c Config) withDefaults() Config {
	if c.OnDemandURLTTL <= 0 {
		c.OnDemandURLTTL = defaultOnDemandURLTTL
	}
	if c.PublishURLTTL <= 0 {
		c.PublishURLTTL = defaultPublishURLTTL
	}
	if c.SweepHorizon <= 0 {
		c.SweepHorizon = defaultSweepHorizon
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = defaultSweepBatchSize
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = defaultAccessTokenTTL
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = defaultRefreshTokenTTL
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = defaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = defaultMaxPageSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{".exe", ".zip", ".msi", ".dmg", ".deb", ".rpm", ".pkg", ".appimage"}
	}
	if c.FrontendURL == "" {
		c.FrontendURL = "http://localhost:8080"
	}
	return c
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	UserID   uuid.UUID
	Username string
	Role     string
}

func (a Actor) isAdmin() bool { return a.Role == domain.RoleAdmin }

type Pagination struct {
	Page     int
	PageSize int
}

func (s *Service) clampPage(p Pagination) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = s.cfg.DefaultPageSize
	}
	if p.PageSize > s.cfg.MaxPageSize {
		p.PageSize = s.cfg.MaxPageSize
	}
	return p
}

func pageCount(total int64, size int) int {
	if total == 0 || size <= 0 {
		return 0
	}
	pages := int(total) / size
	if int(total)%size != 0 {
		pages++
	}
	return pages
}

// SoftwarePage is one page of catalog results.
type SoftwarePage struct {
	Items []domain.SoftwareEntry
	Total int64
	Page  int
	Pages int
}

// CreateSoftwareInput carries the publishable fields of a new catalog entry.
type CreateSoftwareInput struct {
	Name          string
	Version       string
	Description   string
	Category      string
	Platforms     []string
	SizeBytes     int64
	Icon          string
	OSSKey        string
	IsPublished   bool
	IsRecommended bool
}

// UpdateSoftwareInput uses pointers so absent fields stay untouched.
type UpdateSoftwareInput struct {
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
}

// DownloadGrant is the payload handed back to a download caller.
type DownloadGrant struct {
	URL      string
	Filename string
	Expires  time.Time
}

// DownloadRecordInput captures one delivery attempt for the event trail.
type DownloadRecordInput struct {
	SoftwareID uuid.UUID
	UserID     uuid.UUID
	IPAddress  string
	UserAgent  string
	Status     string
}

// DownloadHistoryItem is an event joined with its catalog summary.
type DownloadHistoryItem struct {
	Event    domain.DownloadEvent
	Software *domain.SoftwareEntry
}

type DownloadHistoryPage struct {
	Items []DownloadHistoryItem
	Total int64
	Page  int
	Pages int
}

// UploadInput describes one installer payload headed for object storage.
type UploadInput struct {
	Filename    string
	ContentType string
	SizeBytes   int64
}

// UploadResult reports where the payload landed.
type UploadResult struct {
	OSSKey    string
	ETag      string
	SizeBytes int64
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResult bundles the tokens with the authenticated profile.
type LoginResult struct {
	Tokens TokenPair
	User   domain.User
}

// UpdateUserInput mirrors ports.UserUpdate at the use-case boundary.
type UpdateUserInput struct {
	DisplayName *string
	Email       *string
	Mobile      *string
	Avatar      *string
	Department  *string
	Position    *string
	Role        *string
	IsActive    *bool
}

type UserPage struct {
	Items []domain.User
	Total int64
	Page  int
	Pages int
}
