package application

import (
	"log/slog"
	"time"

	"github.com/PykeW/update-all/internal/ports"
)

// Service implements the portal use-cases on top of injected ports. The clock
// is a field so link-expiry behavior can be driven synchronously in tests.
type Service struct {
	cfg         Config
	software    ports.SoftwareRepository
	downloads   ports.DownloadEventRepository
	users       ports.UserRepository
	store       ports.ObjectStore
	sso         ports.SSOVerifier
	hasher      ports.PasswordHasher
	tokenSigner ports.TokenSigner
	revocations ports.TokenRevocationStore
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Software    ports.SoftwareRepository
	Downloads   ports.DownloadEventRepository
	Users       ports.UserRepository
	Store       ports.ObjectStore
	SSO         ports.SSOVerifier
	Hasher      ports.PasswordHasher
	TokenSigner ports.TokenSigner
	Revocations ports.TokenRevocationStore
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:         deps.Config.withDefaults(),
		software:    deps.Software,
		downloads:   deps.Downloads,
		users:       deps.Users,
		store:       deps.Store,
		sso:         deps.SSO,
		hasher:      deps.Hasher,
		tokenSigner: deps.TokenSigner,
		revocations: deps.Revocations,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test-only hook; production code never
// calls it.
func (s *Service) WithClock(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"module", "application",
		"layer", "application",
	)
}
