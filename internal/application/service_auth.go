package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

// DingTalkConfig is what the login page needs to start the SSO dance.
type DingTalkConfig struct {
	AppID       string
	RedirectURI string
	FrontendURL string
}

func (s *Service) DingTalkConfig() DingTalkConfig {
	return DingTalkConfig{
		AppID:       s.cfg.DingTalkAppID,
		RedirectURI: s.cfg.DingTalkRedirectURI,
		FrontendURL: s.cfg.FrontendURL,
	}
}

// DingTalkLogin exchanges an SSO authorization code for a local session. The
// account is provisioned on first sign-in, keyed by the DingTalk union id,
// and its profile fields are refreshed on every subsequent login.
func (s *Service) DingTalkLogin(ctx context.Context, code string) (LoginResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return LoginResult{}, fmt.Errorf("authorization code is required: %w", domain.ErrInvalidInput)
	}

	profile, err := s.sso.ExchangeCode(ctx, code)
	if err != nil {
		return LoginResult{}, fmt.Errorf("dingtalk exchange: %w", err)
	}
	if profile.UnionID == "" {
		return LoginResult{}, fmt.Errorf("sso profile carries no union id: %w", domain.ErrSSOExchange)
	}

	user, err := s.upsertSSOUser(ctx, profile)
	if err != nil {
		return LoginResult{}, err
	}
	if !user.IsActive {
		return LoginResult{}, fmt.Errorf("account %s is disabled: %w", user.Username, domain.ErrForbidden)
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.users.TouchLastLogin(ctx, user.UserID, s.nowFn()); err != nil {
		appLogger().WarnContext(ctx, "last-login update failed",
			"operation", "dingtalk_login",
			"user_id", user.UserID,
			"error", err,
		)
	}
	return LoginResult{Tokens: tokens, User: user}, nil
}

func (s *Service) upsertSSOUser(ctx context.Context, profile ports.SSOProfile) (domain.User, error) {
	user, err := s.users.GetByDingTalkID(ctx, profile.UnionID)
	switch {
	case err == nil:
		upd := ports.UserUpdate{}
		if name := pickDisplayName(profile); name != "" && name != user.DisplayName {
			upd.DisplayName = &name
		}
		if profile.Avatar != "" && profile.Avatar != user.Avatar {
			upd.Avatar = &profile.Avatar
		}
		if profile.Email != "" && profile.Email != user.Email {
			upd.Email = &profile.Email
		}
		if profile.Mobile != "" && profile.Mobile != user.Mobile {
			upd.Mobile = &profile.Mobile
		}
		if upd != (ports.UserUpdate{}) {
			if uerr := s.users.Update(ctx, user.UserID, upd, s.nowFn()); uerr != nil {
				appLogger().WarnContext(ctx, "profile refresh failed",
					"operation", "dingtalk_login",
					"user_id", user.UserID,
					"error", uerr,
				)
			} else {
				applyUserUpdate(&user, upd)
			}
		}
		return user, nil
	case errors.Is(err, domain.ErrNotFound):
		now := s.nowFn()
		user = domain.User{
			UserID:      uuid.New(),
			DingTalkID:  profile.UnionID,
			Username:    ssoUsername(profile.UnionID),
			DisplayName: pickDisplayName(profile),
			Email:       profile.Email,
			Mobile:      profile.Mobile,
			Avatar:      profile.Avatar,
			Role:        domain.RoleUser,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return domain.User{}, fmt.Errorf("provision sso user: %w", err)
		}
		return user, nil
	default:
		return domain.User{}, fmt.Errorf("load user by dingtalk id: %w", err)
	}
}

// ssoUsername derives a stable local username from the external identity.
func ssoUsername(unionID string) string {
	short := unionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "dd_" + short
}

func pickDisplayName(profile ports.SSOProfile) string {
	if profile.Name != "" {
		return profile.Name
	}
	return profile.Nick
}

func applyUserUpdate(user *domain.User, upd ports.UserUpdate) {
	if upd.DisplayName != nil {
		user.DisplayName = *upd.DisplayName
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Mobile != nil {
		user.Mobile = *upd.Mobile
	}
}

// LocalLogin authenticates a username/password account. Only accounts with a
// stored hash can sign in this way.
func (s *Service) LocalLogin(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, fmt.Errorf("username and password are required: %w", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user %s: %w", username, err)
	}
	if user.PasswordHash == "" {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return LoginResult{}, fmt.Errorf("account %s is disabled: %w", username, domain.ErrForbidden)
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.users.TouchLastLogin(ctx, user.UserID, s.nowFn()); err != nil {
		appLogger().WarnContext(ctx, "last-login update failed",
			"operation", "local_login",
			"user_id", user.UserID,
			"error", err,
		)
	}
	return LoginResult{Tokens: tokens, User: user}, nil
}

func (s *Service) issueTokens(user domain.User) (TokenPair, error) {
	now := s.nowFn()

	access := ports.AuthClaims{
		UserID:    user.UserID,
		Username:  user.Username,
		Role:      user.Role,
		TokenID:   uuid.New(),
		TokenUse:  ports.TokenUseAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}
	accessToken, err := s.tokenSigner.Sign(access)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := ports.AuthClaims{
		UserID:    user.UserID,
		Username:  user.Username,
		Role:      user.Role,
		TokenID:   uuid.New(),
		TokenUse:  ports.TokenUseRefresh,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	refreshToken, err := s.tokenSigner.Sign(refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// RefreshTokens rotates a refresh token into a fresh pair. The presented
// token is revoked so it cannot be replayed.
func (s *Service) RefreshTokens(ctx context.Context, rawRefresh string) (TokenPair, error) {
	claims, err := s.validateToken(ctx, rawRefresh, ports.TokenUseRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenPair{}, domain.ErrUnauthorized
		}
		return TokenPair{}, fmt.Errorf("load user %s: %w", claims.UserID, err)
	}
	if !user.IsActive {
		return TokenPair{}, domain.ErrForbidden
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.revocations.MarkRevoked(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		appLogger().WarnContext(ctx, "refresh token revocation failed",
			"operation", "refresh_tokens",
			"token_id", claims.TokenID,
			"error", err,
		)
	}
	return tokens, nil
}

// Logout revokes both tokens of the session. Unparseable tokens are ignored;
// logout always succeeds for the caller.
func (s *Service) Logout(ctx context.Context, rawAccess, rawRefresh string) {
	for _, raw := range []string{rawAccess, rawRefresh} {
		if raw == "" {
			continue
		}
		claims, err := s.tokenSigner.ParseAndValidate(raw)
		if err != nil {
			continue
		}
		if err := s.revocations.MarkRevoked(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
			appLogger().WarnContext(ctx, "token revocation failed",
				"operation", "logout",
				"token_id", claims.TokenID,
				"error", err,
			)
		}
	}
}

// ValidateAccessToken checks an access token for the HTTP middleware.
func (s *Service) ValidateAccessToken(ctx context.Context, raw string) (Actor, error) {
	claims, err := s.validateToken(ctx, raw, ports.TokenUseAccess)
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

func (s *Service) validateToken(ctx context.Context, raw, use string) (ports.AuthClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	claims, err := s.tokenSigner.ParseAndValidate(raw)
	if err != nil {
		return ports.AuthClaims{}, err
	}
	if claims.TokenUse != use {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	if !claims.ExpiresAt.After(s.nowFn()) {
		return ports.AuthClaims{}, domain.ErrTokenExpired
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return ports.AuthClaims{}, domain.ErrSessionRevoked
	}
	return claims, nil
}
