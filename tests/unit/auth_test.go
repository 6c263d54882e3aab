package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PykeW/update-all/internal/application"
	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

func TestDingTalkLoginProvisionsUser(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.sso.addCode("code-1", ports.SSOProfile{
		UnionID: "union-abcdef-123",
		Name:    "Zhang Wei",
		Email:   "zhang.wei@example.com",
		Mobile:  "13800000001",
	})

	res, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("first dingtalk login failed: %v", err)
	}
	if res.User.Username != "dd_union-ab" {
		t.Fatalf("provisioned username = %q", res.User.Username)
	}
	if res.User.Role != domain.RoleUser || !res.User.IsActive {
		t.Fatalf("provisioned user wrong shape: %+v", res.User)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatalf("token pair missing: %+v", res.Tokens)
	}

	again, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("second dingtalk login failed: %v", err)
	}
	if again.User.UserID != res.User.UserID {
		t.Fatalf("re-login provisioned a second account")
	}
}

func TestDingTalkLoginRefreshesProfile(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.sso.addCode("code-1", ports.SSOProfile{UnionID: "union-1", Name: "Old Name"})

	first, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	f.sso.addCode("code-2", ports.SSOProfile{
		UnionID: "union-1",
		Name:    "New Name",
		Avatar:  "https://img.example.com/a.png",
	})
	second, err := f.service.DingTalkLogin(ctx, "code-2")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if second.User.UserID != first.User.UserID {
		t.Fatalf("identity not stable across logins")
	}
	if second.User.DisplayName != "New Name" || second.User.Avatar != "https://img.example.com/a.png" {
		t.Fatalf("profile not refreshed: %+v", second.User)
	}
}

func TestDingTalkLoginRejectsDisabledAccount(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.sso.addCode("code-1", ports.SSOProfile{UnionID: "union-1", Name: "Someone"})

	res, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	off := false
	if err := f.users.Update(ctx, res.User.UserID, ports.UserUpdate{IsActive: &off}, f.now); err != nil {
		t.Fatalf("disable account: %v", err)
	}

	if _, err := f.service.DingTalkLogin(ctx, "code-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestDingTalkLoginBadCode(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.DingTalkLogin(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty code: err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.service.DingTalkLogin(ctx, "unknown"); !errors.Is(err, domain.ErrSSOExchange) {
		t.Fatalf("unknown code: err = %v, want ErrSSOExchange", err)
	}
}

func TestLocalLoginVerifiesPassword(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	admin := f.seedActor(domain.RoleAdmin)

	user, err := f.service.CreateLocalUser(ctx, admin, "ops-admin", "long-password", "Ops Admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("create local user failed: %v", err)
	}

	res, err := f.service.LocalLogin(ctx, "ops-admin", "long-password")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.User.UserID != user.UserID {
		t.Fatalf("logged in as wrong user")
	}

	if _, err := f.service.LocalLogin(ctx, "ops-admin", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("bad password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.service.LocalLogin(ctx, "nobody", "long-password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown account: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshRotatesAndRevokesOldToken(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.sso.addCode("code-1", ports.SSOProfile{UnionID: "union-1", Name: "Someone"})
	res, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	rotated, err := f.service.RefreshTokens(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rotated.RefreshToken == res.Tokens.RefreshToken {
		t.Fatalf("refresh did not rotate the token")
	}

	if _, err := f.service.RefreshTokens(ctx, res.Tokens.RefreshToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("reusing the rotated token: err = %v, want ErrSessionRevoked", err)
	}
	if _, err := f.service.RefreshTokens(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("fresh refresh token rejected: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.sso.addCode("code-1", ports.SSOProfile{UnionID: "union-1", Name: "Someone"})
	res, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := f.service.RefreshTokens(ctx, res.Tokens.AccessToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized for wrong token use", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.sso.addCode("code-1", ports.SSOProfile{UnionID: "union-1", Name: "Someone"})
	res, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := f.service.ValidateAccessToken(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("access token invalid before logout: %v", err)
	}

	f.service.Logout(ctx, res.Tokens.AccessToken, res.Tokens.RefreshToken)

	if _, err := f.service.ValidateAccessToken(ctx, res.Tokens.AccessToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("access after logout: err = %v, want ErrSessionRevoked", err)
	}
	if _, err := f.service.RefreshTokens(ctx, res.Tokens.RefreshToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("refresh after logout: err = %v, want ErrSessionRevoked", err)
	}
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.sso.addCode("code-1", ports.SSOProfile{UnionID: "union-1", Name: "Someone"})
	res, err := f.service.DingTalkLogin(ctx, "code-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	f.now = f.now.Add(25 * time.Hour)
	if _, err := f.service.ValidateAccessToken(ctx, res.Tokens.AccessToken); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestUpdateUserSelfCannotEscalate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	user := f.seedActor(domain.RoleUser)

	adminRole := domain.RoleAdmin
	if _, err := f.service.UpdateUser(ctx, user, user.UserID, application.UpdateUserInput{Role: &adminRole}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("self role change: err = %v, want ErrForbidden", err)
	}

	name := "New Display Name"
	updated, err := f.service.UpdateUser(ctx, user, user.UserID, application.UpdateUserInput{DisplayName: &name})
	if err != nil {
		t.Fatalf("self display-name change failed: %v", err)
	}
	if updated.DisplayName != name {
		t.Fatalf("display name not applied: %+v", updated)
	}
}

func TestDeleteUserGuards(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	admin := f.seedActor(domain.RoleAdmin)
	victim := f.seedActor(domain.RoleUser)

	if err := f.service.DeleteUser(ctx, admin, admin.UserID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("self delete: err = %v, want ErrConflict", err)
	}
	if err := f.service.DeleteUser(ctx, victim, admin.UserID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-admin delete: err = %v, want ErrForbidden", err)
	}
	if err := f.service.DeleteUser(ctx, admin, victim.UserID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}
