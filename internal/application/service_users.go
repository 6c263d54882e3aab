package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

func (s *Service) GetUser(ctx context.Context, actor Actor, userID uuid.UUID) (domain.User, error) {
	if !actor.isAdmin() && actor.UserID != userID {
		return domain.User{}, domain.ErrForbidden
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user, nil
}

func (s *Service) Profile(ctx context.Context, actor Actor) (domain.User, error) {
	return s.GetUser(ctx, actor, actor.UserID)
}

func (s *Service) ListUsers(ctx context.Context, actor Actor, p Pagination) (UserPage, error) {
	if !actor.isAdmin() {
		return UserPage{}, domain.ErrForbidden
	}
	p = s.clampPage(p)

	items, total, err := s.users.List(ctx, p.PageSize, (p.Page-1)*p.PageSize)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}
	return UserPage{Items: items, Total: total, Page: p.Page, Pages: pageCount(total, p.PageSize)}, nil
}

// UpdateUser applies a partial profile update. Role and activation changes
// are reserved to admins; users may edit their own contact fields.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, in UpdateUserInput) (domain.User, error) {
	self := actor.UserID == userID
	if !actor.isAdmin() && !self {
		return domain.User{}, domain.ErrForbidden
	}
	if !actor.isAdmin() && (in.Role != nil || in.IsActive != nil) {
		return domain.User{}, domain.ErrForbidden
	}
	if in.Role != nil && !domain.IsValidRole(*in.Role) {
		return domain.User{}, fmt.Errorf("unknown role %q: %w", *in.Role, domain.ErrInvalidInput)
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" && !strings.Contains(*in.Email, "@") {
		return domain.User{}, fmt.Errorf("malformed email: %w", domain.ErrInvalidInput)
	}

	upd := ports.UserUpdate{
		DisplayName: in.DisplayName,
		Email:       in.Email,
		Mobile:      in.Mobile,
		Avatar:      in.Avatar,
		Department:  in.Department,
		Position:    in.Position,
		Role:        in.Role,
		IsActive:    in.IsActive,
	}
	if err := s.users.Update(ctx, userID, upd, s.nowFn()); err != nil {
		return domain.User{}, fmt.Errorf("update user %s: %w", userID, err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("reload user %s: %w", userID, err)
	}
	return user, nil
}

// DeleteUser removes an account. Admins cannot delete themselves so the
// portal always keeps at least one working admin session.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error {
	if !actor.isAdmin() {
		return domain.ErrForbidden
	}
	if actor.UserID == userID {
		return fmt.Errorf("cannot delete own account: %w", domain.ErrConflict)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

// CreateLocalUser provisions a password account, normally a bootstrap admin.
func (s *Service) CreateLocalUser(ctx context.Context, actor Actor, username, password, displayName, role string) (domain.User, error) {
	if !actor.isAdmin() {
		return domain.User{}, domain.ErrForbidden
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required: %w", domain.ErrInvalidInput)
	}
	if len(password) < 8 {
		return domain.User{}, fmt.Errorf("password must be at least 8 characters: %w", domain.ErrInvalidInput)
	}
	if !domain.IsValidRole(role) {
		return domain.User{}, fmt.Errorf("unknown role %q: %w", role, domain.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	user := domain.User{
		UserID:       uuid.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("create user %s: %w", username, err)
	}
	return user, nil
}
