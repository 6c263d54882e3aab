package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a portal account. Accounts are normally provisioned on first
// DingTalk sign-in; PasswordHash is only set for local admin accounts.
type User struct {
	UserID       uuid.UUID  `json:"user_id"`
	DingTalkID   string     `json:"dingtalk_id,omitempty"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"display_name"`
	Email        string     `json:"email,omitempty"`
	Mobile       string     `json:"mobile,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	Department   string     `json:"department,omitempty"`
	Position     string     `json:"position,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func IsValidRole(v string) bool {
	switch strings.TrimSpace(v) {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}
