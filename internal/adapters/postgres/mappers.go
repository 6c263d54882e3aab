package postgres

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PykeW/update-all/internal/domain"
)

func toDomainUser(m userModel) domain.User {
	return domain.User{
		UserID:       m.UserID,
		DingTalkID:   m.DingTalkID,
		Username:     m.Username,
		DisplayName:  m.DisplayName,
		Email:        m.Email,
		Mobile:       m.Mobile,
		Avatar:       m.Avatar,
		Department:   m.Department,
		Position:     m.Position,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		IsActive:     m.IsActive,
		LastLoginAt:  m.LastLoginAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toUserModel(u domain.User) userModel {
	return userModel{
		UserID:       u.UserID,
		DingTalkID:   u.DingTalkID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		Email:        u.Email,
		Mobile:       u.Mobile,
		Avatar:       u.Avatar,
		Department:   u.Department,
		Position:     u.Position,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toDomainSoftware(m softwareModel) domain.SoftwareEntry {
	entry := domain.SoftwareEntry{
		SoftwareID:         m.SoftwareID,
		Name:               m.Name,
		Version:            m.Version,
		Description:        m.Description,
		Category:           m.Category,
		Platforms:          splitPlatforms(m.Platforms),
		SizeBytes:          m.SizeBytes,
		Icon:               m.Icon,
		IsPublished:        m.IsPublished,
		IsRecommended:      m.IsRecommended,
		OSSKey:             m.OSSKey,
		DownloadURL:        m.DownloadURL,
		DownloadURLExpires: m.DownloadURLExpires,
		Downloads:          m.Downloads,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.PublisherID != nil {
		entry.PublisherID = *m.PublisherID
	}
	return entry
}

func toSoftwareModel(e domain.SoftwareEntry) softwareModel {
	m := softwareModel{
		SoftwareID:         e.SoftwareID,
		Name:               e.Name,
		Version:            e.Version,
		Description:        e.Description,
		Category:           e.Category,
		Platforms:          joinPlatforms(e.Platforms),
		SizeBytes:          e.SizeBytes,
		Icon:               e.Icon,
		IsPublished:        e.IsPublished,
		IsRecommended:      e.IsRecommended,
		OSSKey:             e.OSSKey,
		DownloadURL:        e.DownloadURL,
		DownloadURLExpires: e.DownloadURLExpires,
		Downloads:          e.Downloads,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if e.PublisherID != uuid.Nil {
		id := e.PublisherID
		m.PublisherID = &id
	}
	return m
}

func toDomainEvent(m downloadEventModel) domain.DownloadEvent {
	return domain.DownloadEvent{
		EventID:    m.EventID,
		SoftwareID: m.SoftwareID,
		UserID:     m.UserID,
		IPAddress:  m.IPAddress,
		UserAgent:  m.UserAgent,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
	}
}

// Platform sets are stored as a comma-joined string; order is not significant.
func joinPlatforms(platforms []string) string {
	return strings.Join(platforms, ",")
}

func splitPlatforms(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func translateLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
