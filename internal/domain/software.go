package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PlatformWindows = "windows"
	PlatformMacOS   = "macos"
	PlatformLinux   = "linux"

	DownloadStatusSuccess = "success"
	DownloadStatusFailed  = "failed"
)

// SoftwareEntry is one distributable package in the catalog.
//
// OSSKey is set once at publish time and never changes afterwards. DownloadURL
// and DownloadURLExpires are a cache of the last signed URL and are always
// written together; Downloads is a monotonically non-decreasing counter owned
// by the download recorder.
type SoftwareEntry struct {
	SoftwareID  uuid.UUID `json:"software_id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Platforms   []string  `json:"platforms"`
	SizeBytes   int64     `json:"size_bytes"`
	Icon        string    `json:"icon,omitempty"`
	PublisherID uuid.UUID `json:"publisher_id"`

	IsPublished   bool `json:"is_published"`
	IsRecommended bool `json:"is_recommended"`

	OSSKey             string     `json:"oss_key,omitempty"`
	DownloadURL        string     `json:"download_url,omitempty"`
	DownloadURLExpires *time.Time `json:"download_url_expires,omitempty"`
	Downloads          int64      `json:"downloads"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Downloadable reports whether the entry has a backing object in storage.
func (s SoftwareEntry) Downloadable() bool {
	return strings.TrimSpace(s.OSSKey) != ""
}

// HasFreshURL reports whether the cached signed URL is still usable at now.
// The expiry must be strictly in the future; a URL without an expiry is never
// considered fresh.
func (s SoftwareEntry) HasFreshURL(now time.Time) bool {
	return s.DownloadURL != "" && s.DownloadURLExpires != nil && s.DownloadURLExpires.After(now)
}

// Filename is the object basename offered to the client on download.
func (s SoftwareEntry) Filename() string {
	if s.OSSKey == "" {
		return s.Name
	}
	if idx := strings.LastIndex(s.OSSKey, "/"); idx >= 0 {
		return s.OSSKey[idx+1:]
	}
	return s.OSSKey
}

// DownloadEvent is one append-only record of a served download.
// Anonymous downloads are not representable: both software and user are required.
type DownloadEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	SoftwareID uuid.UUID `json:"software_id"`
	UserID     uuid.UUID `json:"user_id"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func IsValidPlatform(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case PlatformWindows, PlatformMacOS, PlatformLinux:
		return true
	default:
		return false
	}
}

func IsValidDownloadStatus(v string) bool {
	switch strings.TrimSpace(v) {
	case DownloadStatusSuccess, DownloadStatusFailed:
		return true
	default:
		return false
	}
}
