package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	DingTalkID   string     `gorm:"column:dingtalk_id"`
	Username     string     `gorm:"column:username"`
	DisplayName  string     `gorm:"column:display_name"`
	Email        string     `gorm:"column:email"`
	Mobile       string     `gorm:"column:mobile"`
	Avatar       string     `gorm:"column:avatar"`
	Department   string     `gorm:"column:department"`
	Position     string     `gorm:"column:position"`
	PasswordHash string     `gorm:"column:password_hash"`
	Role         string     `gorm:"column:role"`
	IsActive     bool       `gorm:"column:is_active"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type softwareModel struct {
	SoftwareID         uuid.UUID  `gorm:"column:software_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string     `gorm:"column:name"`
	Version            string     `gorm:"column:version"`
	Description        string     `gorm:"column:description"`
	Category           string     `gorm:"column:category"`
	Platforms          string     `gorm:"column:platforms"`
	SizeBytes          int64      `gorm:"column:size_bytes"`
	Icon               string     `gorm:"column:icon"`
	PublisherID        *uuid.UUID `gorm:"column:publisher_id"`
	IsPublished        bool       `gorm:"column:is_published"`
	IsRecommended      bool       `gorm:"column:is_recommended"`
	OSSKey             string     `gorm:"column:oss_key"`
	DownloadURL        string     `gorm:"column:download_url"`
	DownloadURLExpires *time.Time `gorm:"column:download_url_expires"`
	Downloads          int64      `gorm:"column:downloads"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (softwareModel) TableName() string { return "software" }

type downloadEventModel struct {
	EventID    uuid.UUID `gorm:"column:event_id;type:uuid;default:gen_random_uuid();primaryKey"`
	SoftwareID uuid.UUID `gorm:"column:software_id"`
	UserID     uuid.UUID `gorm:"column:user_id"`
	IPAddress  string    `gorm:"column:ip_address"`
	UserAgent  string    `gorm:"column:user_agent"`
	Status     string    `gorm:"column:status"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (downloadEventModel) TableName() string { return "download_events" }
