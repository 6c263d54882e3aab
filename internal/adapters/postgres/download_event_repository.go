package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PykeW/update-all/internal/domain"
)

type downloadEventRepository struct {
	db *gorm.DB
}

func (r *downloadEventRepository) Append(ctx context.Context, row domain.DownloadEvent) error {
	rec := downloadEventModel{
		EventID:    row.EventID,
		SoftwareID: row.SoftwareID,
		UserID:     row.UserID,
		IPAddress:  row.IPAddress,
		UserAgent:  row.UserAgent,
		Status:     row.Status,
		CreatedAt:  row.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *downloadEventRepository) ListBySoftware(ctx context.Context, softwareID uuid.UUID, limit, offset int) ([]domain.DownloadEvent, int64, error) {
	return r.list(ctx, "software_id = ?", softwareID, limit, offset)
}

func (r *downloadEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.DownloadEvent, int64, error) {
	return r.list(ctx, "user_id = ?", userID, limit, offset)
}

func (r *downloadEventRepository) list(ctx context.Context, cond string, id uuid.UUID, limit, offset int) ([]domain.DownloadEvent, int64, error) {
	base := r.db.WithContext(ctx).Model(&downloadEventModel{}).Where(cond, id)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []downloadEventModel
	if err := base.Order("created_at DESC").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.DownloadEvent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainEvent(rec))
	}
	return out, total, nil
}

func (r *downloadEventRepository) Count(ctx context.Context, softwareID *uuid.UUID, since *time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&downloadEventModel{}).Where("status = ?", domain.DownloadStatusSuccess)
	if softwareID != nil {
		q = q.Where("software_id = ?", *softwareID)
	}
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
