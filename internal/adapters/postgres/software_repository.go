package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

type softwareRepository struct {
	db *gorm.DB
}

func (r *softwareRepository) Create(ctx context.Context, row domain.SoftwareEntry) error {
	rec := toSoftwareModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *softwareRepository) GetByID(ctx context.Context, softwareID uuid.UUID) (*domain.SoftwareEntry, error) {
	var rec softwareModel
	if err := r.db.WithContext(ctx).Where("software_id = ?", softwareID).Take(&rec).Error; err != nil {
		return nil, translateLookupError(err)
	}
	entry := toDomainSoftware(rec)
	return &entry, nil
}

func (r *softwareRepository) List(ctx context.Context, q ports.SoftwareQuery) ([]domain.SoftwareEntry, int64, error) {
	base := r.db.WithContext(ctx).Model(&softwareModel{})
	if q.Published != nil {
		base = base.Where("is_published = ?", *q.Published)
	}
	if q.Category != "" {
		base = base.Where("category = ?", q.Category)
	}
	if q.Platform != "" {
		base = base.Where("platforms LIKE ?", "%"+q.Platform+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []softwareModel
	if err := base.Order("created_at DESC").Limit(q.Limit).Offset(q.Offset).Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return toDomainSoftwareList(recs), total, nil
}

func (r *softwareRepository) Search(ctx context.Context, keyword string, publishedOnly bool, limit, offset int) ([]domain.SoftwareEntry, int64, error) {
	pattern := "%" + keyword + "%"
	base := r.db.WithContext(ctx).Model(&softwareModel{}).
		Where("name ILIKE ? OR description ILIKE ? OR category ILIKE ?", pattern, pattern, pattern)
	if publishedOnly {
		base = base.Where("is_published = TRUE")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []softwareModel
	if err := base.Order("downloads DESC, created_at DESC").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return toDomainSoftwareList(recs), total, nil
}

func (r *softwareRepository) ListRecommended(ctx context.Context, limit int) ([]domain.SoftwareEntry, error) {
	var recs []softwareModel
	err := r.db.WithContext(ctx).
		Where("is_recommended = TRUE AND is_published = TRUE").
		Order("downloads DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toDomainSoftwareList(recs), nil
}

func (r *softwareRepository) Update(ctx context.Context, softwareID uuid.UUID, upd ports.SoftwareUpdate, at time.Time) error {
	fields := map[string]any{"updated_at": at}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Version != nil {
		fields["version"] = *upd.Version
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.Category != nil {
		fields["category"] = *upd.Category
	}
	if upd.Platforms != nil {
		fields["platforms"] = joinPlatforms(upd.Platforms)
	}
	if upd.SizeBytes != nil {
		fields["size_bytes"] = *upd.SizeBytes
	}
	if upd.Icon != nil {
		fields["icon"] = *upd.Icon
	}
	if upd.OSSKey != nil {
		fields["oss_key"] = *upd.OSSKey
	}
	if upd.IsPublished != nil {
		fields["is_published"] = *upd.IsPublished
	}
	if upd.IsRecommended != nil {
		fields["is_recommended"] = *upd.IsRecommended
	}
	if upd.ClearDownloadURL {
		fields["download_url"] = ""
		fields["download_url_expires"] = nil
	}

	res := r.db.WithContext(ctx).Model(&softwareModel{}).
		Where("software_id = ?", softwareID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *softwareRepository) SetDownloadURL(ctx context.Context, softwareID uuid.UUID, url string, expires time.Time) error {
	res := r.db.WithContext(ctx).Model(&softwareModel{}).
		Where("software_id = ?", softwareID).
		Updates(map[string]any{
			"download_url":         url,
			"download_url_expires": expires,
			"updated_at":           gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *softwareRepository) IncrementDownloads(ctx context.Context, softwareID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&softwareModel{}).
		Where("software_id = ?", softwareID).
		UpdateColumn("downloads", gorm.Expr("downloads + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *softwareRepository) ListExpiring(ctx context.Context, threshold time.Time, limit int) ([]domain.SoftwareEntry, error) {
	var recs []softwareModel
	err := r.db.WithContext(ctx).
		Where("oss_key <> '' AND (download_url_expires IS NULL OR download_url_expires < ?)", threshold).
		Order("download_url_expires ASC NULLS FIRST").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toDomainSoftwareList(recs), nil
}

func (r *softwareRepository) Delete(ctx context.Context, softwareID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("software_id = ?", softwareID).Delete(&softwareModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDomainSoftwareList(recs []softwareModel) []domain.SoftwareEntry {
	out := make([]domain.SoftwareEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainSoftware(rec))
	}
	return out
}
