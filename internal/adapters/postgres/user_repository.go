package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, row domain.User) error {
	rec := toUserModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	return r.get(ctx, "user_id = ?", userID)
}

func (r *userRepository) GetByDingTalkID(ctx context.Context, dingtalkID string) (domain.User, error) {
	if dingtalkID == "" {
		return domain.User{}, domain.ErrNotFound
	}
	return r.get(ctx, "dingtalk_id = ?", dingtalkID)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.get(ctx, "username = ?", username)
}

func (r *userRepository) get(ctx context.Context, cond string, arg any) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where(cond, arg).Take(&rec).Error; err != nil {
		return domain.User{}, translateLookupError(err)
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]domain.User, int64, error) {
	base := r.db.WithContext(ctx).Model(&userModel{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []userModel
	if err := base.Order("created_at DESC").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainUser(rec))
	}
	return out, total, nil
}

func (r *userRepository) Update(ctx context.Context, userID uuid.UUID, upd ports.UserUpdate, at time.Time) error {
	fields := map[string]any{"updated_at": at}
	if upd.DisplayName != nil {
		fields["display_name"] = *upd.DisplayName
	}
	if upd.Email != nil {
		fields["email"] = *upd.Email
	}
	if upd.Mobile != nil {
		fields["mobile"] = *upd.Mobile
	}
	if upd.Avatar != nil {
		fields["avatar"] = *upd.Avatar
	}
	if upd.Department != nil {
		fields["department"] = *upd.Department
	}
	if upd.Position != nil {
		fields["position"] = *upd.Position
	}
	if upd.Role != nil {
		fields["role"] = *upd.Role
	}
	if upd.IsActive != nil {
		fields["is_active"] = *upd.IsActive
	}

	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"last_login_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&userModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
