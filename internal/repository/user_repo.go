package repository

import (
	"context"
	"strings"

	"authgate/internal/domain"

	"gorm.io/gorm"
)

// UserRepository persists users. Soft-deleted rows are excluded from every
// query unless a method says otherwise.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. When beforeCommit is non-nil it runs inside the same
// transaction after the insert; a non-nil error rolls the insert back.
func (r *UserRepository) Create(ctx context.Context, u *domain.User, beforeCommit func(ctx context.Context, u *domain.User) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := toUserModel(u)
		if err := tx.Create(&m).Error; err != nil {
			return translateError(err)
		}
		*u = *toDomainUser(m)

		if beforeCommit == nil {
			return nil
		}
		if err := beforeCommit(ctx, u); err != nil {
			return err
		}

		// beforeCommit may have filled provisioning fields
		return tx.Model(&userModel{}).Where("id = ?", u.ID).Updates(map[string]any{
			"account_public_key": nullable(u.AccountPublicKey),
		}).Error
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translateError(err)
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&m).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainUser(m), nil
}

// GetDeletedByEmail returns the most recently soft-deleted user with email.
func (r *UserRepository) GetDeletedByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).Unscoped().
		Where("email = ? AND deleted_at IS NOT NULL", normalizeEmail(email)).
		Order("deleted_at DESC").
		First(&m).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", normalizeEmail(email))
}

// ExistsByNickname compares case-insensitively.
func (r *UserRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, "nickname_key = ?", strings.ToLower(strings.TrimSpace(nickname)))
}

func (r *UserRepository) ExistsByAccount(ctx context.Context, account string) (bool, error) {
	return r.exists(ctx, "account = ?", strings.TrimSpace(account))
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete marks the user deleted and drops its refresh-token records.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&userModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Where("user_id = ?", id).Delete(&refreshTokenRow{}).Error
	})
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Count(&n).Error
	return n, err
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Where(query, args...).Limit(1).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
