package repository

import (
	"context"
	"time"

	"authgate/internal/domain"

	"gorm.io/gorm"
)

// RefreshTokenRepository is the per-user session store. Every mutation that
// touches more than one row runs in a single transaction.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// StartSession clears the user's auth-reset flag and appends rec. A reset
// raised after resetCutoff is left alone and the call fails with
// domain.ErrResetLocked, so a login racing a replay reset cannot undo it.
// When maxSessions > 0 the oldest records beyond the cap are dropped.
func (r *RefreshTokenRepository) StartSession(ctx context.Context, userID int64, rec *domain.RefreshTokenRecord, maxSessions int, resetCutoff time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userModel{}).
			Where("id = ? AND (auth_reset = ? OR auth_reset_at <= ?)", userID, false, resetCutoff.UTC()).
			Update("auth_reset", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&userModel{}).Where("id = ?", userID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrResetLocked
		}

		row := toRecordRow(userID, rec)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if maxSessions <= 0 {
			return nil
		}
		var ids []string
		if err := tx.Model(&refreshTokenRow{}).
			Where("user_id = ?", userID).
			Order("issued_at DESC").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) <= maxSessions {
			return nil
		}
		return tx.Where("id IN ?", ids[maxSessions:]).Delete(&refreshTokenRow{}).Error
	})
}

func (r *RefreshTokenRepository) Find(ctx context.Context, userID int64, id string) (*domain.RefreshTokenRecord, error) {
	var row refreshTokenRow
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if err != nil {
		return nil, translateError(err)
	}
	rec := toDomainRecord(row)
	return &rec, nil
}

// Rotate deletes the record oldID and stores next in its place. The delete is
// the single point of truth for redemption: of two concurrent calls for the
// same record exactly one removes a row, the other gets domain.ErrNotFound.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, userID int64, oldID string, next *domain.RefreshTokenRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", oldID, userID).Delete(&refreshTokenRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		row := toRecordRow(userID, next)
		return tx.Create(&row).Error
	})
}

// Remove deletes one record. Removing a missing record is not an error.
func (r *RefreshTokenRepository) Remove(ctx context.Context, userID int64, id string) error {
	return r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&refreshTokenRow{}).Error
}

func (r *RefreshTokenRepository) RemoveAll(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&refreshTokenRow{})
	return res.RowsAffected, res.Error
}

// Reset raises the user's auth-reset flag at the given moment and wipes all
// of its records in one transaction.
func (r *RefreshTokenRepository) Reset(ctx context.Context, userID int64, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		at = at.UTC()
		res := tx.Model(&userModel{}).Where("id = ?", userID).Updates(map[string]any{
			"auth_reset":    true,
			"auth_reset_at": at,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Where("user_id = ?", userID).Delete(&refreshTokenRow{}).Error
	})
}

func (r *RefreshTokenRepository) List(ctx context.Context, userID int64) ([]domain.RefreshTokenRecord, error) {
	var rows []refreshTokenRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("issued_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RefreshTokenRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRecord(row))
	}
	return out, nil
}

// DeleteExpired purges records whose absolute expiry is not after now.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&refreshTokenRow{})
	return res.RowsAffected, res.Error
}

// SetExpiry overwrites the absolute expiry of one record.
func (r *RefreshTokenRepository) SetExpiry(ctx context.Context, userID int64, id string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&refreshTokenRow{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("expires_at", expiresAt.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
