package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/intellicog/records/internal/models"
)

func (r *GormRepo) CreateResetCode(ctx context.Context, userID uint, code string, expiresAt time.Time) error {
	return Create(ctx, r.DB, &models.PasswordResetCode{
		UserID:    userID,
		Code:      code,
		ExpiresAt: expiresAt.UTC(),
	})
}

// ConsumeResetCode finds an unused code for userID that is still valid at now,
// marks it used and binds it to the recovery token jti. ErrNotFound otherwise.
func (r *GormRepo) ConsumeResetCode(ctx context.Context, userID uint, code, jti string, now time.Time) error {
	now = now.UTC()
	return translate(r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rc models.PasswordResetCode
		err := tx.Where("user_id = ? AND code = ? AND used = ? AND expires_at > ?", userID, code, false, now).
			Order("id DESC").
			First(&rc).Error
		if err != nil {
			return err
		}
		return tx.Model(&rc).Updates(map[string]any{"used": true, "expires_at": now, "recovery_jti": jti}).Error
	}))
}

// SpendRecovery marks the recovery token jti as spent and stores the new
// password hash in one transaction. A jti that is unknown, belongs to another
// user or was already spent yields ErrNotFound.
func (r *GormRepo) SpendRecovery(ctx context.Context, userID uint, jti, passwordHash string, now time.Time) error {
	return translate(r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PasswordResetCode{}).
			Where("user_id = ? AND recovery_jti = ? AND spent_at IS NULL", userID, jti).
			Update("spent_at", now.UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return (&GormRepo{DB: tx}).SetPassword(ctx, userID, passwordHash)
	}))
}
