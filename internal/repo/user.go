package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/intellicog/records/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return Create(ctx, r.DB, u)
}

func (r *GormRepo) UserByID(ctx context.Context, id uint) (*models.User, error) {
	return Get[models.User](ctx, r.DB, id)
}

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return GetByForeignKey[models.User](ctx, r.DB, "email", email)
}

func (r *GormRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := r.UserByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *GormRepo) SetPassword(ctx context.Context, userID uint, hash string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUserCascade removes the user with every patient, evaluation,
// satellite record, session and reset code it owns. It returns the object
// keys of the MRI images that were attached so the caller can drop the blobs.
func (r *GormRepo) DeleteUserCascade(ctx context.Context, userID uint) ([]string, error) {
	var keys []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.User{}, userID).Error; err != nil {
			return err
		}

		var patientIDs []uint
		if err := tx.Model(&models.Patient{}).Where("user_id = ?", userID).Pluck("id", &patientIDs).Error; err != nil {
			return err
		}
		k, err := deletePatients(tx, patientIDs)
		if err != nil {
			return err
		}
		keys = k

		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.PasswordResetCode{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return keys, nil
}

// deletePatients removes the given patients and everything hanging off them.
func deletePatients(tx *gorm.DB, patientIDs []uint) ([]string, error) {
	if len(patientIDs) == 0 {
		return nil, nil
	}
	var evalIDs []uint
	if err := tx.Model(&models.Evaluation{}).Where("patient_id IN ?", patientIDs).Pluck("id", &evalIDs).Error; err != nil {
		return nil, err
	}
	keys, err := deleteEvaluations(tx, evalIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("patient_id IN ?", patientIDs).Delete(&models.Comorbidities{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", patientIDs).Delete(&models.Patient{}).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func deleteEvaluations(tx *gorm.DB, evalIDs []uint) ([]string, error) {
	if len(evalIDs) == 0 {
		return nil, nil
	}
	var keys []string
	if err := tx.Model(&models.MRIImage{}).Where("evaluation_id IN ?", evalIDs).Pluck("object_key", &keys).Error; err != nil {
		return nil, err
	}
	for _, m := range []any{&models.ClinicData{}, &models.ClinicResults{}, &models.MRIImage{}} {
		if err := tx.Where("evaluation_id IN ?", evalIDs).Delete(m).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Where("id IN ?", evalIDs).Delete(&models.Evaluation{}).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
