package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/intellicog/records/internal/models"
)

func (r *GormRepo) CreatePatient(ctx context.Context, p *models.Patient) error {
	return Create(ctx, r.DB, p)
}

func (r *GormRepo) PatientByID(ctx context.Context, id uint) (*models.Patient, error) {
	return Get[models.Patient](ctx, r.DB, id)
}

func (r *GormRepo) PatientsByUser(ctx context.Context, userID uint) ([]models.Patient, error) {
	return AllByForeignKey[models.Patient](ctx, r.DB, "user_id", userID)
}

func (r *GormRepo) PatientByDNI(ctx context.Context, userID uint, dni string) (*models.Patient, error) {
	var p models.Patient
	if err := r.DB.WithContext(ctx).Where("user_id = ? AND dni = ?", userID, dni).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// DNITaken reports whether userID already has a patient with dni other than
// exceptID (zero for none).
func (r *GormRepo) DNITaken(ctx context.Context, userID uint, dni string, exceptID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.Patient{}).Where("user_id = ? AND dni = ?", userID, dni)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// SearchPatients is the relational fallback used when no search index is
// configured: case-insensitive substring match on name, last name and DNI.
func (r *GormRepo) SearchPatients(ctx context.Context, userID uint, q string, limit int) ([]models.Patient, error) {
	like := containsPattern(strings.TrimSpace(q))
	out := make([]models.Patient, 0)
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(last_name) LIKE ? ESCAPE '\\' OR LOWER(dni) LIKE ? ESCAPE '\\')", like, like, like).
		Order("last_name ASC, name ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *GormRepo) PatientsByIDs(ctx context.Context, userID uint, ids []uint) ([]models.Patient, error) {
	out := make([]models.Patient, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	err := r.DB.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&out).Error
	return out, err
}

func (r *GormRepo) DeletePatientCascade(ctx context.Context, patientID uint) ([]string, error) {
	var keys []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Patient{}, patientID).Error; err != nil {
			return err
		}
		k, err := deletePatients(tx, []uint{patientID})
		keys = k
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return keys, nil
}

func (r *GormRepo) ComorbiditiesByPatient(ctx context.Context, patientID uint) (*models.Comorbidities, error) {
	return GetByForeignKey[models.Comorbidities](ctx, r.DB, "patient_id", patientID)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
