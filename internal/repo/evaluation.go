package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/intellicog/records/internal/models"
)

type EvaluationFilter struct {
	PatientName string
	DNI         string
	Modality    string
	Skip        int
	Limit       int
}

func (r *GormRepo) CreateEvaluation(ctx context.Context, e *models.Evaluation) error {
	return Create(ctx, r.DB, e)
}

func (r *GormRepo) EvaluationByID(ctx context.Context, id uint) (*models.Evaluation, error) {
	return Get[models.Evaluation](ctx, r.DB, id)
}

func (r *GormRepo) EvaluationsByPatient(ctx context.Context, patientID uint) ([]models.Evaluation, error) {
	return AllByForeignKey[models.Evaluation](ctx, r.DB, "patient_id", patientID)
}

// EvaluationOnDay reports whether the patient already has an evaluation of
// modality on day (YYYY-MM-DD, UTC), ignoring exceptID.
func (r *GormRepo) EvaluationOnDay(ctx context.Context, patientID uint, modality models.Modality, day string, exceptID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.Evaluation{}).
		Where("patient_id = ? AND modality = ? AND evaluation_day = ?", patientID, modality, day)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListEvaluations returns the evaluations of every patient owned by userID
// with the patient embedded. Filters are case-insensitive substrings.
func (r *GormRepo) ListEvaluations(ctx context.Context, userID uint, f EvaluationFilter) ([]models.Evaluation, error) {
	q := r.DB.WithContext(ctx).
		Model(&models.Evaluation{}).
		Joins("JOIN patients ON patients.id = evaluations.patient_id").
		Where("patients.user_id = ?", userID)

	if v := strings.TrimSpace(f.PatientName); v != "" {
		q = q.Where("LOWER(patients.name || ' ' || patients.last_name) LIKE ? ESCAPE '\\'", containsPattern(v))
	}
	if v := strings.TrimSpace(f.DNI); v != "" {
		q = q.Where("LOWER(patients.dni) LIKE ? ESCAPE '\\'", containsPattern(v))
	}
	if v := strings.TrimSpace(f.Modality); v != "" {
		q = q.Where("LOWER(evaluations.modality) LIKE ? ESCAPE '\\'", containsPattern(v))
	}

	out := make([]models.Evaluation, 0)
	err := q.Preload("Patient").
		Order("evaluations.id ASC").
		Offset(f.Skip).
		Limit(f.Limit).
		Find(&out).Error
	return out, err
}

func (r *GormRepo) DeleteEvaluationCascade(ctx context.Context, evaluationID uint) ([]string, error) {
	var keys []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Evaluation{}, evaluationID).Error; err != nil {
			return err
		}
		k, err := deleteEvaluations(tx, []uint{evaluationID})
		keys = k
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return keys, nil
}

func containsPattern(v string) string {
	return "%" + escapeLike(strings.ToLower(v)) + "%"
}
