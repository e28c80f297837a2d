package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intellicog/records/internal/blob"
	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/imaging"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/repo"
	"github.com/intellicog/records/internal/report"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/pkg/logging"
)

const (
	defaultEvaluationLimit = 10
	maxEvaluationLimit     = 100
	reportMailTimeout      = 30 * time.Second
)

type EvaluationService struct {
	Repo   *repo.GormRepo
	Blobs  blob.Store
	Mailer Mailer
	Events events.Publisher
	Now    func() time.Time

	bg sync.WaitGroup
}

func (s *EvaluationService) now() time.Time { return clock(s.Now).now() }

func validateClassifications(manual, model *models.Classification, prob *float64) error {
	if manual != nil && !manual.Valid() {
		return validation(fmt.Sprintf("unknown manual_classification %q", *manual))
	}
	if model != nil && !model.Valid() {
		return validation(fmt.Sprintf("unknown model_classification %q", *model))
	}
	if prob != nil && *prob < 0 {
		return validation("model_probability must not be negative")
	}
	return nil
}

var errEvaluationSameDay = fmt.Errorf("an evaluation with this modality already exists for that day: %w", ErrConflict)

func (s *EvaluationService) Create(ctx context.Context, ap *AuthorizedPatient, req transport.CreateEvaluationRequest) (*models.Evaluation, error) {
	if req.Modality == "" {
		return nil, validation("modality is required")
	}
	if !req.Modality.Valid() {
		return nil, validation("modality must be RF or CNN")
	}
	if err := validateClassifications(req.ManualClassification, req.ModelClassification, req.ModelProbability); err != nil {
		return nil, err
	}

	created := s.now()
	if req.CreatedAt != nil && !req.CreatedAt.IsZero() {
		created = req.CreatedAt.UTC()
	}

	patientID := ap.Patient().ID
	exists, err := s.Repo.EvaluationOnDay(ctx, patientID, req.Modality, created.Format(models.DayLayout), 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errEvaluationSameDay
	}

	e := models.Evaluation{
		PatientID:            patientID,
		Modality:             req.Modality,
		ManualClassification: req.ManualClassification,
		ModelClassification:  req.ModelClassification,
		ModelProbability:     req.ModelProbability,
		CreatedAt:            created,
	}
	if err := s.Repo.CreateEvaluation(ctx, &e); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, errEvaluationSameDay
		}
		return nil, err
	}

	publish(ctx, s.Events, events.Event{
		Type:     events.EvaluationCreated,
		EntityID: e.ID,
		UserID:   ap.UserID(),
		Data:     map[string]any{"patient_id": patientID, "modality": string(e.Modality)},
	})
	return &e, nil
}

func (s *EvaluationService) ListByPatient(ctx context.Context, ap *AuthorizedPatient) ([]models.Evaluation, error) {
	return s.Repo.EvaluationsByPatient(ctx, ap.Patient().ID)
}

// List returns the caller's evaluations across patients in id order, with
// the patient embedded.
func (s *EvaluationService) List(ctx context.Context, userID uint, q transport.EvaluationListQuery) ([]models.Evaluation, error) {
	if q.Skip < 0 {
		return nil, validation("skip must not be negative")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultEvaluationLimit
	}
	if limit > maxEvaluationLimit {
		limit = maxEvaluationLimit
	}
	return s.Repo.ListEvaluations(ctx, userID, repo.EvaluationFilter{
		PatientName: strings.TrimSpace(q.PatientName),
		DNI:         strings.TrimSpace(q.DNI),
		Modality:    strings.TrimSpace(q.Modality),
		Skip:        q.Skip,
		Limit:       limit,
	})
}

func (s *EvaluationService) Get(_ context.Context, ae *AuthorizedEvaluation) *models.Evaluation {
	return ae.Evaluation()
}

func (s *EvaluationService) Update(ctx context.Context, ae *AuthorizedEvaluation, patch transport.EvaluationPatch) (*models.Evaluation, error) {
	current := ae.Evaluation()
	next := *current
	patch.Apply(&next)
	if !next.Modality.Valid() {
		return nil, validation("modality must be RF or CNN")
	}
	if err := validateClassifications(next.ManualClassification, next.ModelClassification, next.ModelProbability); err != nil {
		return nil, err
	}

	if next.Modality != current.Modality {
		day := current.CreatedAt.UTC().Format(models.DayLayout)
		exists, err := s.Repo.EvaluationOnDay(ctx, current.PatientID, next.Modality, day, current.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errEvaluationSameDay
		}
	}

	e, err := repo.Update[models.Evaluation](ctx, s.Repo.DB, current.ID, patch)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, errEvaluationSameDay
	}
	return e, storeErr("evaluation", err)
}

func (s *EvaluationService) Delete(ctx context.Context, ae *AuthorizedEvaluation) error {
	id := ae.Evaluation().ID
	keys, err := s.Repo.DeleteEvaluationCascade(ctx, id)
	if err != nil {
		return storeErr("evaluation", err)
	}
	dropObjects(ctx, s.Blobs, keys)
	publish(ctx, s.Events, events.Event{Type: events.EvaluationDeleted, EntityID: id, UserID: ae.UserID()})
	return nil
}

// Clinic data.

func (s *EvaluationService) ClinicData(ctx context.Context, ae *AuthorizedEvaluation) (*models.ClinicData, error) {
	return satellite[models.ClinicData](ctx, s.Repo, "clinic data", ae)
}

func (s *EvaluationService) CreateClinicData(ctx context.Context, ae *AuthorizedEvaluation, patch transport.ClinicDataPatch) (*models.ClinicData, error) {
	rec := models.ClinicData{EvaluationID: ae.Evaluation().ID}
	patch.Apply(&rec)
	return createSatellite(ctx, s.Repo, "clinic data", &rec, ae)
}

func (s *EvaluationService) UpdateClinicData(ctx context.Context, ae *AuthorizedEvaluation, patch transport.ClinicDataPatch) (*models.ClinicData, error) {
	rec, err := repo.UpdateByForeignKey[models.ClinicData](ctx, s.Repo.DB, "evaluation_id", ae.Evaluation().ID, patch)
	return rec, storeErr("clinic data", err)
}

func (s *EvaluationService) DeleteClinicData(ctx context.Context, ae *AuthorizedEvaluation) error {
	err := repo.DeleteByForeignKey[models.ClinicData](ctx, s.Repo.DB, "evaluation_id", ae.Evaluation().ID)
	return storeErr("clinic data", err)
}

// Clinic results.

func (s *EvaluationService) ClinicResults(ctx context.Context, ae *AuthorizedEvaluation) (*models.ClinicResults, error) {
	return satellite[models.ClinicResults](ctx, s.Repo, "clinic results", ae)
}

func (s *EvaluationService) CreateClinicResults(ctx context.Context, ae *AuthorizedEvaluation, patch transport.ClinicResultsPatch) (*models.ClinicResults, error) {
	rec := models.ClinicResults{EvaluationID: ae.Evaluation().ID}
	patch.Apply(&rec)
	return createSatellite(ctx, s.Repo, "clinic results", &rec, ae)
}

func (s *EvaluationService) UpdateClinicResults(ctx context.Context, ae *AuthorizedEvaluation, patch transport.ClinicResultsPatch) (*models.ClinicResults, error) {
	rec, err := repo.UpdateByForeignKey[models.ClinicResults](ctx, s.Repo.DB, "evaluation_id", ae.Evaluation().ID, patch)
	return rec, storeErr("clinic results", err)
}

func (s *EvaluationService) DeleteClinicResults(ctx context.Context, ae *AuthorizedEvaluation) error {
	err := repo.DeleteByForeignKey[models.ClinicResults](ctx, s.Repo.DB, "evaluation_id", ae.Evaluation().ID)
	return storeErr("clinic results", err)
}

// MRI image.

func (s *EvaluationService) MRIImage(ctx context.Context, ae *AuthorizedEvaluation) (*models.MRIImage, error) {
	return satellite[models.MRIImage](ctx, s.Repo, "mri image", ae)
}

// CreateMRIImage converts the upload to PNG and stores it. If the row cannot
// be written the stored object is left behind.
func (s *EvaluationService) CreateMRIImage(ctx context.Context, ae *AuthorizedEvaluation, upload io.Reader) (*models.MRIImage, error) {
	evalID := ae.Evaluation().ID
	if _, err := s.MRIImage(ctx, ae); err == nil {
		return nil, storeErr("mri image", repo.ErrDuplicate)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key, url, err := s.storeImage(ctx, upload)
	if err != nil {
		return nil, err
	}
	rec := models.MRIImage{EvaluationID: evalID, URL: url, ObjectKey: key}
	return createSatellite(ctx, s.Repo, "mri image", &rec, ae)
}

// ReplaceMRIImage stores the new upload, points the row at it and drops the
// previous object.
func (s *EvaluationService) ReplaceMRIImage(ctx context.Context, ae *AuthorizedEvaluation, upload io.Reader) (*models.MRIImage, error) {
	current, err := s.MRIImage(ctx, ae)
	if err != nil {
		return nil, err
	}

	key, url, err := s.storeImage(ctx, upload)
	if err != nil {
		return nil, err
	}
	oldKey := current.ObjectKey
	current.ObjectKey = key
	current.URL = url
	if err := s.Repo.DB.WithContext(ctx).Save(current).Error; err != nil {
		return nil, err
	}
	dropObjects(ctx, s.Blobs, []string{oldKey})
	return current, nil
}

func (s *EvaluationService) DeleteMRIImage(ctx context.Context, ae *AuthorizedEvaluation) error {
	current, err := s.MRIImage(ctx, ae)
	if err != nil {
		return err
	}
	if err := repo.Delete[models.MRIImage](ctx, s.Repo.DB, current.ID); err != nil {
		return storeErr("mri image", err)
	}
	dropObjects(ctx, s.Blobs, []string{current.ObjectKey})
	return nil
}

func (s *EvaluationService) storeImage(ctx context.Context, upload io.Reader) (key, url string, err error) {
	if s.Blobs == nil {
		return "", "", fmt.Errorf("%w: no object store", ErrConfiguration)
	}
	png, format, err := imaging.ToPNG(upload)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedImage) {
			return "", "", fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return "", "", err
	}

	key = "mri/" + uuid.NewString() + ".png"
	url, err = s.Blobs.Put(ctx, key, bytes.NewReader(png), "image/png")
	if err != nil {
		return "", "", fmt.Errorf("store mri image: %w", err)
	}
	logging.FromContext(ctx).Info("mri_image_stored", "key", key, "source_format", format, "bytes", len(png))
	return key, url, nil
}

// Reports.

func (s *EvaluationService) Report(ctx context.Context, ap *AuthorizedPatient) ([]byte, error) {
	evals, err := s.Repo.EvaluationsByPatient(ctx, ap.Patient().ID)
	if err != nil {
		return nil, err
	}
	return report.Render(*ap.Patient(), evals)
}

// EmailReport renders and mails the report in the background. The work gets
// its own deadline and outlives the request; failures are only logged.
func (s *EvaluationService) EmailReport(ctx context.Context, ap *AuthorizedPatient, to string) error {
	if strings.TrimSpace(to) == "" {
		return validation("recipient is required")
	}
	if s.Mailer == nil {
		return fmt.Errorf("%w: no mailer", ErrConfiguration)
	}

	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportMailTimeout)
	patient := ap.Patient()
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer cancel()
		l := logging.FromContext(bgCtx).With("svc", "evaluation.email_report", "patient_id", patient.ID)

		pdf, err := s.Report(bgCtx, ap)
		if err != nil {
			l.Error("report_render_failed", "error", err)
			return
		}
		if err := s.Mailer.SendReport(bgCtx, to, patient.ID, pdf); err != nil {
			l.Error("report_mail_failed", "error", err)
			return
		}
		l.Info("report_mailed", "bytes", len(pdf))
	}()
	return nil
}

// Wait blocks until background report mails have finished.
func (s *EvaluationService) Wait() {
	s.bg.Wait()
}

func satellite[T any](ctx context.Context, r *repo.GormRepo, what string, ae *AuthorizedEvaluation) (*T, error) {
	rec, err := repo.GetByForeignKey[T](ctx, r.DB, "evaluation_id", ae.Evaluation().ID)
	return rec, storeErr(what, err)
}

func createSatellite[T any](ctx context.Context, r *repo.GormRepo, what string, rec *T, ae *AuthorizedEvaluation) (*T, error) {
	if _, err := satellite[T](ctx, r, what, ae); err == nil {
		return nil, storeErr(what, repo.ErrDuplicate)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := repo.Create(ctx, r.DB, rec); err != nil {
		return nil, storeErr(what, err)
	}
	return rec, nil
}
