package service

import (
	"context"
	"errors"
	"strings"

	"github.com/intellicog/records/internal/blob"
	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/repo"
	"github.com/intellicog/records/internal/search"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/pkg/logging"
)

const (
	minDNILength       = 8
	defaultSearchLimit = 20
)

type PatientService struct {
	Repo   *repo.GormRepo
	Blobs  blob.Store
	Events events.Publisher
	Index  search.PatientIndex
}

func validatePatient(p *models.Patient) error {
	switch {
	case len(strings.TrimSpace(p.DNI)) < minDNILength:
		return validation("dni must have at least 8 characters")
	case strings.TrimSpace(p.Name) == "":
		return validation("name is required")
	case strings.TrimSpace(p.LastName) == "":
		return validation("last_name is required")
	case !p.Sex.Valid():
		return validation("sex must be FEMALE or MALE")
	case p.Age != nil && *p.Age < 0:
		return validation("age must not be negative")
	case p.AgeEducation != nil && *p.AgeEducation < 0:
		return validation("age_education must not be negative")
	}
	return nil
}

func (s *PatientService) Create(ctx context.Context, userID uint, req transport.CreatePatientRequest) (*models.Patient, error) {
	p := models.Patient{
		DNI:          strings.TrimSpace(req.DNI),
		Name:         strings.TrimSpace(req.Name),
		LastName:     strings.TrimSpace(req.LastName),
		Sex:          req.Sex,
		Age:          req.Age,
		AgeEducation: req.AgeEducation,
		UserID:       userID,
	}
	if err := validatePatient(&p); err != nil {
		return nil, err
	}

	taken, err := s.Repo.DNITaken(ctx, userID, p.DNI, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, storeErr("patient with this dni", repo.ErrDuplicate)
	}
	if err := s.Repo.CreatePatient(ctx, &p); err != nil {
		return nil, storeErr("patient with this dni", err)
	}

	s.sync(ctx, &p)
	publish(ctx, s.Events, events.Event{Type: events.PatientCreated, EntityID: p.ID, UserID: userID})
	return &p, nil
}

func (s *PatientService) List(ctx context.Context, userID uint) ([]models.Patient, error) {
	return s.Repo.PatientsByUser(ctx, userID)
}

func (s *PatientService) Get(_ context.Context, ap *AuthorizedPatient) *models.Patient {
	return ap.Patient()
}

func (s *PatientService) GetByDNI(ctx context.Context, userID uint, dni string) (*models.Patient, error) {
	p, err := s.Repo.PatientByDNI(ctx, userID, strings.TrimSpace(dni))
	return p, storeErr("patient", err)
}

func (s *PatientService) Update(ctx context.Context, ap *AuthorizedPatient, patch transport.PatientPatch) (*models.Patient, error) {
	current := ap.Patient()
	patch = patch.Trimmed()
	next := *current
	patch.Apply(&next)
	if err := validatePatient(&next); err != nil {
		return nil, err
	}

	if next.DNI != current.DNI {
		taken, err := s.Repo.DNITaken(ctx, ap.UserID(), next.DNI, current.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, storeErr("patient with this dni", repo.ErrDuplicate)
		}
	}

	p, err := repo.Update[models.Patient](ctx, s.Repo.DB, current.ID, patch)
	if err != nil {
		return nil, storeErr("patient with this dni", err)
	}

	s.sync(ctx, p)
	publish(ctx, s.Events, events.Event{Type: events.PatientUpdated, EntityID: p.ID, UserID: ap.UserID()})
	return p, nil
}

func (s *PatientService) Delete(ctx context.Context, ap *AuthorizedPatient) error {
	id := ap.Patient().ID
	keys, err := s.Repo.DeletePatientCascade(ctx, id)
	if err != nil {
		return storeErr("patient", err)
	}
	dropObjects(ctx, s.Blobs, keys)
	if s.Index != nil {
		if err := s.Index.Remove(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("index_remove_failed", "patient_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, events.Event{Type: events.PatientDeleted, EntityID: id, UserID: ap.UserID()})
	return nil
}

// Search matches the caller's patients by name, last name or DNI. The search
// index is used when configured; any index failure falls back to the database.
func (s *PatientService) Search(ctx context.Context, userID uint, q string, limit int) ([]models.Patient, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, validation("q is required")
	}
	if limit <= 0 || limit > 100 {
		limit = defaultSearchLimit
	}

	if s.Index != nil {
		ids, err := s.Index.Search(ctx, userID, q, limit)
		if err == nil {
			return s.inOrder(ctx, userID, ids)
		}
		logging.FromContext(ctx).Warn("index_search_failed", "svc", "patient.search", "error", err)
	}
	return s.Repo.SearchPatients(ctx, userID, q, limit)
}

func (s *PatientService) inOrder(ctx context.Context, userID uint, ids []uint) ([]models.Patient, error) {
	found, err := s.Repo.PatientsByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Patient, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Patient, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Comorbidities returns the patient's record, or an empty one when none has
// been stored yet.
func (s *PatientService) Comorbidities(ctx context.Context, ap *AuthorizedPatient) (*models.Comorbidities, error) {
	c, err := s.Repo.ComorbiditiesByPatient(ctx, ap.Patient().ID)
	if errors.Is(err, repo.ErrNotFound) {
		return &models.Comorbidities{PatientID: ap.Patient().ID}, nil
	}
	return c, err
}

func (s *PatientService) CreateComorbidities(ctx context.Context, ap *AuthorizedPatient, patch transport.ComorbiditiesPatch) (*models.Comorbidities, error) {
	id := ap.Patient().ID
	if _, err := s.Repo.ComorbiditiesByPatient(ctx, id); err == nil {
		return nil, storeErr("comorbidities", repo.ErrDuplicate)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	c := models.Comorbidities{PatientID: id}
	patch.Apply(&c)
	if err := repo.Create(ctx, s.Repo.DB, &c); err != nil {
		return nil, storeErr("comorbidities", err)
	}
	return &c, nil
}

func (s *PatientService) UpsertComorbidities(ctx context.Context, ap *AuthorizedPatient, patch transport.ComorbiditiesPatch) (*models.Comorbidities, error) {
	c, err := repo.UpdateByForeignKey[models.Comorbidities](ctx, s.Repo.DB, "patient_id", ap.Patient().ID, patch)
	if errors.Is(err, repo.ErrNotFound) {
		return s.CreateComorbidities(ctx, ap, patch)
	}
	return c, storeErr("comorbidities", err)
}

func (s *PatientService) sync(ctx context.Context, p *models.Patient) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, *p); err != nil {
		logging.FromContext(ctx).Warn("index_patient_failed", "patient_id", p.ID, "error", err)
	}
}
