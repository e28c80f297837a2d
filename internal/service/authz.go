package service

import (
	"context"

	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/repo"
)

// AuthorizedPatient is a patient already checked to belong to the caller.
// Only Authorizer builds one.
type AuthorizedPatient struct {
	userID  uint
	patient *models.Patient
}

func (a *AuthorizedPatient) UserID() uint             { return a.userID }
func (a *AuthorizedPatient) Patient() *models.Patient { return a.patient }

// AuthorizedEvaluation is an evaluation whose patient belongs to the caller.
type AuthorizedEvaluation struct {
	AuthorizedPatient
	evaluation *models.Evaluation
}

func (a *AuthorizedEvaluation) Evaluation() *models.Evaluation { return a.evaluation }

type Authorizer struct {
	Repo *repo.GormRepo
}

func (a *Authorizer) Patient(ctx context.Context, userID, patientID uint) (*AuthorizedPatient, error) {
	p, err := a.Repo.PatientByID(ctx, patientID)
	if err != nil {
		return nil, storeErr("patient", err)
	}
	if p.UserID != userID {
		return nil, ErrForbidden
	}
	return &AuthorizedPatient{userID: userID, patient: p}, nil
}

func (a *Authorizer) Evaluation(ctx context.Context, userID, evaluationID uint) (*AuthorizedEvaluation, error) {
	e, err := a.Repo.EvaluationByID(ctx, evaluationID)
	if err != nil {
		return nil, storeErr("evaluation", err)
	}
	ap, err := a.Patient(ctx, userID, e.PatientID)
	if err != nil {
		return nil, err
	}
	return &AuthorizedEvaluation{AuthorizedPatient: *ap, evaluation: e}, nil
}
