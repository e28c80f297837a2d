package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/transport"
)

func TestEvaluationCreate_OnePerDay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	ap := e.patient(t, u.ID, "12345678")

	day := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	first, err := e.evals.Create(ctx, ap, transport.CreateEvaluationRequest{Modality: models.ModalityRF, CreatedAt: &day})
	require.NoError(t, err)
	assert.Equal(t, day, first.CreatedAt)

	later := day.Add(8 * time.Hour)
	_, err = e.evals.Create(ctx, ap, transport.CreateEvaluationRequest{Modality: models.ModalityRF, CreatedAt: &later})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.evals.Create(ctx, ap, transport.CreateEvaluationRequest{Modality: models.ModalityCNN, CreatedAt: &later})
	assert.NoError(t, err, "other modality same day")

	next := day.AddDate(0, 0, 1)
	_, err = e.evals.Create(ctx, ap, transport.CreateEvaluationRequest{Modality: models.ModalityRF, CreatedAt: &next})
	assert.NoError(t, err, "same modality next day")

	assert.Contains(t, e.pub.types(), events.EvaluationCreated)
}

func TestEvaluationCreate_Validation(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "doc@example.com", "pw")
	ap := e.patient(t, u.ID, "12345678")

	bad := models.Classification("Unknown")
	tests := []struct {
		name string
		req  transport.CreateEvaluationRequest
	}{
		{"no modality", transport.CreateEvaluationRequest{}},
		{"bad modality", transport.CreateEvaluationRequest{Modality: "XRAY"}},
		{"bad classification", transport.CreateEvaluationRequest{Modality: models.ModalityRF, ManualClassification: &bad}},
		{"negative probability", transport.CreateEvaluationRequest{Modality: models.ModalityRF, ModelProbability: ptr(-0.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.evals.Create(context.Background(), ap, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEvaluationUpdate_ModalityRecheck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	ap := e.patient(t, u.ID, "12345678")
	rf := e.evaluation(t, ap, models.ModalityRF)
	e.evaluation(t, ap, models.ModalityCNN)

	cnn := models.ModalityCNN
	_, err := e.evals.Update(ctx, rf, transport.EvaluationPatch{Modality: &cnn})
	assert.ErrorIs(t, err, ErrConflict)

	mci := models.ClassMCI
	got, err := e.evals.Update(ctx, rf, transport.EvaluationPatch{ModelClassification: &mci, ModelProbability: ptr(0.82)})
	require.NoError(t, err)
	assert.Equal(t, models.ModalityRF, got.Modality)
	require.NotNil(t, got.ModelClassification)
	assert.Equal(t, mci, *got.ModelClassification)
}

func TestEvaluationList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	other := e.register(t, "other@example.com", "pw")
	ap := e.patient(t, u.ID, "12345678")
	e.patient(t, other.ID, "12345678")

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		at := base.AddDate(0, 0, i)
		_, err := e.evals.Create(ctx, ap, transport.CreateEvaluationRequest{Modality: models.ModalityRF, CreatedAt: &at})
		require.NoError(t, err)
	}

	page, err := e.evals.List(ctx, u.ID, transport.EvaluationListQuery{})
	require.NoError(t, err)
	assert.Len(t, page, defaultEvaluationLimit)
	require.NotNil(t, page[0].Patient)
	assert.Equal(t, "12345678", page[0].Patient.DNI)

	page, err = e.evals.List(ctx, u.ID, transport.EvaluationListQuery{Skip: 10, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = e.evals.List(ctx, u.ID, transport.EvaluationListQuery{Modality: "CNN"})
	require.NoError(t, err)
	assert.Empty(t, page)

	none, err := e.evals.List(ctx, other.ID, transport.EvaluationListQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = e.evals.List(ctx, u.ID, transport.EvaluationListQuery{Skip: -1})
	assert.ErrorIs(t, err, ErrValidation)

	byPatient, err := e.evals.ListByPatient(ctx, ap)
	require.NoError(t, err)
	assert.Len(t, byPatient, 12)
}

func TestClinicDataLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	ae := e.evaluation(t, e.patient(t, u.ID, "12345678"), models.ModalityRF)

	_, err := e.evals.ClinicData(ctx, ae)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.evals.UpdateClinicData(ctx, ae, transport.ClinicDataPatch{MMSE: ptr(20)})
	assert.ErrorIs(t, err, ErrNotFound)

	cd, err := e.evals.CreateClinicData(ctx, ae, transport.ClinicDataPatch{MMSE: ptr(24), BMI: ptr(22.5)})
	require.NoError(t, err)
	assert.Equal(t, ae.Evaluation().ID, cd.EvaluationID)

	_, err = e.evals.CreateClinicData(ctx, ae, transport.ClinicDataPatch{})
	assert.ErrorIs(t, err, ErrConflict)

	cd, err = e.evals.UpdateClinicData(ctx, ae, transport.ClinicDataPatch{MoCA: ptr(26)})
	require.NoError(t, err)
	assert.Equal(t, 24, *cd.MMSE)
	assert.Equal(t, 26, *cd.MoCA)

	require.NoError(t, e.evals.DeleteClinicData(ctx, ae))
	assert.ErrorIs(t, e.evals.DeleteClinicData(ctx, ae), ErrNotFound)
}

func TestClinicResultsLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	ae := e.evaluation(t, e.patient(t, u.ID, "12345678"), models.ModalityRF)

	cr, err := e.evals.CreateClinicResults(ctx, ae, transport.ClinicResultsPatch{Description: ptr("stable")})
	require.NoError(t, err)
	assert.Equal(t, "stable", *cr.Description)

	_, err = e.evals.CreateClinicResults(ctx, ae, transport.ClinicResultsPatch{})
	assert.ErrorIs(t, err, ErrConflict)

	cr, err = e.evals.UpdateClinicResults(ctx, ae, transport.ClinicResultsPatch{Description: ptr("worse")})
	require.NoError(t, err)
	assert.Equal(t, "worse", *cr.Description)

	got, err := e.evals.ClinicResults(ctx, ae)
	require.NoError(t, err)
	assert.Equal(t, cr.ID, got.ID)

	require.NoError(t, e.evals.DeleteClinicResults(ctx, ae))
}

func TestMRIImageLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	ae := e.evaluation(t, e.patient(t, u.ID, "12345678"), models.ModalityCNN)

	_, err := e.evals.CreateMRIImage(ctx, ae, strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, e.blobs.keys())

	img, err := e.evals.CreateMRIImage(ctx, ae, bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(img.ObjectKey, "mri/"))
	assert.True(t, strings.HasSuffix(img.ObjectKey, ".png"))
	assert.Equal(t, "http://blobs.test/"+img.ObjectKey, img.URL)
	assert.Equal(t, []string{img.ObjectKey}, e.blobs.keys())

	_, err = e.evals.CreateMRIImage(ctx, ae, bytes.NewReader(pngBytes(t)))
	assert.ErrorIs(t, err, ErrConflict)

	oldKey := img.ObjectKey
	img, err = e.evals.ReplaceMRIImage(ctx, ae, bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, img.ObjectKey)
	assert.Contains(t, e.blobs.deleted, oldKey)

	got, err := e.evals.MRIImage(ctx, ae)
	require.NoError(t, err)
	assert.Equal(t, img.ObjectKey, got.ObjectKey)

	require.NoError(t, e.evals.DeleteMRIImage(ctx, ae))
	assert.Empty(t, e.blobs.keys())
	_, err = e.evals.ReplaceMRIImage(ctx, ae, bytes.NewReader(pngBytes(t)))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluationDelete_DropsImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	ae := e.evaluation(t, e.patient(t, u.ID, "12345678"), models.ModalityCNN)
	_, err := e.evals.CreateMRIImage(ctx, ae, bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	_, err = e.evals.CreateClinicResults(ctx, ae, transport.ClinicResultsPatch{Description: ptr("x")})
	require.NoError(t, err)

	require.NoError(t, e.evals.Delete(ctx, ae))
	assert.Empty(t, e.blobs.keys())
	assert.Contains(t, e.pub.types(), events.EvaluationDeleted)

	_, err = e.authz.Evaluation(ctx, u.ID, ae.Evaluation().ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportAndEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	ap := e.patient(t, u.ID, "12345678")
	e.evaluation(t, ap, models.ModalityRF)

	pdf, err := e.evals.Report(ctx, ap)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	assert.ErrorIs(t, e.evals.EmailReport(ctx, ap, ""), ErrValidation)

	reqCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, e.evals.EmailReport(reqCtx, ap, "doc@example.com"))
	cancel()
	e.evals.Wait()

	sent := e.mail.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "report", sent[0].Kind)
	assert.Equal(t, ap.Patient().ID, sent[0].PatientID)
	assert.True(t, bytes.HasPrefix(sent[0].PDF, []byte("%PDF")))
}
