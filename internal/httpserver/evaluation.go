package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/service"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/internal/util"
	"github.com/intellicog/records/pkg/logging"
)

const mriFormField = "imagefile"

type EvaluationHTTP struct {
	Svc   *service.EvaluationService
	Users *service.UserService
	Authz *service.Authorizer
}

func (h *EvaluationHTTP) patient(c echo.Context) (*service.AuthorizedPatient, error) {
	userID, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.Authz.Patient(c.Request().Context(), userID, id)
}

func (h *EvaluationHTTP) evaluation(c echo.Context) (*service.AuthorizedEvaluation, error) {
	userID, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.Authz.Evaluation(c.Request().Context(), userID, id)
}

func (h *EvaluationHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "evaluation.list")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "evaluation_list_error", err)
	}
	var q transport.EvaluationListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return fail(l, "evaluation_list_error", badRequest("invalid query parameters"))
	}

	out, err := h.Svc.List(ctx, userID, q)
	if err != nil {
		return fail(l, "evaluation_list_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "evaluation.create")

	ap, err := h.patient(c)
	if err != nil {
		return fail(l, "evaluation_create_error", err)
	}
	var req transport.CreateEvaluationRequest
	if err := c.Bind(&req); err != nil {
		return fail(l, "evaluation_create_error", badRequest("invalid body"))
	}

	ev, err := h.Svc.Create(ctx, ap, req)
	if err != nil {
		return fail(l, "evaluation_create_error", err)
	}
	l.Info("evaluation_created", "evaluation_id", ev.ID, "patient_id", ev.PatientID)
	return c.JSON(http.StatusOK, ev)
}

func (h *EvaluationHTTP) ListByPatient(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "evaluation.list_by_patient")

	ap, err := h.patient(c)
	if err != nil {
		return fail(l, "evaluation_list_error", err)
	}
	out, err := h.Svc.ListByPatient(ctx, ap)
	if err != nil {
		return fail(l, "evaluation_list_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

// Report streams the patient's PDF report, or with send_email=true mails it
// to the caller in the background.
func (h *EvaluationHTTP) Report(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "evaluation.report")

	ap, err := h.patient(c)
	if err != nil {
		return fail(l, "report_error", err)
	}

	if util.ParseBoolDefault(c.QueryParam("send_email"), false) {
		u, err := h.Users.Get(ctx, ap.UserID())
		if err != nil {
			return fail(l, "report_error", err)
		}
		if err := h.Svc.EmailReport(ctx, ap, u.Email); err != nil {
			return fail(l, "report_error", err)
		}
		return c.JSON(http.StatusOK, transport.MessageResponse{Message: "report will be sent to " + u.Email})
	}

	pdf, err := h.Svc.Report(ctx, ap)
	if err != nil {
		return fail(l, "report_error", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=evaluations_patient_%d.pdf", ap.Patient().ID))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func (h *EvaluationHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "evaluation.get")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "evaluation_get_error", err)
	}
	return c.JSON(http.StatusOK, h.Svc.Get(ctx, ae))
}

func (h *EvaluationHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "evaluation.update")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "evaluation_update_error", err)
	}
	var patch transport.EvaluationPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "evaluation_update_error", badRequest("invalid body"))
	}

	ev, err := h.Svc.Update(ctx, ae, patch)
	if err != nil {
		return fail(l, "evaluation_update_error", err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *EvaluationHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "evaluation.delete")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "evaluation_delete_error", err)
	}
	if err := h.Svc.Delete(ctx, ae); err != nil {
		return fail(l, "evaluation_delete_error", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "evaluation deleted"})
}

// Clinic data.

func (h *EvaluationHTTP) GetClinicData(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_data.get")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_data_error", err)
	}
	out, err := h.Svc.ClinicData(ctx, ae)
	if err != nil {
		return fail(l, "clinic_data_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) CreateClinicData(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_data.create")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_data_error", err)
	}
	var patch transport.ClinicDataPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "clinic_data_error", badRequest("invalid body"))
	}
	out, err := h.Svc.CreateClinicData(ctx, ae, patch)
	if err != nil {
		return fail(l, "clinic_data_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) UpdateClinicData(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_data.update")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_data_error", err)
	}
	var patch transport.ClinicDataPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "clinic_data_error", badRequest("invalid body"))
	}
	out, err := h.Svc.UpdateClinicData(ctx, ae, patch)
	if err != nil {
		return fail(l, "clinic_data_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) DeleteClinicData(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_data.delete")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_data_error", err)
	}
	if err := h.Svc.DeleteClinicData(ctx, ae); err != nil {
		return fail(l, "clinic_data_error", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "clinic data deleted"})
}

// Clinic results.

func (h *EvaluationHTTP) GetClinicResults(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_results.get")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_results_error", err)
	}
	out, err := h.Svc.ClinicResults(ctx, ae)
	if err != nil {
		return fail(l, "clinic_results_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) CreateClinicResults(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_results.create")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_results_error", err)
	}
	var patch transport.ClinicResultsPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "clinic_results_error", badRequest("invalid body"))
	}
	out, err := h.Svc.CreateClinicResults(ctx, ae, patch)
	if err != nil {
		return fail(l, "clinic_results_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) UpdateClinicResults(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_results.update")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_results_error", err)
	}
	var patch transport.ClinicResultsPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "clinic_results_error", badRequest("invalid body"))
	}
	out, err := h.Svc.UpdateClinicResults(ctx, ae, patch)
	if err != nil {
		return fail(l, "clinic_results_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) DeleteClinicResults(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "clinic_results.delete")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "clinic_results_error", err)
	}
	if err := h.Svc.DeleteClinicResults(ctx, ae); err != nil {
		return fail(l, "clinic_results_error", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "clinic results deleted"})
}

// MRI image.

func (h *EvaluationHTTP) GetMRIImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mri_image.get")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "mri_image_error", err)
	}
	out, err := h.Svc.MRIImage(ctx, ae)
	if err != nil {
		return fail(l, "mri_image_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EvaluationHTTP) CreateMRIImage(c echo.Context) error {
	return h.uploadMRI(c, "mri_image.create", h.Svc.CreateMRIImage)
}

func (h *EvaluationHTTP) ReplaceMRIImage(c echo.Context) error {
	return h.uploadMRI(c, "mri_image.replace", h.Svc.ReplaceMRIImage)
}

func (h *EvaluationHTTP) DeleteMRIImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mri_image.delete")

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "mri_image_error", err)
	}
	if err := h.Svc.DeleteMRIImage(ctx, ae); err != nil {
		return fail(l, "mri_image_error", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "mri image deleted"})
}

type mriStoreFunc func(ctx context.Context, ae *service.AuthorizedEvaluation, r io.Reader) (*models.MRIImage, error)

func (h *EvaluationHTTP) uploadMRI(c echo.Context, name string, store mriStoreFunc) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", name)

	ae, err := h.evaluation(c)
	if err != nil {
		return fail(l, "mri_image_error", err)
	}
	fh, err := c.FormFile(mriFormField)
	if err != nil {
		return fail(l, "mri_image_error", badRequest("multipart field "+mriFormField+" is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return fail(l, "mri_image_error", badRequest("cannot read upload"))
	}
	defer f.Close()

	out, err := store(ctx, ae, f)
	if err != nil {
		return fail(l, "mri_image_error", err)
	}
	return c.JSON(http.StatusOK, out)
}
