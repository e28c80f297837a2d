package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/intellicog/records/internal/service"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/internal/util"
	"github.com/intellicog/records/pkg/logging"
)

type PatientHTTP struct {
	Svc   *service.PatientService
	Authz *service.Authorizer
}

func (h *PatientHTTP) authorized(c echo.Context) (*service.AuthorizedPatient, error) {
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

func (h *PatientHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.create")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "patient_create_error", err)
	}
	var req transport.CreatePatientRequest
	if err := c.Bind(&req); err != nil {
		return fail(l, "patient_create_error", badRequest("invalid body"))
	}

	p, err := h.Svc.Create(ctx, userID, req)
	if err != nil {
		return fail(l, "patient_create_error", err)
	}
	l.Info("patient_created", "patient_id", p.ID)
	return c.JSON(http.StatusOK, p)
}

func (h *PatientHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.list")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "patient_list_error", err)
	}
	out, err := h.Svc.List(ctx, userID)
	if err != nil {
		return fail(l, "patient_list_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PatientHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.search")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "patient_search_error", err)
	}
	limit := util.ParseIntDefault(c.QueryParam("limit"), 0)

	out, err := h.Svc.Search(ctx, userID, c.QueryParam("q"), limit)
	if err != nil {
		return fail(l, "patient_search_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PatientHTTP) GetByDNI(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.get_by_dni")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "patient_get_error", err)
	}
	p, err := h.Svc.GetByDNI(ctx, userID, c.Param("dni"))
	if err != nil {
		return fail(l, "patient_get_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PatientHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.get")

	ap, err := h.authorized(c)
	if err != nil {
		return fail(l, "patient_get_error", err)
	}
	return c.JSON(http.StatusOK, h.Svc.Get(ctx, ap))
}

func (h *PatientHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.update")

	ap, err := h.authorized(c)
	if err != nil {
		return fail(l, "patient_update_error", err)
	}
	var patch transport.PatientPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "patient_update_error", badRequest("invalid body"))
	}

	p, err := h.Svc.Update(ctx, ap, patch)
	if err != nil {
		return fail(l, "patient_update_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PatientHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.delete")

	ap, err := h.authorized(c)
	if err != nil {
		return fail(l, "patient_delete_error", err)
	}
	if err := h.Svc.Delete(ctx, ap); err != nil {
		return fail(l, "patient_delete_error", err)
	}
	l.Info("patient_deleted", "patient_id", ap.Patient().ID)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "patient deleted"})
}

func (h *PatientHTTP) GetComorbidities(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.comorbidities.get")

	ap, err := h.authorized(c)
	if err != nil {
		return fail(l, "comorbidities_get_error", err)
	}
	out, err := h.Svc.Comorbidities(ctx, ap)
	if err != nil {
		return fail(l, "comorbidities_get_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PatientHTTP) CreateComorbidities(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.comorbidities.create")

	ap, err := h.authorized(c)
	if err != nil {
		return fail(l, "comorbidities_create_error", err)
	}
	var patch transport.ComorbiditiesPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "comorbidities_create_error", badRequest("invalid body"))
	}

	out, err := h.Svc.CreateComorbidities(ctx, ap, patch)
	if err != nil {
		return fail(l, "comorbidities_create_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PatientHTTP) UpsertComorbidities(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "patient.comorbidities.upsert")

	ap, err := h.authorized(c)
	if err != nil {
		return fail(l, "comorbidities_update_error", err)
	}
	var patch transport.ComorbiditiesPatch
	if err := c.Bind(&patch); err != nil {
		return fail(l, "comorbidities_update_error", badRequest("invalid body"))
	}

	out, err := h.Svc.UpsertComorbidities(ctx, ap, patch)
	if err != nil {
		return fail(l, "comorbidities_update_error", err)
	}
	return c.JSON(http.StatusOK, out)
}
