package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/intellicog/records/internal/service"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/pkg/logging"
)

type UserHTTP struct {
	Svc           *service.UserService
	SecureCookies bool
}

func (h *UserHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.get")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "user_get_failed", err)
	}
	u, err := h.Svc.Get(ctx, userID)
	if err != nil {
		return fail(l, "user_get_failed", err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "user_update_failed", err)
	}
	var req transport.UserUpdateRequest
	if err := c.Bind(&req); err != nil {
		return fail(l, "user_update_failed", badRequest("invalid body"))
	}

	u, err := h.Svc.Update(ctx, userID, req)
	if err != nil {
		return fail(l, "user_update_failed", err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.change_password")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "user_password_failed", err)
	}
	var req transport.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return fail(l, "user_password_failed", badRequest("invalid body"))
	}

	if err := h.Svc.ChangePassword(ctx, userID, req); err != nil {
		return fail(l, "user_password_failed", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "password updated"})
}

func (h *UserHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.delete")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "user_delete_failed", err)
	}
	if err := h.Svc.Delete(ctx, userID); err != nil {
		return fail(l, "user_delete_failed", err)
	}

	c.SetCookie(DeleteCookie(refreshCookieName, refreshCookiePath, h.SecureCookies))
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "user deleted"})
}

func (h *UserHTTP) Support(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.support")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "support_failed", err)
	}
	var req transport.SupportRequest
	if err := c.Bind(&req); err != nil {
		return fail(l, "support_failed", badRequest("invalid body"))
	}

	if err := h.Svc.SendSupport(ctx, userID, req); err != nil {
		return fail(l, "support_failed", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "support request sent"})
}
