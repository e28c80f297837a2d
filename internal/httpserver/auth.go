package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/intellicog/records/internal/service"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/pkg/logging"
)

type AuthHTTP struct {
	Svc           *service.AuthService
	SecureCookies bool
}

func (h *AuthHTTP) Token(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.token")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}
	if req.Username == "" || req.Password == "" {
		return fail(l, "login_failed", badRequest("username and password are required"))
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		// Unknown e-mail and wrong password must look the same to the client.
		if errors.Is(err, service.ErrNotFound) {
			err = service.ErrInvalidCredentials
		}
		return fail(l, "login_failed", err)
	}

	c.SetCookie(CreateCookie(refreshCookieName, res.RefreshToken, refreshCookiePath, res.RefreshExpiresAt, h.SecureCookies))
	l.Info("login_successful", "user_id", res.User.ID)

	return c.JSON(http.StatusOK, transport.TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh cookie missing")
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	res, err := h.Svc.Refresh(ctx, cookie.Value, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return fail(l, "refresh_failed", err)
	}

	return c.JSON(http.StatusOK, transport.RefreshResponse{
		Message:     "token refreshed",
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
	})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	if _, err := h.Svc.Register(ctx, req); err != nil {
		return fail(l, "register_failed", err)
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "user registered"})
}

func (h *AuthHTTP) Recover(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.recover")

	var req transport.RecoverRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		l.Warn("recover_failed", "status", 400, "reason", "email missing", "error", err)
		return badRequest("email is required")
	}

	if err := h.Svc.CreateRecoverPassword(ctx, req.Email); err != nil {
		return fail(l, "recover_failed", err)
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "recovery code sent"})
}

func (h *AuthHTTP) RecoverConfirm(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.recover_confirm")

	var req transport.RecoverConfirmRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Code == "" {
		l.Warn("recover_confirm_failed", "status", 400, "reason", "email or code missing", "error", err)
		return badRequest("email and code are required")
	}

	token, err := h.Svc.ConfirmRecoverPassword(ctx, req.Email, req.Code)
	if err != nil {
		return fail(l, "recover_confirm_failed", err)
	}

	return c.JSON(http.StatusOK, transport.RecoveryTokenResponse{Token: token})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.change_password")

	var req transport.ChangePasswordWithTokenRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("change_password_failed", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	if err := h.Svc.ChangePassword(ctx, req.Token, req.NewPassword, req.VerifyNewPassword); err != nil {
		return fail(l, "change_password_failed", err)
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "password updated"})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	userID, err := currentUser(c)
	if err != nil {
		return fail(l, "logout_failed", err)
	}
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return fail(l, "logout_failed", echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing"))
	}

	if err := h.Svc.Logout(ctx, userID, cookie.Value); err != nil {
		return fail(l, "logout_failed", err)
	}

	c.SetCookie(DeleteCookie(refreshCookieName, refreshCookiePath, h.SecureCookies))
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "logged out"})
}
