package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/intellicog/records/internal/service"
	"github.com/intellicog/records/internal/util"
	"github.com/intellicog/records/pkg/tokens"
)

// fail logs err under event and converts it into the HTTP error returned to
// the client. Server side failures never leak their cause.
func fail(l *slog.Logger, event string, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		l.Warn(event, "status", he.Code, "error", err)
		return he
	}

	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		l.Error(event, "status", code, "error", err)
	} else {
		l.Warn(event, "status", code, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, tokens.ErrInvalidToken):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "not allowed to access this resource"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrValidation), errors.Is(err, util.ErrInvalidID):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrConfiguration):
		return http.StatusInternalServerError, "service is not configured to send email"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func badRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
