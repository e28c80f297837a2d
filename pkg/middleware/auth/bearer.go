package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/intellicog/records/pkg/logging"
	"github.com/intellicog/records/pkg/tokens"
)

const userIDKey = "user_id"

type BearerAuth struct {
	Tokens *tokens.Codec
}

func NewBearerAuth(codec *tokens.Codec) *BearerAuth {
	return &BearerAuth{Tokens: codec}
}

// RequireAuth accepts only a valid access token in the Authorization header
// and stores its subject as the caller's user id.
func (m *BearerAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c.Request())
		if !ok {
			return unauthorized("missing bearer token")
		}

		claims, err := m.Tokens.Verify(raw, tokens.KindAccess)
		if err != nil {
			logging.FromContext(c.Request().Context()).Warn("access_token_rejected", "reason", err.Error())
			return unauthorized("invalid access token")
		}

		id, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || id == 0 {
			return unauthorized("invalid access token")
		}

		setUserContext(c, uint(id))
		return next(c)
	}
}

// UserID returns the id stored by RequireAuth.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(userIDKey).(uint)
	return id, ok && id != 0
}

func setUserContext(c echo.Context, id uint) {
	c.Set(userIDKey, id)
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("user_id", id)
	c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
