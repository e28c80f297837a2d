package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/intellicog/records/internal/util"
	authmw "github.com/intellicog/records/pkg/middleware/auth"
)

func currentUser(c echo.Context) (uint, error) {
	id, ok := authmw.UserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return id, nil
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := util.ParseID(c.Param(name))
	if err != nil {
		return 0, badRequest(name + " must be a positive integer")
	}
	return id, nil
}
