// Package handler contains the HTTP handlers of the service. All
// business rules live in the domain services; handlers bind input,
// extract the authenticated actor, call the service and translate
// domain errors into HTTP responses.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bekzatkhan/supply-accountability/internal/repository"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getRole extracts the role claim stored by the JWT middleware.
func getRole(c echo.Context) string {
	if r, ok := c.Get("role").(string); ok {
		return r
	}
	return ""
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// domainError translates the sentinel errors of the domain layer into
// an HTTP response. Unknown errors become a generic 500 so internal
// detail does not leak to clients.
func domainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "version conflict, reload and try again"})
	case errors.Is(err, repository.ErrLocked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "item is on an issued receipt, return it first"})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "operation not allowed in the item's current state"})
	case errors.Is(err, repository.ErrVerificationsPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "resolve pending verifications first"})
	case errors.Is(err, repository.ErrSessionConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "a session is already active for this scope"})
	case errors.Is(err, repository.ErrSessionClosed):
		return c.JSON(http.StatusGone, echo.Map{"error": "session has ended"})
	case errors.Is(err, repository.ErrNotEligible):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
