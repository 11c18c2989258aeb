package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SameeraMS/BusTracking-Backend/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or
// falls back to a generic response. Validation errors carry their violation
// list into the detail field.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var fixErr *usecase.FixValidationError
	if errors.As(err, &fixErr) {
		c.JSON(http.StatusBadRequest, FailDetails("invalid location data", fixErr.Violations))
		return
	}

	var driverErr *usecase.DriverValidationError
	if errors.As(err, &driverErr) {
		c.JSON(http.StatusBadRequest, FailDetails("missing required fields", driverErr.Violations))
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, Fail(cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, Fail(fallbackMessage))
}
