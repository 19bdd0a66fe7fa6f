// Package handlers contains the gin HTTP handlers. They are thin glue:
// request binding, service calls and error translation only.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/api/dto"
	"bank-reconciliation-backend/internal/apperrors"
)

// RespondError translates a service error into the matching HTTP status and
// structured payload via errors.Is on the apperrors sentinels.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.NewAPIError(dto.ErrCodeValidation, err.Error()))
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, dto.InvalidStateError(err.Error()))
	case errors.Is(err, apperrors.ErrImportInProgress):
		c.JSON(http.StatusConflict, dto.ImportInProgressError())
	default:
		c.JSON(http.StatusInternalServerError, dto.InternalError())
	}
}

// ParseIntQuery parses an integer query parameter with a default value.
func ParseIntQuery(c *gin.Context, name string, defaultVal int) int {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
