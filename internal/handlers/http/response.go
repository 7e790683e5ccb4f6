package http

import (
	"errors"
	"net/http"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/services"
	"sportshub/internal/infrastructure/jobs"
	apperrors "sportshub/pkg/errors"

	"github.com/gin-gonic/gin"
)

// respond writes {"success": true, "data": data} plus any extra fields.
func respond(c *gin.Context, status int, data interface{}, extra gin.H) {
	body := gin.H{"success": true, "data": data}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail hands err to the error middleware as an AppError.
func fail(c *gin.Context, err error) {
	c.Error(toAppError(err))
}

func toAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return apperrors.NewNotFoundError("session")
	case errors.Is(err, domain.ErrGameNotFound):
		return apperrors.NewNotFoundError("game")
	case errors.Is(err, domain.ErrSessionNotActive), errors.Is(err, domain.ErrSessionFull):
		return apperrors.NewInvalidInputError(err.Error())
	case errors.Is(err, domain.ErrNotSessionHost):
		return apperrors.NewForbiddenError(err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		return apperrors.NewUnauthorizedError("authentication required")
	case errors.Is(err, jobs.ErrUnknownPollKind):
		return apperrors.NewInvalidInputError("type must be live or daily")
	case errors.Is(err, domain.ErrAdapterUnavailable):
		return apperrors.NewServiceUnavailableError(err.Error()).WithCause(err)
	case errors.Is(err, jobs.ErrFetchFailed):
		return apperrors.NewBadGatewayError("sports provider request failed").WithCause(err)
	default:
		return apperrors.WrapError(err, apperrors.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
	}
}

func statusOK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}
