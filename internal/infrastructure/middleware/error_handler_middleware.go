package middleware

import (
	"net/http"

	"sportshub/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Code    errors.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, body errorBody) {
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// ErrorHandlerMiddleware renders the last error attached with c.Error as
// {"error": {"code", "message"}}.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr := errors.GetAppError(err); appErr != nil {
			log := logger.Debugw
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				log = logger.Errorw
			}
			log("Application error",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"cause", appErr.Cause,
			)

			writeError(c, appErr.HTTPStatus, errorBody{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Context,
			})
			return
		}

		logger.Errorw("Unhandled error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		writeError(c, http.StatusInternalServerError, errorBody{
			Code:    errors.ErrCodeInternal,
			Message: "Internal server error",
		})
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("Panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				writeError(c, http.StatusInternalServerError, errorBody{
					Code:    errors.ErrCodeInternal,
					Message: "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
