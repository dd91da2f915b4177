package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nm90/educational-mvc-sub001/internal/pkg/apperrors"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/logger"
)

// Responder writes an error response in whatever format the request asked
// for.
type Responder func(c *gin.Context, appErr *apperrors.AppError)

// ErrorHandler turns the last error a handler attached with c.Error into a
// response. respond defaults to a JSON body of the AppError.
func ErrorHandler(respond Responder) gin.HandlerFunc {
	if respond == nil {
		respond = func(c *gin.Context, appErr *apperrors.AppError) {
			c.JSON(appErr.HTTPStatus, appErr)
		}
	}

	return func(c *gin.Context) {
		c.Next()

		// Only handle if there are errors
		if len(c.Errors) == 0 {
			return
		}

		appErr := apperrors.Wrap(c.Errors.Last().Err)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
			"request_id", c.Writer.Header().Get(HeaderRequestID),
		}
		if appErr.Field != "" {
			logFields = append(logFields, "field", appErr.Field)
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "Internal Server Error", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		if c.Writer.Written() {
			return
		}
		respond(c, appErr)
	}
}
