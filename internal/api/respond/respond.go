// Package respond translates errors recorded on a gin context into JSON
// responses. It is the only place failures become HTTP bodies.
package respond

import (
	"log/slog"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every failure response
type ErrorBody struct {
	ErrorCode string             `json:"errorCode"`
	Message   string             `json:"message"`
	Errors    []apperr.Violation `json:"errors,omitempty"`
}

// Errors renders the last error attached with c.Error once the chain returns,
// unless a response has already been written
func Errors(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := apperr.As(err)
		if !ok {
			appErr = apperr.Internal(err)
		}

		attrs := []any{
			slog.String("error_code", appErr.Code),
			slog.String("kind", appErr.Kind.String()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
		}
		if appErr.Err != nil {
			attrs = append(attrs, slog.String("cause", appErr.Err.Error()))
		}

		switch appErr.Kind {
		case apperr.KindInternal, apperr.KindJobSubmissionFailed, apperr.KindQueueUnavailable:
			logger.Error("Request failed", attrs...)
		default:
			logger.Info("Request rejected", attrs...)
		}

		c.AbortWithStatusJSON(appErr.Kind.HTTPStatus(), ErrorBody{
			ErrorCode: appErr.Code,
			Message:   appErr.Message,
			Errors:    appErr.Violations,
		})
	}
}

// Fail records err on the context and stops the handler chain
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
