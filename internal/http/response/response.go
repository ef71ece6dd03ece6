// Package response writes the JSON envelopes every endpoint returns.
package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"org_membership/internal/apperr"
	"org_membership/internal/logger"
)

const statusSuccess = "success"

// Body is the envelope for successful responses.
type Body struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorBody is the envelope for failed responses. Errors maps a field
// name to its messages and is only set for validation failures.
type ErrorBody struct {
	Status     string              `json:"status"`
	Message    string              `json:"message"`
	StatusCode int                 `json:"statusCode"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

// Success writes a {status, message, data} body.
func Success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Body{Status: statusSuccess, Message: message, Data: data})
}

// Error maps err to its HTTP status and writes the error body. Untyped
// and internal errors are logged and their detail is withheld from the
// client.
func Error(c *gin.Context, fallback zerolog.Logger, err error) {
	var appErr *apperr.Error
	if apperr.Is(err, apperr.KindInternal) || !errors.As(err, &appErr) {
		logger.FromContext(c.Request.Context(), fallback).Error().
			Err(err).
			Str("path", c.FullPath()).
			Msg("request failed")
		abort(c, &apperr.Error{Kind: apperr.KindInternal, Message: "Something went wrong"})
		return
	}
	abort(c, appErr)
}

func abort(c *gin.Context, e *apperr.Error) {
	status := e.HTTPStatus()
	c.AbortWithStatusJSON(status, ErrorBody{
		Status:     e.Label(),
		Message:    e.Message,
		StatusCode: status,
		Errors:     e.Fields,
	})
}
