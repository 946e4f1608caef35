package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yungbote/minutes-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Index   *int   `json:"index,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps the service error taxonomy onto HTTP statuses.
func RespondServiceError(c *gin.Context, err error) {
	var ie *apperrors.InputError
	var se *apperrors.StorageError
	switch {
	case errors.As(err, &ie):
		apiErr := APIError{Message: ie.Error(), Code: "invalid_input", Field: ie.Field}
		if ie.Index >= 0 {
			idx := ie.Index
			apiErr.Index = &idx
		}
		c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: apiErr})
	case errors.Is(err, apperrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "meeting_not_found", err)
	case errors.As(err, &se):
		RespondError(c, http.StatusServiceUnavailable, "storage_write_failed", err)
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(c, http.StatusGatewayTimeout, "timeout", err)
	case errors.Is(err, context.Canceled):
		RespondError(c, 499, "canceled", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
