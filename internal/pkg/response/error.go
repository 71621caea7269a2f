package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Error sends a JSON error response.
// It checks if the error is an AppError to determine the status code.
// If it's not an AppError, it defaults to 500 Internal Server Error.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Retryable {
			c.Header("Retry-After", "1")
		}
		c.JSON(appErr.Code, ErrorResponse{
			Error:     appErr.Message,
			Details:   appErr.Details,
			Retryable: appErr.Retryable,
		})
		return
	}

	log.Error(c.Request.Context(), "unhandled request error",
		log.Err("err", err), log.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// BadRequest reports a binding or validation failure. Validator errors are
// grouped by field name.
func BadRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Error: message}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string][]string)
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], fe.Error())
		}
		resp.Details = fields
	case err != nil:
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
