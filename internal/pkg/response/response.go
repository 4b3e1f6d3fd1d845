package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
)

// Response is the envelope every endpoint replies with
type Response struct {
	Code    int         `json:"code"`              // 0 on success, otherwise an error code
	Message string      `json:"message,omitempty"` // human-readable summary
	Data    interface{} `json:"data"`              // payload, {} when empty
}

// Success writes a 200 response
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusOK, Response{
		Code: apperrors.Success,
		Data: data,
	})
}

// Failure writes an error envelope that still carries data. The HTTP status
// follows the error code.
func Failure(c *gin.Context, code int, message string, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest writes a 400 response for malformed input
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrInvalidQuery, message)
}

// ErrorWithCode writes the envelope for a bare error code
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	Failure(c, code, apperrors.FormatError(code, details...), nil)
}
