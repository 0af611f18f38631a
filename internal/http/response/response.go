package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Op      string `json:"op,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr maps aggregate error codes onto HTTP statuses. Internal errors
// never leak their message.
func RespondErr(c *gin.Context, err error) {
	var agg *domainagg.Error
	if !errors.As(err, &agg) {
		RespondError(c, http.StatusInternalServerError, string(domainagg.CodeInternal), nil)
		return
	}
	status := StatusFor(agg.Code)
	body := APIError{Message: agg.Message, Code: string(agg.Code), Op: agg.Op}
	if status >= http.StatusInternalServerError && agg.Code != domainagg.CodeRetryable {
		body.Message = http.StatusText(status)
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeInvariantViolation, domainagg.CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
