package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/elrep/internal/authorization"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"errorType"`
	Message string `json:"message"`
}

type errorResponse struct {
	Errors []errorPayload `json:"errors"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware converts errors attached to the gin context into the
// JSON error envelope. Handlers report failures via AbortWithError and never
// write error bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Errors: []errorPayload{payload}})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "Bad Request",
			Message: vErr.Message,
		}
	}

	var cErr *domain.ConflictError
	if errors.As(err, &cErr) {
		return http.StatusConflict, errorPayload{
			Type:    "Conflict",
			Message: cErr.Message,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "Bad Request",
			Message: "invalid request",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "Unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "Forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "Conflict",
			Message: "conflict",
		}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "Not Found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "Internal Server Error",
			Message: "internal server error",
		}
	}
}
