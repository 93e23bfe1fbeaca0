package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/store"
)

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// classify maps a service error to an HTTP status and error code.
func classify(err error) (int, string) {
	var unknownNode *pathgraph.UnknownNodeError
	switch {
	case errors.Is(err, curriculum.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, curriculum.ErrUnknownPath),
		errors.Is(err, curriculum.ErrUnknownNode),
		errors.Is(err, curriculum.ErrUnknownChallenge),
		errors.Is(err, store.ErrNotFound),
		errors.As(err, &unknownNode):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, progress.ErrInvalidTransition),
		errors.Is(err, remediation.ErrNotBlocked):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, curriculum.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
