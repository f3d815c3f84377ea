package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ark/internal/apperr"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeErrorFromErr is the "translate" step of spec §4.1's admission
// sequence: every apperr.Kind maps to exactly one HTTP status.
func writeErrorFromErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.Unauthenticated:
		status = http.StatusUnauthorized
	case apperr.InvalidArgument:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Forbidden:
		status = http.StatusForbidden
	case apperr.ServiceDisabled:
		status = http.StatusServiceUnavailable
	case apperr.Internal:
		status = http.StatusInternalServerError
	}

	resp := errorResponse{Error: err.Error()}
	var appErr *apperr.Error
	if apperr.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Details = appErr.Details
	}
	writeJSON(c, status, resp)
}
