package rest

import (
	"errors"
	"net/http"

	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/gin-gonic/gin"
)

// writeError maps the engine's error taxonomy to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateEdge):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrTransientStore):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
