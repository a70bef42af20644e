package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wanderplan/wanderplan-server/internal/models"
	"github.com/wanderplan/wanderplan-server/internal/service"
)

// respond writes the uniform success envelope
func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, models.Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// respondError writes the uniform error envelope
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, models.Response{
		Success:    false,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		Path:       c.Request.URL.Path,
		Method:     c.Request.Method,
	})
}

// respondServiceError maps the service layer's sentinel errors to HTTP codes
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalid):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}
