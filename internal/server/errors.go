package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

var (
	ErrServiceUnavailable = &apiError{http.StatusServiceUnavailable, "service_unavailable", "service unavailable"}
	ErrNoRunAvailable     = &apiError{http.StatusNotFound, "no_run_available", "no pipeline run has completed yet"}
	ErrTableNotFound      = &apiError{http.StatusNotFound, "table_not_found", "unknown report table"}
)

// AbortWithError maps known errors to their status and everything else
// to a 500 without leaking internals.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.status, gin.H{
			"error": gin.H{"code": apiErr.code, "message": apiErr.message},
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"code": "internal", "message": "internal server error"},
	})
}
