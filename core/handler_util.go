package core

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const invalidLoginMessage = "Username or password is incorrect"

// respondError sends the unified error payload {"message": ...}.
func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// writeServiceError maps a service error to its HTTP response. notFoundStatus differs
// per route: reads answer 404, updates answer 400.
func writeServiceError(c *gin.Context, log *zap.Logger, err error, notFoundStatus int) {
	var verr *ValidationError
	var appErr *AppError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": verr.Error(), "errors": verr.Issues})
	case errors.Is(err, ErrInvalidCredentials):
		respondError(c, http.StatusBadRequest, invalidLoginMessage)
	case errors.Is(err, ErrTooManyAttempts):
		respondError(c, http.StatusTooManyRequests, ErrTooManyAttempts.Error())
	case errors.Is(err, ErrAccountNotFound):
		respondError(c, notFoundStatus, ErrAccountNotFound.Error())
	case errors.As(err, &appErr):
		log.Error("store operation failed", zap.String("request_id", c.GetString(ctxRequestID)), zap.String("op", appErr.Op), zap.Error(appErr.Err))
		respondError(c, http.StatusBadRequest, appErr.Error())
	default:
		log.Error("unhandled service error", zap.String("request_id", c.GetString(ctxRequestID)), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// idParam parses the :id path segment, answering 400 when it is not a positive integer.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid account id")
		return 0, false
	}
	return id, true
}
