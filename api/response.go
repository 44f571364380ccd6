package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "Internal server error"

// envelope wraps every response body.
type envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Timestamp  string `json:"timestamp"`
	StatusCode int    `json:"statusCode"`
}

func newEnvelope(success bool, message string, data any, status int) envelope {
	return envelope{
		Success:    success,
		Message:    message,
		Data:       data,
		Timestamp:  time.Now().Format("2006-01-02T15:04:05.000000"),
		StatusCode: status,
	}
}

func respondOK(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, newEnvelope(true, message, data, http.StatusOK))
}

// respondError writes the business message of err, or a generic message
// for anything unexpected. The underlying error is kept on the gin context
// for the request logger.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = internalErrorMessage
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, newEnvelope(false, message, nil, status))
}

func statusFor(err error) int {
	switch {
	case errors.IsAny(err, domain.ErrSlotUnavailable, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.IsAny(err,
		domain.ErrValidation,
		domain.ErrInvalidReservation,
		domain.ErrSlotNotFound,
		domain.ErrFloorNotFound,
		domain.ErrReservationNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// logUnexpected records server-side failures with their full cause chain.
func logUnexpected(log *zap.Logger, c *gin.Context, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestID(c)),
			zap.Error(err))
	}
}
