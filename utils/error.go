package utils

import (
	"errors"
	"net/http"

	"kidsclub/services/booking/entity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message   string   `json:"message"`
	Details   string   `json:"details,omitempty"`
	Field     string   `json:"field,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				GetLogger().Error("Unhandled panic", zap.Any("error", err), zap.String("path", c.Request.URL.Path))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	GetLogger().Warn(message, zap.String("details", details), zap.Int("status", status))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// StatusFor maps a booking error to its HTTP status.
func StatusFor(err error) int {
	var (
		validation *entity.ValidationError
		duplicate  *entity.DuplicatePackageError
		conflict   *entity.SchedulingConflictError
		state      *entity.InvalidStateError
		gateway    *entity.PaymentGatewayError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrBookingNotFound), errors.Is(err, entity.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.As(err, &duplicate), errors.As(err, &conflict), errors.As(err, &state),
		errors.Is(err, entity.ErrVersionConflict), errors.Is(err, ErrLockTimeout):
		return http.StatusConflict
	case errors.As(err, &gateway):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// BookingError writes err with the status and body its kind calls for.
// Internal errors are logged in full and hidden from the client.
func BookingError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		GetLogger().Error("booking request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(status, ErrorResponse{Message: "Internal Server Error"})
		return
	}

	resp := ErrorResponse{Message: err.Error()}
	var (
		validation *entity.ValidationError
		duplicate  *entity.DuplicatePackageError
		conflict   *entity.SchedulingConflictError
	)
	switch {
	case errors.As(err, &validation):
		resp.Field = validation.Field
	case errors.As(err, &duplicate):
		for _, ref := range duplicate.References() {
			resp.Conflicts = append(resp.Conflicts, ref.String())
		}
	case errors.As(err, &conflict):
		for _, cf := range conflict.Conflicts {
			resp.Conflicts = append(resp.Conflicts, cf.String())
		}
	}
	GetLogger().Info("booking request rejected", zap.String("path", c.Request.URL.Path), zap.Int("status", status), zap.Error(err))
	c.JSON(status, resp)
}
