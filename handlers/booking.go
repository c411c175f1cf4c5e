package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"kidsclub/middleware"
	"kidsclub/models"
	"kidsclub/services/booking"
	"kidsclub/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// BookingHandler exposes the booking use cases over HTTP.
type BookingHandler struct {
	Service booking.BookingService
}

func NewBookingHandler(svc booking.BookingService) *BookingHandler {
	return &BookingHandler{Service: svc}
}

// bindWire decodes the request body accepting snake_case or camelCase keys.
func bindWire(c *gin.Context, out any) bool {
	return decodeBody(c, out, false)
}

// bindOptionalWire is bindWire for endpoints whose body may be omitted.
func bindOptionalWire(c *gin.Context, out any) bool {
	return decodeBody(c, out, true)
}

func decodeBody(c *gin.Context, out any, optional bool) bool {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return false
	}
	if optional && len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if err := booking.DecodeWireJSON(body, out); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return false
	}
	return true
}

// RequireOwner loads the booking named by :id and lets the request through
// only for its parent or an admin. Others get a 404.
func (h *BookingHandler) RequireOwner(c *gin.Context) {
	rec, err := h.Service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.BookingError(c, err)
		c.Abort()
		return
	}
	if !canAccess(c, rec) {
		utils.JSONError(c, http.StatusNotFound, "booking not found", "")
		c.Abort()
		return
	}
	c.Set("booking", rec)
	c.Next()
}

func canAccess(c *gin.Context, rec *models.BookingRecord) bool {
	return middleware.IsAdmin(c) || rec.ParentID == c.GetString(middleware.ContextParentID)
}

// --- Packages ---

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if !bindWire(c, &req) {
		return
	}
	if strings.TrimSpace(req.ParentGuardian.Email) == "" {
		req.ParentGuardian.Email = c.GetString(middleware.ContextEmail)
	}
	// Parents buy catalog packages or ad-hoc hours; only staff set a price.
	if !middleware.IsAdmin(c) {
		req.PackageBasePrice = 0
	}

	rec, warnings, err := h.Service.CreateBooking(c.Request.Context(), c.GetString(middleware.ContextParentID), req)
	if err != nil {
		utils.BookingError(c, err)
		return
	}
	getLogger(c).Info("booking created", zap.String("bookingId", rec.ID), zap.String("reference", rec.Reference))
	c.JSON(http.StatusCreated, gin.H{"booking": rec, "warnings": warnings})
}

func (h *BookingHandler) ListBookings(c *gin.Context) {
	recs, err := h.Service.ListParentBookings(c.Request.Context(), c.GetString(middleware.ContextParentID))
	if err != nil {
		utils.BookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	c.JSON(http.StatusOK, c.MustGet("booking"))
}

func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	rec, err := h.Service.GetBookingByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		utils.BookingError(c, err)
		return
	}
	if !canAccess(c, rec) {
		utils.JSONError(c, http.StatusNotFound, "booking not found", "")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	var req models.UpdateBookingRequest
	if !bindWire(c, &req) {
		return
	}
	if req.PackageBasePrice != nil && !middleware.IsAdmin(c) {
		utils.JSONError(c, http.StatusForbidden, "only staff can change the package price", "")
		return
	}
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.UpdateBooking(c.Request.Context(), c.Param("id"), req)
	})
}

func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	if err := h.Service.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
		utils.BookingError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Lifecycle ---

func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.ConfirmBooking(c.Request.Context(), c.Param("id"))
	})
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req models.CancelRequest
	if !bindWire(c, &req) {
		return
	}
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.CancelBooking(c.Request.Context(), c.Param("id"), req.Reason)
	})
}

func (h *BookingHandler) AssignHours(c *gin.Context) {
	var req models.AssignHoursRequest
	if !bindWire(c, &req) {
		return
	}
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.AssignHours(c.Request.Context(), c.Param("id"), req.Hours)
	})
}

// --- Payments ---

// ProcessPayment answers 402 with the structured outcome when the gateway
// declines, so the client can offer a retry.
func (h *BookingHandler) ProcessPayment(c *gin.Context) {
	var req models.ProcessPaymentRequest
	if !bindWire(c, &req) {
		return
	}
	outcome, err := h.Service.ProcessPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.BookingError(c, err)
		return
	}
	if !outcome.Success {
		getLogger(c).Info("payment declined", zap.String("bookingId", c.Param("id")), zap.String("reason", outcome.Error))
		c.JSON(http.StatusPaymentRequired, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *BookingHandler) TopUp(c *gin.Context) {
	var req models.TopUpRequest
	if !bindWire(c, &req) {
		return
	}
	checkout, err := h.Service.TopUp(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.BookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// --- Sessions ---

func (h *BookingHandler) AddSession(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	rec, err := h.Service.AddSession(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.BookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *BookingHandler) RescheduleSession(c *gin.Context) {
	var req models.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.RescheduleSession(c.Request.Context(), c.Param("id"), c.Param("scheduleId"), req)
	})
}

func (h *BookingHandler) CancelSession(c *gin.Context) {
	var req models.CancelRequest
	if !bindOptionalWire(c, &req) {
		return
	}
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.CancelSession(c.Request.Context(), c.Param("id"), c.Param("scheduleId"), req.Reason)
	})
}

func (h *BookingHandler) CompleteSession(c *gin.Context) {
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.CompleteSession(c.Request.Context(), c.Param("id"), c.Param("scheduleId"))
	})
}

func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	h.respond(c, func() (*models.BookingRecord, error) {
		return h.Service.MarkNoShow(c.Request.Context(), c.Param("id"), c.Param("scheduleId"))
	})
}

func (h *BookingHandler) respond(c *gin.Context, fn func() (*models.BookingRecord, error)) {
	rec, err := fn()
	if err != nil {
		utils.BookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
