// README: Base handler utilities (JSON helpers, sentinel-error mapping).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"unipool/internal/modules/admin"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/payment"
	"unipool/internal/modules/trip"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors onto status codes. Every
// rejected transition surfaces a stable message, never a stack trace.
func writeServiceError(c *gin.Context, err error) {
	switch err {
	case trip.ErrBadRequest, booking.ErrBadRequest, payment.ErrBadRequest,
		admin.ErrReasonRequired, admin.ErrInvalidTarget, admin.ErrRefundInvalid,
		payment.ErrRefundExceedsCharge:
		writeError(c, http.StatusBadRequest, err.Error())
	case trip.ErrNotFound, booking.ErrNotFound, payment.ErrNotFound, payment.ErrNoSuchIntent:
		writeError(c, http.StatusNotFound, err.Error())
	case trip.ErrNotTripDriver, booking.ErrNotTripDriver, booking.ErrNotBookingPassenger,
		payment.ErrWrongActor, trip.ErrSuspended, booking.ErrSuspended, trip.ErrPublishBanned:
		writeError(c, http.StatusForbidden, err.Error())
	case trip.ErrInvalidState, trip.ErrConflict, trip.ErrInsufficientCapacity,
		booking.ErrTripNotPublished, booking.ErrTripAlreadyStarted,
		booking.ErrBookingNotPending, booking.ErrBookingNotAccepted, booking.ErrBookingTerminal,
		payment.ErrPaymentWindowClosed, payment.ErrAlreadyCompleted, payment.ErrPaymentConflict,
		payment.ErrNotCashBooking, payment.ErrNoCardCharge:
		writeError(c, http.StatusConflict, err.Error())
	case payment.ErrProcessorUnavailable:
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
