// README: Booking handlers for both actor sides (create/cancel vs accept/decline).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"unipool/internal/http/middleware"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
	trips    *trip.Service
}

func NewBookingHandler(bookings *booking.Service, trips *trip.Service) *BookingHandler {
	return &BookingHandler{bookings: bookings, trips: trips}
}

type createBookingReq struct {
	Seats int    `json:"seats" binding:"required,min=1"`
	Note  string `json:"note"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	id, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		TripID:      types.ID(c.Param("id")),
		PassengerID: middleware.CallerUID(c),
		Seats:       req.Seats,
		Note:        req.Note,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"booking_id": id, "status": booking.StatusPending})
}

func (h *BookingHandler) Accept(c *gin.Context) {
	err := h.bookings.Accept(c.Request.Context(), booking.AcceptCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusAccepted})
}

func (h *BookingHandler) Decline(c *gin.Context) {
	err := h.bookings.Decline(c.Request.Context(), booking.DeclineCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusDeclined})
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID:   types.ID(c.Param("id")),
		PassengerID: middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusCanceledByPassenger})
}

func (h *BookingHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	b, err := h.bookings.Get(ctx, types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	t, err := h.trips.Get(ctx, b.TripID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	uid := middleware.CallerUID(c)
	if uid != b.PassengerID && uid != t.DriverID && middleware.CallerRole(c) != types.RoleAdmin {
		writeError(c, http.StatusForbidden, "not a party to this booking")
		return
	}
	writeJSON(c, http.StatusOK, bookingView(b, t.Status))
}

func (h *BookingHandler) ListMine(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.bookings.ListByPassenger(ctx, middleware.CallerUID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, b := range list {
		t, err := h.trips.Get(ctx, b.TripID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		out = append(out, bookingView(b, t.Status))
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) ListByTrip(c *gin.Context) {
	ctx := c.Request.Context()
	t, err := h.trips.Get(ctx, types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if middleware.CallerUID(c) != t.DriverID && middleware.CallerRole(c) != types.RoleAdmin {
		writeError(c, http.StatusForbidden, "not the trip driver")
		return
	}
	list, err := h.bookings.ListByTrip(ctx, t.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, b := range list {
		out = append(out, bookingView(b, t.Status))
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out})
}

func bookingView(b *booking.Booking, tripStatus trip.Status) gin.H {
	return gin.H{
		"booking_id":      b.ID,
		"trip_id":         b.TripID,
		"passenger_id":    b.PassengerID,
		"seats":           b.Seats,
		"status":          b.Status,
		"effective_state": booking.Effective(b, tripStatus),
		"note":            b.Note,
		"payment_method":  b.PaymentMethod,
		"payment_status":  b.PaymentStatus,
		"created_at":      b.CreatedAt,
	}
}
