// README: Driver-facing trip handlers (create, publish, start, complete, list).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"unipool/internal/http/middleware"
	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	Origin             string    `json:"origin" binding:"required"`
	Destination        string    `json:"destination" binding:"required"`
	DepartureAt        time.Time `json:"departure_at" binding:"required"`
	EstimatedArrivalAt time.Time `json:"estimated_arrival_at"`
	PricePerSeat       int64     `json:"price_per_seat"`
	Currency           string    `json:"currency" binding:"required,len=3"`
	TotalSeats         int       `json:"total_seats" binding:"required,min=1"`
	Notes              string    `json:"notes"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	id, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		DriverID:           middleware.CallerUID(c),
		Origin:             req.Origin,
		Destination:        req.Destination,
		DepartureAt:        req.DepartureAt,
		EstimatedArrivalAt: req.EstimatedArrivalAt,
		PricePerSeat:       types.Money{Amount: req.PricePerSeat, Currency: req.Currency},
		TotalSeats:         req.TotalSeats,
		Notes:              req.Notes,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"trip_id": id, "status": trip.StatusDraft})
}

func (h *TripHandler) Publish(c *gin.Context) {
	err := h.trips.Publish(c.Request.Context(), trip.PublishCommand{
		TripID:   types.ID(c.Param("id")),
		DriverID: middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": trip.StatusPublished})
}

func (h *TripHandler) Start(c *gin.Context) {
	err := h.trips.Start(c.Request.Context(), trip.StartCommand{
		TripID:   types.ID(c.Param("id")),
		DriverID: middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": trip.StatusInProgress})
}

func (h *TripHandler) Complete(c *gin.Context) {
	err := h.trips.Complete(c.Request.Context(), trip.CompleteCommand{
		TripID:   types.ID(c.Param("id")),
		DriverID: middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": trip.StatusCompleted})
}

func (h *TripHandler) Get(c *gin.Context) {
	t, err := h.trips.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tripView(t))
}

func (h *TripHandler) ListMine(c *gin.Context) {
	list, err := h.trips.ListByDriver(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, t := range list {
		out = append(out, tripView(t))
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": out})
}

func tripView(t *trip.Trip) gin.H {
	return gin.H{
		"trip_id":         t.ID,
		"driver_id":       t.DriverID,
		"origin":          t.Origin,
		"destination":     t.Destination,
		"departure_at":    t.DepartureAt,
		"price_per_seat":  t.PricePerSeat,
		"total_seats":     t.TotalSeats,
		"remaining_seats": t.RemainingSeats(),
		"status":          t.Status,
		"notes":           t.Notes,
	}
}
