// README: Admin console handlers; privileged overrides with mandatory reasons.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"unipool/internal/http/middleware"
	"unipool/internal/modules/admin"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/payment"
	"unipool/internal/types"
)

type AdminHandler struct {
	admin    *admin.Service
	payments *payment.Service
}

func NewAdminHandler(adminSvc *admin.Service, payments *payment.Service) *AdminHandler {
	return &AdminHandler{admin: adminSvc, payments: payments}
}

type reasonReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *AdminHandler) ForceCancelTrip(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	err := h.admin.ForceCancelTrip(c.Request.Context(), admin.ForceCancelTripCommand{
		TripID:  types.ID(c.Param("id")),
		ActorID: middleware.CallerUID(c),
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "canceled"})
}

type correctBookingReq struct {
	Target string `json:"target" binding:"required"`
	Reason string `json:"reason" binding:"required"`
	Refund *struct {
		Amount int64 `json:"amount"`
	} `json:"refund"`
}

func (h *AdminHandler) CorrectBooking(c *gin.Context) {
	var req correctBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	cmd := admin.CorrectBookingCommand{
		BookingID: types.ID(c.Param("id")),
		Target:    booking.Status(req.Target),
		ActorID:   middleware.CallerUID(c),
		Reason:    req.Reason,
	}
	if req.Refund != nil {
		cmd.Refund = true
		cmd.RefundAmount = req.Refund.Amount
	}
	if err := h.admin.CorrectBookingState(c.Request.Context(), cmd); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.Target})
}

func (h *AdminHandler) SuspendUser(c *gin.Context) {
	h.suspension(c, true)
}

func (h *AdminHandler) UnsuspendUser(c *gin.Context) {
	h.suspension(c, false)
}

// suspension handles both directions; the self-action guard lives here, at
// the API boundary, because it is an authorization rule, not lifecycle logic.
func (h *AdminHandler) suspension(c *gin.Context, suspend bool) {
	target := types.ID(c.Param("id"))
	if target == middleware.CallerUID(c) {
		writeError(c, http.StatusForbidden, "admins cannot suspend or unsuspend themselves")
		return
	}
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	cmd := admin.SuspendCommand{
		UserID:  target,
		ActorID: middleware.CallerUID(c),
		Reason:  req.Reason,
	}
	var err error
	if suspend {
		err = h.admin.SuspendUser(c.Request.Context(), cmd)
	} else {
		err = h.admin.UnsuspendUser(c.Request.Context(), cmd)
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"suspended": suspend})
}

type publishBanReq struct {
	BanUntil *time.Time `json:"ban_until"`
	Reason   string     `json:"reason" binding:"required"`
}

func (h *AdminHandler) SetPublishBan(c *gin.Context) {
	var req publishBanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	err := h.admin.SetDriverPublishBan(c.Request.Context(), admin.PublishBanCommand{
		DriverID: types.ID(c.Param("id")),
		ActorID:  middleware.CallerUID(c),
		BanUntil: req.BanUntil,
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"banned": req.BanUntil != nil})
}

func (h *AdminHandler) History(c *gin.Context) {
	list, err := h.admin.History(c.Request.Context(), c.Param("entity"), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, a := range list {
		out = append(out, gin.H{
			"id":         a.ID,
			"action":     a.Action,
			"actor_id":   a.ActorID,
			"reason":     a.Reason,
			"created_at": a.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"actions": out})
}

func (h *AdminHandler) ListTransactions(c *gin.Context) {
	list, err := h.payments.ListByBooking(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, t := range list {
		view := gin.H{
			"transaction_id": t.ID,
			"amount":         t.Amount,
			"status":         t.Status,
			"created_at":     t.CreatedAt,
		}
		if t.PaymentIntentID != nil {
			view["payment_intent_id"] = *t.PaymentIntentID
		}
		if t.RefundOf != nil {
			view["refund_of"] = *t.RefundOf
		}
		out = append(out, view)
	}
	writeJSON(c, http.StatusOK, gin.H{"transactions": out})
}
