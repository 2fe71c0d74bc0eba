// README: Payment handlers; card intent/confirm for passengers, cash confirm for drivers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"unipool/internal/http/middleware"
	"unipool/internal/modules/payment"
	"unipool/internal/types"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(svc *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: svc}
}

func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	res, err := h.payments.CreateIntent(c.Request.Context(), payment.CreateIntentCommand{
		BookingID:   types.ID(c.Param("id")),
		PassengerID: middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"payment_intent_id": res.IntentID,
		"client_secret":     res.ClientSecret,
		"amount":            res.Amount,
	})
}

type confirmReq struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req confirmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}
	tx, err := h.payments.Confirm(c.Request.Context(), payment.ConfirmCommand{
		BookingID:       types.ID(c.Param("id")),
		PassengerID:     middleware.CallerUID(c),
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"transaction_id": tx.ID, "status": tx.Status})
}

func (h *PaymentHandler) SelectCash(c *gin.Context) {
	err := h.payments.SelectCash(c.Request.Context(), payment.SelectCashCommand{
		BookingID:   types.ID(c.Param("id")),
		PassengerID: middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"payment_method": "cash", "payment_status": "pending"})
}

func (h *PaymentHandler) ConfirmCash(c *gin.Context) {
	err := h.payments.ConfirmCash(c.Request.Context(), payment.ConfirmCashCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  middleware.CallerUID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"payment_status": "completed"})
}
