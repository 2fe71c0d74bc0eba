// README: Handler tests for request validation and boundary authorization checks.
package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"unipool/internal/http/handlers"
	"unipool/internal/http/middleware"
	"unipool/internal/modules/admin"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/payment"
	"unipool/internal/modules/trip"
)

const testSecret = "handler-test-secret"

// buildTestRouter wires the auth middleware and handlers over services with
// nil dependencies; every case below must fail at the boundary before any
// service method runs.
func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(testSecret))

	tripHandler := handlers.NewTripHandler(trip.NewService(nil, nil, nil))
	bookingHandler := handlers.NewBookingHandler(booking.NewService(nil, nil, nil, nil, nil), nil)
	paymentHandler := handlers.NewPaymentHandler(payment.NewService(nil, nil, nil, nil, nil))
	adminHandler := handlers.NewAdminHandler(admin.NewService(nil, nil, nil, nil, nil), nil)

	r.POST("/api/trips", tripHandler.Create)
	r.POST("/api/trips/:id/bookings", bookingHandler.Create)
	r.POST("/api/bookings/:id/payment/confirm", paymentHandler.Confirm)
	r.POST("/api/admin/users/:id/suspend", adminHandler.SuspendUser)
	r.POST("/api/admin/bookings/:id/correct", adminHandler.CorrectBooking)
	return r
}

func signToken(t *testing.T, sub, role string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "role": role,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTrip_Unauthenticated(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(t, r, http.MethodPost, "/api/trips", map[string]any{
		"origin": "A", "destination": "B",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCreateTrip_InvalidBody(t *testing.T) {
	r := buildTestRouter()
	token := signToken(t, "d1", "driver")

	cases := []map[string]any{
		{},
		{"origin": "A", "destination": "B", "departure_at": "2026-09-01T10:00:00Z", "currency": "EUR"},             // no seats
		{"origin": "A", "destination": "B", "departure_at": "2026-09-01T10:00:00Z", "currency": "EURO", "total_seats": 2}, // bad currency
		{"origin": "A", "destination": "B", "currency": "EUR", "total_seats": 2},                                   // no departure
	}
	for i, body := range cases {
		if w := doRequest(t, r, http.MethodPost, "/api/trips", body, token); w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestCreateBooking_InvalidSeats(t *testing.T) {
	r := buildTestRouter()
	token := signToken(t, "p1", "passenger")

	for _, body := range []map[string]any{{}, {"seats": 0}, {"seats": -1}} {
		if w := doRequest(t, r, http.MethodPost, "/api/trips/t1/bookings", body, token); w.Code != http.StatusBadRequest {
			t.Errorf("seats %v: expected 400, got %d", body["seats"], w.Code)
		}
	}
}

func TestConfirmPayment_MissingIntent(t *testing.T) {
	r := buildTestRouter()
	token := signToken(t, "p1", "passenger")

	if w := doRequest(t, r, http.MethodPost, "/api/bookings/b1/payment/confirm", map[string]any{}, token); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSuspend_SelfActionForbidden(t *testing.T) {
	r := buildTestRouter()
	token := signToken(t, "a1", "admin")

	w := doRequest(t, r, http.MethodPost, "/api/admin/users/a1/suspend", map[string]any{
		"reason": "trying to suspend myself",
	}, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestCorrectBooking_MissingFields(t *testing.T) {
	r := buildTestRouter()
	token := signToken(t, "a1", "admin")

	for i, body := range []map[string]any{
		{},
		{"target": "declined_by_admin"}, // no reason
		{"reason": "booking stuck"},     // no target
	} {
		if w := doRequest(t, r, http.MethodPost, "/api/admin/bookings/b1/correct", body, token); w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, w.Code)
		}
	}
}
