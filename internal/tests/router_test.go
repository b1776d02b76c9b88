package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridecore/internal/app"
	"ridecore/internal/domain"
	"ridecore/internal/handler"
	"ridecore/internal/logging"
	"ridecore/internal/realtime"
	"ridecore/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h *harness) *gin.Engine {
	logger := logging.Discard()
	return app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(h.dispatch, h.rides, h.payments),
		DriverHandler:  handler.NewDriverHandler(h.drivers, h.matching, h.payments, realtime.NewHub(logger)),
		WalletHandler:  handler.NewWalletHandler(h.ledger),
		UserHandler:    handler.NewUserHandler(h.people),
		PaymentHandler: handler.NewPaymentHandler(h.payments),
		MetricsPath:    "/metrics",
		Logger:         logger,
	})
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

// ──────────────────────────────────────────────
// 1. RIDES OVER HTTP
// ──────────────────────────────────────────────

func TestHTTP_RideLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	r := newRouter(h)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", handler.BookRideRequest{
		RiderID:     "r1",
		Pickup:      domain.Point{Lat: 12.97, Lng: 77.59, Text: "MG Road"},
		Drop:        &domain.Point{Lat: 13.01, Lng: 77.61},
		VehicleTier: "bike",
		PaymentType: "cod",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /v1/rides = %d %s", w.Code, w.Body.String())
	}
	booked := decode[handler.BookRideResponse](t, w)
	if booked.OTP == "" || booked.Status != "pending" || booked.Fare.TotalUserPays != 52 {
		t.Errorf("booked = %+v", booked)
	}

	steps := []struct {
		actor string
		event string
		otp   string
		want  int
	}{
		{actor: "d1", event: "accept", want: http.StatusOK},
		{actor: "d1", event: "start", otp: booked.OTP, want: http.StatusConflict},
		{actor: "d1", event: "arrive", want: http.StatusOK},
		{actor: "d1", event: "start", otp: "0000x", want: http.StatusBadRequest},
		{actor: "r1", event: "start", otp: booked.OTP, want: http.StatusForbidden},
		{actor: "d1", event: "start", otp: booked.OTP, want: http.StatusOK},
		{actor: "d1", event: "complete", want: http.StatusOK},
	}
	for i, s := range steps {
		w := doJSON(t, r, http.MethodPost, "/v1/rides/"+booked.ID+"/transitions", handler.TransitionRequest{
			ActorID: s.actor, Event: s.event, OTP: s.otp,
		})
		if w.Code != s.want {
			t.Fatalf("step %d %s by %s = %d, want %d: %s", i, s.event, s.actor, w.Code, s.want, w.Body.String())
		}
	}

	w = doJSON(t, r, http.MethodGet, "/v1/rides/"+booked.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET ride = %d", w.Code)
	}
	if got := decode[handler.RideResponse](t, w); got.Status != "completed" || got.DriverID != "d1" || got.CompletedAt == nil {
		t.Errorf("ride = %+v", got)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/drivers/d1/rides", nil)
	if got := decode[[]handler.RideResponse](t, w); len(got) != 1 {
		t.Errorf("driver history = %d rides, want 1", len(got))
	}
}

func TestHTTP_BookRideErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "garbage body", body: "not an object", want: http.StatusBadRequest},
		{name: "unknown rider", body: handler.BookRideRequest{RiderID: "ghost", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: "bike"}, want: http.StatusNotFound},
		{name: "pickup out of range", body: handler.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 91, Lng: 77.59}, DistanceKm: 5, VehicleTier: "bike"}, want: http.StatusBadRequest},
		{name: "no fare band", body: handler.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: "auto"}, want: http.StatusUnprocessableEntity},
		{name: "wallet too low", body: handler.BookRideRequest{RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: "bike", PaymentType: "wallet"}, want: http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.addRider("r1")
			h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)

			w := doJSON(t, newRouter(h), http.MethodPost, "/v1/rides", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			if decode[handler.ErrorResponse](t, w).Error == "" {
				t.Error("error body should carry a message")
			}
		})
	}
}

func TestHTTP_NoDriverIsUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	w := doJSON(t, newRouter(h), http.MethodPost, "/v1/rides", handler.BookRideRequest{
		RiderID: "r1", Pickup: domain.Point{Lat: 12.97, Lng: 77.59}, DistanceKm: 5, VehicleTier: "bike",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHTTP_CancelRide(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	r := newRouter(h)
	ride := h.book(t, "r1", domain.PaymentTypeCOD)

	w := doJSON(t, r, http.MethodPost, "/v1/rides/"+ride.ID+"/cancel", handler.CancelRideRequest{ActorID: "r1", Reason: "too slow"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel = %d %s", w.Code, w.Body.String())
	}
	res := decode[handler.CancelRideResponse](t, w)
	if res.Ride.Status != "cancelled_by_user" || res.ChargeStatus != service.ChargeStatusFree || res.RemainingFreeCancellations != 1 {
		t.Errorf("cancel = %+v", res)
	}
	if !res.CancellationCharge.IsZero() || !res.UserWalletBalance.IsZero() {
		t.Errorf("charge = %s, balance = %s", res.CancellationCharge, res.UserWalletBalance)
	}

	// Cancelling twice is a conflict.
	w = doJSON(t, r, http.MethodPost, "/v1/rides/"+ride.ID+"/cancel", handler.CancelRideRequest{ActorID: "r1"})
	if w.Code != http.StatusConflict {
		t.Errorf("second cancel = %d, want 409", w.Code)
	}
}

func TestHTTP_UnknownRide(t *testing.T) {
	t.Parallel()

	r := newRouter(newHarness(t))
	for _, path := range []string{"/v1/rides/nope", "/v1/rides/nope/payment"} {
		if w := doJSON(t, r, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, w.Code)
		}
	}
}

// ──────────────────────────────────────────────
// 2. WALLETS AND DRIVERS OVER HTTP
// ──────────────────────────────────────────────

func TestHTTP_Wallet(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	r := newRouter(h)

	w := doJSON(t, r, http.MethodPost, "/v1/wallets/r1/deposit", handler.WalletMutationRequest{Amount: decimal.NewFromInt(100), Description: "top up"})
	if w.Code != http.StatusOK {
		t.Fatalf("deposit = %d %s", w.Code, w.Body.String())
	}
	if got := decode[handler.BalanceResponse](t, w); !got.Balance.Equal(decimal.NewFromInt(100)) || got.Kind != "rider" {
		t.Errorf("deposit = %+v", got)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/wallets/r1/withdraw", handler.WalletMutationRequest{Amount: decimal.NewFromInt(30)})
	if got := decode[handler.BalanceResponse](t, w); !got.Balance.Equal(decimal.NewFromInt(70)) {
		t.Errorf("withdraw = %+v", got)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/wallets/r1/deposit", handler.WalletMutationRequest{Amount: decimal.NewFromInt(-5)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative deposit = %d, want 400", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/wallets/r1/transactions", nil)
	txns := decode[[]handler.TransactionResponse](t, w)
	if len(txns) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txns))
	}

	w = doJSON(t, r, http.MethodPost, "/v1/wallets/d9/withdraw", handler.WalletMutationRequest{Kind: "driver", Amount: decimal.NewFromInt(1)})
	if w.Code != http.StatusPaymentRequired {
		t.Errorf("driver overdraft = %d, want 402", w.Code)
	}
}

func TestHTTP_Drivers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	r := newRouter(h)

	if w := doJSON(t, r, http.MethodPost, "/v1/drivers/d1/location", handler.UpdateLocationRequest{Lat: 12.971, Lng: 77.591}); w.Code != http.StatusNoContent {
		t.Fatalf("location = %d %s", w.Code, w.Body.String())
	}

	w := doJSON(t, r, http.MethodGet, "/v1/drivers/nearest?lat=12.97&lng=77.59&tier=bike", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("nearest = %d %s", w.Code, w.Body.String())
	}
	if got := decode[handler.NearestDriverResponse](t, w); got.Driver.ID != "d1" || got.DistanceKm <= 0 {
		t.Errorf("nearest = %+v", got)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/drivers/live?lat=12.97&lng=77.59&radius_km=3", nil)
	if live := decode[[]handler.LocationResponse](t, w); w.Code != http.StatusOK || len(live) != 1 || live[0].DriverID != "d1" {
		t.Errorf("live = %d %+v", w.Code, live)
	}

	if w := doJSON(t, r, http.MethodGet, "/v1/drivers/nearest?lat=abc&lng=77.59", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad lat = %d, want 400", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/drivers/d1/status", handler.UpdateStatusRequest{Online: ptr(false)})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	if got := decode[handler.DriverStatusResponse](t, w); got.Online {
		t.Errorf("status = %+v, want offline", got)
	}
	if w := doJSON(t, r, http.MethodGet, "/v1/drivers/nearest?lat=12.97&lng=77.59&tier=bike", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("nearest while offline = %d, want 503", w.Code)
	}
}

func TestHTTP_Health(t *testing.T) {
	t.Parallel()

	r := newRouter(newHarness(t))
	if w := doJSON(t, r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("/health = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/metrics", nil); w.Code != http.StatusOK {
		t.Errorf("/metrics = %d", w.Code)
	}
}

func TestHTTP_Receipt(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", domain.VehicleTierBike, 12.98, 77.60)
	r := newRouter(h)
	ride := h.drive(t, h.book(t, "r1", domain.PaymentTypeCOD), "d1")

	w := doJSON(t, r, http.MethodGet, "/v1/rides/"+ride.ID+"/receipt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt = %d %s", w.Code, w.Body.String())
	}
	if got := decode[handler.ReceiptResponse](t, w); got.RideID != ride.ID || got.Fare.TotalUserPays != 52 {
		t.Errorf("receipt = %+v", got)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/rides/"+ride.ID+"/receipt?format=text", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("RIDE RECEIPT")) {
		t.Errorf("text receipt = %d %q", w.Code, w.Body.String())
	}
}
