package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/api"
	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/checkout"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/identity"
	"github.com/hackgods/slot-booking/internal/payment"
	redisclient "github.com/hackgods/slot-booking/internal/redis"
	"github.com/hackgods/slot-booking/internal/schedule"
	"github.com/hackgods/slot-booking/internal/storage/memory"
)

const testDate = "2026-03-10"

var (
	provider = identity.Actor{ID: "prov-1", Role: identity.RoleProvider, Name: "Studio Nine"}
	alice    = identity.Actor{ID: "cust-1", Role: identity.RoleCustomer, Name: "Alice"}
	bob      = identity.Actor{ID: "cust-2", Role: identity.RoleCustomer, Name: "Bob"}
)

type server struct {
	t       *testing.T
	handler http.Handler
	gateway *payment.Fake
}

func newServer(t *testing.T, rateLimit int) *server {
	t.Helper()

	store := memory.New()
	log := zap.NewNop()
	cfg := config.Config{BookingTTL: 15 * time.Minute, SweepBatch: 100, DefaultCurrency: "INR"}

	cat := catalog.New(store, cfg.DefaultCurrency, log)
	engine := booking.NewEngine(store, redisclient.NewLocalSlotLocker(), cfg, log)
	gateway := payment.NewFake()

	handler := api.NewRouter(api.RouterConfig{
		Catalog:         cat,
		Slots:           store,
		Engine:          engine,
		Checkout:        checkout.NewService(engine, gateway, log),
		Schedule:        schedule.NewView(store, store),
		Log:             log,
		RateLimitPerMin: rateLimit,
		Env:             "test",
		Version:         "dev",
	})
	return &server{t: t, handler: handler, gateway: gateway}
}

func (s *server) do(method, path string, actor *identity.Actor, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(api.HeaderUserID, actor.ID)
		req.Header.Set(api.HeaderUserRole, string(actor.Role))
		req.Header.Set(api.HeaderUserName, actor.Name)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed creates a 30 minute service with two slots and returns the service.
func (s *server) seed() api.ServiceResponse {
	s.t.Helper()

	rec := s.do(http.MethodPost, "/v1/provider/services", &provider, map[string]any{
		"name":     "Deep tissue massage",
		"category": "wellness",
		"duration": 30,
		"price":    "450.00",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	svc := decode[api.ServiceResponse](s.t, rec)

	rec = s.do(http.MethodPost, "/v1/provider/slots", &provider, api.GenerateSlotsRequest{
		Date:  testDate,
		Slots: []api.SlotSpec{{Time: "09:00"}, {Time: "09:30"}},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return svc
}

func (s *server) claim(actor identity.Actor, svc api.ServiceResponse, at string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/v1/bookings", &actor, api.ClaimBookingRequest{
		ServiceID:  svc.ID,
		ProviderID: svc.ProviderID,
		Date:       testDate,
		Time:       at,
	})
}

func TestHealthAndFallbacks(t *testing.T) {
	s := newServer(t, 0)

	rec := s.do(http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[api.ReadinessResponse](t, rec)
	assert.Equal(t, "disabled", ready.Dependencies["postgres"])
	assert.Equal(t, "disabled", ready.Dependencies["redis"])

	rec = s.do(http.MethodGet, "/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[api.ErrorResponse](t, rec).Error)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIdentityRequired(t *testing.T) {
	s := newServer(t, 0)

	rec := s.do(http.MethodGet, "/v1/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/v1/provider/services", &alice, map[string]any{"name": "x", "duration": 30})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.Header.Set(api.HeaderUserID, "u-1")
	req.Header.Set(api.HeaderUserRole, "admin")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCatalogAndAvailability(t *testing.T) {
	s := newServer(t, 0)
	svc := s.seed()

	assert.Equal(t, "INR", svc.Currency)
	assert.Equal(t, "active", svc.Status)
	assert.Equal(t, provider.Name, svc.ProviderName)

	rec := s.do(http.MethodGet, "/v1/services?category=wellness", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ServiceResponse](t, rec), 1)

	rec = s.do(http.MethodGet, "/v1/services/"+svc.ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/v1/services/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// regenerating the same times creates nothing
	rec = s.do(http.MethodPost, "/v1/provider/slots", &provider, api.GenerateSlotsRequest{
		Date:  testDate,
		Slots: []api.SlotSpec{{Time: "09:00"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 0, decode[api.GenerateSlotsResponse](t, rec).Count)

	rec = s.do(http.MethodGet, "/v1/slots/available?provider_id="+provider.ID+"&date="+testDate+"&service_id="+svc.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]api.SlotResponse](t, rec)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].Time)

	rec = s.do(http.MethodGet, "/v1/slots/available?date="+testDate, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	name := "Hot stone massage"
	rec = s.do(http.MethodPut, "/v1/provider/services/"+svc.ID, &provider, api.UpdateServiceRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, name, decode[api.ServiceResponse](t, rec).Name)

	rec = s.do(http.MethodPatch, "/v1/provider/services/"+svc.ID+"/status", &provider, api.ServiceStatusRequest{Status: "paused"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paused", decode[api.ServiceResponse](t, rec).Status)

	rec = s.do(http.MethodGet, "/v1/provider/services", &provider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ServiceResponse](t, rec), 1)

	rec = s.do(http.MethodDelete, "/v1/provider/services/"+svc.ID, &provider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	del := decode[api.DeleteServiceResponse](t, rec)
	assert.True(t, del.Deleted)
	assert.False(t, del.Archived)
}

func TestBookingLifecycle(t *testing.T) {
	s := newServer(t, 0)
	svc := s.seed()

	rec := s.claim(alice, svc, "09:00")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[api.BookingResponse](t, rec)
	assert.Equal(t, "pending", b.Status)
	assert.Equal(t, "450", b.Price.String())

	rec = s.claim(bob, svc, "09:00")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[api.ErrorResponse](t, rec).Error)

	rec = s.do(http.MethodGet, "/v1/bookings/"+b.ID, &bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/payment-intent", &alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	intent := decode[api.PaymentIntentResponse](t, rec)
	assert.Equal(t, int64(45000), intent.Amount)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/payment/verify", &alice, api.VerifyPaymentRequest{
		IntentID: intent.IntentID,
		Proof:    "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/payment/verify", &alice, api.VerifyPaymentRequest{
		IntentID: intent.IntentID,
		Proof:    intent.ClientSecret,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[api.BookingResponse](t, rec)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.Equal(t, intent.IntentID, confirmed.PaymentRef)

	rec = s.do(http.MethodGet, "/v1/provider/schedule?date="+testDate, &provider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.ScheduleEntryResponse](t, rec)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Booking)
	assert.Equal(t, b.ID, entries[0].Booking.ID)
	assert.Nil(t, entries[1].Booking)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/cancel", &alice, api.CancelBookingRequest{Reason: "sick"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[api.CancelBookingResponse](t, rec)
	assert.Equal(t, "cancelled", cancelled.Booking.Status)
	assert.True(t, cancelled.RefundEligible)
	assert.True(t, cancelled.Refunded)
	assert.Equal(t, []string{"sick"}, s.gateway.Refunds(intent.IntentID))

	rec = s.do(http.MethodGet, "/v1/bookings/"+b.ID+"/events", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]api.EventResponse](t, rec)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		booking.EventBookingClaimed,
		booking.EventPaymentStarted,
		booking.EventBookingConfirmed,
		booking.EventBookingCancelled,
	}, types)

	// the slot is free again
	rec = s.claim(bob, svc, "09:00")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodDelete, "/v1/provider/services/"+svc.ID, &provider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[api.DeleteServiceResponse](t, rec).Archived)
}

func TestConfirmAndComplete(t *testing.T) {
	s := newServer(t, 0)
	svc := s.seed()

	b := decode[api.BookingResponse](t, s.claim(alice, svc, "09:30"))

	rec := s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", &alice, api.VerifyPaymentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a made-up reference without a started payment never confirms
	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", &alice, map[string]string{"payment_ref": "cash-001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", &alice, api.VerifyPaymentRequest{IntentID: "cash-001", Proof: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/v1/bookings/"+b.ID, &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decode[api.BookingResponse](t, rec).Status)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/payment-intent", &alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	intent := decode[api.PaymentIntentResponse](t, rec)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", &alice, api.VerifyPaymentRequest{
		IntentID: intent.IntentID,
		Proof:    intent.ClientSecret,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, intent.IntentID, decode[api.BookingResponse](t, rec).PaymentRef)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/complete", &alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/complete", &provider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode[api.BookingResponse](t, rec).Status)

	rec = s.do(http.MethodPost, "/v1/bookings/"+b.ID+"/cancel", &alice, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/v1/bookings?status=completed", &provider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.BookingResponse](t, rec), 1)

	rec = s.do(http.MethodGet, "/v1/bookings", &bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.BookingResponse](t, rec))

	rec = s.do(http.MethodGet, "/v1/bookings?status=bogus", &alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	s := newServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", bytes.NewBufferString("{not json"))
	req.Header.Set(api.HeaderUserID, alice.ID)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[api.ErrorResponse](t, rec).Error)
}

func TestPaymentCannotConfirmAnotherBooking(t *testing.T) {
	s := newServer(t, 0)
	svc := s.seed()

	paid := decode[api.BookingResponse](t, s.claim(alice, svc, "09:00"))
	other := decode[api.BookingResponse](t, s.claim(alice, svc, "09:30"))

	rec := s.do(http.MethodPost, "/v1/bookings/"+paid.ID+"/payment-intent", &alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	intent := decode[api.PaymentIntentResponse](t, rec)

	for _, path := range []string{"/confirm", "/payment/verify"} {
		rec = s.do(http.MethodPost, "/v1/bookings/"+other.ID+path, &alice, api.VerifyPaymentRequest{
			IntentID: intent.IntentID,
			Proof:    intent.ClientSecret,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec = s.do(http.MethodGet, "/v1/bookings/"+other.ID, &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decode[api.BookingResponse](t, rec).Status)
}

func TestClaimRateLimited(t *testing.T) {
	s := newServer(t, 1)
	svc := s.seed()

	rec := s.claim(alice, svc, "09:00")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.claim(alice, svc, "09:30")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// limits are per user
	rec = s.claim(bob, svc, "09:30")
	assert.Equal(t, http.StatusCreated, rec.Code)
}
