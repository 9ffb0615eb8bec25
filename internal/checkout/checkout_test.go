package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/checkout"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/identity"
	"github.com/hackgods/slot-booking/internal/payment"
	redisclient "github.com/hackgods/slot-booking/internal/redis"
	"github.com/hackgods/slot-booking/internal/slot"
	"github.com/hackgods/slot-booking/internal/storage/memory"
)

var (
	provider = identity.Actor{ID: "prov-1", Role: identity.RoleProvider}
	alice    = identity.Actor{ID: "cust-1", Role: identity.RoleCustomer}
	bob      = identity.Actor{ID: "cust-2", Role: identity.RoleCustomer}
)

type harness struct {
	svc     *checkout.Service
	engine  *booking.Engine
	catalog *catalog.Catalog
	store   *memory.Store
	gateway *payment.Fake
	booking *booking.Booking
	advance func(time.Duration)
}

func setup(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()
	store := memory.New()

	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	cat := catalog.New(store, "INR", log)
	svc, err := cat.Create(ctx, provider, catalog.CreateRequest{
		Name: "Consultation", Duration: 30, Price: decimal.NewFromInt(299),
	})
	require.NoError(t, err)
	_, err = store.Generate(ctx, provider.ID, "2026-02-01", []slot.Spec{{Time: "10:00"}})
	require.NoError(t, err)

	engine := booking.NewEngine(store, redisclient.NewLocalSlotLocker(),
		config.Config{BookingTTL: 15 * time.Minute, SweepBatch: 10}, log, booking.WithClock(clock))

	b, err := engine.ClaimSlot(ctx, booking.ClaimRequest{
		CustomerID: alice.ID, ServiceID: svc.ID, ProviderID: provider.ID, Date: "2026-02-01", Time: "10:00",
	})
	require.NoError(t, err)

	gw := payment.NewFake()
	return &harness{
		svc:     checkout.NewService(engine, gw, log),
		engine:  engine,
		catalog: cat,
		store:   store,
		gateway: gw,
		booking: b,
		advance: advance,
	}
}

func TestPaymentHappyPath(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	started, err := h.svc.StartPayment(ctx, h.booking.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(29900), started.Intent.Amount)
	assert.Equal(t, started.Intent.ID, started.Booking.PaymentIntentID)

	confirmed, err := h.svc.CompletePayment(ctx, h.booking.ID, started.Intent.ID, started.Intent.ClientSecret, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
	assert.Equal(t, started.Intent.ID, confirmed.PaymentRef)

	_, err = h.svc.StartPayment(ctx, h.booking.ID, alice)
	assert.ErrorIs(t, err, checkout.ErrNotPending)
}

func TestStartPaymentOnlyForOwner(t *testing.T) {
	h := setup(t)

	_, err := h.svc.StartPayment(context.Background(), h.booking.ID, bob)
	assert.ErrorIs(t, err, booking.ErrForbidden)

	_, err = h.svc.StartPayment(context.Background(), h.booking.ID, provider)
	assert.ErrorIs(t, err, booking.ErrForbidden)
}

func TestFailedVerificationLeavesBookingPending(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	started, err := h.svc.StartPayment(ctx, h.booking.ID, alice)
	require.NoError(t, err)

	_, err = h.svc.CompletePayment(ctx, h.booking.ID, started.Intent.ID, "forged", alice)
	require.ErrorIs(t, err, checkout.ErrPaymentFailed)

	_, err = h.svc.CompletePayment(ctx, h.booking.ID, "pi_other", started.Intent.ClientSecret, alice)
	require.ErrorIs(t, err, checkout.ErrIntentMismatch)

	b, err := h.engine.GetBooking(ctx, h.booking.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
}

func TestIntentOfAnotherBookingIsRejected(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	cheap, err := h.catalog.Create(ctx, provider, catalog.CreateRequest{
		Name: "Follow-up", Duration: 30, Price: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	_, err = h.store.Generate(ctx, provider.ID, "2026-02-01", []slot.Spec{{Time: "10:30"}})
	require.NoError(t, err)
	paid, err := h.engine.ClaimSlot(ctx, booking.ClaimRequest{
		CustomerID: alice.ID, ServiceID: cheap.ID, ProviderID: provider.ID, Date: "2026-02-01", Time: "10:30",
	})
	require.NoError(t, err)

	started, err := h.svc.StartPayment(ctx, paid.ID, alice)
	require.NoError(t, err)
	_, err = h.svc.CompletePayment(ctx, paid.ID, started.Intent.ID, started.Intent.ClientSecret, alice)
	require.NoError(t, err)

	// no intent of its own yet
	_, err = h.svc.CompletePayment(ctx, h.booking.ID, started.Intent.ID, started.Intent.ClientSecret, alice)
	assert.ErrorIs(t, err, checkout.ErrIntentMismatch)

	_, err = h.svc.StartPayment(ctx, h.booking.ID, alice)
	require.NoError(t, err)
	_, err = h.svc.CompletePayment(ctx, h.booking.ID, started.Intent.ID, started.Intent.ClientSecret, alice)
	assert.ErrorIs(t, err, checkout.ErrIntentMismatch)

	b, err := h.engine.GetBooking(ctx, h.booking.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Empty(t, b.PaymentRef)
}

func TestPaymentAfterExpiryIsRefunded(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	started, err := h.svc.StartPayment(ctx, h.booking.ID, alice)
	require.NoError(t, err)

	h.advance(20 * time.Minute)

	_, err = h.svc.CompletePayment(ctx, h.booking.ID, started.Intent.ID, started.Intent.ClientSecret, alice)
	require.ErrorIs(t, err, booking.ErrBookingExpired)
	assert.Len(t, h.gateway.Refunds(started.Intent.ID), 1)
}

func TestCancelRefundsPaidBooking(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	started, err := h.svc.StartPayment(ctx, h.booking.ID, alice)
	require.NoError(t, err)
	_, err = h.svc.CompletePayment(ctx, h.booking.ID, started.Intent.ID, started.Intent.ClientSecret, alice)
	require.NoError(t, err)

	res, err := h.svc.Cancel(ctx, h.booking.ID, "sick", alice)
	require.NoError(t, err)
	assert.True(t, res.RefundEligible)
	assert.True(t, res.Refunded)
	assert.Empty(t, res.RefundError)
	assert.Equal(t, []string{"sick"}, h.gateway.Refunds(started.Intent.ID))
}

func TestCancelKeepsCancellationWhenRefundFails(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	started, err := h.svc.StartPayment(ctx, h.booking.ID, alice)
	require.NoError(t, err)
	_, err = h.svc.CompletePayment(ctx, h.booking.ID, started.Intent.ID, started.Intent.ClientSecret, alice)
	require.NoError(t, err)

	h.gateway.FailRefunds(errors.New("gateway timeout"))

	res, err := h.svc.Cancel(ctx, h.booking.ID, "", provider)
	require.NoError(t, err)
	assert.True(t, res.RefundEligible)
	assert.False(t, res.Refunded)
	assert.Equal(t, "gateway timeout", res.RefundError)
	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)
}

func TestCancelPendingNeedsNoRefund(t *testing.T) {
	h := setup(t)

	res, err := h.svc.Cancel(context.Background(), h.booking.ID, "", alice)
	require.NoError(t, err)
	assert.False(t, res.RefundEligible)
	assert.False(t, res.Refunded)
}
