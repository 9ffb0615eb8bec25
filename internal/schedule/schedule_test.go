package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/identity"
	redisclient "github.com/hackgods/slot-booking/internal/redis"
	"github.com/hackgods/slot-booking/internal/schedule"
	"github.com/hackgods/slot-booking/internal/slot"
	"github.com/hackgods/slot-booking/internal/storage/memory"
)

func TestProviderSchedule(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log := zap.NewNop()
	provider := identity.Actor{ID: "prov-1", Role: identity.RoleProvider}
	customer := identity.Actor{ID: "cust-1", Role: identity.RoleCustomer}

	svc, err := catalog.New(store, "INR", log).Create(ctx, provider, catalog.CreateRequest{
		Name: "Yoga", Duration: 30, Price: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	_, err = store.Generate(ctx, provider.ID, "2026-02-02", []slot.Spec{{Time: "09:00"}})
	require.NoError(t, err)
	_, err = store.Generate(ctx, provider.ID, "2026-02-01", []slot.Spec{{Time: "11:00"}, {Time: "10:00"}})
	require.NoError(t, err)

	now := time.Date(2026, 1, 30, 8, 0, 0, 0, time.UTC)
	engine := booking.NewEngine(store, redisclient.NewLocalSlotLocker(),
		config.Config{BookingTTL: time.Hour, SweepBatch: 10}, log,
		booking.WithClock(func() time.Time { now = now.Add(time.Second); return now }))

	claim := func(at string) *booking.Booking {
		b, err := engine.ClaimSlot(ctx, booking.ClaimRequest{
			CustomerID: customer.ID, ServiceID: svc.ID, ProviderID: provider.ID, Date: "2026-02-01", Time: at,
		})
		require.NoError(t, err)
		return b
	}

	// 10:00 was cancelled once, then claimed again
	first := claim("10:00")
	_, err = engine.CancelBooking(ctx, first.ID, "", customer)
	require.NoError(t, err)
	second := claim("10:00")

	// 11:00 only has a cancelled booking
	lone := claim("11:00")
	_, err = engine.CancelBooking(ctx, lone.ID, "", provider)
	require.NoError(t, err)

	view := schedule.NewView(store, store)

	entries, err := view.ProviderSchedule(ctx, provider, provider.ID, slot.Range{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "2026-02-01", entries[0].Slot.Date)
	assert.Equal(t, "10:00", entries[0].Slot.Time)
	require.NotNil(t, entries[0].Booking)
	assert.Equal(t, second.ID, entries[0].Booking.ID)

	assert.Equal(t, "11:00", entries[1].Slot.Time)
	require.NotNil(t, entries[1].Booking)
	assert.Equal(t, lone.ID, entries[1].Booking.ID)
	assert.Equal(t, booking.StatusCancelled, entries[1].Booking.Status)

	assert.Equal(t, "2026-02-02", entries[2].Slot.Date)
	assert.Nil(t, entries[2].Booking)

	day, err := view.ProviderSchedule(ctx, provider, provider.ID, slot.Range{Date: "2026-02-02"})
	require.NoError(t, err)
	assert.Len(t, day, 1)

	window, err := view.ProviderSchedule(ctx, provider, provider.ID, slot.Range{From: "2026-02-01", To: "2026-02-01"})
	require.NoError(t, err)
	assert.Len(t, window, 2)
}

func TestProviderScheduleGuards(t *testing.T) {
	store := memory.New()
	view := schedule.NewView(store, store)
	ctx := context.Background()

	_, err := view.ProviderSchedule(ctx, identity.Actor{ID: "cust-1", Role: identity.RoleCustomer}, "cust-1", slot.Range{})
	assert.ErrorIs(t, err, schedule.ErrNotOwner)

	_, err = view.ProviderSchedule(ctx, identity.Actor{ID: "prov-2", Role: identity.RoleProvider}, "prov-1", slot.Range{})
	assert.ErrorIs(t, err, schedule.ErrNotOwner)

	_, err = view.ProviderSchedule(ctx, identity.Actor{ID: "prov-1", Role: identity.RoleProvider}, "prov-1", slot.Range{From: "yesterday"})
	assert.ErrorIs(t, err, slot.ErrInvalidDate)
}
