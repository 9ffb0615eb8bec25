package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/booking"
)

func TestExpireStalePendingReleasesOnlyStaleHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, err := f.claim(t, alice, "10:00")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	fresh, err := f.claim(t, bob, "10:30")
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)

	n, err := f.engine.ExpireStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.engine.GetBooking(ctx, stale.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.ReasonExpired, got.CancellationReason)
	assert.True(t, f.slotAt(t, "10:00").Available())

	kept, err := f.engine.GetBooking(ctx, fresh.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, kept.Status)
	assert.False(t, f.slotAt(t, "10:30").Available())

	evs, err := f.engine.Events(ctx, stale.ID)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	assert.Equal(t, booking.EventBookingExpired, evs[len(evs)-1].Type)

	// a second run finds nothing new
	n, err = f.engine.ExpireStalePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireStalePendingIgnoresConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.claim(t, alice, "10:00")
	require.NoError(t, err)
	_, err = f.engine.ConfirmBooking(ctx, b.ID, "pay_1", alice.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	n, err := f.engine.ExpireStalePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.engine.GetBooking(ctx, b.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)

	b, err := f.claim(t, alice, "10:00")
	require.NoError(t, err)
	slotID := b.SlotID
	f.clock.Advance(20 * time.Minute)

	sweeper := booking.NewSweeper(f.engine, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// the first sweep runs before the ticker starts
	require.Eventually(t, func() bool {
		sl, err := f.store.GetSlot(context.Background(), slotID)
		return err == nil && sl.Available()
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperToleratesZeroInterval(t *testing.T) {
	f := newFixture(t)

	sweeper := booking.NewSweeper(f.engine, 0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() { sweeper.Run(ctx) })
}
