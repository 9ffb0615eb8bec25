// Package schedule projects a provider's calendar: every slot in a date
// range next to the booking that currently explains its state.
package schedule

import (
	"context"
	"fmt"

	"github.com/hackgods/slot-booking/internal/apperror"
	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/identity"
	"github.com/hackgods/slot-booking/internal/slot"
)

var ErrNotOwner = apperror.Forbidden("only the provider can view this schedule")

// Entry pairs a slot with its active booking, or with the most recent
// booking when none is active. Booking is nil for never-booked slots.
type Entry struct {
	Slot    slot.Slot
	Booking *booking.Booking
}

type BookingLister interface {
	ListBookings(ctx context.Context, filter booking.Filter) ([]booking.Booking, error)
}

type View struct {
	slots    slot.Store
	bookings BookingLister
}

func NewView(slots slot.Store, bookings BookingLister) *View {
	return &View{slots: slots, bookings: bookings}
}

func (v *View) ProviderSchedule(ctx context.Context, actor identity.Actor, providerID string, r slot.Range) ([]Entry, error) {
	if !actor.IsProvider() || actor.ID != providerID {
		return nil, ErrNotOwner
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	slots, err := v.slots.ListByProvider(ctx, providerID, r)
	if err != nil {
		return nil, fmt.Errorf("list provider slots: %w", err)
	}
	bookings, err := v.bookings.ListBookings(ctx, booking.Filter{
		ProviderID: providerID,
		Date:       r.Date,
		From:       r.From,
		To:         r.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list provider bookings: %w", err)
	}

	bySlot := make(map[string]*booking.Booking, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		cur, seen := bySlot[b.SlotID]
		if !seen || preferred(b, cur) {
			bySlot[b.SlotID] = b
		}
	}

	slot.SortByDateTime(slots)
	entries := make([]Entry, 0, len(slots))
	for _, sl := range slots {
		entries = append(entries, Entry{Slot: sl, Booking: bySlot[sl.ID]})
	}
	return entries, nil
}

// preferred reports whether candidate should replace current for a slot.
func preferred(candidate, current *booking.Booking) bool {
	if candidate.Status.Active() != current.Status.Active() {
		return candidate.Status.Active()
	}
	return candidate.CreatedAt.After(current.CreatedAt)
}
