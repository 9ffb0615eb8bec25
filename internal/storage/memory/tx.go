package memory

import (
	"context"
	"time"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/slot"
)

// memTx runs with the store's write lock held. Every write pushes an undo
// step so a failed unit of work leaves the maps as they were.
type memTx struct {
	s    *Store
	undo []func()
}

var _ booking.Tx = (*memTx)(nil)

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) GetService(_ context.Context, id string) (*catalog.Service, error) {
	svc, ok := t.s.services[id]
	if !ok {
		return nil, catalog.ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

func (t *memTx) IncrementServiceBookings(_ context.Context, serviceID string) error {
	svc, ok := t.s.services[serviceID]
	if !ok {
		return catalog.ErrServiceNotFound
	}
	prev := svc.BookingCount
	svc.BookingCount++
	t.undo = append(t.undo, func() { svc.BookingCount = prev })
	return nil
}

func (t *memTx) FindSlot(_ context.Context, key slot.Key) (*slot.Slot, error) {
	sl, err := t.s.findSlotLocked(key)
	if err != nil {
		return nil, err
	}
	cp := cloneSlot(sl)
	return &cp, nil
}

func (t *memTx) ClaimSlot(_ context.Context, key slot.Key, holder slot.Holder, at time.Time) (*slot.Slot, error) {
	sl, err := t.s.findSlotLocked(key)
	if err != nil {
		return nil, err
	}
	prev := cloneSlot(sl)
	if err := sl.Lock(holder, at); err != nil {
		return nil, err
	}
	t.undo = append(t.undo, func() { *sl = prev })

	cp := cloneSlot(sl)
	return &cp, nil
}

func (t *memTx) ConfirmSlot(_ context.Context, slotID, bookingID string, at time.Time) error {
	sl, ok := t.s.slots[slotID]
	if !ok {
		return slot.ErrSlotNotFound
	}
	prev := cloneSlot(sl)
	if err := sl.Confirm(bookingID, at); err != nil {
		return err
	}
	t.undo = append(t.undo, func() { *sl = prev })
	return nil
}

func (t *memTx) ReleaseSlot(_ context.Context, slotID, bookingID string, at time.Time) (bool, error) {
	sl, ok := t.s.slots[slotID]
	if !ok {
		return false, slot.ErrSlotNotFound
	}
	if !sl.HeldBy(bookingID) {
		return false, nil
	}
	prev := cloneSlot(sl)
	sl.Reset(at)
	t.undo = append(t.undo, func() { *sl = prev })
	return true, nil
}

func (t *memTx) GetBooking(_ context.Context, id string) (*booking.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	cp := cloneBooking(b)
	return &cp, nil
}

// InsertBooking refuses a second active booking for the same slot.
func (t *memTx) InsertBooking(_ context.Context, b *booking.Booking) error {
	s := t.s
	if _, exists := s.bookings[b.ID]; exists {
		return booking.ErrInvalidState
	}
	for _, id := range s.bookingsBySlot[b.SlotID] {
		if s.bookings[id].Status.Active() {
			return slot.ErrSlotTaken
		}
	}

	cp := cloneBooking(b)
	s.bookings[b.ID] = &cp

	prevBySlot := s.bookingsBySlot[b.SlotID]
	prevByCust := s.bookingsByCust[b.CustomerID]
	s.bookingsBySlot[b.SlotID] = append(prevBySlot[:len(prevBySlot):len(prevBySlot)], b.ID)
	s.bookingsByCust[b.CustomerID] = append(prevByCust[:len(prevByCust):len(prevByCust)], b.ID)
	s.bookingsByService[b.ServiceID]++

	t.undo = append(t.undo, func() {
		delete(s.bookings, b.ID)
		s.bookingsBySlot[b.SlotID] = prevBySlot
		s.bookingsByCust[b.CustomerID] = prevByCust
		s.bookingsByService[b.ServiceID]--
	})
	return nil
}

func (t *memTx) UpdateBooking(_ context.Context, b *booking.Booking) error {
	prev, ok := t.s.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	cp := cloneBooking(b)
	t.s.bookings[b.ID] = &cp
	t.undo = append(t.undo, func() { t.s.bookings[b.ID] = prev })
	return nil
}
