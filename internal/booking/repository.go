package booking

import (
	"context"
	"time"

	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/slot"
)

// Tx is the view of the store inside one atomic unit of work.
type Tx interface {
	GetService(ctx context.Context, id string) (*catalog.Service, error)
	IncrementServiceBookings(ctx context.Context, serviceID string) error

	FindSlot(ctx context.Context, key slot.Key) (*slot.Slot, error)
	// ClaimSlot is a compare-and-swap from available to locked.
	ClaimSlot(ctx context.Context, key slot.Key, holder slot.Holder, at time.Time) (*slot.Slot, error)
	ConfirmSlot(ctx context.Context, slotID, bookingID string, at time.Time) error
	// ReleaseSlot frees the slot only while bookingID holds it.
	ReleaseSlot(ctx context.Context, slotID, bookingID string, at time.Time) (released bool, err error)

	// GetBooking reads the booking for update.
	GetBooking(ctx context.Context, id string) (*Booking, error)
	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBooking(ctx context.Context, b *Booking) error
}

// Repository contains all store interactions needed by the engine.
type Repository interface {
	// InTx runs fn atomically. A non-nil error from fn discards every write.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetBooking(ctx context.Context, id string) (*Booking, error)
	ListBookings(ctx context.Context, filter Filter) ([]Booking, error)

	// Expiry sweep
	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Booking, error)

	// Event logging
	InsertEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, bookingID string) ([]Event, error)
}
