package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/slot-booking/internal/apperror"
)

var (
	ErrBookingNotFound     = apperror.NotFound("booking not found")
	ErrInvalidState        = apperror.Conflict("booking is not in a state that allows this action")
	ErrBookingExpired      = apperror.Conflict("booking hold expired, please pick a slot again")
	ErrBusy                = apperror.Conflict("booking is being modified, please retry shortly")
	ErrForbidden           = apperror.Forbidden("not authorized for this booking")
	ErrMissingFields       = apperror.Validation("customer, service, provider, date and time are required")
	ErrMissingPaymentRef   = apperror.Validation("payment reference is required")
	ErrUnknownService      = apperror.Validation("referenced service does not exist")
	ErrServiceProvider     = apperror.Validation("service is not offered by this provider")
	ErrSlotTooShort        = apperror.Validation("slot is shorter than the service duration")
	ErrInvalidStatusFilter = apperror.Validation("status must be one of pending, confirmed, cancelled, completed")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal states admit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Active bookings hold their slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking is a customer's reservation of a slot. Price, Currency and
// Duration are copied from the service when the slot is claimed.
type Booking struct {
	ID                 string
	CustomerID         string
	CustomerName       string
	ProviderID         string
	ProviderName       string
	ServiceID          string
	ServiceName        string
	ServiceCategory    string
	SlotID             string
	Date               string
	Time               string
	Duration           int
	Price              decimal.Decimal
	Currency           string
	Status             Status
	PaymentRef         string
	PaymentIntentID    string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
}

// Stale reports whether a pending booking has outlived ttl.
func (b *Booking) Stale(now time.Time, ttl time.Duration) bool {
	return b.Status == StatusPending && b.CreatedAt.Add(ttl).Before(now)
}

// Cancellation is the outcome of cancelling a booking.
type Cancellation struct {
	Booking        *Booking
	RefundEligible bool
}

type Filter struct {
	CustomerID string
	ProviderID string
	Status     Status
	Date       string
	From       string
	To         string
}

type Event struct {
	ID        int64
	Type      string
	BookingID string
	Payload   []byte
	CreatedAt time.Time
}

const (
	EventBookingClaimed   = "BOOKING_CLAIMED"
	EventBookingConfirmed = "BOOKING_CONFIRMED"
	EventBookingCancelled = "BOOKING_CANCELLED"
	EventBookingExpired   = "BOOKING_EXPIRED"
	EventBookingCompleted = "BOOKING_COMPLETED"
	EventPaymentStarted   = "PAYMENT_STARTED"
)
