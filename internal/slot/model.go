package slot

import (
	"fmt"
	"time"

	"github.com/hackgods/slot-booking/internal/apperror"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	DefaultDuration = 30
)

var (
	ErrSlotNotFound    = apperror.NotFound("slot not found")
	ErrSlotTaken       = apperror.Conflict("slot already booked")
	ErrSlotBusy        = apperror.Conflict("slot is currently being booked, please pick another or retry shortly")
	ErrHolderMismatch  = apperror.Conflict("slot is held by a different booking")
	ErrInvalidDate     = apperror.Validation("date must be formatted as YYYY-MM-DD")
	ErrInvalidTime     = apperror.Validation("time must be formatted as HH:MM")
	ErrInvalidDuration = apperror.Validation("slot duration must be a positive number of minutes")
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusLocked    Status = "locked"
	StatusConfirmed Status = "confirmed"
)

// Holder identifies the booking that owns a non-available slot.
type Holder struct {
	BookingID  string
	CustomerID string
}

// Slot is a bookable unit of a provider's calendar with capacity 1.
// Holder and LockedAt are nil exactly when Status is available.
type Slot struct {
	ID         string
	ProviderID string
	Date       string // YYYY-MM-DD
	Time       string // HH:MM
	Duration   int    // minutes
	Capacity   int
	Status     Status
	Holder     *Holder
	LockedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s *Slot) Available() bool {
	return s.Status == StatusAvailable
}

// HeldBy reports whether bookingID currently holds the slot.
func (s *Slot) HeldBy(bookingID string) bool {
	return s.Holder != nil && s.Holder.BookingID == bookingID
}

// Lock moves an available slot to locked for holder.
func (s *Slot) Lock(holder Holder, at time.Time) error {
	if !s.Available() {
		return ErrSlotTaken
	}
	h := holder
	t := at
	s.Status = StatusLocked
	s.Holder = &h
	s.LockedAt = &t
	s.UpdatedAt = at
	return nil
}

// Confirm marks a slot locked by bookingID as confirmed.
func (s *Slot) Confirm(bookingID string, at time.Time) error {
	if !s.HeldBy(bookingID) {
		return ErrHolderMismatch
	}
	s.Status = StatusConfirmed
	s.UpdatedAt = at
	return nil
}

// Reset returns the slot to available and clears its holder.
func (s *Slot) Reset(at time.Time) {
	s.Status = StatusAvailable
	s.Holder = nil
	s.LockedAt = nil
	s.UpdatedAt = at
}

// Key is the (provider, date, time) identity of a slot.
type Key struct {
	ProviderID string
	Date       string
	Time       string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.ProviderID, k.Date, k.Time)
}

func (s *Slot) Key() Key {
	return Key{ProviderID: s.ProviderID, Date: s.Date, Time: s.Time}
}

// Spec describes a slot to generate.
type Spec struct {
	Time     string
	Duration int
}

// Range bounds a date query; empty fields are open-ended. Date pins a single day.
type Range struct {
	Date string
	From string
	To   string
}

func (r Range) Contains(date string) bool {
	if r.Date != "" && date != r.Date {
		return false
	}
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

func ValidateTime(t string) error {
	if len(t) != len(TimeLayout) {
		return ErrInvalidTime
	}
	if _, err := time.Parse(TimeLayout, t); err != nil {
		return ErrInvalidTime
	}
	return nil
}

func (r Range) Validate() error {
	for _, d := range []string{r.Date, r.From, r.To} {
		if d == "" {
			continue
		}
		if err := ValidateDate(d); err != nil {
			return err
		}
	}
	return nil
}
