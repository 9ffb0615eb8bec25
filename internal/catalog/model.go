package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/slot-booking/internal/apperror"
)

var (
	ErrServiceNotFound   = apperror.NotFound("service not found")
	ErrNotServiceOwner   = apperror.Forbidden("service belongs to another provider")
	ErrProviderOnly      = apperror.Forbidden("only providers can manage services")
	ErrInvalidName       = apperror.Validation("name is required")
	ErrInvalidDuration   = apperror.Validation("duration must be a positive number of minutes")
	ErrInvalidPrice      = apperror.Validation("price must not be negative")
	ErrInvalidStatus     = apperror.Validation("status must be one of active, paused, archived")
	ErrServiceNotActive  = apperror.Validation("service is not accepting bookings")
	ErrServiceReferenced = apperror.Conflict("service is referenced by bookings")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusArchived:
		return true
	}
	return false
}

// Service is a bookable offering owned by a provider.
type Service struct {
	ID           string
	ProviderID   string
	ProviderName string
	Name         string
	Description  string
	Category     string
	Duration     int // minutes
	Price        decimal.Decimal
	Currency     string
	Status       Status
	Capacity     int
	BookingCount int
	Rating       float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Bookable reports whether new claims may reference the service.
func (s *Service) Bookable() bool {
	return s.Status == StatusActive
}

type Filter struct {
	ProviderID string
	Category   string
	Status     Status
}
