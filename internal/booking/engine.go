package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/identity"
	redisclient "github.com/hackgods/slot-booking/internal/redis"
	"github.com/hackgods/slot-booking/internal/slot"
)

const ReasonExpired = "expired"

type ClaimRequest struct {
	CustomerID   string
	CustomerName string
	ServiceID    string
	ProviderID   string
	Date         string
	Time         string
}

type Engine struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Engine)

// WithClock replaces the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repo Repository, locker redisclient.Locker, cfg config.Config, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClaimSlot locks the requested slot and creates a pending booking for it.
// The slot check and the slot write happen in one transaction under the
// slot's lock, so concurrent claims on the same slot see exactly one winner.
func (e *Engine) ClaimSlot(ctx context.Context, req ClaimRequest) (*Booking, error) {
	if req.CustomerID == "" || req.ServiceID == "" || req.ProviderID == "" || req.Date == "" || req.Time == "" {
		return nil, ErrMissingFields
	}
	if err := slot.ValidateDate(req.Date); err != nil {
		return nil, err
	}
	if err := slot.ValidateTime(req.Time); err != nil {
		return nil, err
	}

	key := slot.Key{ProviderID: req.ProviderID, Date: req.Date, Time: req.Time}
	var created *Booking

	err := e.locker.WithSlotLock(ctx, key.String(), func(lockCtx context.Context) error {
		return e.repo.InTx(lockCtx, func(ctx context.Context, tx Tx) error {
			svc, err := tx.GetService(ctx, req.ServiceID)
			if err != nil {
				if errors.Is(err, catalog.ErrServiceNotFound) {
					return ErrUnknownService
				}
				return fmt.Errorf("load service: %w", err)
			}
			if svc.ProviderID != req.ProviderID {
				return ErrServiceProvider
			}
			if !svc.Bookable() {
				return catalog.ErrServiceNotActive
			}

			current, err := tx.FindSlot(ctx, key)
			if err != nil {
				return err
			}
			if !current.Available() {
				return slot.ErrSlotTaken
			}
			if current.Duration < svc.Duration {
				return ErrSlotTooShort
			}

			now := e.now().UTC()
			bookingID := uuid.NewString()
			claimed, err := tx.ClaimSlot(ctx, key, slot.Holder{BookingID: bookingID, CustomerID: req.CustomerID}, now)
			if err != nil {
				return err
			}

			b := &Booking{
				ID:              bookingID,
				CustomerID:      req.CustomerID,
				CustomerName:    req.CustomerName,
				ProviderID:      svc.ProviderID,
				ProviderName:    svc.ProviderName,
				ServiceID:       svc.ID,
				ServiceName:     svc.Name,
				ServiceCategory: svc.Category,
				SlotID:          claimed.ID,
				Date:            claimed.Date,
				Time:            claimed.Time,
				Duration:        svc.Duration,
				Price:           svc.Price,
				Currency:        svc.Currency,
				Status:          StatusPending,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := tx.InsertBooking(ctx, b); err != nil {
				return fmt.Errorf("insert booking: %w", err)
			}
			if err := tx.IncrementServiceBookings(ctx, svc.ID); err != nil {
				return fmt.Errorf("increment service bookings: %w", err)
			}

			created = b
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, slot.ErrSlotBusy
		}
		return nil, err
	}

	e.logEvent(ctx, created.ID, EventBookingClaimed, map[string]any{
		"slot_id":     created.SlotID,
		"customer_id": created.CustomerID,
		"price":       created.Price.String(),
	})
	e.log.Info("slot claimed",
		zap.String("booking_id", created.ID),
		zap.String("slot", key.String()),
		zap.String("customer_id", created.CustomerID),
	)

	return created, nil
}

// ConfirmBooking records payment for a pending booking and confirms its slot.
// A pending booking past its hold is cancelled instead and ErrBookingExpired
// is returned.
func (e *Engine) ConfirmBooking(ctx context.Context, bookingID, paymentRef, actingCustomerID string) (*Booking, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return nil, ErrMissingPaymentRef
	}

	b, err := e.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != actingCustomerID {
		return nil, ErrForbidden
	}

	var (
		confirmed *Booking
		expired   bool
	)
	err = e.withBookingTx(ctx, b, func(ctx context.Context, tx Tx, current *Booking) error {
		if current.Status != StatusPending {
			return ErrInvalidState
		}

		now := e.now().UTC()
		if current.Stale(now, e.cfg.BookingTTL) {
			expired = true
			return e.cancelInTx(ctx, tx, current, ReasonExpired, now)
		}

		if err := tx.ConfirmSlot(ctx, current.SlotID, current.ID, now); err != nil {
			return fmt.Errorf("confirm slot: %w", err)
		}

		current.Status = StatusConfirmed
		current.PaymentRef = paymentRef
		current.ConfirmedAt = &now
		current.UpdatedAt = now
		if err := tx.UpdateBooking(ctx, current); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		confirmed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		e.logEvent(ctx, bookingID, EventBookingExpired, map[string]any{
			"reason": "confirm_after_expiry",
		})
		return nil, ErrBookingExpired
	}

	e.logEvent(ctx, bookingID, EventBookingConfirmed, map[string]any{
		"payment_ref": paymentRef,
	})
	return confirmed, nil
}

// CancelBooking cancels a pending or confirmed booking and frees its slot.
// Either the customer or the provider may cancel.
func (e *Engine) CancelBooking(ctx context.Context, bookingID, reason string, actor identity.Actor) (*Cancellation, error) {
	b, err := e.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.ID != b.CustomerID && actor.ID != b.ProviderID {
		return nil, ErrForbidden
	}

	var result *Cancellation
	err = e.withBookingTx(ctx, b, func(ctx context.Context, tx Tx, current *Booking) error {
		if !current.Status.CanTransition(StatusCancelled) {
			return ErrInvalidState
		}

		prior := current.Status
		if err := e.cancelInTx(ctx, tx, current, reason, e.now().UTC()); err != nil {
			return err
		}

		result = &Cancellation{
			Booking:        current,
			RefundEligible: prior == StatusConfirmed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, bookingID, EventBookingCancelled, map[string]any{
		"reason":          reason,
		"cancelled_by":    actor.ID,
		"refund_eligible": result.RefundEligible,
	})
	return result, nil
}

// CompleteBooking marks a confirmed booking as rendered. The slot stays taken.
func (e *Engine) CompleteBooking(ctx context.Context, bookingID, actingProviderID string) (*Booking, error) {
	b, err := e.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.ProviderID != actingProviderID {
		return nil, ErrForbidden
	}

	var completed *Booking
	err = e.withBookingTx(ctx, b, func(ctx context.Context, tx Tx, current *Booking) error {
		if !current.Status.CanTransition(StatusCompleted) {
			return ErrInvalidState
		}
		now := e.now().UTC()
		current.Status = StatusCompleted
		current.CompletedAt = &now
		current.UpdatedAt = now
		if err := tx.UpdateBooking(ctx, current); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		completed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, bookingID, EventBookingCompleted, map[string]any{})
	return completed, nil
}

// AttachPaymentIntent remembers the gateway intent created for a pending booking.
func (e *Engine) AttachPaymentIntent(ctx context.Context, bookingID, intentID, actingCustomerID string) (*Booking, error) {
	b, err := e.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != actingCustomerID {
		return nil, ErrForbidden
	}

	var updated *Booking
	err = e.withBookingTx(ctx, b, func(ctx context.Context, tx Tx, current *Booking) error {
		if current.Status != StatusPending {
			return ErrInvalidState
		}
		current.PaymentIntentID = intentID
		current.UpdatedAt = e.now().UTC()
		if err := tx.UpdateBooking(ctx, current); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logEvent(ctx, bookingID, EventPaymentStarted, map[string]any{"intent_id": intentID})
	return updated, nil
}

// GetBooking returns the booking when actor is its customer or provider.
func (e *Engine) GetBooking(ctx context.Context, bookingID string, actor identity.Actor) (*Booking, error) {
	b, err := e.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.ID != b.CustomerID && actor.ID != b.ProviderID {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListBookings returns the provider's bookings for providers and the
// customer's own bookings otherwise, newest first.
func (e *Engine) ListBookings(ctx context.Context, actor identity.Actor, filter Filter) ([]Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatusFilter
	}
	if filter.Date != "" {
		if err := slot.ValidateDate(filter.Date); err != nil {
			return nil, err
		}
	}

	filter.CustomerID, filter.ProviderID = "", ""
	if actor.IsProvider() {
		filter.ProviderID = actor.ID
	} else {
		filter.CustomerID = actor.ID
	}

	bookings, err := e.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Date != bookings[j].Date {
			return bookings[i].Date > bookings[j].Date
		}
		return bookings[i].Time > bookings[j].Time
	})
	return bookings, nil
}

func (e *Engine) Events(ctx context.Context, bookingID string) ([]Event, error) {
	return e.repo.ListEvents(ctx, bookingID)
}

// withBookingTx runs fn under the booking's slot lock with a fresh copy of
// the booking read inside the transaction.
func (e *Engine) withBookingTx(ctx context.Context, b *Booking, fn func(ctx context.Context, tx Tx, current *Booking) error) error {
	key := slot.Key{ProviderID: b.ProviderID, Date: b.Date, Time: b.Time}

	err := e.locker.WithSlotLock(ctx, key.String(), func(lockCtx context.Context) error {
		return e.repo.InTx(lockCtx, func(ctx context.Context, tx Tx) error {
			current, err := tx.GetBooking(ctx, b.ID)
			if err != nil {
				return err
			}
			return fn(ctx, tx, current)
		})
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrBusy
	}
	return err
}

// cancelInTx is the single release path shared by cancellation, expiry on
// confirm and the sweep.
func (e *Engine) cancelInTx(ctx context.Context, tx Tx, b *Booking, reason string, now time.Time) error {
	released, err := tx.ReleaseSlot(ctx, b.SlotID, b.ID, now)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if !released {
		e.log.Warn("slot was not held by cancelled booking",
			zap.String("booking_id", b.ID),
			zap.String("slot_id", b.SlotID),
		)
	}

	b.Status = StatusCancelled
	b.CancellationReason = reason
	b.CancelledAt = &now
	b.UpdatedAt = now
	if err := tx.UpdateBooking(ctx, b); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}

func (e *Engine) logEvent(ctx context.Context, bookingID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := Event{
		Type:      eventType,
		BookingID: bookingID,
		Payload:   data,
		CreatedAt: e.now().UTC(),
	}

	if err := e.repo.InsertEvent(ctx, ev); err != nil {
		e.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
	}
}
