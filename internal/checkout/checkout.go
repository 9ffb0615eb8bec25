// Package checkout drives a claimed booking through the payment gateway and
// issues refunds when a paid booking is cancelled.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/apperror"
	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/identity"
	"github.com/hackgods/slot-booking/internal/payment"
)

var (
	ErrPaymentFailed  = apperror.Validation("payment could not be verified")
	ErrIntentMismatch = apperror.Validation("payment intent does not belong to this booking")
	ErrNotPending     = apperror.Conflict("only pending bookings can be paid")
)

// Engine is the subset of booking.Engine checkout drives.
type Engine interface {
	GetBooking(ctx context.Context, bookingID string, actor identity.Actor) (*booking.Booking, error)
	AttachPaymentIntent(ctx context.Context, bookingID, intentID, actingCustomerID string) (*booking.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID, paymentRef, actingCustomerID string) (*booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string, actor identity.Actor) (*booking.Cancellation, error)
}

type Service struct {
	engine  Engine
	gateway payment.Gateway
	log     *zap.Logger
}

func NewService(engine Engine, gateway payment.Gateway, log *zap.Logger) *Service {
	return &Service{engine: engine, gateway: gateway, log: log}
}

type Started struct {
	Booking *booking.Booking
	Intent  *payment.Intent
}

// StartPayment opens a gateway intent for the booking's frozen price.
func (s *Service) StartPayment(ctx context.Context, bookingID string, actor identity.Actor) (*Started, error) {
	b, err := s.engine.GetBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != actor.ID {
		return nil, booking.ErrForbidden
	}
	if b.Status != booking.StatusPending {
		return nil, ErrNotPending
	}

	intent, err := s.gateway.CreateIntent(ctx, b.Price, b.Currency, b.ID)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	updated, err := s.engine.AttachPaymentIntent(ctx, b.ID, intent.ID, actor.ID)
	if err != nil {
		return nil, err
	}

	return &Started{Booking: updated, Intent: intent}, nil
}

// CompletePayment verifies the payment and confirms the booking with the
// intent as payment reference. Only the intent StartPayment attached to this
// booking is accepted. A verified payment whose booking could not be
// confirmed because it was cancelled in the meantime is refunded.
func (s *Service) CompletePayment(ctx context.Context, bookingID, intentID, proof string, actor identity.Actor) (*booking.Booking, error) {
	if intentID == "" {
		return nil, booking.ErrMissingPaymentRef
	}

	b, err := s.engine.GetBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != actor.ID {
		return nil, booking.ErrForbidden
	}
	if b.PaymentIntentID == "" || b.PaymentIntentID != intentID {
		return nil, ErrIntentMismatch
	}

	ok, err := s.gateway.Verify(ctx, intentID, proof, payment.Expected{
		BookingID: b.ID,
		Amount:    b.Price,
		Currency:  b.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if !ok {
		s.log.Warn("payment verification failed",
			zap.String("booking_id", bookingID),
			zap.String("intent_id", intentID),
		)
		return nil, ErrPaymentFailed
	}

	confirmed, err := s.engine.ConfirmBooking(ctx, bookingID, intentID, actor.ID)
	if err == nil {
		return confirmed, nil
	}

	if errors.Is(err, booking.ErrBookingExpired) || s.cancelledMeanwhile(ctx, bookingID, actor) {
		s.refund(ctx, bookingID, intentID, "booking no longer payable")
	}
	return nil, err
}

type Cancelled struct {
	Booking        *booking.Booking
	RefundEligible bool
	Refunded       bool
	RefundError    string
}

// Cancel cancels the booking and refunds it when it had been paid. A failed
// refund is reported but leaves the cancellation in place.
func (s *Service) Cancel(ctx context.Context, bookingID, reason string, actor identity.Actor) (*Cancelled, error) {
	res, err := s.engine.CancelBooking(ctx, bookingID, reason, actor)
	if err != nil {
		return nil, err
	}

	out := &Cancelled{Booking: res.Booking, RefundEligible: res.RefundEligible}
	if !res.RefundEligible || res.Booking.PaymentRef == "" {
		return out, nil
	}

	if err := s.gateway.Refund(ctx, res.Booking.PaymentRef, reason); err != nil {
		s.log.Error("refund failed after cancellation",
			zap.String("booking_id", bookingID),
			zap.String("payment_ref", res.Booking.PaymentRef),
			zap.Error(err),
		)
		out.RefundError = err.Error()
		return out, nil
	}

	out.Refunded = true
	return out, nil
}

func (s *Service) cancelledMeanwhile(ctx context.Context, bookingID string, actor identity.Actor) bool {
	b, err := s.engine.GetBooking(ctx, bookingID, actor)
	return err == nil && b.Status == booking.StatusCancelled
}

func (s *Service) refund(ctx context.Context, bookingID, paymentRef, reason string) {
	if err := s.gateway.Refund(ctx, paymentRef, reason); err != nil {
		s.log.Error("refund of unconfirmable payment failed",
			zap.String("booking_id", bookingID),
			zap.String("payment_ref", paymentRef),
			zap.Error(err),
		)
		return
	}
	s.log.Info("refunded payment for unconfirmable booking",
		zap.String("booking_id", bookingID),
		zap.String("payment_ref", paymentRef),
	)
}
