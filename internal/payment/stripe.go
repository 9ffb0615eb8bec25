package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

type Stripe struct {
	api *client.API
	log *zap.Logger
}

func NewStripe(secretKey string, log *zap.Logger) *Stripe {
	return &Stripe{
		api: client.New(secretKey, nil),
		log: log,
	}
}

// newStripeAt points the client at baseURL instead of api.stripe.com.
func newStripeAt(secretKey, baseURL string, log *zap.Logger) *Stripe {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &Stripe{
		api: client.New(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		log: log,
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, bookingID string) (*Intent, error) {
	minor := MinorUnits(amount, currency)
	if minor <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", bookingID)
	params.SetIdempotencyKey("booking-" + bookingID)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	s.log.Info("payment intent created",
		zap.String("booking_id", bookingID),
		zap.String("intent_id", pi.ID),
		zap.Int64("amount", pi.Amount),
	)
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       string(pi.Status),
	}, nil
}

func (s *Stripe) Verify(ctx context.Context, intentID, proof string, want Expected) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		if isResourceMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("fetch payment intent: %w", err)
	}

	if pi.ClientSecret != proof {
		s.log.Warn("payment proof mismatch", zap.String("intent_id", intentID))
		return false, nil
	}
	if !want.matches(pi.Metadata["booking_id"], pi.Amount, string(pi.Currency)) {
		s.log.Warn("payment intent opened for another booking or amount",
			zap.String("intent_id", intentID),
			zap.String("booking_id", want.BookingID),
			zap.String("intent_booking_id", pi.Metadata["booking_id"]),
			zap.Int64("intent_amount", pi.Amount),
		)
		return false, nil
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func (s *Stripe) Refund(ctx context.Context, paymentRef, reason string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	r, err := s.api.Refunds.New(params)
	if err != nil {
		if isResourceMissing(err) {
			return ErrUnknownPayment
		}
		return fmt.Errorf("create refund: %w", err)
	}

	s.log.Info("refund issued",
		zap.String("payment_ref", paymentRef),
		zap.String("refund_id", r.ID),
		zap.String("status", string(r.Status)),
	)
	return nil
}

func isResourceMissing(err error) bool {
	var se *stripe.Error
	return errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing
}
