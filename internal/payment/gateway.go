// Package payment talks to the payment gateway that collects booking fees.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/apperror"
	"github.com/hackgods/slot-booking/internal/config"
)

var (
	ErrUnknownPayment = apperror.NotFound("payment not found at gateway")
	ErrInvalidAmount  = apperror.Validation("payment amount must be positive")
)

// Intent is a gateway-side payment awaiting the customer's action.
// ClientSecret is handed to the client and comes back as the proof.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64 // minor units
	Currency     string
	Status       string
}

// Expected is what an intent must have been opened for to pay a booking.
type Expected struct {
	BookingID string
	Amount    decimal.Decimal
	Currency  string
}

// matches reports whether an intent opened for bookingID over amount minor
// units of currency pays for e.
func (e Expected) matches(bookingID string, amount int64, currency string) bool {
	return bookingID == e.BookingID &&
		amount == MinorUnits(e.Amount, e.Currency) &&
		strings.EqualFold(currency, e.Currency)
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, bookingID string) (*Intent, error)
	// Verify reports whether the intent was paid, proof matches it and it
	// was opened for want's booking and amount.
	Verify(ctx context.Context, intentID, proof string, want Expected) (bool, error)
	Refund(ctx context.Context, paymentRef, reason string) error
}

// New builds the gateway named by cfg.PaymentProvider.
func New(cfg config.Config, log *zap.Logger) (Gateway, error) {
	switch cfg.PaymentProvider {
	case config.PaymentStripe:
		return NewStripe(cfg.StripeSecretKey, log), nil
	case config.PaymentFake, "":
		return NewFake(), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// MinorUnits converts amount to the smallest currency unit, rounding half away from zero.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}
