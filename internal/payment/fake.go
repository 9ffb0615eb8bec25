package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fake is an in-process gateway. Every intent counts as paid; the proof
// must equal the intent's client secret.
type Fake struct {
	mu        sync.Mutex
	intents   map[string]*fakeIntent
	refundErr error
}

type fakeIntent struct {
	Intent
	bookingID string
	refunds   []string
}

func NewFake() *Fake {
	return &Fake{intents: make(map[string]*fakeIntent)}
}

func (f *Fake) CreateIntent(_ context.Context, amount decimal.Decimal, currency, bookingID string) (*Intent, error) {
	minor := MinorUnits(amount, currency)
	if minor <= 0 {
		return nil, ErrInvalidAmount
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	in := &fakeIntent{
		Intent: Intent{
			ID:           "pi_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			ClientSecret: "secret_" + uuid.NewString(),
			Amount:       minor,
			Currency:     strings.ToUpper(currency),
			Status:       "succeeded",
		},
		bookingID: bookingID,
	}
	f.intents[in.ID] = in

	out := in.Intent
	return &out, nil
}

func (f *Fake) Verify(_ context.Context, intentID, proof string, want Expected) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	in, ok := f.intents[intentID]
	if !ok || proof == "" || proof != in.ClientSecret {
		return false, nil
	}
	return want.matches(in.bookingID, in.Amount, in.Currency), nil
}

func (f *Fake) Refund(_ context.Context, paymentRef, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refundErr != nil {
		return f.refundErr
	}
	in, ok := f.intents[paymentRef]
	if !ok {
		return ErrUnknownPayment
	}
	in.refunds = append(in.refunds, reason)
	return nil
}

// FailRefunds makes every later Refund return err; nil restores success.
func (f *Fake) FailRefunds(err error) {
	f.mu.Lock()
	f.refundErr = err
	f.mu.Unlock()
}

// Refunds returns the reasons of refunds issued against paymentRef.
func (f *Fake) Refunds(paymentRef string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	in, ok := f.intents[paymentRef]
	if !ok {
		return nil
	}
	return append([]string(nil), in.refunds...)
}

// Intent returns the stored intent, for tests and the simulator.
func (f *Fake) Intent(id string) (*Intent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	in, ok := f.intents[id]
	if !ok {
		return nil, false
	}
	out := in.Intent
	return &out, true
}
