package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/schedule"
	"github.com/hackgods/slot-booking/internal/slot"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Catalog

type CreateServiceRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Duration    int             `json:"duration"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}

type UpdateServiceRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Duration    *int             `json:"duration,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

type ServiceStatusRequest struct {
	Status string `json:"status"`
}

type ServiceResponse struct {
	ID           string          `json:"id"`
	ProviderID   string          `json:"provider_id"`
	ProviderName string          `json:"provider_name"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category"`
	Duration     int             `json:"duration"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
	Capacity     int             `json:"capacity"`
	BookingCount int             `json:"booking_count"`
	Rating       float64         `json:"rating"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type DeleteServiceResponse struct {
	ID       string `json:"id"`
	Deleted  bool   `json:"deleted"`
	Archived bool   `json:"archived"`
}

func toServiceResponse(s *catalog.Service) ServiceResponse {
	return ServiceResponse{
		ID:           s.ID,
		ProviderID:   s.ProviderID,
		ProviderName: s.ProviderName,
		Name:         s.Name,
		Description:  s.Description,
		Category:     s.Category,
		Duration:     s.Duration,
		Price:        s.Price,
		Currency:     s.Currency,
		Status:       string(s.Status),
		Capacity:     s.Capacity,
		BookingCount: s.BookingCount,
		Rating:       s.Rating,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Slots

type SlotSpec struct {
	Time     string `json:"time"`
	Duration int    `json:"duration"`
}

type GenerateSlotsRequest struct {
	Date  string     `json:"date"`
	Slots []SlotSpec `json:"slots"`
}

type GenerateSlotsResponse struct {
	Created []SlotResponse `json:"created"`
	Count   int            `json:"count"`
}

type SlotResponse struct {
	ID         string     `json:"id"`
	ProviderID string     `json:"provider_id"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Duration   int        `json:"duration"`
	Status     string     `json:"status"`
	BookingID  string     `json:"booking_id,omitempty"`
	CustomerID string     `json:"customer_id,omitempty"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
}

func toSlotResponse(s slot.Slot) SlotResponse {
	resp := SlotResponse{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		Date:       s.Date,
		Time:       s.Time,
		Duration:   s.Duration,
		Status:     string(s.Status),
		LockedAt:   s.LockedAt,
	}
	if s.Holder != nil {
		resp.BookingID = s.Holder.BookingID
		resp.CustomerID = s.Holder.CustomerID
	}
	return resp
}

func toSlotResponses(slots []slot.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

// Bookings

type ClaimBookingRequest struct {
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type VerifyPaymentRequest struct {
	IntentID string `json:"intent_id"`
	Proof    string `json:"proof"`
}

type BookingResponse struct {
	ID                 string          `json:"id"`
	CustomerID         string          `json:"customer_id"`
	CustomerName       string          `json:"customer_name,omitempty"`
	ProviderID         string          `json:"provider_id"`
	ProviderName       string          `json:"provider_name,omitempty"`
	ServiceID          string          `json:"service_id"`
	ServiceName        string          `json:"service_name"`
	ServiceCategory    string          `json:"service_category,omitempty"`
	SlotID             string          `json:"slot_id"`
	Date               string          `json:"date"`
	Time               string          `json:"time"`
	Duration           int             `json:"duration"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency"`
	Status             string          `json:"status"`
	PaymentRef         string          `json:"payment_ref,omitempty"`
	PaymentIntentID    string          `json:"payment_intent_id,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

type CancelBookingResponse struct {
	Booking        BookingResponse `json:"booking"`
	RefundEligible bool            `json:"refund_eligible"`
	Refunded       bool            `json:"refunded"`
	RefundError    string          `json:"refund_error,omitempty"`
}

type PaymentIntentResponse struct {
	BookingID    string `json:"booking_id"`
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		CustomerName:       b.CustomerName,
		ProviderID:         b.ProviderID,
		ProviderName:       b.ProviderName,
		ServiceID:          b.ServiceID,
		ServiceName:        b.ServiceName,
		ServiceCategory:    b.ServiceCategory,
		SlotID:             b.SlotID,
		Date:               b.Date,
		Time:               b.Time,
		Duration:           b.Duration,
		Price:              b.Price,
		Currency:           b.Currency,
		Status:             string(b.Status),
		PaymentRef:         b.PaymentRef,
		PaymentIntentID:    b.PaymentIntentID,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CompletedAt:        b.CompletedAt,
	}
}

type EventResponse struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	BookingID string          `json:"booking_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Schedule

type ScheduleEntryResponse struct {
	Slot    SlotResponse     `json:"slot"`
	Booking *BookingResponse `json:"booking,omitempty"`
}

func toScheduleResponse(entries []schedule.Entry) []ScheduleEntryResponse {
	out := make([]ScheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := ScheduleEntryResponse{Slot: toSlotResponse(e.Slot)}
		if e.Booking != nil {
			b := toBookingResponse(e.Booking)
			item.Booking = &b
		}
		out = append(out, item)
	}
	return out
}
