package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/checkout"
)

func claimBookingHandler(engine *booking.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClaimBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		actor := actorFrom(r)
		b, err := engine.ClaimSlot(r.Context(), booking.ClaimRequest{
			CustomerID:   actor.ID,
			CustomerName: actor.Name,
			ServiceID:    req.ServiceID,
			ProviderID:   req.ProviderID,
			Date:         req.Date,
			Time:         req.Time,
		})
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func listBookingsHandler(engine *booking.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		bookings, err := engine.ListBookings(r.Context(), actorFrom(r), booking.Filter{
			Status: booking.Status(q.Get("status")),
			Date:   q.Get("date"),
			From:   q.Get("start_date"),
			To:     q.Get("end_date"),
		})
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getBookingHandler(engine *booking.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := engine.GetBooking(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// bookingEventsHandler returns the audit trail of a booking the caller can see.
func bookingEventsHandler(engine *booking.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := engine.GetBooking(r.Context(), id, actorFrom(r)); err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		events, err := engine.Events(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		resp := make([]EventResponse, 0, len(events))
		for _, e := range events {
			item := EventResponse{ID: e.ID, Type: e.Type, BookingID: e.BookingID, CreatedAt: e.CreatedAt}
			if len(e.Payload) > 0 {
				item.Payload = json.RawMessage(e.Payload)
			}
			resp = append(resp, item)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelBookingHandler(svc *checkout.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelBookingRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}

		res, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason, actorFrom(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, CancelBookingResponse{
			Booking:        toBookingResponse(res.Booking),
			RefundEligible: res.RefundEligible,
			Refunded:       res.Refunded,
			RefundError:    res.RefundError,
		})
	}
}

func completeBookingHandler(engine *booking.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := engine.CompleteBooking(r.Context(), chi.URLParam(r, "id"), actorFrom(r).ID)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func startPaymentHandler(svc *checkout.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started, err := svc.StartPayment(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, PaymentIntentResponse{
			BookingID:    started.Booking.ID,
			IntentID:     started.Intent.ID,
			ClientSecret: started.Intent.ClientSecret,
			Amount:       started.Intent.Amount,
			Currency:     started.Intent.Currency,
		})
	}
}

// verifyPaymentHandler confirms the booking once the gateway reports the
// booking's own intent as paid. It serves both /confirm and /payment/verify;
// there is no way to confirm without a verified payment.
func verifyPaymentHandler(svc *checkout.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyPaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		b, err := svc.CompletePayment(r.Context(), chi.URLParam(r, "id"), req.IntentID, req.Proof, actorFrom(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}
