package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/apperror"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/schedule"
	"github.com/hackgods/slot-booking/internal/slot"
)

var errProviderRequired = apperror.Validation("provider_id and date are required")

// availableSlotsHandler lists open slots long enough for service_id, or for
// the default slot length when no service is given.
func availableSlotsHandler(cat *catalog.Catalog, slots slot.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		providerID, date := q.Get("provider_id"), q.Get("date")
		if providerID == "" || date == "" {
			writeDomainError(w, r, log, errProviderRequired)
			return
		}

		minDuration := slot.DefaultDuration
		if serviceID := q.Get("service_id"); serviceID != "" {
			svc, err := cat.Get(r.Context(), serviceID)
			if err != nil {
				writeDomainError(w, r, log, err)
				return
			}
			minDuration = svc.Duration
		}

		available, err := slots.ListAvailable(r.Context(), providerID, date, minDuration)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(available))
	}
}

func generateSlotsHandler(slots slot.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateSlotsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		specs := make([]slot.Spec, 0, len(req.Slots))
		for _, s := range req.Slots {
			specs = append(specs, slot.Spec{Time: s.Time, Duration: s.Duration})
		}

		actor := actorFrom(r)
		created, err := slots.Generate(r.Context(), actor.ID, req.Date, specs)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		log.Info("slots generated",
			zap.String("provider_id", actor.ID),
			zap.String("date", req.Date),
			zap.Int("created", len(created)),
		)
		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{
			Created: toSlotResponses(created),
			Count:   len(created),
		})
	}
}

func providerScheduleHandler(view *schedule.View, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		actor := actorFrom(r)

		entries, err := view.ProviderSchedule(r.Context(), actor, actor.ID, slot.Range{
			Date: q.Get("date"),
			From: q.Get("start_date"),
			To:   q.Get("end_date"),
		})
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(entries))
	}
}
