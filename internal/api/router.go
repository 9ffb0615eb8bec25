package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/checkout"
	"github.com/hackgods/slot-booking/internal/schedule"
	"github.com/hackgods/slot-booking/internal/slot"
)

type RouterConfig struct {
	Catalog  *catalog.Catalog
	Slots    slot.Store
	Engine   *booking.Engine
	Checkout *checkout.Service
	Schedule *schedule.View

	PgPool *pgxpool.Pool // optional, health only
	Redis  *redis.Client // optional, health only

	Log             *zap.Logger
	RateLimitPerMin int
	Env             string
	Version         string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed here")
	})

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	limited := RateLimitMiddleware(cfg.RateLimitPerMin, log)

	r.Route("/v1", func(r chi.Router) {
		// public browsing
		r.Get("/services", listServicesHandler(cfg.Catalog, log))
		r.Get("/services/{id}", getServiceHandler(cfg.Catalog, log))
		r.Get("/slots/available", availableSlotsHandler(cfg.Catalog, cfg.Slots, log))

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware)

			r.Route("/provider", func(r chi.Router) {
				r.Use(RequireProvider)

				r.Get("/services", listOwnServicesHandler(cfg.Catalog, log))
				r.Post("/services", createServiceHandler(cfg.Catalog, log))
				r.Put("/services/{id}", updateServiceHandler(cfg.Catalog, log))
				r.Patch("/services/{id}/status", setServiceStatusHandler(cfg.Catalog, log))
				r.Delete("/services/{id}", deleteServiceHandler(cfg.Catalog, log))

				r.Post("/slots", generateSlotsHandler(cfg.Slots, log))
				r.Get("/schedule", providerScheduleHandler(cfg.Schedule, log))
			})

			r.Route("/bookings", func(r chi.Router) {
				r.With(limited).Post("/", claimBookingHandler(cfg.Engine, log))
				r.Get("/", listBookingsHandler(cfg.Engine, log))
				r.Get("/{id}", getBookingHandler(cfg.Engine, log))
				r.Get("/{id}/events", bookingEventsHandler(cfg.Engine, log))
				r.With(limited).Post("/{id}/confirm", verifyPaymentHandler(cfg.Checkout, log))
				r.Post("/{id}/cancel", cancelBookingHandler(cfg.Checkout, log))
				r.Post("/{id}/complete", completeBookingHandler(cfg.Engine, log))

				r.With(limited).Post("/{id}/payment-intent", startPaymentHandler(cfg.Checkout, log))
				r.With(limited).Post("/{id}/payment/verify", verifyPaymentHandler(cfg.Checkout, log))
			})
		})
	})

	return r
}
