package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/identity"
)

func actorFrom(r *http.Request) identity.Actor {
	actor, _ := identity.FromContext(r.Context())
	return actor
}

func listServicesHandler(cat *catalog.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		services, err := cat.List(r.Context(), catalog.Filter{
			ProviderID: q.Get("provider_id"),
			Category:   q.Get("category"),
			Status:     catalog.Status(q.Get("status")),
		})
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		resp := make([]ServiceResponse, 0, len(services))
		for i := range services {
			resp = append(resp, toServiceResponse(&services[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getServiceHandler(cat *catalog.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := cat.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(svc))
	}
}

func listOwnServicesHandler(cat *catalog.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := cat.ListOwned(r.Context(), actorFrom(r))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}

		resp := make([]ServiceResponse, 0, len(services))
		for i := range services {
			resp = append(resp, toServiceResponse(&services[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createServiceHandler(cat *catalog.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateServiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		svc, err := cat.Create(r.Context(), actorFrom(r), catalog.CreateRequest{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			Duration:    req.Duration,
			Price:       req.Price,
			Currency:    req.Currency,
		})
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceResponse(svc))
	}
}

func updateServiceHandler(cat *catalog.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateServiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		svc, err := cat.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), catalog.UpdateRequest{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			Duration:    req.Duration,
			Price:       req.Price,
		})
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(svc))
	}
}

func setServiceStatusHandler(cat *catalog.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ServiceStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		svc, err := cat.SetStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"), catalog.Status(req.Status))
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(svc))
	}
}

func deleteServiceHandler(cat *catalog.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		archived, err := cat.Delete(r.Context(), actorFrom(r), id)
		if err != nil {
			writeDomainError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, DeleteServiceResponse{ID: id, Deleted: !archived, Archived: archived})
	}
}
