package catalog

import "context"

// Repository contains the persistence the catalog needs.
type Repository interface {
	CreateService(ctx context.Context, s *Service) error
	GetService(ctx context.Context, id string) (*Service, error)
	UpdateService(ctx context.Context, s *Service) error
	// DeleteService fails with ErrServiceReferenced once any booking points at the service.
	DeleteService(ctx context.Context, id string) error
	ListServices(ctx context.Context, filter Filter) ([]Service, error)

	// HasBookings reports whether any booking, in any status, references the service.
	HasBookings(ctx context.Context, serviceID string) (bool, error)
}
