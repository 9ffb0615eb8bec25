package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/identity"
)

const defaultCategory = "general"

type CreateRequest struct {
	Name        string
	Description string
	Category    string
	Duration    int
	Price       decimal.Decimal
	Currency    string
}

// UpdateRequest carries only the fields being changed.
type UpdateRequest struct {
	Name        *string
	Description *string
	Category    *string
	Duration    *int
	Price       *decimal.Decimal
	Status      *Status
}

type Catalog struct {
	repo            Repository
	defaultCurrency string
	log             *zap.Logger
	now             func() time.Time
}

func New(repo Repository, defaultCurrency string, log *zap.Logger) *Catalog {
	return &Catalog{
		repo:            repo,
		defaultCurrency: defaultCurrency,
		log:             log,
		now:             time.Now,
	}
}

func (c *Catalog) Create(ctx context.Context, actor identity.Actor, req CreateRequest) (*Service, error) {
	if !actor.IsProvider() {
		return nil, ErrProviderOnly
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidName
	}
	if req.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = defaultCategory
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = c.defaultCurrency
	}
	providerName := actor.Name
	if providerName == "" {
		providerName = actor.ID
	}

	now := c.now().UTC()
	svc := &Service{
		ID:           uuid.NewString(),
		ProviderID:   actor.ID,
		ProviderName: providerName,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Category:     category,
		Duration:     req.Duration,
		Price:        req.Price,
		Currency:     currency,
		Status:       StatusActive,
		Capacity:     1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := c.repo.CreateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	c.log.Info("service created",
		zap.String("service_id", svc.ID),
		zap.String("provider_id", svc.ProviderID),
		zap.String("price", svc.Price.String()),
	)
	return svc, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*Service, error) {
	return c.repo.GetService(ctx, id)
}

// List defaults to active services, matching what customers browse.
func (c *Catalog) List(ctx context.Context, filter Filter) ([]Service, error) {
	if filter.Status == "" {
		filter.Status = StatusActive
	}
	if !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return c.repo.ListServices(ctx, filter)
}

// ListOwned returns every service of the provider regardless of status.
func (c *Catalog) ListOwned(ctx context.Context, actor identity.Actor) ([]Service, error) {
	if !actor.IsProvider() {
		return nil, ErrProviderOnly
	}
	return c.repo.ListServices(ctx, Filter{ProviderID: actor.ID})
}

// Update changes catalog fields. Existing bookings keep their price snapshot.
func (c *Catalog) Update(ctx context.Context, actor identity.Actor, id string, req UpdateRequest) (*Service, error) {
	svc, err := c.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrInvalidName
		}
		svc.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		svc.Description = *req.Description
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		svc.Category = strings.TrimSpace(*req.Category)
	}
	if req.Duration != nil {
		if *req.Duration <= 0 {
			return nil, ErrInvalidDuration
		}
		svc.Duration = *req.Duration
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		svc.Price = *req.Price
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		svc.Status = *req.Status
	}
	svc.UpdatedAt = c.now().UTC()

	if err := c.repo.UpdateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	return svc, nil
}

func (c *Catalog) SetStatus(ctx context.Context, actor identity.Actor, id string, status Status) (*Service, error) {
	return c.Update(ctx, actor, id, UpdateRequest{Status: &status})
}

// Delete removes a service that no booking references. Referenced services
// are archived instead and archived is reported true.
func (c *Catalog) Delete(ctx context.Context, actor identity.Actor, id string) (archived bool, err error) {
	svc, err := c.owned(ctx, actor, id)
	if err != nil {
		return false, err
	}

	referenced, err := c.repo.HasBookings(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check service bookings: %w", err)
	}
	if referenced {
		return true, c.archive(ctx, svc)
	}

	err = c.repo.DeleteService(ctx, id)
	if errors.Is(err, ErrServiceReferenced) {
		// a claim landed after the check
		return true, c.archive(ctx, svc)
	}
	if err != nil {
		return false, fmt.Errorf("delete service: %w", err)
	}
	return false, nil
}

func (c *Catalog) archive(ctx context.Context, svc *Service) error {
	svc.Status = StatusArchived
	svc.UpdatedAt = c.now().UTC()
	if err := c.repo.UpdateService(ctx, svc); err != nil {
		return fmt.Errorf("archive service: %w", err)
	}
	c.log.Info("service archived instead of deleted", zap.String("service_id", svc.ID))
	return nil
}

func (c *Catalog) owned(ctx context.Context, actor identity.Actor, id string) (*Service, error) {
	if !actor.IsProvider() {
		return nil, ErrProviderOnly
	}
	svc, err := c.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.ProviderID != actor.ID {
		return nil, ErrNotServiceOwner
	}
	return svc, nil
}
