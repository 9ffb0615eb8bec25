package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/slot-booking/internal/catalog"
)

var serviceColumns = []string{
	"id", "provider_id", "provider_name", "name", "description", "category",
	"duration_minutes", "price", "currency", "status", "capacity",
	"booking_count", "rating", "created_at", "updated_at",
}

func scanService(row pgx.Row) (*catalog.Service, error) {
	var svc catalog.Service
	err := row.Scan(
		&svc.ID,
		&svc.ProviderID,
		&svc.ProviderName,
		&svc.Name,
		&svc.Description,
		&svc.Category,
		&svc.Duration,
		&svc.Price,
		&svc.Currency,
		&svc.Status,
		&svc.Capacity,
		&svc.BookingCount,
		&svc.Rating,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, err
	}
	return &svc, nil
}

func getService(ctx context.Context, q querier, psql squirrel.StatementBuilderType, id string) (*catalog.Service, error) {
	query, args, err := psql.Select(serviceColumns...).
		From("services").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get service query failed: %w", err)
	}
	return scanService(q.QueryRow(ctx, query, args...))
}

func (s *Store) CreateService(ctx context.Context, svc *catalog.Service) error {
	query, args, err := s.psql.Insert("services").
		Columns(serviceColumns...).
		Values(
			svc.ID, svc.ProviderID, svc.ProviderName, svc.Name, svc.Description, svc.Category,
			svc.Duration, svc.Price, svc.Currency, svc.Status, svc.Capacity,
			svc.BookingCount, svc.Rating, svc.CreatedAt, svc.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create service query failed: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return mapError("create service", err)
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, id string) (*catalog.Service, error) {
	return getService(ctx, s.pool, s.psql, id)
}

// UpdateService writes catalog fields only; booking_count is owned by the claim path.
func (s *Store) UpdateService(ctx context.Context, svc *catalog.Service) error {
	query, args, err := s.psql.Update("services").
		Set("provider_name", svc.ProviderName).
		Set("name", svc.Name).
		Set("description", svc.Description).
		Set("category", svc.Category).
		Set("duration_minutes", svc.Duration).
		Set("price", svc.Price).
		Set("currency", svc.Currency).
		Set("status", svc.Status).
		Set("capacity", svc.Capacity).
		Set("rating", svc.Rating).
		Set("updated_at", svc.UpdatedAt).
		Where(squirrel.Eq{"id": svc.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update service query failed: %w", err)
	}

	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError("update service", err)
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	query, args, err := s.psql.Delete("services").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete service query failed: %w", err)
	}

	ct, err := s.pool.Exec(ctx, query, args...)
	if isForeignKeyViolation(err) {
		return catalog.ErrServiceReferenced
	}
	if err != nil {
		return mapError("delete service", err)
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, filter catalog.Filter) ([]catalog.Service, error) {
	q := s.psql.Select(serviceColumns...).From("services")
	if filter.ProviderID != "" {
		q = q.Where(squirrel.Eq{"provider_id": filter.ProviderID})
	}
	if filter.Category != "" {
		q = q.Where(squirrel.Eq{"category": filter.Category})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}

	query, args, err := q.OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list services query failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services failed: %w", err)
	}
	defer rows.Close()

	out := make([]catalog.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service failed: %w", err)
		}
		out = append(out, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) HasBookings(ctx context.Context, serviceID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE service_id = $1)`, serviceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check service bookings: %w", err)
	}
	return exists, nil
}
