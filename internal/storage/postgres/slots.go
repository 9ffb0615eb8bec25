package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/slot-booking/internal/slot"
)

var slotColumns = []string{
	"id", "provider_id", "to_char(slot_date, 'YYYY-MM-DD')", "slot_time", "duration_minutes",
	"capacity", "status", "holder_booking_id", "holder_customer_id", "locked_at",
	"created_at", "updated_at",
}

const slotReturning = "RETURNING id, provider_id, to_char(slot_date, 'YYYY-MM-DD'), slot_time, duration_minutes, " +
	"capacity, status, holder_booking_id, holder_customer_id, locked_at, created_at, updated_at"

func scanSlot(row pgx.Row) (*slot.Slot, error) {
	var (
		sl         slot.Slot
		bookingID  *string
		customerID *string
	)
	err := row.Scan(
		&sl.ID,
		&sl.ProviderID,
		&sl.Date,
		&sl.Time,
		&sl.Duration,
		&sl.Capacity,
		&sl.Status,
		&bookingID,
		&customerID,
		&sl.LockedAt,
		&sl.CreatedAt,
		&sl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, slot.ErrSlotNotFound
		}
		return nil, err
	}

	if bookingID != nil {
		sl.Holder = &slot.Holder{BookingID: *bookingID}
		if customerID != nil {
			sl.Holder.CustomerID = *customerID
		}
	}
	return &sl, nil
}

func collectSlots(rows pgx.Rows) ([]slot.Slot, error) {
	defer rows.Close()

	out := make([]slot.Slot, 0)
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot failed: %w", err)
		}
		out = append(out, *sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func keyWhere(key slot.Key) squirrel.Eq {
	return squirrel.Eq{"provider_id": key.ProviderID, "slot_date": key.Date, "slot_time": key.Time}
}

func findSlot(ctx context.Context, q querier, psql squirrel.StatementBuilderType, key slot.Key, forUpdate bool) (*slot.Slot, error) {
	sb := psql.Select(slotColumns...).From("slots").Where(keyWhere(key))
	if forUpdate {
		sb = sb.Suffix("FOR UPDATE")
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find slot query failed: %w", err)
	}
	return scanSlot(q.QueryRow(ctx, query, args...))
}

func slotExists(ctx context.Context, q querier, psql squirrel.StatementBuilderType, where squirrel.Sqlizer) (bool, error) {
	query, args, err := psql.Select("1").
		Prefix("SELECT EXISTS(").
		From("slots").
		Where(where).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build slot exists query failed: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}
	return exists, nil
}

// claimSlot is the available -> locked compare-and-swap.
func claimSlot(ctx context.Context, q querier, psql squirrel.StatementBuilderType, key slot.Key, holder slot.Holder, at time.Time) (*slot.Slot, error) {
	query, args, err := psql.Update("slots").
		Set("status", slot.StatusLocked).
		Set("holder_booking_id", holder.BookingID).
		Set("holder_customer_id", holder.CustomerID).
		Set("locked_at", at).
		Set("updated_at", at).
		Where(keyWhere(key)).
		Where(squirrel.Eq{"status": slot.StatusAvailable}).
		Suffix(slotReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim slot query failed: %w", err)
	}

	sl, err := scanSlot(q.QueryRow(ctx, query, args...))
	if err == nil {
		return sl, nil
	}
	if !errors.Is(err, slot.ErrSlotNotFound) {
		return nil, mapError("claim slot", err)
	}

	exists, err := slotExists(ctx, q, psql, keyWhere(key))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, slot.ErrSlotTaken
	}
	return nil, slot.ErrSlotNotFound
}

func (s *Store) ListAvailable(ctx context.Context, providerID, date string, minDuration int) ([]slot.Slot, error) {
	if err := slot.ValidateDate(date); err != nil {
		return nil, err
	}

	query, args, err := s.psql.Select(slotColumns...).
		From("slots").
		Where(squirrel.Eq{"provider_id": providerID, "slot_date": date, "status": slot.StatusAvailable}).
		Where(squirrel.GtOrEq{"duration_minutes": minDuration}).
		OrderBy("slot_time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list available query failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list available slots failed: %w", err)
	}
	return collectSlots(rows)
}

// Generate inserts the requested slots in one statement; rows whose
// (provider, date, time) already exists are skipped by the unique constraint.
func (s *Store) Generate(ctx context.Context, providerID, date string, specs []slot.Spec) ([]slot.Slot, error) {
	if err := slot.ValidateDate(date); err != nil {
		return nil, err
	}
	specs, err := slot.NormalizeSpecs(specs)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return []slot.Slot{}, nil
	}

	now := time.Now().UTC()
	ib := s.psql.Insert("slots").
		Columns("id", "provider_id", "slot_date", "slot_time", "duration_minutes", "capacity", "status", "created_at", "updated_at")
	for _, sp := range specs {
		ib = ib.Values(uuid.NewString(), providerID, date, sp.Time, sp.Duration, 1, slot.StatusAvailable, now, now)
	}

	query, args, err := ib.
		Suffix("ON CONFLICT (provider_id, slot_date, slot_time) DO NOTHING " + slotReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build generate slots query failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("generate slots", err)
	}
	created, err := collectSlots(rows)
	if err != nil {
		return nil, mapError("generate slots", err)
	}
	slot.SortByDateTime(created)
	return created, nil
}

func (s *Store) TryClaim(ctx context.Context, key slot.Key, holder slot.Holder, at time.Time) (*slot.Slot, error) {
	return claimSlot(ctx, s.pool, s.psql, key, holder, at)
}

func (s *Store) Release(ctx context.Context, slotID string) error {
	query, args, err := s.psql.Update("slots").
		Set("status", slot.StatusAvailable).
		Set("holder_booking_id", nil).
		Set("holder_customer_id", nil).
		Set("locked_at", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": slotID}).
		Where(squirrel.NotEq{"status": slot.StatusAvailable}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release slot query failed: %w", err)
	}

	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError("release slot", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	exists, err := slotExists(ctx, s.pool, s.psql, squirrel.Eq{"id": slotID})
	if err != nil {
		return err
	}
	if !exists {
		return slot.ErrSlotNotFound
	}
	return nil
}

func (s *Store) GetSlot(ctx context.Context, id string) (*slot.Slot, error) {
	query, args, err := s.psql.Select(slotColumns...).
		From("slots").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get slot query failed: %w", err)
	}
	return scanSlot(s.pool.QueryRow(ctx, query, args...))
}

func (s *Store) FindSlot(ctx context.Context, key slot.Key) (*slot.Slot, error) {
	return findSlot(ctx, s.pool, s.psql, key, false)
}

func (s *Store) ListByProvider(ctx context.Context, providerID string, r slot.Range) ([]slot.Slot, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	sb := s.psql.Select(slotColumns...).
		From("slots").
		Where(squirrel.Eq{"provider_id": providerID})
	if r.Date != "" {
		sb = sb.Where(squirrel.Eq{"slot_date": r.Date})
	}
	if r.From != "" {
		sb = sb.Where(squirrel.GtOrEq{"slot_date": r.From})
	}
	if r.To != "" {
		sb = sb.Where(squirrel.LtOrEq{"slot_date": r.To})
	}

	query, args, err := sb.OrderBy("slot_date", "slot_time").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list provider slots query failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list provider slots failed: %w", err)
	}
	return collectSlots(rows)
}
