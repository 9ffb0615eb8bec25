package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/slot"
)

var bookingColumns = []string{
	"id", "customer_id", "customer_name", "provider_id", "provider_name",
	"service_id", "service_name", "service_category", "slot_id",
	"to_char(booking_date, 'YYYY-MM-DD')", "booking_time", "duration_minutes",
	"price", "currency", "status", "payment_ref", "payment_intent_id",
	"cancellation_reason", "created_at", "updated_at",
	"confirmed_at", "cancelled_at", "completed_at",
}

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var b booking.Booking
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.CustomerName,
		&b.ProviderID,
		&b.ProviderName,
		&b.ServiceID,
		&b.ServiceName,
		&b.ServiceCategory,
		&b.SlotID,
		&b.Date,
		&b.Time,
		&b.Duration,
		&b.Price,
		&b.Currency,
		&b.Status,
		&b.PaymentRef,
		&b.PaymentIntentID,
		&b.CancellationReason,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.ConfirmedAt,
		&b.CancelledAt,
		&b.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]booking.Booking, error) {
	defer rows.Close()

	out := make([]booking.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	query, args, err := s.psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}
	return scanBooking(s.pool.QueryRow(ctx, query, args...))
}

func (s *Store) ListBookings(ctx context.Context, filter booking.Filter) ([]booking.Booking, error) {
	sb := s.psql.Select(bookingColumns...).From("bookings")
	if filter.CustomerID != "" {
		sb = sb.Where(squirrel.Eq{"customer_id": filter.CustomerID})
	}
	if filter.ProviderID != "" {
		sb = sb.Where(squirrel.Eq{"provider_id": filter.ProviderID})
	}
	if filter.Status != "" {
		sb = sb.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Date != "" {
		sb = sb.Where(squirrel.Eq{"booking_date": filter.Date})
	}
	if filter.From != "" {
		sb = sb.Where(squirrel.GtOrEq{"booking_date": filter.From})
	}
	if filter.To != "" {
		sb = sb.Where(squirrel.LtOrEq{"booking_date": filter.To})
	}

	query, args, err := sb.OrderBy("created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings failed: %w", err)
	}
	return collectBookings(rows)
}

func (s *Store) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]booking.Booking, error) {
	sb := s.psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"status": booking.StatusPending}).
		Where(squirrel.Lt{"created_at": createdBefore}).
		OrderBy("created_at")
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stale pending query failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find stale pending failed: %w", err)
	}
	return collectBookings(rows)
}

func (s *Store) InsertEvent(ctx context.Context, ev booking.Event) error {
	var bookingID *string
	if ev.BookingID != "" {
		bookingID = &ev.BookingID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO booking_events (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, bookingID, nullableJSON(ev.Payload), nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, bookingID string) ([]booking.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, booking_id, payload, created_at
		FROM booking_events
		WHERE booking_id = $1
		ORDER BY id
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking events: %w", err)
	}
	defer rows.Close()

	out := make([]booking.Event, 0)
	for rows.Next() {
		var (
			ev  booking.Event
			bid *string
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &bid, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking event: %w", err)
		}
		if bid != nil {
			ev.BookingID = *bid
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// pgTx implements booking.Tx on a pgx transaction. Bookings and slots read
// through it are locked FOR UPDATE until the transaction ends.
type pgTx struct {
	q    querier
	psql squirrel.StatementBuilderType
}

var _ booking.Tx = (*pgTx)(nil)

func (t *pgTx) GetService(ctx context.Context, id string) (*catalog.Service, error) {
	return getService(ctx, t.q, t.psql, id)
}

func (t *pgTx) IncrementServiceBookings(ctx context.Context, serviceID string) error {
	query, args, err := t.psql.Update("services").
		Set("booking_count", squirrel.Expr("booking_count + 1")).
		Where(squirrel.Eq{"id": serviceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment bookings query failed: %w", err)
	}

	ct, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return mapError("increment service bookings", err)
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

func (t *pgTx) FindSlot(ctx context.Context, key slot.Key) (*slot.Slot, error) {
	return findSlot(ctx, t.q, t.psql, key, true)
}

func (t *pgTx) ClaimSlot(ctx context.Context, key slot.Key, holder slot.Holder, at time.Time) (*slot.Slot, error) {
	return claimSlot(ctx, t.q, t.psql, key, holder, at)
}

func (t *pgTx) ConfirmSlot(ctx context.Context, slotID, bookingID string, at time.Time) error {
	query, args, err := t.psql.Update("slots").
		Set("status", slot.StatusConfirmed).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": slotID, "holder_booking_id": bookingID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build confirm slot query failed: %w", err)
	}

	ct, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return mapError("confirm slot", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	exists, err := slotExists(ctx, t.q, t.psql, squirrel.Eq{"id": slotID})
	if err != nil {
		return err
	}
	if !exists {
		return slot.ErrSlotNotFound
	}
	return slot.ErrHolderMismatch
}

func (t *pgTx) ReleaseSlot(ctx context.Context, slotID, bookingID string, at time.Time) (bool, error) {
	query, args, err := t.psql.Update("slots").
		Set("status", slot.StatusAvailable).
		Set("holder_booking_id", nil).
		Set("holder_customer_id", nil).
		Set("locked_at", nil).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": slotID, "holder_booking_id": bookingID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build release slot query failed: %w", err)
	}

	ct, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return false, mapError("release slot", err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}

	exists, err := slotExists(ctx, t.q, t.psql, squirrel.Eq{"id": slotID})
	if err != nil {
		return false, err
	}
	if !exists {
		return false, slot.ErrSlotNotFound
	}
	return false, nil
}

func (t *pgTx) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	query, args, err := t.psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}
	return scanBooking(t.q.QueryRow(ctx, query, args...))
}

// InsertBooking maps the active-slot unique index to slot.ErrSlotTaken.
func (t *pgTx) InsertBooking(ctx context.Context, b *booking.Booking) error {
	query, args, err := t.psql.Insert("bookings").
		Columns(
			"id", "customer_id", "customer_name", "provider_id", "provider_name",
			"service_id", "service_name", "service_category", "slot_id",
			"booking_date", "booking_time", "duration_minutes",
			"price", "currency", "status", "payment_ref", "payment_intent_id",
			"cancellation_reason", "created_at", "updated_at",
			"confirmed_at", "cancelled_at", "completed_at",
		).
		Values(
			b.ID, b.CustomerID, b.CustomerName, b.ProviderID, b.ProviderName,
			b.ServiceID, b.ServiceName, b.ServiceCategory, b.SlotID,
			b.Date, b.Time, b.Duration,
			b.Price, b.Currency, b.Status, b.PaymentRef, b.PaymentIntentID,
			b.CancellationReason, b.CreatedAt, b.UpdatedAt,
			b.ConfirmedAt, b.CancelledAt, b.CompletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking query failed: %w", err)
	}

	if _, err := t.q.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return slot.ErrSlotTaken
		}
		return mapError("insert booking", err)
	}
	return nil
}

// UpdateBooking writes the mutable lifecycle fields. SlotID and the price
// snapshot never change after insert.
func (t *pgTx) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	query, args, err := t.psql.Update("bookings").
		Set("status", b.Status).
		Set("payment_ref", b.PaymentRef).
		Set("payment_intent_id", b.PaymentIntentID).
		Set("cancellation_reason", b.CancellationReason).
		Set("updated_at", b.UpdatedAt).
		Set("confirmed_at", b.ConfirmedAt).
		Set("cancelled_at", b.CancelledAt).
		Set("completed_at", b.CompletedAt).
		Where(squirrel.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	ct, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return mapError("update booking", err)
	}
	if ct.RowsAffected() == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}
