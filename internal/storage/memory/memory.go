// Package memory keeps services, slots and bookings in process memory.
// Writes are serialized by one mutex; reads take copies under a read lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/slot"
)

var (
	_ catalog.Repository = (*Store)(nil)
	_ slot.Store         = (*Store)(nil)
	_ booking.Repository = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex

	services map[string]*catalog.Service

	slots      map[string]*slot.Slot
	slotByKey  map[slot.Key]string
	byProvider map[string][]string

	bookings          map[string]*booking.Booking
	bookingsBySlot    map[string][]string
	bookingsByCust    map[string][]string
	bookingsByService map[string]int

	events      []booking.Event
	nextEventID int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		services:          make(map[string]*catalog.Service),
		slots:             make(map[string]*slot.Slot),
		slotByKey:         make(map[slot.Key]string),
		byProvider:        make(map[string][]string),
		bookings:          make(map[string]*booking.Booking),
		bookingsBySlot:    make(map[string][]string),
		bookingsByCust:    make(map[string][]string),
		bookingsByService: make(map[string]int),
		now:               time.Now,
	}
}

// Catalog

func (s *Store) CreateService(_ context.Context, svc *catalog.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[svc.ID]; exists {
		return fmt.Errorf("service %s already exists", svc.ID)
	}
	cp := *svc
	s.services[svc.ID] = &cp
	return nil
}

func (s *Store) GetService(_ context.Context, id string) (*catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, catalog.ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

// UpdateService keeps the stored booking count; only the claim path moves it.
func (s *Store) UpdateService(_ context.Context, svc *catalog.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.services[svc.ID]
	if !ok {
		return catalog.ErrServiceNotFound
	}
	cp := *svc
	cp.BookingCount = cur.BookingCount
	s.services[svc.ID] = &cp
	return nil
}

func (s *Store) DeleteService(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[id]; !ok {
		return catalog.ErrServiceNotFound
	}
	if s.bookingsByService[id] > 0 {
		return catalog.ErrServiceReferenced
	}
	delete(s.services, id)
	return nil
}

func (s *Store) ListServices(_ context.Context, filter catalog.Filter) ([]catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Service, 0)
	for _, svc := range s.services {
		if filter.ProviderID != "" && svc.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Category != "" && svc.Category != filter.Category {
			continue
		}
		if filter.Status != "" && svc.Status != filter.Status {
			continue
		}
		out = append(out, *svc)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) HasBookings(_ context.Context, serviceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookingsByService[serviceID] > 0, nil
}

// Slots

func (s *Store) ListAvailable(_ context.Context, providerID, date string, minDuration int) ([]slot.Slot, error) {
	if err := slot.ValidateDate(date); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]slot.Slot, 0)
	for _, id := range s.byProvider[providerID] {
		sl := s.slots[id]
		if sl.Date != date || !sl.Available() || sl.Duration < minDuration {
			continue
		}
		out = append(out, cloneSlot(sl))
	}
	slot.SortByDateTime(out)
	return out, nil
}

func (s *Store) Generate(_ context.Context, providerID, date string, specs []slot.Spec) ([]slot.Slot, error) {
	if err := slot.ValidateDate(date); err != nil {
		return nil, err
	}
	specs, err := slot.NormalizeSpecs(specs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	created := make([]slot.Slot, 0, len(specs))
	for _, sp := range specs {
		key := slot.Key{ProviderID: providerID, Date: date, Time: sp.Time}
		if _, exists := s.slotByKey[key]; exists {
			continue
		}
		sl := &slot.Slot{
			ID:         uuid.NewString(),
			ProviderID: providerID,
			Date:       date,
			Time:       sp.Time,
			Duration:   sp.Duration,
			Capacity:   1,
			Status:     slot.StatusAvailable,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.slots[sl.ID] = sl
		s.slotByKey[key] = sl.ID
		s.byProvider[providerID] = append(s.byProvider[providerID], sl.ID)
		created = append(created, cloneSlot(sl))
	}
	slot.SortByDateTime(created)
	return created, nil
}

func (s *Store) TryClaim(_ context.Context, key slot.Key, holder slot.Holder, at time.Time) (*slot.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.findSlotLocked(key)
	if err != nil {
		return nil, err
	}
	if err := sl.Lock(holder, at); err != nil {
		return nil, err
	}
	cp := cloneSlot(sl)
	return &cp, nil
}

func (s *Store) Release(_ context.Context, slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[slotID]
	if !ok {
		return slot.ErrSlotNotFound
	}
	if sl.Available() {
		return nil
	}
	sl.Reset(s.now().UTC())
	return nil
}

func (s *Store) GetSlot(_ context.Context, id string) (*slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	cp := cloneSlot(sl)
	return &cp, nil
}

func (s *Store) FindSlot(_ context.Context, key slot.Key) (*slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, err := s.findSlotLocked(key)
	if err != nil {
		return nil, err
	}
	cp := cloneSlot(sl)
	return &cp, nil
}

func (s *Store) ListByProvider(_ context.Context, providerID string, r slot.Range) ([]slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]slot.Slot, 0)
	for _, id := range s.byProvider[providerID] {
		sl := s.slots[id]
		if !r.Contains(sl.Date) {
			continue
		}
		out = append(out, cloneSlot(sl))
	}
	slot.SortByDateTime(out)
	return out, nil
}

func (s *Store) findSlotLocked(key slot.Key) (*slot.Slot, error) {
	id, ok := s.slotByKey[key]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	return s.slots[id], nil
}

// Bookings

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	cp := cloneBooking(b)
	return &cp, nil
}

func (s *Store) ListBookings(_ context.Context, filter booking.Filter) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := func(b *booking.Booking) bool {
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			return false
		}
		if filter.ProviderID != "" && b.ProviderID != filter.ProviderID {
			return false
		}
		if filter.Status != "" && b.Status != filter.Status {
			return false
		}
		return slot.Range{Date: filter.Date, From: filter.From, To: filter.To}.Contains(b.Date)
	}

	out := make([]booking.Booking, 0)
	if filter.CustomerID != "" {
		for _, id := range s.bookingsByCust[filter.CustomerID] {
			if b := s.bookings[id]; match(b) {
				out = append(out, cloneBooking(b))
			}
		}
		return out, nil
	}

	for _, b := range s.bookings {
		if match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FindStalePending(_ context.Context, createdBefore time.Time, limit int) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]booking.Booking, 0)
	for _, b := range s.bookings {
		if b.Status == booking.StatusPending && b.CreatedAt.Before(createdBefore) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertEvent(_ context.Context, ev booking.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *Store) ListEvents(_ context.Context, bookingID string) ([]booking.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]booking.Event, 0)
	for _, ev := range s.events {
		if ev.BookingID == bookingID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func cloneSlot(sl *slot.Slot) slot.Slot {
	cp := *sl
	if sl.Holder != nil {
		h := *sl.Holder
		cp.Holder = &h
	}
	if sl.LockedAt != nil {
		t := *sl.LockedAt
		cp.LockedAt = &t
	}
	return cp
}

func cloneBooking(b *booking.Booking) booking.Booking {
	cp := *b
	cp.ConfirmedAt = cloneTime(b.ConfirmedAt)
	cp.CancelledAt = cloneTime(b.CancelledAt)
	cp.CompletedAt = cloneTime(b.CompletedAt)
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
