package slot

import (
	"context"
	"sort"
	"time"
)

// Store holds availability for every (provider, date, time) triple.
type Store interface {
	// ListAvailable returns available slots with Duration >= minDuration, ordered by time.
	ListAvailable(ctx context.Context, providerID, date string, minDuration int) ([]Slot, error)

	// Generate creates the slots that do not exist yet and returns only those.
	Generate(ctx context.Context, providerID, date string, specs []Spec) ([]Slot, error)

	// TryClaim atomically locks the slot at key for holder.
	// It returns ErrSlotNotFound or ErrSlotTaken.
	TryClaim(ctx context.Context, key Key, holder Holder, at time.Time) (*Slot, error)

	// Release makes the slot available again; releasing an available slot is a no-op.
	Release(ctx context.Context, slotID string) error

	GetSlot(ctx context.Context, id string) (*Slot, error)
	FindSlot(ctx context.Context, key Key) (*Slot, error)
	ListByProvider(ctx context.Context, providerID string, r Range) ([]Slot, error)
}

// NormalizeSpecs validates specs, applies the default duration and drops
// duplicate times keeping the first occurrence.
func NormalizeSpecs(specs []Spec) ([]Spec, error) {
	seen := make(map[string]struct{}, len(specs))
	out := make([]Spec, 0, len(specs))
	for _, sp := range specs {
		if err := ValidateTime(sp.Time); err != nil {
			return nil, err
		}
		if sp.Duration == 0 {
			sp.Duration = DefaultDuration
		}
		if sp.Duration < 0 {
			return nil, ErrInvalidDuration
		}
		if _, dup := seen[sp.Time]; dup {
			continue
		}
		seen[sp.Time] = struct{}{}
		out = append(out, sp)
	}
	return out, nil
}

// SortByDateTime orders slots by date then time.
func SortByDateTime(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})
}
