package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/identity"
	"github.com/hackgods/slot-booking/internal/storage/memory"
)

var (
	owner    = identity.Actor{ID: "prov-1", Role: identity.RoleProvider, Name: "Owner"}
	rival    = identity.Actor{ID: "prov-2", Role: identity.RoleProvider}
	customer = identity.Actor{ID: "cust-1", Role: identity.RoleCustomer}
)

func newCatalog() *catalog.Catalog {
	return catalog.New(memory.New(), "INR", zap.NewNop())
}

func TestCreateDefaults(t *testing.T) {
	c := newCatalog()

	svc, err := c.Create(context.Background(), rival, catalog.CreateRequest{
		Name:     "  Consultation ",
		Duration: 45,
		Price:    decimal.RequireFromString("19.99"),
		Currency: "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, "Consultation", svc.Name)
	assert.Equal(t, "general", svc.Category)
	assert.Equal(t, "USD", svc.Currency)
	assert.Equal(t, rival.ID, svc.ProviderName)
	assert.Equal(t, catalog.StatusActive, svc.Status)
	assert.Equal(t, 1, svc.Capacity)

	svc, err = c.Create(context.Background(), owner, catalog.CreateRequest{Name: "Trim", Duration: 15})
	require.NoError(t, err)
	assert.Equal(t, "INR", svc.Currency)
	assert.Equal(t, "Owner", svc.ProviderName)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		actor identity.Actor
		req   catalog.CreateRequest
		want  error
	}{
		{"customer", customer, catalog.CreateRequest{Name: "x", Duration: 30}, catalog.ErrProviderOnly},
		{"blank name", owner, catalog.CreateRequest{Name: "  ", Duration: 30}, catalog.ErrInvalidName},
		{"zero duration", owner, catalog.CreateRequest{Name: "x"}, catalog.ErrInvalidDuration},
		{"negative price", owner, catalog.CreateRequest{Name: "x", Duration: 30, Price: decimal.NewFromInt(-1)}, catalog.ErrInvalidPrice},
	}

	c := newCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Create(context.Background(), tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateOwnership(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	svc, err := c.Create(ctx, owner, catalog.CreateRequest{Name: "Colour", Duration: 60, Price: decimal.NewFromInt(800)})
	require.NoError(t, err)

	price := decimal.NewFromInt(900)
	_, err = c.Update(ctx, rival, svc.ID, catalog.UpdateRequest{Price: &price})
	assert.ErrorIs(t, err, catalog.ErrNotServiceOwner)

	_, err = c.Update(ctx, customer, svc.ID, catalog.UpdateRequest{Price: &price})
	assert.ErrorIs(t, err, catalog.ErrProviderOnly)

	_, err = c.Update(ctx, owner, "missing", catalog.UpdateRequest{Price: &price})
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)

	zero := 0
	_, err = c.Update(ctx, owner, svc.ID, catalog.UpdateRequest{Duration: &zero})
	assert.ErrorIs(t, err, catalog.ErrInvalidDuration)

	updated, err := c.Update(ctx, owner, svc.ID, catalog.UpdateRequest{Price: &price})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, 60, updated.Duration)

	_, err = c.SetStatus(ctx, owner, svc.ID, "retired")
	assert.ErrorIs(t, err, catalog.ErrInvalidStatus)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	a, err := c.Create(ctx, owner, catalog.CreateRequest{Name: "A", Category: "salon", Duration: 30})
	require.NoError(t, err)
	_, err = c.Create(ctx, owner, catalog.CreateRequest{Name: "B", Category: "spa", Duration: 30})
	require.NoError(t, err)
	_, err = c.Create(ctx, rival, catalog.CreateRequest{Name: "C", Category: "salon", Duration: 30})
	require.NoError(t, err)

	_, err = c.SetStatus(ctx, owner, a.ID, catalog.StatusPaused)
	require.NoError(t, err)

	active, err := c.List(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	salon, err := c.List(ctx, catalog.Filter{Category: "salon"})
	require.NoError(t, err)
	require.Len(t, salon, 1)
	assert.Equal(t, "C", salon[0].Name)

	paused, err := c.List(ctx, catalog.Filter{Status: catalog.StatusPaused})
	require.NoError(t, err)
	assert.Len(t, paused, 1)

	_, err = c.List(ctx, catalog.Filter{Status: "gone"})
	assert.ErrorIs(t, err, catalog.ErrInvalidStatus)

	owned, err := c.ListOwned(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestDeleteUnreferenced(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	svc, err := c.Create(ctx, owner, catalog.CreateRequest{Name: "Nails", Duration: 30})
	require.NoError(t, err)

	_, err = c.Delete(ctx, rival, svc.ID)
	assert.ErrorIs(t, err, catalog.ErrNotServiceOwner)

	archived, err := c.Delete(ctx, owner, svc.ID)
	require.NoError(t, err)
	assert.False(t, archived)

	_, err = c.Get(ctx, svc.ID)
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)
}

// staleBookingCheck answers HasBookings as it was before a concurrent claim.
type staleBookingCheck struct {
	*memory.Store
}

func (staleBookingCheck) HasBookings(context.Context, string) (bool, error) {
	return false, nil
}

func TestDeleteArchivesWhenClaimLandsAfterCheck(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := catalog.New(staleBookingCheck{store}, "INR", zap.NewNop())

	svc, err := c.Create(ctx, owner, catalog.CreateRequest{Name: "Nails", Duration: 30})
	require.NoError(t, err)
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		return tx.InsertBooking(ctx, &booking.Booking{
			ID: "b1", CustomerID: customer.ID, ServiceID: svc.ID, SlotID: "slot1", Status: booking.StatusPending,
		})
	}))

	archived, err := c.Delete(ctx, owner, svc.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	got, err := c.Get(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusArchived, got.Status)
}
