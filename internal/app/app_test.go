package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/app"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/payment"
	"github.com/hackgods/slot-booking/internal/storage/memory"
)

func memoryConfig() config.Config {
	return config.Config{
		StoreBackend:    config.StoreMemory,
		LockBackend:     config.LockLocal,
		PaymentProvider: config.PaymentFake,
		BookingTTL:      15 * time.Minute,
		SweepBatch:      100,
		DefaultCurrency: "INR",
	}
}

func TestOpenMemoryStack(t *testing.T) {
	a, err := app.Open(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.Store{}, a.Store)
	assert.IsType(t, &payment.Fake{}, a.Gateway)
	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Redis)
	assert.NotNil(t, a.Catalog)
	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Checkout)
	assert.NotNil(t, a.Schedule)
}

func TestOpenRejectsUnknownLockBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.LockBackend = "zookeeper"

	_, err := app.Open(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
