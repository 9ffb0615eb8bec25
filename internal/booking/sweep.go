package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ExpireStalePending cancels pending bookings older than the booking TTL and
// releases their slots. Individual failures are logged and left for the next
// run. It returns how many bookings were expired.
func (e *Engine) ExpireStalePending(ctx context.Context) (int, error) {
	now := e.now().UTC()
	candidates, err := e.repo.FindStalePending(ctx, now.Add(-e.cfg.BookingTTL), e.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("find stale pending bookings: %w", err)
	}

	expired := 0
	for i := range candidates {
		b := &candidates[i]
		ok, err := e.expireOne(ctx, b)
		if err != nil {
			e.log.Warn("failed to expire booking",
				zap.String("booking_id", b.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

func (e *Engine) expireOne(ctx context.Context, b *Booking) (bool, error) {
	var done bool
	err := e.withBookingTx(ctx, b, func(ctx context.Context, tx Tx, current *Booking) error {
		now := e.now().UTC()
		// confirmed or cancelled since the scan
		if !current.Stale(now, e.cfg.BookingTTL) {
			return nil
		}
		if err := e.cancelInTx(ctx, tx, current, ReasonExpired, now); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if done {
		e.logEvent(ctx, b.ID, EventBookingExpired, map[string]any{
			"reason": "worker",
		})
	}
	return done, nil
}

// Sweeper runs ExpireStalePending on a fixed interval.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// DefaultSweepInterval replaces a non-positive interval passed to NewSweeper.
const DefaultSweepInterval = time.Minute

func NewSweeper(engine *Engine, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	timeout := 20 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping expiry sweeper")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.engine.ExpireStalePending(runCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return n
		}
		s.log.Error("expiry run error", zap.Error(err))
		return n
	}
	s.log.Info("expiry run complete",
		zap.Int("expired", n),
		zap.Duration("took", time.Since(start)),
	)
	return n
}
