package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/app"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/identity"
	"github.com/hackgods/slot-booking/internal/logger"
	"github.com/hackgods/slot-booking/internal/slot"
)

var categories = map[string][]string{
	"salon":    {"Haircut", "Beard trim", "Hair colour", "Blow dry"},
	"wellness": {"Swedish massage", "Deep tissue massage", "Reflexology"},
	"fitness":  {"Personal training", "Yoga session", "Pilates class"},
	"health":   {"Physiotherapy", "Nutrition consult", "Dental check-up"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if cfg.StoreBackend != config.StorePostgres {
		fmt.Fprintln(os.Stderr, "seed needs STORE_BACKEND=postgres")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	providers := getInt("SEED_PROVIDERS", 20)
	days := getInt("SEED_DAYS", 7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	log.Info("seed starting", zap.Int("providers", providers), zap.Int("days", days))

	start := time.Now().UTC().AddDate(0, 0, 1)
	var services, slots int
	for i := 0; i < providers; i++ {
		s, n, err := seedProvider(ctx, a, start, days)
		if err != nil {
			log.Fatal("seed provider", zap.Error(err))
		}
		services += s
		slots += n
	}

	log.Info("seed complete", zap.Int("services", services), zap.Int("slots", slots))
}

func seedProvider(ctx context.Context, a *app.App, start time.Time, days int) (int, int, error) {
	actor := identity.Actor{
		ID:   "prov-" + uuid.NewString()[:8],
		Role: identity.RoleProvider,
		Name: gofakeit.Company(),
	}

	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, k)
	}
	category := keys[gofakeit.Number(0, len(keys)-1)]

	names := categories[category]
	count := gofakeit.Number(1, len(names))
	for j := 0; j < count; j++ {
		_, err := a.Catalog.Create(ctx, actor, catalog.CreateRequest{
			Name:        names[j],
			Description: gofakeit.Phrase(),
			Category:    category,
			Duration:    []int{30, 30, 60}[gofakeit.Number(0, 2)],
			Price:       decimal.NewFromInt(int64(gofakeit.Number(10, 120) * 10)),
		})
		if err != nil {
			return 0, 0, fmt.Errorf("create service: %w", err)
		}
	}

	// a working day of 30 minute slots plus one hour-long slot at the end
	specs := make([]slot.Spec, 0, 17)
	for h := 9; h < 17; h++ {
		specs = append(specs,
			slot.Spec{Time: fmt.Sprintf("%02d:00", h), Duration: 30},
			slot.Spec{Time: fmt.Sprintf("%02d:30", h), Duration: 30},
		)
	}
	specs = append(specs, slot.Spec{Time: "17:00", Duration: 60})

	var created int
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d).Format(slot.DateLayout)
		out, err := a.Store.Generate(ctx, actor.ID, date, specs)
		if err != nil {
			return 0, 0, fmt.Errorf("generate slots for %s: %w", date, err)
		}
		created += len(out)
	}

	fmt.Printf("provider %s (%s): %d %s services, %d slots\n", actor.ID, actor.Name, count, category, created)
	return count, created, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
