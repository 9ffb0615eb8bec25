package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Customers    int
	Date         string
	ClaimRatio   float64
	PayRatio     float64
	ReadRatio    float64
	ServiceLimit int
}

type target struct {
	ServiceID  string
	ProviderID string
	Date       string
	Time       string
}

func (t target) key() string { return t.ProviderID + "|" + t.Date + "|" + t.Time }

// customer is a simulated caller identified by the trusted identity headers.
type customer struct {
	ID   string
	Name string
}

func newCustomers(n int) []customer {
	out := make([]customer, n)
	for i := range out {
		out[i] = customer{ID: "cust-" + gofakeit.UUID(), Name: gofakeit.Name()}
	}
	return out
}

type claimed struct {
	BookingID string
	Customer  customer
}

// DataPool holds the claimable slots and the bookings won so far.
type DataPool struct {
	Targets []target

	mu     sync.RWMutex
	owned  []claimed
	winner map[string]string // slot key -> booking id
	double int64
}

func (dp *DataPool) Won(t target, c claimed) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if prev, ok := dp.winner[t.key()]; ok && prev != c.BookingID {
		dp.double++
	}
	dp.winner[t.key()] = c.BookingID
	dp.owned = append(dp.owned, c)
}

func (dp *DataPool) Random(rng *rand.Rand) (claimed, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.owned) == 0 {
		return claimed{}, false
	}
	return dp.owned[rng.Intn(len(dp.owned))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict || status == http.StatusTooManyRequests:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pick := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), pick(50), pick(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Claim OperationMetrics
	Pay   OperationMetrics
	Read  OperationMetrics
}

type Simulator struct {
	config    SimConfig
	pool      *DataPool
	customers []customer
	client    *http.Client
	metrics   Metrics
	log       *zap.Logger
}

func main() {
	base, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(base.Env, base.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if cfg.Workers <= 0 || cfg.Duration <= 0 || cfg.Customers <= 0 {
		log.Fatal("SIM_WORKERS, SIM_DURATION and SIM_CUSTOMERS must be positive")
	}

	sim := &Simulator{
		config:    cfg,
		customers: newCustomers(cfg.Customers),
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	sim.pool = pool

	log.Info("simulator starting",
		zap.Int("targets", len(pool.Targets)),
		zap.Int("workers", cfg.Workers),
		zap.Duration("duration", cfg.Duration),
	)

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Customers:    getInt("SIM_CUSTOMERS", 500),
		Date:         getEnv("SIM_DATE", time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")),
		ClaimRatio:   getFloat("SIM_CLAIM_RATIO", 0.6),
		PayRatio:     getFloat("SIM_PAY_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
		ServiceLimit: getInt("SIM_SERVICE_LIMIT", 50),
	}

	total := cfg.ClaimRatio + cfg.PayRatio + cfg.ReadRatio
	if total > 0 {
		cfg.ClaimRatio /= total
		cfg.PayRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

// loadDataPool discovers active services and their open slots on the
// simulated date through the public API.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var services []struct {
		ID         string `json:"id"`
		ProviderID string `json:"provider_id"`
	}
	if err := s.getJSON(ctx, "/v1/services", &services); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	if len(services) > s.config.ServiceLimit {
		services = services[:s.config.ServiceLimit]
	}

	pool := &DataPool{winner: make(map[string]string)}
	for _, svc := range services {
		q := url.Values{"provider_id": {svc.ProviderID}, "date": {s.config.Date}, "service_id": {svc.ID}}
		var slots []struct {
			Time string `json:"time"`
		}
		if err := s.getJSON(ctx, "/v1/slots/available?"+q.Encode(), &slots); err != nil {
			return nil, fmt.Errorf("list slots for %s: %w", svc.ID, err)
		}
		for _, sl := range slots {
			pool.Targets = append(pool.Targets, target{
				ServiceID:  svc.ID,
				ProviderID: svc.ProviderID,
				Date:       s.config.Date,
				Time:       sl.Time,
			})
		}
	}

	if len(pool.Targets) == 0 {
		return nil, fmt.Errorf("no open slots on %s, run the seed first", s.config.Date)
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.ClaimRatio:
			s.doClaim(ctx, rng)
		case r < s.config.ClaimRatio+s.config.PayRatio:
			s.doPay(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

func (s *Simulator) customer(rng *rand.Rand) customer {
	return s.customers[rng.Intn(len(s.customers))]
}

func (s *Simulator) doClaim(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	cust := s.customer(rng)

	var resp struct {
		ID string `json:"id"`
	}
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/v1/bookings", cust, map[string]string{
		"service_id":  t.ServiceID,
		"provider_id": t.ProviderID,
		"date":        t.Date,
		"time":        t.Time,
	}, &resp)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Claim.Record(time.Since(start), 0)
		}
		return
	}
	s.metrics.Claim.Record(time.Since(start), status)

	if status == http.StatusCreated && resp.ID != "" {
		s.pool.Won(t, claimed{BookingID: resp.ID, Customer: cust})
	}
}

// doPay runs the intent and verify steps for a won booking.
func (s *Simulator) doPay(ctx context.Context, rng *rand.Rand) {
	c, ok := s.pool.Random(rng)
	if !ok {
		return
	}

	var intent struct {
		IntentID     string `json:"intent_id"`
		ClientSecret string `json:"client_secret"`
	}
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/v1/bookings/"+c.BookingID+"/payment-intent", c.Customer, nil, &intent)
	if err != nil || status != http.StatusCreated {
		if err == nil {
			s.metrics.Pay.Record(time.Since(start), status)
		}
		return
	}

	status, err = s.send(ctx, http.MethodPost, "/v1/bookings/"+c.BookingID+"/payment/verify", c.Customer, map[string]string{
		"intent_id": intent.IntentID,
		"proof":     intent.ClientSecret,
	}, nil)
	if err != nil {
		return
	}
	s.metrics.Pay.Record(time.Since(start), status)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	path := "/v1/bookings"
	cust := s.customer(rng)
	if c, ok := s.pool.Random(rng); ok && rng.Intn(2) == 0 {
		path, cust = "/v1/bookings/"+c.BookingID, c.Customer
	}

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, path, cust, nil, nil)
	if err != nil {
		return
	}
	s.metrics.Read.Record(time.Since(start), status)
}

// send calls the API as user; the zero customer calls anonymously.
func (s *Simulator) send(ctx context.Context, method, path string, user customer, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if user.ID != "" {
		req.Header.Set("X-User-ID", user.ID)
		req.Header.Set("X-User-Role", "customer")
		req.Header.Set("X-User-Name", user.Name)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	status, err := s.send(ctx, http.MethodGet, path, customer{}, nil, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, status)
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s  Workers: %d  Targets: %d\n\n", s.config.Duration, s.config.Workers, len(s.pool.Targets))

	printOperationReport("Claim", &s.metrics.Claim)
	printOperationReport("Pay", &s.metrics.Pay)
	printOperationReport("Read", &s.metrics.Read)

	s.pool.mu.RLock()
	won, double := len(s.pool.winner), s.pool.double
	s.pool.mu.RUnlock()

	// a slot can legitimately be won twice only if its first booking expired
	fmt.Printf("Slots won: %d  Re-won slots: %d\n", won, double)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
