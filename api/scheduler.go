/*
scheduler.go - Background latest-month refresher

PURPOSE:
  Periodically invalidates and recomputes the cached latest duration month
  so that the "no criteria" default follows writes made outside this
  process (another replica, a direct database load).

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Refreshes once immediately on Start
  - Errors are logged; the next tick tries again
  - LastRun exposes the outcome of the most recent refresh

CONFIGURATION:
  - Interval: How often to refresh (default: 15 minutes)
  - Enabled: Whether the refresher runs at all (default: true)

USAGE:
  refresher := NewLatestMonthRefresher(svc, logger)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - service/ingest.go: RefreshLatest
  - allowance/cache.go: LatestMonthCache
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/shift-allowance/allowance"
	"go.uber.org/zap"
)

// DefaultRefreshInterval is used when Interval is zero.
const DefaultRefreshInterval = 15 * time.Minute

// Refresher is the service method the scheduler drives.
type Refresher interface {
	RefreshLatest(ctx context.Context) (allowance.Month, bool, error)
}

// RefreshRun is the outcome of one refresh.
type RefreshRun struct {
	At        time.Time
	Month     allowance.Month
	Available bool
	Err       error
}

// LatestMonthRefresher keeps the latest-month cache warm.
type LatestMonthRefresher struct {
	Service  Refresher
	Interval time.Duration
	Enabled  bool

	log     *zap.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun RefreshRun
	runs    int
}

// NewLatestMonthRefresher creates an enabled refresher with the default
// interval.
func NewLatestMonthRefresher(svc Refresher, logger *zap.Logger) *LatestMonthRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LatestMonthRefresher{
		Service:  svc,
		Interval: DefaultRefreshInterval,
		Enabled:  true,
		log:      logger.Named("refresher"),
	}
}

// Start begins the refresh loop. Calling Start twice is a no-op.
func (lr *LatestMonthRefresher) Start() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if !lr.Enabled {
		lr.log.Info("disabled, not starting")
		return
	}
	if lr.ticker != nil {
		return
	}
	if lr.Interval <= 0 {
		lr.Interval = DefaultRefreshInterval
	}

	lr.ticker = time.NewTicker(lr.Interval)
	lr.stop = make(chan struct{})
	lr.wg.Add(1)

	go lr.run(lr.ticker, lr.stop)

	lr.log.Info("started", zap.Duration("interval", lr.Interval))
}

// Stop stops the loop and waits for an in-flight refresh to finish.
func (lr *LatestMonthRefresher) Stop() {
	lr.mu.Lock()
	if lr.ticker == nil {
		lr.mu.Unlock()
		return
	}
	lr.ticker.Stop()
	close(lr.stop)
	lr.ticker = nil
	lr.mu.Unlock()

	lr.wg.Wait()
	lr.log.Info("stopped")
}

func (lr *LatestMonthRefresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer lr.wg.Done()

	// Run immediately on start
	lr.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			lr.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow refreshes synchronously and records the outcome.
func (lr *LatestMonthRefresher) RunNow(ctx context.Context) RefreshRun {
	m, ok, err := lr.Service.RefreshLatest(ctx)
	run := RefreshRun{At: time.Now(), Month: m, Available: ok, Err: err}

	switch {
	case err != nil:
		lr.log.Warn("latest month refresh failed", zap.Error(err))
	case ok:
		lr.log.Debug("latest month refreshed", zap.String("month", m.String()))
	default:
		lr.log.Debug("no data yet")
	}

	lr.mu.Lock()
	lr.lastRun = run
	lr.runs++
	lr.mu.Unlock()
	return run
}

// LastRun returns the most recent outcome and how many refreshes ran.
func (lr *LatestMonthRefresher) LastRun() (RefreshRun, int) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.lastRun, lr.runs
}
