/*
scheduler.go - Periodic integrity scan

PURPOSE:
  Periodically scans stored bills for broken balance rules (amount due not
  matching price, quantity and advance; a due payment mode on an unpaid
  bill) and logs every violation. Nothing is repaired automatically.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Keeps the result of the last scan for the integrity endpoint's logs

CONFIGURATION:
  - CheckInterval: How often to scan (BILLING_INTEGRITY_INTERVAL, default 1h)
  - Enabled: Whether scheduler is active (false when the interval is 0)

USAGE:
  scheduler := NewIntegrityScheduler(engine, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger_handlers.go: Integrity endpoint (on-demand scan)
  - billing/integrity.go: The rules
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warp/billing-engine/billing"
)

// IntegrityScheduler runs billing.Engine.CheckIntegrity on a ticker.
type IntegrityScheduler struct {
	Engine        *billing.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	log    zerolog.Logger

	lastRun        time.Time
	lastViolations int
}

// NewIntegrityScheduler creates a scheduler. An interval of zero disables it.
func NewIntegrityScheduler(engine *billing.Engine, interval time.Duration) *IntegrityScheduler {
	return &IntegrityScheduler{
		Engine:        engine,
		CheckInterval: interval,
		Enabled:       interval > 0,
		log:           log.Logger.With().Str("component", "integrity").Logger(),
	}
}

// Start begins the scheduler.
func (s *IntegrityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info().Msg("integrity scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker.C, s.stop)

	s.log.Info().Dur("interval", s.CheckInterval).Msg("integrity scheduler started")
}

// Stop stops the scheduler and waits for a running scan to finish.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker, s.stop = nil, nil
	s.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		s.wg.Wait()
		s.log.Info().Msg("integrity scheduler stopped")
	}
}

func (s *IntegrityScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-tick:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow scans immediately and returns the violations found.
func (s *IntegrityScheduler) RunNow(ctx context.Context) []billing.Violation {
	start := time.Now()
	violations, err := s.Engine.CheckIntegrity(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("integrity scan failed")
		return nil
	}

	for _, v := range violations {
		s.log.Warn().
			Int64("bill_id", int64(v.BillID)).
			Str("serial_number", v.SerialNumber).
			Str("rule", v.Rule).
			Msg(v.Detail)
	}

	s.mu.Lock()
	s.lastRun = start
	s.lastViolations = len(violations)
	s.mu.Unlock()

	s.log.Info().
		Int("violations", len(violations)).
		Dur("took", time.Since(start)).
		Msg("integrity scan completed")
	return violations
}

// LastRun returns when the last scan finished and how many violations it
// found. The time is zero before the first scan.
func (s *IntegrityScheduler) LastRun() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastViolations
}
