/*
monitor.go - Background solvency monitor

PURPOSE:
  Periodically compares the vesting pool with what registered claimers
  may still withdraw, and counts claimers whose next installment is
  unlocked. A pool that cannot cover outstanding entitlements is logged
  as a warning so the owner can fund it before claims start failing.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Read-only: never mutates the ledger
  - Keeps the last report for GET /api/schedule/solvency

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour, zero disables)

USAGE:
  monitor := NewSolvencyMonitor(v, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - vesting/vesting.go: Solvency and Preview
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/vesting"
)

// SolvencyReport is the result of one monitor run.
type SolvencyReport struct {
	CheckedAt   time.Time      `json:"checked_at"`
	NextCheckAt *time.Time     `json:"next_check_at,omitempty"` // nil when the monitor is not running
	Pool        generic.Amount `json:"pool"`
	Outstanding generic.Amount `json:"outstanding"`
	Shortfall   generic.Amount `json:"shortfall"`
	Claimers    int            `json:"claimers"`
	Unlocked    int            `json:"unlocked"`  // next installment due now
	Exhausted   int            `json:"exhausted"` // fully paid out
}

// SolvencyMonitor checks the vesting pool on a timer.
type SolvencyMonitor struct {
	Vesting       *vesting.Vesting
	Log           *logrus.Logger
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	next   time.Time
	wg     sync.WaitGroup
	mu     deadlock.Mutex
	last   *SolvencyReport
}

// NewSolvencyMonitor creates a monitor with a one hour interval.
func NewSolvencyMonitor(v *vesting.Vesting, log *logrus.Logger) *SolvencyMonitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SolvencyMonitor{
		Vesting:       v,
		Log:           log,
		CheckInterval: time.Hour,
	}
}

// Start begins the monitor. It is a no-op when already running or when
// CheckInterval is not positive.
func (m *SolvencyMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		return
	}
	if m.CheckInterval <= 0 {
		m.Log.Info("Solvency monitor disabled")
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.next = time.Now().Add(m.CheckInterval)
	m.wg.Add(1)

	go m.run(m.ticker, m.stop, m.CheckInterval)

	m.Log.WithField("interval", m.CheckInterval).Info("Solvency monitor started")
}

// Stop stops the monitor and waits for an in-flight check.
func (m *SolvencyMonitor) Stop() {
	m.mu.Lock()
	ticker, stop := m.ticker, m.stop
	m.ticker, m.stop = nil, nil
	m.next = time.Time{}
	m.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		m.wg.Wait()
		m.Log.Info("Solvency monitor stopped")
	}
}

// Running reports whether the background loop is active.
func (m *SolvencyMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticker != nil
}

func (m *SolvencyMonitor) run(ticker *time.Ticker, stop <-chan struct{}, interval time.Duration) {
	defer m.wg.Done()

	// Run immediately on start
	m.check()

	for {
		select {
		case t := <-ticker.C:
			m.mu.Lock()
			m.next = t.Add(interval)
			m.mu.Unlock()
			m.check()
		case <-stop:
			return
		}
	}
}

func (m *SolvencyMonitor) check() {
	if _, err := m.RunNow(context.Background()); err != nil {
		m.Log.WithError(err).Error("Solvency check failed")
	}
}

// RunNow performs a check immediately and stores the report.
func (m *SolvencyMonitor) RunNow(ctx context.Context) (SolvencyReport, error) {
	s, err := m.Vesting.Solvency(ctx)
	if err != nil {
		return SolvencyReport{}, err
	}
	claimers, err := m.Vesting.Claimers(ctx)
	if err != nil {
		return SolvencyReport{}, err
	}

	report := SolvencyReport{
		CheckedAt:   time.Now().UTC(),
		Pool:        s.Pool,
		Outstanding: s.Outstanding,
		Shortfall:   s.Shortfall,
		Claimers:    len(claimers),
	}
	for _, c := range claimers {
		p, err := m.Vesting.Preview(ctx, c.Address)
		if err != nil {
			return SolvencyReport{}, err
		}
		switch {
		case p.Phase.IsTerminal():
			report.Exhausted++
		case p.Reason == nil, errors.Is(p.Reason, vesting.ErrClaimNotOpen):
			report.Unlocked++
		}
	}

	fields := logrus.Fields{
		"pool":        report.Pool.String(),
		"outstanding": report.Outstanding.String(),
		"claimers":    report.Claimers,
		"unlocked":    report.Unlocked,
	}
	if report.Shortfall.IsPositive() {
		m.Log.WithFields(fields).WithField("shortfall", report.Shortfall.String()).
			Warn("Vesting pool cannot cover outstanding entitlements")
	} else {
		m.Log.WithFields(fields).Debug("Vesting pool solvent")
	}

	m.mu.Lock()
	m.last = &report
	report.NextCheckAt = m.nextLocked()
	m.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent report, or false before the first run.
func (m *SolvencyMonitor) LastReport() (SolvencyReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return SolvencyReport{}, false
	}
	report := *m.last
	report.NextCheckAt = m.nextLocked()
	return report, true
}

// NextRunTime returns when the ticker fires next, or false when stopped.
func (m *SolvencyMonitor) NextRunTime() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next := m.nextLocked(); next != nil {
		return *next, true
	}
	return time.Time{}, false
}

func (m *SolvencyMonitor) nextLocked() *time.Time {
	if m.ticker == nil || m.next.IsZero() {
		return nil
	}
	next := m.next
	return &next
}
