package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/acotrina/fise-coupon-service/internal/domain"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

// dedupSweeper matches the Sweep method of the in-memory dedup cache. The
// valkey-backed cache expires keys on its own and reports zero here.
type dedupSweeper interface {
	Sweep() int
}

// ledgerReader is the read-only slice of the transaction repository the
// sweeper needs for its periodic diagnostics.
type ledgerReader interface {
	Stats(ctx context.Context) (domain.TxStats, error)
	Recent(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// Sweeper periodically evicts expired dedup fingerprints and logs a ledger
// snapshot. It owns its goroutine: Stop blocks until the loop has exited.
type Sweeper struct {
	dedup       dedupSweeper
	ledger      ledgerReader
	interval    time.Duration
	recentLimit int

	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex

	lastRunAt    time.Time
	runsCount    int64
	evictedTotal int64
}

func NewSweeper(dedup dedupSweeper, ledger ledgerReader, interval time.Duration, recentLimit int) *Sweeper {
	return &Sweeper{
		dedup:       dedup,
		ledger:      ledger,
		interval:    interval,
		recentLimit: recentLimit,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Sweeper is already running")
		return nil
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	logger.Infof("Starting sweeper with interval: %v", s.interval)

	go s.run(ctx)

	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneChan)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)

		case <-s.stopChan:
			logger.Warnf("Sweeper received stop signal")
			return

		case <-ctx.Done():
			logger.Warnf("Sweeper context cancelled")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.runsCount++
	runNumber := s.runsCount
	s.mu.Unlock()

	evicted := s.dedup.Sweep()

	s.mu.Lock()
	s.evictedTotal += int64(evicted)
	s.mu.Unlock()

	if evicted > 0 {
		logger.Infof("[Run #%d] Evicted %d expired dedup entries", runNumber, evicted)
	}

	stats, err := s.ledger.Stats(ctx)
	if err != nil {
		logger.Errorf("[Run #%d] Failed to read ledger stats: %v", runNumber, err)
		return
	}
	logger.Infof("[Run #%d] Ledger: %d pending, %d delivered, %d failed, %d used",
		runNumber, stats.Pending, stats.Delivered, stats.Failed, stats.Used)

	if stats.Pending == 0 {
		return
	}

	recent, err := s.ledger.Recent(ctx, s.recentLimit)
	if err != nil {
		logger.Errorf("[Run #%d] Failed to read recent transactions: %v", runNumber, err)
		return
	}
	for _, tx := range recent {
		if tx.Estado == domain.StatusPending {
			logger.Debugf("[Run #%d] Still pending: coupon %s (dni %s) since %s",
				runNumber, tx.Cupon, tx.DNI, tx.Fecha.Format(time.RFC3339))
		}
	}
}

func (s *Sweeper) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		logger.Warnf("Sweeper is not running")
		return nil
	}

	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan

	logger.Infof("Sweeper stopped")
	return nil
}

func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Sweeper) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running:      s.running,
		LastRunAt:    s.lastRunAt,
		RunsCount:    s.runsCount,
		EvictedTotal: s.evictedTotal,
		Interval:     s.interval,
	}

	if s.running && !s.lastRunAt.IsZero() {
		status.NextRunAt = s.lastRunAt.Add(s.interval)
	}

	return status
}

type Status struct {
	Running      bool          `json:"running"`
	LastRunAt    time.Time     `json:"lastRunAt,omitempty"`
	NextRunAt    time.Time     `json:"nextRunAt,omitempty"`
	RunsCount    int64         `json:"runsCount"`
	EvictedTotal int64         `json:"evictedTotal"`
	Interval     time.Duration `json:"interval"`
}
