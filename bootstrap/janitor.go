package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
)

// LedgerJanitor periodically removes usage counters older than the
// retention window.
type LedgerJanitor struct {
	ledger    ports.UsageLedger
	clock     ports.Clock
	loc       *time.Location
	retention int // days kept, today included
	interval  time.Duration
	logger    zerolog.Logger

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// JanitorConfig configures a LedgerJanitor.
type JanitorConfig struct {
	Location      *time.Location
	RetentionDays int
	Interval      time.Duration
}

// NewLedgerJanitor creates a janitor. Call Start to begin pruning.
func NewLedgerJanitor(ledger ports.UsageLedger, clock ports.Clock, cfg JanitorConfig, logger zerolog.Logger) *LedgerJanitor {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetentionDays < 1 {
		cfg.RetentionDays = 7
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	return &LedgerJanitor{
		ledger:    ledger,
		clock:     clock,
		loc:       cfg.Location,
		retention: cfg.RetentionDays,
		interval:  cfg.Interval,
		logger:    logger.With().Str("component", "janitor").Logger(),
		stopCh:    make(chan struct{}),
	}
}

// Cutoff returns the oldest day that is kept. Counters for earlier days
// are pruned.
func (j *LedgerJanitor) Cutoff() string {
	now := j.clock.Now().In(j.loc)
	return quota.Day(now.AddDate(0, 0, -(j.retention-1)), j.loc)
}

// PruneOnce removes expired counters and returns how many were removed.
func (j *LedgerJanitor) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := j.Cutoff()
	n, err := j.ledger.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info().Int64("removed", n).Str("before", cutoff).Msg("pruned usage counters")
	}
	return n, nil
}

// Start runs one prune immediately and then one per interval until Close.
func (j *LedgerJanitor) Start() {
	j.wg.Add(1)
	go j.pruneLoop()
}

func (j *LedgerJanitor) pruneLoop() {
	defer j.wg.Done()

	j.pruneWithTimeout()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.pruneWithTimeout()
		case <-j.stopCh:
			return
		}
	}
}

func (j *LedgerJanitor) pruneWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := j.PruneOnce(ctx); err != nil {
		j.logger.Error().Err(err).Msg("failed to prune usage counters")
	}
}

// Close stops the prune loop and waits for it to exit.
func (j *LedgerJanitor) Close() {
	j.closeOnce.Do(func() {
		close(j.stopCh)
		j.wg.Wait()
	})
}
