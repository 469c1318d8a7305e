// Package notify delivers usage and key lifecycle notifications by email.
// Delivery is asynchronous and paced; failures are logged and counted and
// never reach the request path.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Notification kinds.
const (
	KindThreshold = "threshold"
	KindKeyReset  = "key_reset"
)

// Config configures a Dispatcher.
type Config struct {
	RatePerMinute int           // sends per minute (default 60)
	Burst         int           // token bucket burst (default 5)
	QueueSize     int           // pending notifications (default 256)
	SendTimeout   time.Duration // per-send timeout (default 30s)
}

type job struct {
	kind string
	acct account.Account
	used int64
	lim  int64
	key  string
}

// Dispatcher implements ports.Notifier over a ports.EmailSender.
type Dispatcher struct {
	sender  ports.EmailSender
	limiter *rate.Limiter
	logger  zerolog.Logger
	metrics *metrics.Collector
	timeout time.Duration

	queue chan job
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewDispatcher starts a dispatcher with one delivery worker.
func NewDispatcher(sender ports.EmailSender, cfg Config, logger zerolog.Logger, m *metrics.Collector) *Dispatcher {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.Burst),
		logger:  logger.With().Str("component", "notify").Logger(),
		metrics: m,
		timeout: cfg.SendTimeout,
		queue:   make(chan job, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// OnThresholdCrossed queues a usage alert.
func (d *Dispatcher) OnThresholdCrossed(ctx context.Context, a account.Account, used, limit int64) {
	d.enqueue(job{kind: KindThreshold, acct: a, used: used, lim: limit})
}

// OnKeyReset queues a key reset email.
func (d *Dispatcher) OnKeyReset(ctx context.Context, a account.Account, newKey string) {
	d.enqueue(job{kind: KindKeyReset, acct: a, key: newKey})
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.Notification(j.kind, "dropped")
		return
	}
	select {
	case d.queue <- j:
	default:
		d.metrics.Notification(j.kind, "dropped")
		d.logger.Warn().
			Str("kind", j.kind).
			Str("account_id", j.acct.ID).
			Msg("notification queue full, dropping")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case j := <-d.queue:
			d.deliver(j)
		case <-d.done:
			// drain what was accepted before Close
			for {
				select {
				case j := <-d.queue:
					d.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		d.metrics.Notification(j.kind, "dropped")
		d.logger.Warn().Err(err).Str("kind", j.kind).Msg("notification rate wait aborted")
		return
	}

	var err error
	switch j.kind {
	case KindThreshold:
		err = d.sender.SendUsageAlert(ctx, j.acct.Email, j.acct.Name, j.used, j.lim)
	case KindKeyReset:
		err = d.sender.SendKeyReset(ctx, j.acct.Email, j.acct.Name, j.key)
	}

	if err != nil {
		d.metrics.Notification(j.kind, "failed")
		d.logger.Error().
			Err(err).
			Str("kind", j.kind).
			Str("account_id", j.acct.ID).
			Msg("notification delivery failed")
		return
	}

	d.metrics.Notification(j.kind, "sent")
	d.logger.Info().
		Str("kind", j.kind).
		Str("account_id", j.acct.ID).
		Msg("notification sent")
}

// Close stops accepting notifications and waits until queued ones are
// delivered or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
	})

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure interface compliance.
var _ ports.Notifier = (*Dispatcher)(nil)

// Noop discards all notifications.
type Noop struct{}

// OnThresholdCrossed does nothing.
func (Noop) OnThresholdCrossed(ctx context.Context, a account.Account, used, limit int64) {}

// OnKeyReset does nothing.
func (Noop) OnKeyReset(ctx context.Context, a account.Account, newKey string) {}

// Ensure interface compliance.
var _ ports.Notifier = Noop{}
