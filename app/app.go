// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"time"

	"github.com/artpar/quotagate/domain/account"
	"github.com/artpar/quotagate/ports"
)

// defaultStorageTimeout bounds storage calls that run detached from the caller.
const defaultStorageTimeout = 5 * time.Second

// detach returns a context that outlives caller cancellation, bounded by d.
// Admission and accounting complete even when the client hangs up.
func detach(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

type nopMetrics struct{}

func (nopMetrics) AuthFailure(string)   {}
func (nopMetrics) QuotaRejected(string) {}
func (nopMetrics) Admitted(string)      {}
func (nopMetrics) AuditWriteFailed()    {}

type nopNotifier struct{}

func (nopNotifier) OnThresholdCrossed(context.Context, account.Account, int64, int64) {}
func (nopNotifier) OnKeyReset(context.Context, account.Account, string)               {}

func metricsOrNop(m ports.Metrics) ports.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

func notifierOrNop(n ports.Notifier) ports.Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
