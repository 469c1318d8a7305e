package email

import (
	"context"

	"github.com/artpar/quotagate/ports"
)

// NoopSender is a no-op email sender for when notifications are disabled.
type NoopSender struct{}

// NewNoopSender creates a new no-op email sender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send does nothing.
func (s *NoopSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	return nil
}

// SendUsageAlert does nothing.
func (s *NoopSender) SendUsageAlert(ctx context.Context, to, name string, used, limit int64) error {
	return nil
}

// SendKeyReset does nothing.
func (s *NoopSender) SendKeyReset(ctx context.Context, to, name, newKey string) error {
	return nil
}

// Ensure interface compliance.
var _ ports.EmailSender = (*NoopSender)(nil)
