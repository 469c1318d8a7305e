package email

import (
	"fmt"

	"github.com/artpar/quotagate/ports"
)

// NewSender creates an email sender for provider: "smtp", "mock", or
// "none"/"" for a no-op sender.
func NewSender(provider string, cfg SMTPConfig) (ports.EmailSender, error) {
	switch provider {
	case "smtp":
		return NewSMTPSender(cfg)
	case "mock":
		return NewMockSender(cfg.AppName), nil
	case "none", "":
		return NewNoopSender(), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", provider)
	}
}
