package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/quotagate/ports"
)

// Email types recorded by MockSender.
const (
	TypeCustom     = "custom"
	TypeUsageAlert = "usage_alert"
	TypeKeyReset   = "key_reset"
)

// MockSender is a mock email sender for testing.
// It stores sent emails in memory instead of actually sending them.
type MockSender struct {
	mu     sync.Mutex
	emails []SentEmail

	AppName string

	// Optional: fail if set
	ShouldFail bool
	FailError  error
}

// SentEmail represents an email that was "sent" (stored in memory).
type SentEmail struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Type     string
	Name     string
	Used     int64
	Limit    int64
	Key      string
}

// NewMockSender creates a new mock email sender.
func NewMockSender(appName string) *MockSender {
	if appName == "" {
		appName = "Quotagate"
	}
	return &MockSender{AppName: appName}
}

func (m *MockSender) record(e SentEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFail {
		if m.FailError != nil {
			return m.FailError
		}
		return fmt.Errorf("mock email send failure")
	}
	m.emails = append(m.emails, e)
	return nil
}

// Send stores the email in memory.
func (m *MockSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	return m.record(SentEmail{
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
		Type:     TypeCustom,
	})
}

// SendUsageAlert stores a usage alert in memory.
func (m *MockSender) SendUsageAlert(ctx context.Context, to, name string, used, limit int64) error {
	return m.record(SentEmail{
		To:      to,
		Subject: usageAlertSubject(m.AppName),
		Type:    TypeUsageAlert,
		Name:    name,
		Used:    used,
		Limit:   limit,
	})
}

// SendKeyReset stores a key reset email in memory.
func (m *MockSender) SendKeyReset(ctx context.Context, to, name, newKey string) error {
	return m.record(SentEmail{
		To:      to,
		Subject: keyResetSubject(m.AppName),
		Type:    TypeKeyReset,
		Name:    name,
		Key:     newKey,
	})
}

// GetEmails returns all stored emails.
func (m *MockSender) GetEmails() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]SentEmail, len(m.emails))
	copy(result, m.emails)
	return result
}

// GetLastEmail returns the most recently stored email.
func (m *MockSender) GetLastEmail() (SentEmail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.emails) == 0 {
		return SentEmail{}, false
	}
	return m.emails[len(m.emails)-1], true
}

// FindByType finds all emails of a specific type.
func (m *MockSender) FindByType(emailType string) []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []SentEmail
	for _, e := range m.emails {
		if e.Type == emailType {
			result = append(result, e)
		}
	}
	return result
}

// Count returns the number of emails sent.
func (m *MockSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

// SetShouldFail configures the mock to fail on all send attempts.
func (m *MockSender) SetShouldFail(fail bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = fail
	m.FailError = err
}

// Ensure interface compliance.
var _ ports.EmailSender = (*MockSender)(nil)
