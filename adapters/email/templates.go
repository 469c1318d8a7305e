package email

import (
	"fmt"
	"strings"
)

// emailTemplateData holds data for email templates.
type emailTemplateData struct {
	Name       string
	AppName    string
	PricingURL string
	Used       int64
	Limit      int64
	Key        string
}

// Percent returns Used as a whole-number percentage of Limit.
func (d emailTemplateData) Percent() int64 {
	if d.Limit <= 0 {
		return 0
	}
	return d.Used * 100 / d.Limit
}

func usageAlertSubject(app string) string {
	return fmt.Sprintf("%s usage alert: approaching your daily limit", app)
}

func keyResetSubject(app string) string {
	return fmt.Sprintf("Your new %s API key", app)
}

func usageAlertText(d emailTemplateData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", d.Name)
	fmt.Fprintf(&b, "You have used %d of your %d daily requests (%d%%).\n", d.Used, d.Limit, d.Percent())
	b.WriteString("Requests beyond the limit are rejected until the counter resets at midnight.\n\n")
	if d.PricingURL != "" {
		fmt.Fprintf(&b, "Need more? Upgrade your plan: %s\n\n", d.PricingURL)
	}
	fmt.Fprintf(&b, "Thanks,\nThe %s Team", d.AppName)
	return b.String()
}

func keyResetText(d emailTemplateData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", d.Name)
	b.WriteString("Your API key was reset. The previous key no longer works.\n\n")
	fmt.Fprintf(&b, "New key: %s\n\n", d.Key)
	b.WriteString("Keep it secret. If you did not request this, contact support.\n\n")
	fmt.Fprintf(&b, "Thanks,\nThe %s Team", d.AppName)
	return b.String()
}

// -----------------------------------------------------------------------------
// Email Templates
// -----------------------------------------------------------------------------

const emailStyle = `
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .content { background: #f9f9f9; padding: 30px; border-radius: 8px; }
        .key { font-family: monospace; background: #eee; padding: 10px; word-break: break-all; }
        .footer { text-align: center; padding: 20px; color: #666; font-size: 14px; }
    </style>`

var usageAlertEmailTemplate = strings.TrimSpace(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Usage alert</title>` + emailStyle + `
</head>
<body>
    <div class="container">
        <h1>{{.AppName}}</h1>
        <div class="content">
            <h2>You are close to your daily limit</h2>
            <p>Hi {{.Name}},</p>
            <p>You have used <strong>{{.Used}}</strong> of your <strong>{{.Limit}}</strong> daily requests ({{.Percent}}%).</p>
            <p>Requests beyond the limit are rejected until the counter resets at midnight.</p>
            {{if .PricingURL}}<p><a href="{{.PricingURL}}">Upgrade your plan</a></p>{{end}}
        </div>
        <div class="footer"><p>The {{.AppName}} Team</p></div>
    </div>
</body>
</html>
`)

var keyResetEmailTemplate = strings.TrimSpace(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>New API key</title>` + emailStyle + `
</head>
<body>
    <div class="container">
        <h1>{{.AppName}}</h1>
        <div class="content">
            <h2>Your API key was reset</h2>
            <p>Hi {{.Name}},</p>
            <p>The previous key no longer works. Your new key is:</p>
            <p class="key">{{.Key}}</p>
            <p>Keep it secret. If you did not request this, contact support.</p>
        </div>
        <div class="footer"><p>The {{.AppName}} Team</p></div>
    </div>
</body>
</html>
`)
