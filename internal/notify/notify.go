package notify

import (
	"MediaVault/config"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Notifier delivers "output is available" signals. Delivery is owned by an
// external collaborator; this interface is the seam.
type Notifier interface {
	JobReady(ctx context.Context, kind, fileName string) error
}

// Default is the process-wide notifier, nil when notifications are off.
var Default Notifier

// InitNotifier wires the SMTP notifier when enabled.
func InitNotifier() {
	if !config.AppConfig.NotifyEnable {
		return
	}
	Default = &EmailNotifier{}
}

// EmailNotifier sends job-ready mail over SMTP.
type EmailNotifier struct{}

// JobReady emails the configured recipient that a job finished.
func (n *EmailNotifier) JobReady(ctx context.Context, kind, fileName string) error {
	cfg := config.AppConfig
	e := email.NewEmail()
	e.From = cfg.SMTPFrom
	e.To = []string{cfg.SMTPUser}
	e.Subject = fmt.Sprintf("%s ready: %s", kind, fileName)
	e.Text = []byte(fmt.Sprintf("Processing of %q (%s) has finished and the output is available.", fileName, kind))

	addr := cfg.SMTPHost + ":" + cfg.SMTPPort
	auth := smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	if cfg.SMTPPort == "465" {
		return e.SendWithTLS(addr, auth, &tls.Config{ServerName: cfg.SMTPHost})
	}
	return e.Send(addr, auth)
}
