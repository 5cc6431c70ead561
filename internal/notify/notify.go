// Package notify is the outbound notification port. The workflow service
// hands it a template key and a context map; rendering and SMTP dispatch
// happen here. Delivery failures are the caller's to log, never to escalate.
package notify

import (
	"context"
	"embed"
	"fmt"
	"regexp"

	"gopkg.in/gomail.v2"

	"citydesk/internal/config"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Message is a single notification to dispatch.
type Message struct {
	TemplateKey string
	To          string
	Subject     string
	Context     map[string]string
}

// Notifier dispatches a rendered notification to a recipient.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// smtpNotifier implements Notifier over SMTP via gomail.
type smtpNotifier struct {
	dialer    *gomail.Dialer
	fromName  string
	fromEmail string
}

// NewSMTP creates an SMTP-backed Notifier from mail configuration.
func NewSMTP(cfg config.MailConfig) Notifier {
	return &smtpNotifier{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
	}
}

// Send renders the message template and dispatches it. The context argument
// is accepted for interface symmetry; gomail's dialer has no context support.
func (n *smtpNotifier) Send(_ context.Context, msg Message) error {
	html, err := RenderTemplate(msg.TemplateKey, msg.Context)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.fromEmail, n.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", html)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderTemplate loads the embedded template for key and substitutes
// {{placeholder}} occurrences from the context map. Unknown placeholders
// render as empty strings.
func RenderTemplate(key string, context map[string]string) (string, error) {
	b, err := templatesFS.ReadFile("templates/" + key + ".html")
	if err != nil {
		return "", fmt.Errorf("read template %q: %w", key, err)
	}

	out := placeholderRe.ReplaceAllStringFunc(string(b), func(ph string) string {
		name := placeholderRe.FindStringSubmatch(ph)[1]
		return context[name]
	})
	return out, nil
}
