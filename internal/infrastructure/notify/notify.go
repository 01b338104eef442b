// Package notify delivers customer notifications.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/notification"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

var ErrInvalidRecipient = errors.New("notify: invalid recipient")

type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPNotifier struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send sendFunc
}

var _ notification.Notifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	n := &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
	if cfg.Username != "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return n
}

// Send gives up waiting when ctx is done; net/smtp itself cannot be interrupted.
func (n *SMTPNotifier) Send(ctx context.Context, m notification.Message) error {
	if strings.ContainsAny(m.To, "\r\n") || !strings.Contains(m.To, "@") {
		return ErrInvalidRecipient
	}
	body := compose(n.cfg.From, m, time.Now())

	done := make(chan error, 1)
	go func() { done <- n.send(n.cfg.Addr, n.auth, n.cfg.From, []string{m.To}, body) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notify: smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func compose(from string, m notification.Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", "", "\n", "").Replace(m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return b.Bytes()
}

// LogNotifier writes messages to the log instead of sending them. Used when no SMTP server is configured.
type LogNotifier struct {
	log observability.Logger
}

var _ notification.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger observability.Logger) *LogNotifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogNotifier{log: logger.With(observability.F("component", "notifier"))}
}

func (n *LogNotifier) Send(ctx context.Context, m notification.Message) error {
	logctx.FromOr(ctx, n.log).Info("notification_logged",
		observability.F("to", m.To),
		observability.F("subject", m.Subject),
	)
	return nil
}
