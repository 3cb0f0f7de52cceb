// Package mail delivers transactional email over SMTP.
package mail

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"gopkg.in/gomail.v2"
)

// Message is a multipart (text + HTML) email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer, or a NopMailer when no SMTP host is set.
func New(cfg *config.Config, logger logging.Logger) Mailer {
	if !cfg.MailEnabled() {
		logger.Warn(context.Background(), "SMTP host not configured, outgoing mail disabled")
		return NewNopMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}

// SMTPMailer sends through one lazily built transport shared by all
// requests. Every SMTP conversation runs on a connection whose deadline is
// the request context's, so a stalled relay cannot hold a send open.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
	timeout  time.Duration
	logger   logging.Logger

	once  sync.Once
	relay *transport

	// deliver is a seam for tests.
	deliver func(ctx context.Context, t *transport, from string, to []string, msg io.WriterTo) error
}

func NewSMTPMailer(cfg *config.Config, logger logging.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
		timeout:  cfg.MailTimeout,
		logger:   logger.With("module", "mailer"),
		deliver: func(ctx context.Context, t *transport, from string, to []string, msg io.WriterTo) error {
			return t.send(ctx, from, to, msg)
		},
	}
}

func (m *SMTPMailer) transport() *transport {
	m.once.Do(func() {
		m.relay = newTransport(m.host, m.port, m.user, m.password)
	})
	return m.relay
}

// Send delivers msg or fails with common.ErrTransient when the relay errors
// or does not finish within the configured timeout.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}

	t := m.transport()
	sender := gomail.SendFunc(func(from string, to []string, w io.WriterTo) error {
		return m.deliver(ctx, t, from, to, w)
	})

	if err := gomail.Send(sender, gm); err != nil {
		if ctxErr := contextErr(ctx); ctxErr != nil {
			return fmt.Errorf("%w: send email: %w", common.ErrTransient, ctxErr)
		}
		return fmt.Errorf("%w: send email: %v", common.ErrTransient, err)
	}
	m.logger.Debug(ctx, "email sent", "subject", msg.Subject)
	return nil
}

// contextErr is ctx.Err, also reporting a deadline that has passed while
// the context timer has not fired yet. Connection deadlines can expire a
// moment before it does.
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return nil
}

// NopMailer drops messages.
type NopMailer struct {
	logger logging.Logger
}

func NewNopMailer(logger logging.Logger) *NopMailer {
	return &NopMailer{logger: logger}
}

func (n *NopMailer) Send(ctx context.Context, msg Message) error {
	n.logger.Info(ctx, "mail disabled, message dropped", "subject", msg.Subject)
	return nil
}
