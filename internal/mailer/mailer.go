// Package mailer delivers transactional emails (one-time codes, verification links) in
// the background so requests never wait on SMTP.
package mailer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"clinic-app-server/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender from the mailer configuration.
func NewSMTPSender(cfg config.MailerConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.DefaultFrom,
	}
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return s.dialer.DialAndSend(m)
}

// LogSender only logs messages. It is used when no SMTP host is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email not sent: no SMTP host configured")
	return nil
}

// NewSender picks the SMTP sender when a host is configured.
func NewSender(cfg config.MailerConfig, logger zerolog.Logger) Sender {
	if cfg.SMTPHost == "" {
		return LogSender{Logger: logger}
	}
	return NewSMTPSender(cfg)
}

// Dispatcher queues messages and delivers them from a single worker goroutine.
// Delivery is attempted once; failures are logged.
type Dispatcher struct {
	sender Sender
	logger zerolog.Logger
	queue  chan Message
	done   chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher creates a dispatcher with room for size pending messages.
func NewDispatcher(sender Sender, size int, logger zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Message, size),
		done:   make(chan struct{}),
	}
}

// Start launches the worker.
func (d *Dispatcher) Start() {
	go d.run()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		if err := d.sender.Send(context.Background(), msg); err != nil {
			d.logger.Error().Err(err).
				Str("to", msg.To).
				Str("subject", msg.Subject).
				Msg("failed to send email")
		}
	}
}

// Enqueue hands msg to the worker without blocking. It reports false when the queue is
// full or the dispatcher is stopped; the message is dropped in that case.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn().Str("to", msg.To).Msg("mail queue full, dropping email")
		return false
	}
}

// Stop closes the queue and waits for queued messages to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
