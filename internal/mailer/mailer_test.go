package mailer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clinic-app-server/internal/config"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []Message
	block chan struct{}
	err   error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 10, zerolog.Nop())
	d.Start()

	for i := 0; i < 3; i++ {
		if !d.Enqueue(Message{To: "a@example.com"}) {
			t.Fatal("Enqueue() = false")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := sender.count(); got != 3 {
		t.Errorf("sent %d messages, want 3", got)
	}
	if d.Enqueue(Message{}) {
		t.Error("Enqueue() after Stop = true")
	}
}

func TestDispatcherEnqueueNeverBlocks(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := NewDispatcher(sender, 1, zerolog.Nop())
	d.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			d.Enqueue(Message{To: "b@example.com"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	close(sender.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcherSurvivesSendErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := NewDispatcher(sender, 4, zerolog.Nop())
	d.Start()
	d.Enqueue(Message{To: "c@example.com"})
	d.Enqueue(Message{To: "d@example.com"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if got := sender.count(); got != 2 {
		t.Errorf("attempted %d sends, want 2", got)
	}
}

func TestTemplatesEscapeInput(t *testing.T) {
	msg, err := OTPEmail("p@example.com", "<b>Pat</b>", "123456", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.HTML, "123456") || !strings.Contains(msg.HTML, "10 minutes") {
		t.Errorf("otp body = %q", msg.HTML)
	}
	if strings.Contains(msg.HTML, "<b>Pat</b>") {
		t.Error("name was not escaped")
	}

	msg, err = VerificationEmail("p@example.com", "Pat", "http://localhost/api/v1/auth/verify?token=abc", 24)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.HTML, "token=abc") {
		t.Errorf("verification body = %q", msg.HTML)
	}
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	if _, ok := NewSender(configWithHost(""), zerolog.Nop()).(LogSender); !ok {
		t.Error("expected LogSender without SMTP host")
	}
	if _, ok := NewSender(configWithHost("smtp.example.com"), zerolog.Nop()).(*SMTPSender); !ok {
		t.Error("expected SMTPSender with SMTP host")
	}
}

func configWithHost(host string) config.MailerConfig {
	return config.MailerConfig{SMTPHost: host, SMTPPort: 587, DefaultFrom: "clinic@example.com"}
}
