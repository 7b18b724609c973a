// Package notify buffers booking change events, groups them into messages and
// delivers them to the configured sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/smtp"
	"os"
	"strings"

	"github.com/fatih/color"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

// Notifier delivers one message.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Dispatcher sends every message to every notifier. A failing sink does not
// stop delivery to the others.
type Dispatcher struct {
	notifiers []Notifier
}

func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// Deliver sends msgs with footer appended. Returned error joins all failures.
func (d *Dispatcher) Deliver(ctx context.Context, msgs []Message, footer string) error {
	var errs []error
	for _, msg := range msgs {
		msg.Footer = footer
		for _, n := range d.notifiers {
			if err := n.Notify(ctx, msg); err != nil {
				appLog.Error("notification delivery failed", err, "notifier", n.Name(), "subject", msg.Subject)
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
				continue
			}
			appLog.Info("notification delivered", "notifier", n.Name(), "subject", msg.Subject)
		}
	}
	return errors.Join(errs...)
}

// Console prints messages to a terminal, colored by kind.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, msg Message) error {
	heading := color.New(color.Bold)
	switch msg.Kind {
	case model.ChangeNew:
		heading = color.New(color.FgGreen, color.Bold)
	case model.ChangeCancelled:
		heading = color.New(color.FgRed, color.Bold)
	case model.ChangeExtended, model.ChangeShortened:
		heading = color.New(color.FgYellow, color.Bold)
	}
	gray := color.New(color.FgHiBlack)

	if _, err := heading.Fprintln(c.w, msg.Subject); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(c.w, msg.Body); err != nil {
		return err
	}
	if msg.Footer != "" {
		if _, err := gray.Fprintln(c.w, msg.Footer); err != nil {
			return err
		}
	}
	return nil
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// SubjectPrefix is prepended to every subject, e.g. "[Cabin]".
	SubjectPrefix string
}

// Email sends plain-text mail over SMTP with PLAIN auth.
type Email struct {
	cfg  EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.Host == "" {
		return nil, errors.New("email: host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("email: from and to are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg, send: smtp.SendMail}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := msg.Subject
	if e.cfg.SubjectPrefix != "" {
		subject = e.cfg.SubjectPrefix + " " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Text(), "\n", "\r\n"))
	b.WriteString("\r\n")

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	if err := e.send(addr, auth, e.cfg.From, e.cfg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}
