package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/intellicog/records/internal/config"
)

var ErrNotConfigured = errors.New("email sender is not configured")

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	from    string
	support string
	sender  Sender
}

func New(cfg config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{from: cfg.Sender, support: cfg.Support}
	if cfg.Sender != "" && cfg.Password != "" {
		m.sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Sender, cfg.Password)
	}
	return m
}

// NewWithSender builds a mailer around an arbitrary transport.
func NewWithSender(from, support string, s Sender) *SMTPMailer {
	return &SMTPMailer{from: from, support: support, sender: s}
}

func (m *SMTPMailer) SendRecoveryCode(ctx context.Context, to, name, code string, ttl time.Duration) error {
	var body bytes.Buffer
	err := templates.ExecuteTemplate(&body, "recovery_email.html", map[string]any{
		"Name":    name,
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})
	if err != nil {
		return fmt.Errorf("render recovery email: %w", err)
	}

	msg := m.message(to, "Password Reset Code Intellicog")
	msg.SetBody("text/html", body.String())
	return m.send(ctx, msg)
}

func (m *SMTPMailer) SendReport(ctx context.Context, to string, patientID uint, pdf []byte) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, "report_email.html", nil); err != nil {
		return fmt.Errorf("render report email: %w", err)
	}

	msg := m.message(to, "Reporte PDF de Evaluaciones - Intellicog")
	msg.SetBody("text/html", body.String())
	msg.Attach(fmt.Sprintf("evaluations_patient_%d.pdf", patientID),
		gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}),
	)
	return m.send(ctx, msg)
}

func (m *SMTPMailer) SendSupport(ctx context.Context, replyTo, fullName, subject, message string) error {
	if m.support == "" {
		return ErrNotConfigured
	}
	msg := m.message(m.support, "[Soporte] "+subject)
	msg.SetAddressHeader("Reply-To", replyTo, fullName)
	msg.SetBody("text/plain", fmt.Sprintf("De: %s <%s>\n\n%s", fullName, replyTo, message))
	return m.send(ctx, msg)
}

func (m *SMTPMailer) message(to, subject string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	return msg
}

func (m *SMTPMailer) send(ctx context.Context, msg *gomail.Message) error {
	if m.sender == nil || m.from == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
