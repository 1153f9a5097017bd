package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/internal/pkg/config"
)

const defaultSender = "no-reply@cognifox.app"

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer renders billing notifications with the view engine and sends
// them through an SMTP relay.
type SMTPMailer struct {
	cfg   config.MailConfig
	views fiber.Views
	send  sendFunc
}

func NewSMTPMailer(cfg config.MailConfig, views fiber.Views) *SMTPMailer {
	if cfg.Sender == "" {
		cfg.Sender = defaultSender
		log.Infof("[Mail] SMTP_SENDER not set, using %s", cfg.Sender)
	}
	return &SMTPMailer{cfg: cfg, views: views, send: smtp.SendMail}
}

// TrialEnding warns the user that the free trial is about to convert.
func (m *SMTPMailer) TrialEnding(ctx context.Context, to string, trialEnd *time.Time) error {
	data := fiber.Map{"Title": "Your CogniFox trial ends soon"}
	if trialEnd != nil {
		data["TrialEnd"] = trialEnd.UTC().Format("January 2, 2006")
	}
	return m.sendTemplate(ctx, to, "Your CogniFox trial ends soon", "mail_trial_ending", data)
}

// PaymentFailed asks the user to update the payment method.
func (m *SMTPMailer) PaymentFailed(ctx context.Context, to, status string) error {
	return m.sendTemplate(ctx, to, "We could not charge your CogniFox subscription", "mail_payment_failed", fiber.Map{
		"Title":  "Payment failed",
		"Status": status,
	})
}

func (m *SMTPMailer) sendTemplate(ctx context.Context, to, subject, view string, data fiber.Map) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := m.views.Render(&body, view, data); err != nil {
		return fmt.Errorf("render %s: %w", view, err)
	}
	return m.Send(to, subject, body.String())
}

// Send delivers one HTML mail.
func (m *SMTPMailer) Send(to, subject, body string) error {
	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.cfg.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	if err := m.send(addr, auth, m.cfg.Sender, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	log.Infof("[Mail] %q sent to %s via %s", subject, to, addr)
	return nil
}
