// Package mail renders account notifications and hands them to the outbound
// queue.  Delivery happens out of band in the queue consumer via SMTPSender.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/iliyamo/storefront-api/internal/queue"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	KindVerifyEmail   = "verify_email"
	KindLoginNotice   = "login_notice"
	KindResetPassword = "reset_password"

	publishTimeout = 5 * time.Second
)

// Publisher is the queue side of the mailer.
type Publisher interface {
	Publish(ctx context.Context, msg queue.MailMessage) error
}

// Mailer renders templates into MailMessages.  It satisfies the service
// package's Notifier.
type Mailer struct {
	pub  Publisher
	tmpl *template.Template
	now  func() time.Time
}

func NewMailer(pub Publisher) (*Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Mailer{pub: pub, tmpl: tmpl, now: time.Now}, nil
}

func (m *Mailer) send(ctx context.Context, kind, to, subject string, data any) error {
	var body bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&body, kind+".html", data); err != nil {
		return fmt.Errorf("render %s: %w", kind, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return m.pub.Publish(ctx, queue.MailMessage{
		Kind:      kind,
		To:        to,
		Subject:   subject,
		Body:      body.String(),
		HTML:      true,
		CreatedAt: m.now().UTC(),
	})
}

func (m *Mailer) SendVerifyEmail(ctx context.Context, to, link string) error {
	return m.send(ctx, KindVerifyEmail, to, "Verify your account", struct{ Link string }{link})
}

func (m *Mailer) SendLoginNotice(ctx context.Context, to string) error {
	return m.send(ctx, KindLoginNotice, to, "Log In Notification", struct {
		Email string
		Time  time.Time
	}{to, m.now().UTC()})
}

func (m *Mailer) SendResetPassword(ctx context.Context, to, link string) error {
	return m.send(ctx, KindResetPassword, to, "Reset password", struct{ Link string }{link})
}
