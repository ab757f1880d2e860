package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iliyamo/storefront-api/internal/queue"
)

// SMTPSender delivers queued mail through an SMTP relay.  Auth is used only
// when User is set.
type SMTPSender struct {
	Addr string
	Host string
	User string
	Pass string
	From string

	// sendMail is smtp.SendMail; replaced in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(addr, user, pass, from string) *SMTPSender {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &SMTPSender{Addr: addr, Host: host, User: user, Pass: pass, From: from, sendMail: smtp.SendMail}
}

// Send implements queue.Sender.  4xx replies and network failures are
// marked retryable; 5xx replies are permanent.
func (s *SMTPSender) Send(ctx context.Context, msg queue.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	err := s.sendMail(s.Addr, auth, s.From, []string{msg.To}, buildMessage(s.From, msg))
	if err == nil {
		return nil
	}
	if transient(err) {
		return retry.RetryableError(err)
	}
	return err
}

func transient(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code >= 400 && tpErr.Code < 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// buildMessage renders msg as an RFC 5322 message with CRLF line endings.
func buildMessage(from string, msg queue.MailMessage) []byte {
	contentType := "text/plain; charset=UTF-8"
	if msg.HTML {
		contentType = "text/html; charset=UTF-8"
	}
	date := msg.CreatedAt
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", sanitizeHeader(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	if msg.ID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s@storefront>\r\n", msg.ID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n\r\n", contentType)
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
