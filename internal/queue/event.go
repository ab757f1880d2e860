// Package queue carries outbound mail over RabbitMQ: the API publishes a
// MailMessage per notification and a background consumer delivers it.
package queue

import "time"

// MailQueue is the durable queue holding outbound mail.
const MailQueue = "mail.outbound"

// MailMessage is the JSON payload of one outbound mail.  Kind names the
// template it was rendered from (verify_email, login_notice,
// reset_password) and is only used for logs and metrics.
type MailMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	HTML      bool      `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}
