package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// SMTPMailer delivers mail over plain SMTP, typically to a local relay.
type SMTPMailer struct {
	Addr string
	From string
}

// NewSMTPMailer constructs a mailer for host:port delivery.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{Addr: fmt.Sprintf("%s:%d", host, port), From: from}
}

// Send delivers one message. Headers are minimal on purpose; the relay is
// expected to add Message-ID and friends.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg strings.Builder
	msg.WriteString("From: " + m.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)
	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg.String()))
}

// SendEmailJob processes queued mail through an SMTPMailer.
type SendEmailJob struct {
	Mailer *SMTPMailer
	Logger *slog.Logger
}

// Handle processes TaskTypeSendEmail tasks.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}
	if err := j.Mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		if j.Logger != nil {
			j.Logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
		}
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	}
	return nil
}

// QueuedOTPMailer enqueues login codes as mail tasks so the HTTP request
// never blocks on SMTP.
type QueuedOTPMailer struct {
	Client *Client
}

// SendOTP satisfies the auth mailer contract.
func (m *QueuedOTPMailer) SendOTP(ctx context.Context, to, code string) error {
	_, err := m.Client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      to,
		Subject: "Your login code",
		Body:    "Your one-time login code is " + code + ". It expires in 5 minutes.",
	})
	return err
}
