package mailer

import (
	"context"
	"fmt"

	"github.com/gophish/gomail"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/scoutier-backend/internal/logger"
	"github.com/unclebandit/scoutier-backend/internal/model"
)

// smtpDialer is the part of *gomail.Dialer used by SMTPMailer.
type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends plain-text mail through an authenticated SMTP relay.
type SMTPMailer struct {
	dialer   smtpDialer
	from     string
	fromName string
}

// NewSMTPMailer dials host:port with user/pass for every message. The
// authenticated user is also the sender address.
func NewSMTPMailer(host string, port int, user, pass, fromName string) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(host, port, user, pass),
		from:     user,
		fromName: fromName,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) Result {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, m.fromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(gm)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return Result{Status: StatusFailed, Reason: model.ReasonTimeout,
			Error: fmt.Sprintf("smtp send aborted: %v", ctx.Err())}
	}

	if err != nil {
		res := Failed(err)
		logger.WithComponent("mailer").WithFields(logrus.Fields{
			"to":     logger.RedactEmail(msg.To),
			"reason": res.Reason,
		}).Warn("smtp send failed")
		return res
	}
	return Result{Status: StatusSent}
}
