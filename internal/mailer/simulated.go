package mailer

import (
	"context"

	"github.com/unclebandit/scoutier-backend/internal/logger"
)

// SimulatedMailer is used when no transport credentials are configured.
// Every message is reported as simulated and nothing leaves the process.
type SimulatedMailer struct{}

func (SimulatedMailer) Send(ctx context.Context, msg Message) Result {
	logger.WithComponent("mailer").
		WithField("to", logger.RedactEmail(msg.To)).
		Debug("simulated send")
	return Result{Status: StatusSimulated}
}
