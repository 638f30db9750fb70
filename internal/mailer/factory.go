package mailer

import (
	"context"
	"fmt"

	"github.com/unclebandit/scoutier-backend/internal/config"
	"github.com/unclebandit/scoutier-backend/internal/logger"
)

// FromConfig picks the transport. With provider "auto", SMTP credentials win,
// then SES credentials; with neither the simulated transport is used.
func FromConfig(ctx context.Context, cfg config.MailConfig) (Mailer, error) {
	hasSMTP := cfg.SMTPUser != "" && cfg.SMTPPass != ""
	hasSES := cfg.SESAccessKey != "" && cfg.SESSecretKey != "" && cfg.SESFrom != ""

	provider := cfg.Provider
	if provider == "auto" {
		switch {
		case hasSMTP:
			provider = "smtp"
		case hasSES:
			provider = "ses"
		default:
			provider = "simulated"
		}
	}

	log := logger.WithComponent("mailer")
	switch provider {
	case "smtp":
		if !hasSMTP {
			log.Warn("smtp selected without EMAIL_USER/EMAIL_PASS, falling back to simulated mode")
			return SimulatedMailer{}, nil
		}
		log.WithField("host", cfg.SMTPHost).Info("using smtp transport")
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromName), nil
	case "ses":
		if !hasSES {
			log.Warn("ses selected without credentials, falling back to simulated mode")
			return SimulatedMailer{}, nil
		}
		log.WithField("region", cfg.SESRegion).Info("using ses transport")
		m, err := NewSESMailer(ctx, cfg.SESRegion, cfg.SESAccessKey, cfg.SESSecretKey, cfg.SESFrom, cfg.FromName)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "simulated":
		log.Info("no transport credentials configured, sends are simulated")
		return SimulatedMailer{}, nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}
