// Package mailer holds the outbound transports used by the dispatch engine.
//
// A transport never returns an error to the engine: every outcome, including
// provider failures, is folded into a Result so it can be logged per recipient.
package mailer

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/unclebandit/scoutier-backend/internal/model"
)

type Status string

const (
	StatusSent      Status = "sent"
	StatusSimulated Status = "simulated"
	StatusFailed    Status = "failed"
)

// Message is one personalized email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Result is the structured outcome of a single send.
type Result struct {
	Status Status
	Reason string // one of the model.Reason* transport codes when Status is failed
	Error  string
}

// Success reports whether the message counts as sent.
func (r Result) Success() bool {
	return r.Status == StatusSent || r.Status == StatusSimulated
}

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, msg Message) Result
}

// Failed builds a failed Result from a transport error.
func Failed(err error) Result {
	return Result{Status: StatusFailed, Reason: Classify(err), Error: err.Error()}
}

var authCodes = map[string]bool{
	"UnrecognizedClientException": true,
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"AccessDeniedException":       true,
	"ExpiredTokenException":       true,
}

// Classify maps a transport error to one of the failure reasons the engine
// logs distinctly: auth-failure, unverified-sender, timeout or other.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ReasonTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case authCodes[code]:
			return model.ReasonAuthFailure
		case code == "MailFromDomainNotVerifiedException":
			return model.ReasonUnverifiedSender
		case code == "MessageRejected" && strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "not verified"):
			return model.ReasonUnverifiedSender
		}
	}

	var smtpErr *textproto.Error
	if errors.As(err, &smtpErr) {
		if reason := classifyReply(smtpErr.Code, smtpErr.Msg); reason != "" {
			return reason
		}
	}

	// gomail wraps SMTP replies in its own error types; recover the reply
	// code from the text. Only a code that opens the reply counts.
	text := err.Error()
	if m := replyCode.FindStringSubmatch(text); m != nil {
		code, _ := strconv.Atoi(m[1])
		if reason := classifyReply(code, text); reason != "" {
			return reason
		}
	}

	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "username and password not accepted") ||
		strings.Contains(msg, "authentication failed") || strings.Contains(msg, "invalid login"):
		return model.ReasonAuthFailure
	case strings.Contains(msg, "not verified") || strings.Contains(msg, "sender address rejected") ||
		strings.Contains(msg, "not authorized to send"):
		return model.ReasonUnverifiedSender
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return model.ReasonTimeout
	}
	return model.ReasonOther
}

// replyCode matches an SMTP reply code at the start of the text or of a
// "prefix: " wrapped message.
var replyCode = regexp.MustCompile(`(?:^|:\s)([2-5][0-9]{2})(?:[ -]|$)`)

func classifyReply(code int, text string) string {
	switch {
	case code == 535 || code == 534 || code == 530:
		return model.ReasonAuthFailure
	case code == 553 || (code == 550 && mentionsSender(text)):
		return model.ReasonUnverifiedSender
	}
	return ""
}

func mentionsSender(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "sender") || strings.Contains(msg, "from address") || strings.Contains(msg, "not verified")
}
