// internal/model/delivery_log.go
package model

import "time"

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Failure reasons recorded on failed log entries.
const (
	ReasonInvalidSyntax    = "invalid-syntax"
	ReasonNoMXRecord       = "no-mx-record"
	ReasonContactNotFound  = "contact-not-found"
	ReasonAuthFailure      = "auth-failure"
	ReasonUnverifiedSender = "unverified-sender"
	ReasonTimeout          = "timeout"
	ReasonOther            = "other"
)

// DeliveryLog is one append-only attempt record of a campaign.
type DeliveryLog struct {
	ID           string         `db:"id" json:"id"`
	CampaignID   string         `db:"campaign_id" json:"campaign_id"`
	ContactEmail string         `db:"contact_email" json:"contact_email"`
	Status       DeliveryStatus `db:"status" json:"status"`
	Reason       string         `db:"reason" json:"reason,omitempty"`
	ErrorMessage string         `db:"error_message" json:"error_message,omitempty"`
	Simulated    bool           `db:"simulated" json:"simulated"`
	Timestamp    time.Time      `db:"created_at" json:"timestamp"`
}
