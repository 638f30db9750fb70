// internal/model/campaign.go
package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusSending   CampaignStatus = "sending"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSending, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// CampaignStats are the aggregate progress counters of a campaign.
type CampaignStats struct {
	Total  int `db:"stats_total" json:"total"`
	Sent   int `db:"stats_sent" json:"sent"`
	Failed int `db:"stats_failed" json:"failed"`
}

// Processed is the number of recipients already attempted.
func (s CampaignStats) Processed() int {
	return s.Sent + s.Failed
}

// Exhausted reports whether every target has been attempted.
func (s CampaignStats) Exhausted() bool {
	return s.Processed() >= s.Total
}

type Campaign struct {
	ID               string         `db:"id" json:"id"`
	UserID           string         `db:"user_id" json:"user_id"`
	Name             string         `db:"name" json:"name"`
	Subject          string         `db:"subject" json:"subject"`
	Body             string         `db:"body" json:"body"`
	Speed            int            `db:"speed" json:"speed"` // emails per minute
	Status           CampaignStatus `db:"status" json:"status"`
	TargetContactIDs []string       `db:"target_contact_ids" json:"target_contact_ids"`
	Stats            CampaignStats  `json:"stats"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignUpdate is a partial update. Nil fields are left untouched.
type CampaignUpdate struct {
	Status *CampaignStatus
	Stats  *CampaignStats
}
