// internal/errors/errors.go
package appErrors

import (
	"fmt"
	"strings"
)

// ErrCampaignNotFound is returned when a campaign id does not exist.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// NewCampaignNotFound is a helper constructor.
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrContactNotFound is returned when a contact id does not exist for the owner.
type ErrContactNotFound struct {
	ContactID string
}

func (e *ErrContactNotFound) Error() string {
	return fmt.Sprintf("contact with ID %s not found", e.ContactID)
}

func NewContactNotFound(id string) error {
	return &ErrContactNotFound{ContactID: id}
}

// ErrInvalidTransition is returned when a control operation is not allowed
// from the campaign's current status.
type ErrInvalidTransition struct {
	CampaignID string
	Action     string
	Status     string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s campaign %s in status %s", e.Action, e.CampaignID, e.Status)
}

func NewInvalidTransition(id, action, status string) error {
	return &ErrInvalidTransition{CampaignID: id, Action: action, Status: status}
}

// ErrValidation collects request field problems.
type ErrValidation struct {
	Fields []string
}

func (e *ErrValidation) Error() string {
	return "invalid request: " + strings.Join(e.Fields, ", ")
}

func NewValidation(fields ...string) error {
	return &ErrValidation{Fields: fields}
}
