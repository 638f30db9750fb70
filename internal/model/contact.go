// internal/model/contact.go
package model

import "time"

type Contact struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Company   string    `db:"company" json:"company"`
	Position  string    `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Recipient is a contact resolved for one campaign send.
type Recipient struct {
	ContactID string
	Email     string
	FirstName string
	LastName  string
	Company   string
	Position  string
}

// RecipientFromContact copies the personalization fields of c.
func RecipientFromContact(c Contact) Recipient {
	return Recipient{
		ContactID: c.ID,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Company:   c.Company,
		Position:  c.Position,
	}
}

// Fields returns the personalization tokens for r.
func (r Recipient) Fields() map[string]string {
	return map[string]string{
		"firstName": r.FirstName,
		"lastName":  r.LastName,
		"email":     r.Email,
		"company":   r.Company,
		"position":  r.Position,
	}
}
