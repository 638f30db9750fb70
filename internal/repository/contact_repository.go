package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by services and the dispatch engine
type ContactRepositoryInterface interface {
	Create(ctx context.Context, c *model.Contact) error
	GetContactsByIDs(ctx context.Context, userID string, ids []string) ([]model.Contact, error)
	ListByUser(ctx context.Context, userID string) ([]model.Contact, error)
	Delete(ctx context.Context, userID, id string) error
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, user_id, first_name, last_name, email, company, position, created_at`

// Create stores a contact; the email is normalized to lowercase.
func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO contacts (` + contactColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.ExecContext(ctx, query, c.ID, c.UserID, c.FirstName, c.LastName, c.Email, c.Company, c.Position, c.CreatedAt)
	return err
}

// GetContactsByIDs fetches the owner's contacts among ids. Unknown ids are
// simply absent from the result; order is not guaranteed.
func (r *ContactRepository) GetContactsByIDs(ctx context.Context, userID string, ids []string) ([]model.Contact, error) {
	if len(ids) == 0 {
		return []model.Contact{}, nil
	}
	query := `
        SELECT ` + contactColumns + `
        FROM contacts
        WHERE user_id = $1 AND id = ANY($2)
    `
	rows, err := r.DB.QueryContext(ctx, query, userID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

// ListByUser fetches every contact of a user, newest first.
func (r *ContactRepository) ListByUser(ctx context.Context, userID string) ([]model.Contact, error) {
	query := `
        SELECT ` + contactColumns + `
        FROM contacts
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

// Delete removes one of the owner's contacts. Campaigns that still target it
// log contact-not-found for that slot when they reach it.
func (r *ContactRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM contacts WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewContactNotFound(id)
	}
	return nil
}

func scanContacts(rows *sql.Rows) ([]model.Contact, error) {
	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email, &c.Company, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
