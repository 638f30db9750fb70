package service

import (
	"context"
	"strings"

	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/extractor"
	"github.com/unclebandit/scoutier-backend/internal/logger"
	"github.com/unclebandit/scoutier-backend/internal/model"
	"github.com/unclebandit/scoutier-backend/internal/repository"
	"github.com/unclebandit/scoutier-backend/internal/validator"
)

// ContactService manages a user's lead vault.
type ContactService struct {
	ContactRepo repository.ContactRepositoryInterface
}

// AddContact stores a lead. Only the email is required and it must be
// syntactically valid.
func (s *ContactService) AddContact(ctx context.Context, c *model.Contact) error {
	var invalid []string
	if strings.TrimSpace(c.UserID) == "" {
		invalid = append(invalid, "user_id")
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if validator.CheckSyntax(c.Email) != nil {
		invalid = append(invalid, "email")
	}
	if len(invalid) > 0 {
		return appErrors.NewValidation(invalid...)
	}
	return s.ContactRepo.Create(ctx, c)
}

func (s *ContactService) ListContacts(ctx context.Context, userID string) ([]model.Contact, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.NewValidation("user_id")
	}
	return s.ContactRepo.ListByUser(ctx, userID)
}

// DeleteContact removes a lead from the user's vault.
func (s *ContactService) DeleteContact(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return appErrors.NewValidation("user_id")
	}
	if err := s.ContactRepo.Delete(ctx, userID, id); err != nil {
		return err
	}
	logger.WithComponent("contacts").
		WithField("user_id", userID).
		WithField("contact_id", id).
		Info("contact deleted")
	return nil
}

// ImportText extracts addresses from free text and saves the ones not
// already in the user's vault. It returns the contacts created.
func (s *ContactService) ImportText(ctx context.Context, userID, text string) ([]model.Contact, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.NewValidation("user_id")
	}

	existing, err := s.ContactRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.Email] = true
	}

	created := []model.Contact{}
	for _, email := range extractor.ExtractEmails(text) {
		if known[email] || validator.CheckSyntax(email) != nil {
			continue
		}
		c := model.Contact{UserID: userID, Email: email}
		if err := s.ContactRepo.Create(ctx, &c); err != nil {
			return created, err
		}
		created = append(created, c)
	}

	logger.WithComponent("contacts").
		WithField("user_id", userID).
		WithField("created", len(created)).
		Info("imported contacts from text")
	return created, nil
}
