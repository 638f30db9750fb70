// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/logger"
	"github.com/unclebandit/scoutier-backend/internal/model"
	"github.com/unclebandit/scoutier-backend/internal/queue"
	"github.com/unclebandit/scoutier-backend/internal/repository"
)

// DefaultSpeed is the send velocity (emails per minute) of a campaign
// created without one.
const DefaultSpeed = 10

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// Dispatcher owns the campaign state machine.
type Dispatcher interface {
	Start(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	Dispatcher   Dispatcher
	Queue        queue.Queue
}

// CreateCampaignInput is the user-supplied configuration of a new campaign.
type CreateCampaignInput struct {
	UserID           string   `json:"user_id"`
	Name             string   `json:"name"`
	Subject          string   `json:"subject"`
	Body             string   `json:"body"`
	Speed            int      `json:"speed"`
	TargetContactIDs []string `json:"target_contact_ids"`
}

// Preview is a campaign rendered for one contact.
type Preview struct {
	ContactID string `json:"contact_id"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	var missing []string
	if strings.TrimSpace(in.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(in.Body) == "" {
		missing = append(missing, "body")
	}
	if in.Speed < 0 {
		missing = append(missing, "speed")
	}
	if len(missing) > 0 {
		return nil, appErrors.NewValidation(missing...)
	}

	speed := in.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}

	c := &model.Campaign{
		UserID:           in.UserID,
		Name:             strings.TrimSpace(in.Name),
		Subject:          in.Subject,
		Body:             in.Body,
		Speed:            speed,
		Status:           model.StatusDraft,
		TargetContactIDs: in.TargetContactIDs,
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, userID, status string) ([]model.Campaign, map[string]int, error) {
	if status != "" && !model.CampaignStatus(status).Valid() {
		return nil, nil, appErrors.NewValidation("status")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, userID, status, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id string) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

// SetAudience replaces the target list. Only drafts can be edited; the list
// order is the send order and duplicates are kept.
func (s *CampaignService) SetAudience(ctx context.Context, id string, contactIDs []string) (*model.Campaign, error) {
	for _, cid := range contactIDs {
		if strings.TrimSpace(cid) == "" {
			return nil, appErrors.NewValidation("target_contact_ids")
		}
	}
	if contactIDs == nil {
		contactIDs = []string{}
	}

	ok, err := s.CampaignRepo.SetAudience(ctx, id, contactIDs)
	if err != nil {
		return nil, err
	}
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewInvalidTransition(id, "edit audience of", string(c.Status))
	}
	return c, nil
}

// StartCampaign flips the campaign to sending and enqueues an immediate
// dispatch job. The periodic tick picks the campaign up regardless, so a
// failed publish is only logged.
func (s *CampaignService) StartCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	if err := s.Dispatcher.Start(ctx, id); err != nil {
		return nil, err
	}
	if s.Queue != nil {
		if err := queue.PublishCampaign(s.Queue, id); err != nil {
			logger.WithComponent("campaigns").WithError(err).
				WithField("campaign_id", id).Warn("failed to enqueue dispatch job")
		}
	}
	return s.CampaignRepo.GetByID(ctx, id)
}

func (s *CampaignService) PauseCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	if err := s.Dispatcher.Pause(ctx, id); err != nil {
		return nil, err
	}
	return s.CampaignRepo.GetByID(ctx, id)
}

// DeleteCampaign removes the campaign and its delivery logs.
func (s *CampaignService) DeleteCampaign(ctx context.Context, id string) error {
	if err := s.CampaignRepo.Delete(ctx, id); err != nil {
		return err
	}
	logger.WithComponent("campaigns").WithField("campaign_id", id).Info("campaign deleted")
	return nil
}

// CampaignLogs returns the newest delivery log entries of a campaign.
func (s *CampaignService) CampaignLogs(ctx context.Context, id string, limit int) ([]model.DeliveryLog, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return s.CampaignRepo.ListLogs(ctx, id, limit)
}

// RenderPreview personalizes the campaign (or the given overrides) for one
// of the owner's contacts without sending anything.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID, contactID string, overrideSubject, overrideBody *string) (*Preview, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	contacts, err := s.ContactRepo.GetContactsByIDs(ctx, campaign.UserID, []string{contactID})
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, appErrors.NewContactNotFound(contactID)
	}

	subject := campaign.Subject
	if overrideSubject != nil && strings.TrimSpace(*overrideSubject) != "" {
		subject = *overrideSubject
	}
	body := campaign.Body
	if overrideBody != nil && strings.TrimSpace(*overrideBody) != "" {
		body = *overrideBody
	}

	fields := model.RecipientFromContact(contacts[0]).Fields()
	logger.WithComponent("campaigns").WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"contact_id":  contactID,
	}).Debug("rendering preview")

	return &Preview{
		ContactID: contactID,
		Email:     contacts[0].Email,
		Subject:   Personalize(subject, fields),
		Body:      Personalize(body, fields),
	}, nil
}
