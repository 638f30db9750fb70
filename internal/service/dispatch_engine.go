package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/scoutier-backend/internal/config"
	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/lock"
	"github.com/unclebandit/scoutier-backend/internal/logger"
	"github.com/unclebandit/scoutier-backend/internal/mailer"
	"github.com/unclebandit/scoutier-backend/internal/model"
	"github.com/unclebandit/scoutier-backend/internal/validator"
)

// CampaignStore is what the engine needs from campaign persistence.
type CampaignStore interface {
	GetCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error)
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, update model.CampaignUpdate) error
	TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus) (bool, error)
	AppendLog(ctx context.Context, campaignID string, entry *model.DeliveryLog) error
}

// AddressValidator gates every send attempt.
type AddressValidator interface {
	Validate(ctx context.Context, address string) error
}

// BatchResult summarizes one campaign's share of a tick.
type BatchResult struct {
	CampaignID string `json:"campaign_id"`
	Skipped    bool   `json:"skipped,omitempty"`
	Offset     int    `json:"offset"`
	Attempted  int    `json:"attempted"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Completed  bool   `json:"completed,omitempty"`
}

// TickReport aggregates the results of one tick over all sending campaigns.
type TickReport struct {
	Campaigns int      `json:"campaigns"`
	Skipped   int      `json:"skipped"`
	Attempted int      `json:"attempted"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Completed int      `json:"completed"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *TickReport) add(res BatchResult, err error) {
	r.Campaigns++
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", res.CampaignID, err))
	}
	if res.Skipped {
		r.Skipped++
	}
	r.Attempted += res.Attempted
	r.Sent += res.Sent
	r.Failed += res.Failed
	if res.Completed {
		r.Completed++
	}
}

// DispatchEngine drives campaigns in the sending state forward one batch per tick.
type DispatchEngine struct {
	Campaigns CampaignStore
	Resolver  *RecipientResolver
	Validator AddressValidator
	Mailer    mailer.Mailer
	Locker    lock.Locker

	TickInterval        time.Duration
	SendConcurrency     int
	CampaignConcurrency int
	// LockTTL is the lifetime of a campaign lock; a held lock is renewed
	// every LockTTL/3 while its batch runs. Zero disables renewal.
	LockTTL time.Duration

	log *logrus.Entry
}

func NewDispatchEngine(
	campaigns CampaignStore,
	contacts ContactStore,
	v AddressValidator,
	m mailer.Mailer,
	l lock.Locker,
	cfg config.DispatchConfig,
) *DispatchEngine {
	return &DispatchEngine{
		Campaigns:           campaigns,
		Resolver:            NewRecipientResolver(contacts),
		Validator:           v,
		Mailer:              m,
		Locker:              l,
		TickInterval:        cfg.TickInterval,
		SendConcurrency:     cfg.SendConcurrency,
		CampaignConcurrency: cfg.CampaignConcurrency,
		LockTTL:             cfg.LockTTL,
		log:                 logger.WithComponent("dispatch"),
	}
}

func (e *DispatchEngine) logEntry() *logrus.Entry {
	if e.log == nil {
		return logger.WithComponent("dispatch")
	}
	return e.log
}

// ====================== Control ======================

// Start moves a draft or paused campaign to sending. A draft without any
// target is rejected.
func (e *DispatchEngine) Start(ctx context.Context, id string) error {
	c, err := e.Campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch c.Status {
	case model.StatusDraft:
		if len(c.TargetContactIDs) == 0 {
			return appErrors.NewValidation("target_contact_ids")
		}
	case model.StatusPaused:
	default:
		return appErrors.NewInvalidTransition(id, "start", string(c.Status))
	}

	ok, err := e.Campaigns.TransitionStatus(ctx, id,
		[]model.CampaignStatus{model.StatusDraft, model.StatusPaused}, model.StatusSending)
	if err != nil {
		return err
	}
	if !ok {
		return e.rejected(ctx, id, "start")
	}
	e.logEntry().WithField("campaign_id", id).Info("campaign started")
	return nil
}

// Pause stops a sending campaign at the next tick boundary. A batch already
// running finishes.
func (e *DispatchEngine) Pause(ctx context.Context, id string) error {
	ok, err := e.Campaigns.TransitionStatus(ctx, id,
		[]model.CampaignStatus{model.StatusSending}, model.StatusPaused)
	if err != nil {
		return err
	}
	if !ok {
		return e.rejected(ctx, id, "pause")
	}
	e.logEntry().WithField("campaign_id", id).Info("campaign paused")
	return nil
}

func (e *DispatchEngine) rejected(ctx context.Context, id, action string) error {
	c, err := e.Campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return appErrors.NewInvalidTransition(id, action, string(c.Status))
}

// ====================== Tick ======================

// Tick processes one batch for every sending campaign. Campaigns run
// concurrently up to CampaignConcurrency; a failure in one never stops the others.
func (e *DispatchEngine) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport

	campaigns, err := e.Campaigns.GetCampaignsByStatus(ctx, model.StatusSending)
	if err != nil {
		return report, fmt.Errorf("list sending campaigns: %w", err)
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(max(e.CampaignConcurrency, 1))
	for _, c := range campaigns {
		id := c.ID
		g.Go(func() error {
			res, err := e.TickCampaign(ctx, id)
			if err != nil {
				e.logEntry().WithError(err).WithField("campaign_id", id).Warn("campaign tick failed")
			}
			mu.Lock()
			report.add(res, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if report.Campaigns > 0 {
		e.logEntry().WithFields(logrus.Fields{
			"campaigns": report.Campaigns,
			"attempted": report.Attempted,
			"sent":      report.Sent,
			"failed":    report.Failed,
			"completed": report.Completed,
			"errors":    len(report.Errors),
		}).Info("tick finished")
	}
	return report, nil
}

// TickCampaign runs one batch for a single campaign under its lock. It is a
// no-op when another worker holds the lock or the campaign is not sending.
func (e *DispatchEngine) TickCampaign(ctx context.Context, id string) (BatchResult, error) {
	res := BatchResult{CampaignID: id}
	log := e.logEntry().WithField("campaign_id", id)

	held, ok, err := e.Locker.TryAcquire(ctx, "campaign:"+id)
	if err != nil {
		return res, err
	}
	if !ok {
		log.Debug("campaign busy, skipping")
		res.Skipped = true
		return res, nil
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("failed to release campaign lock")
		}
	}()
	stopRenewal := e.keepLock(ctx, held, log)
	defer stopRenewal()

	c, err := e.Campaigns.GetByID(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load campaign: %w", err)
	}
	if c.Status != model.StatusSending {
		res.Skipped = true
		return res, nil
	}

	// A batch that has started runs to the end: sends already made must be
	// logged and counted even if the caller goes away.
	if err := ctx.Err(); err != nil {
		return res, err
	}
	ctx = context.WithoutCancel(ctx)

	total := len(c.TargetContactIDs)
	stats := c.Stats
	stats.Total = total
	processed := stats.Processed()
	res.Offset = processed

	if processed >= total {
		completed, err := e.complete(ctx, id)
		res.Completed = completed
		return res, err
	}

	end := min(processed+BatchSize(c.Speed, e.TickInterval), total)
	resolution, err := e.Resolver.Resolve(ctx, c.UserID, c.TargetContactIDs[processed:end])
	if err != nil {
		return res, err
	}

	entries := e.sendBatch(ctx, c, resolution.Targets)
	for _, entry := range entries {
		res.Attempted++
		if entry.Status == model.DeliverySent {
			res.Sent++
		} else {
			res.Failed++
		}
	}

	stats.Sent += res.Sent
	stats.Failed += res.Failed
	if err := e.Campaigns.UpdateCampaign(ctx, id, model.CampaignUpdate{Stats: &stats}); err != nil {
		return res, fmt.Errorf("persist stats: %w", err)
	}

	log.WithFields(logrus.Fields{
		"offset":    processed,
		"attempted": res.Attempted,
		"sent":      res.Sent,
		"failed":    res.Failed,
		"total":     total,
	}).Info("batch dispatched")

	if stats.Exhausted() {
		completed, err := e.complete(ctx, id)
		res.Completed = completed
		return res, err
	}
	return res, nil
}

// HandleDispatchJob runs one batch for a queued dispatch job. Errors are
// returned for redelivery only when nothing was attempted; once a batch has
// sent mail a retry would resend the same window, so the error is logged and
// the next tick resumes from the persisted counters.
func (e *DispatchEngine) HandleDispatchJob(ctx context.Context, id string) error {
	res, err := e.TickCampaign(ctx, id)
	if err == nil {
		return nil
	}
	if res.Attempted == 0 {
		return err
	}
	e.logEntry().WithError(err).WithFields(logrus.Fields{
		"campaign_id": id,
		"attempted":   res.Attempted,
	}).Error("dispatch job failed after sending; not retrying")
	return nil
}

// keepLock extends held every LockTTL/3 until the returned stop func is
// called. A lost lock is logged; the running batch is not interrupted.
func (e *DispatchEngine) keepLock(ctx context.Context, held lock.Lock, log *logrus.Entry) func() {
	if e.LockTTL <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(max(e.LockTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := held.Extend(ctx, e.LockTTL); err != nil {
					if ctx.Err() != nil {
						return
					}
					log.WithError(err).Warn("failed to renew campaign lock")
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// complete is conditional so only one caller ever observes the transition.
// A campaign paused while its final batch ran still completes.
func (e *DispatchEngine) complete(ctx context.Context, id string) (bool, error) {
	ok, err := e.Campaigns.TransitionStatus(ctx, id,
		[]model.CampaignStatus{model.StatusSending, model.StatusPaused}, model.StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("complete campaign: %w", err)
	}
	if ok {
		e.logEntry().WithField("campaign_id", id).Info("campaign completed")
	}
	return ok, nil
}

// ====================== Recipients ======================

// sendBatch attempts every target once, SendConcurrency at a time, and
// appends one log entry per attempt. Entries are returned in target order.
func (e *DispatchEngine) sendBatch(ctx context.Context, c *model.Campaign, targets []ResolvedTarget) []*model.DeliveryLog {
	entries := make([]*model.DeliveryLog, len(targets))

	var g errgroup.Group
	g.SetLimit(max(e.SendConcurrency, 1))
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			entry := e.attemptSafely(ctx, c, target)
			if err := e.Campaigns.AppendLog(ctx, c.ID, entry); err != nil {
				e.logEntry().WithError(err).WithFields(logrus.Fields{
					"campaign_id": c.ID,
					"to":          logger.RedactEmail(entry.ContactEmail),
				}).Warn("failed to append delivery log")
			}
			entries[i] = entry
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func (e *DispatchEngine) attemptSafely(ctx context.Context, c *model.Campaign, target ResolvedTarget) (entry *model.DeliveryLog) {
	defer func() {
		if r := recover(); r != nil {
			email := ""
			if target.Recipient != nil {
				email = target.Recipient.Email
			}
			e.logEntry().WithFields(logrus.Fields{
				"campaign_id": c.ID,
				"contact_id":  target.ContactID,
				"panic":       r,
			}).Error("recipient attempt panicked")
			entry = failedEntry(email, model.ReasonOther, fmt.Sprintf("unexpected error: %v", r))
		}
	}()
	return e.attempt(ctx, c, target)
}

// attempt runs validation, personalization and delivery for one recipient.
func (e *DispatchEngine) attempt(ctx context.Context, c *model.Campaign, target ResolvedTarget) *model.DeliveryLog {
	if target.Recipient == nil {
		return failedEntry("", model.ReasonContactNotFound,
			appErrors.NewContactNotFound(target.ContactID).Error())
	}
	rec := target.Recipient

	if err := e.Validator.Validate(ctx, rec.Email); err != nil {
		reason := model.ReasonOther
		var invalid *validator.InvalidError
		if errors.As(err, &invalid) {
			reason = invalid.Reason
		}
		return failedEntry(rec.Email, reason, err.Error())
	}

	fields := rec.Fields()
	result := e.Mailer.Send(ctx, mailer.Message{
		To:      rec.Email,
		Subject: Personalize(c.Subject, fields),
		Body:    Personalize(c.Body, fields),
	})
	if result.Success() {
		return &model.DeliveryLog{
			ContactEmail: rec.Email,
			Status:       model.DeliverySent,
			Simulated:    result.Status == mailer.StatusSimulated,
		}
	}

	reason := result.Reason
	if reason == "" {
		reason = model.ReasonOther
	}
	msg := result.Error
	if msg == "" {
		msg = "delivery failed: " + reason
	}
	return failedEntry(rec.Email, reason, msg)
}

func failedEntry(email, reason, message string) *model.DeliveryLog {
	return &model.DeliveryLog{
		ContactEmail: email,
		Status:       model.DeliveryFailed,
		Reason:       reason,
		ErrorMessage: message,
	}
}
