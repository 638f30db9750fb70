package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/model"
	"github.com/unclebandit/scoutier-backend/internal/queue"
	"github.com/unclebandit/scoutier-backend/internal/service"
)

func newCampaignService(store *fakeCampaignStore, contacts *fakeContacts) *service.CampaignService {
	return &service.CampaignService{
		CampaignRepo: store,
		ContactRepo:  contacts,
		Dispatcher:   newEngine(store, contacts, nil, &fakeMailer{}),
	}
}

func strPtr(s string) *string { return &s }

func TestCreateCampaignDefaults(t *testing.T) {
	store := newFakeCampaignStore()
	svc := newCampaignService(store, newFakeContacts())

	c, err := svc.CreateCampaign(context.Background(), service.CreateCampaignInput{
		UserID:           ownerID,
		Name:             "  Launch  ",
		Subject:          "Hi {{firstName}}",
		Body:             "Body",
		TargetContactIDs: []string{"c1", "c2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Launch", c.Name)
	assert.Equal(t, service.DefaultSpeed, c.Speed)
	assert.Equal(t, model.StatusDraft, c.Status)
	assert.Equal(t, 2, c.Stats.Total)
}

func TestCreateCampaignValidation(t *testing.T) {
	svc := newCampaignService(newFakeCampaignStore(), newFakeContacts())

	_, err := svc.CreateCampaign(context.Background(), service.CreateCampaignInput{Speed: -1})
	var validation *appErrors.ErrValidation
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, []string{"user_id", "name", "subject", "body", "speed"}, validation.Fields)
}

func TestSetAudienceOnlyWhileDraft(t *testing.T) {
	store := newFakeCampaignStore()
	svc := newCampaignService(store, newFakeContacts())
	ctx := context.Background()

	c, err := svc.CreateCampaign(ctx, service.CreateCampaignInput{UserID: ownerID, Name: "n", Subject: "s", Body: "b"})
	require.NoError(t, err)

	updated, err := svc.SetAudience(ctx, c.ID, []string{"c1", "c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Stats.Total)
	assert.Equal(t, []string{"c1", "c1", "c2"}, updated.TargetContactIDs)

	_, err = svc.SetAudience(ctx, c.ID, []string{""})
	var validation *appErrors.ErrValidation
	assert.True(t, errors.As(err, &validation))

	store.setStatus(c.ID, model.StatusSending)
	_, err = svc.SetAudience(ctx, c.ID, []string{"c3"})
	var transition *appErrors.ErrInvalidTransition
	assert.True(t, errors.As(err, &transition))
}

func TestStartCampaignPublishesDispatchJob(t *testing.T) {
	store := newFakeCampaignStore()
	svc := newCampaignService(store, newFakeContacts())
	q := queue.NewInMemoryQueue()
	svc.Queue = q
	ctx := context.Background()

	jobs := make(chan string, 1)
	require.NoError(t, queue.SubscribeCampaigns(q, func(id string) error {
		jobs <- id
		return nil
	}))

	c, err := svc.CreateCampaign(ctx, service.CreateCampaignInput{
		UserID: ownerID, Name: "n", Subject: "s", Body: "b", TargetContactIDs: []string{"c1"},
	})
	require.NoError(t, err)

	started, err := svc.StartCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSending, started.Status)

	select {
	case id := <-jobs:
		assert.Equal(t, c.ID, id)
	case <-time.After(time.Second):
		t.Fatal("dispatch job not published")
	}

	paused, err := svc.PauseCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, paused.Status)
}

func TestStartCampaignWithoutSubscriberStillStarts(t *testing.T) {
	store := newFakeCampaignStore()
	svc := newCampaignService(store, newFakeContacts())
	svc.Queue = queue.NewInMemoryQueue()
	ctx := context.Background()

	c, err := svc.CreateCampaign(ctx, service.CreateCampaignInput{
		UserID: ownerID, Name: "n", Subject: "s", Body: "b", TargetContactIDs: []string{"c1"},
	})
	require.NoError(t, err)

	started, err := svc.StartCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSending, started.Status)
}

func TestCampaignLogsAndDelete(t *testing.T) {
	contacts, ids := audience(3)
	store := newFakeCampaignStore(sendingCampaign("camp-1", 60, ids))
	fc := newFakeContacts(contacts...)
	svc := newCampaignService(store, fc)
	ctx := context.Background()

	_, err := newEngine(store, fc, nil, &fakeMailer{}).Tick(ctx)
	require.NoError(t, err)

	logs, err := svc.CampaignLogs(ctx, "camp-1", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	logs, err = svc.CampaignLogs(ctx, "camp-1", 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	require.NoError(t, svc.DeleteCampaign(ctx, "camp-1"))

	var notFound *appErrors.ErrCampaignNotFound
	_, err = svc.CampaignLogs(ctx, "camp-1", 10)
	assert.True(t, errors.As(err, &notFound))
	assert.True(t, errors.As(svc.DeleteCampaign(ctx, "camp-1"), &notFound))
}

func TestRenderPreview(t *testing.T) {
	ann := contact("c1", "ann@acme.com")
	ann.FirstName = "Ann"
	ann.Company = "Acme"
	store := newFakeCampaignStore(sendingCampaign("camp-1", 10, []string{"c1"}))
	svc := newCampaignService(store, newFakeContacts(ann))
	ctx := context.Background()

	p, err := svc.RenderPreview(ctx, "camp-1", "c1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann", p.Subject)
	assert.Equal(t, "Hi Ann at Acme", p.Body)
	assert.Equal(t, "ann@acme.com", p.Email)

	p, err = svc.RenderPreview(ctx, "camp-1", "c1", strPtr("{{company}} news"), strPtr("  "))
	require.NoError(t, err)
	assert.Equal(t, "Acme news", p.Subject)
	assert.Equal(t, "Hi Ann at Acme", p.Body)

	_, err = svc.RenderPreview(ctx, "camp-1", "nobody", nil, nil)
	var contactMissing *appErrors.ErrContactNotFound
	assert.True(t, errors.As(err, &contactMissing))

	_, err = svc.RenderPreview(ctx, "missing", "c1", nil, nil)
	var campaignMissing *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &campaignMissing))
}
