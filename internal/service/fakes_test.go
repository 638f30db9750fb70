package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/scoutier-backend/internal/config"
	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/lock"
	"github.com/unclebandit/scoutier-backend/internal/mailer"
	"github.com/unclebandit/scoutier-backend/internal/model"
	"github.com/unclebandit/scoutier-backend/internal/repository"
	"github.com/unclebandit/scoutier-backend/internal/service"
	"github.com/unclebandit/scoutier-backend/internal/validator"
)

const ownerID = "user-1"

// ====================== Campaign store ======================

// fakeCampaignStore fails with ctx.Err() on a done context, like database/sql.
type fakeCampaignStore struct {
	mu          sync.Mutex
	campaigns   map[string]*model.Campaign
	logs        map[string][]model.DeliveryLog
	completions map[string]int

	listErr   error
	getErr    error
	updateErr error
	appendErr error
	updates   int
}

func newFakeCampaignStore(campaigns ...*model.Campaign) *fakeCampaignStore {
	s := &fakeCampaignStore{
		campaigns:   map[string]*model.Campaign{},
		logs:        map[string][]model.DeliveryLog{},
		completions: map[string]int{},
	}
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *fakeCampaignStore) Create(ctx context.Context, c *model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("camp-%d", len(s.campaigns)+1)
	}
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	if c.TargetContactIDs == nil {
		c.TargetContactIDs = []string{}
	}
	c.Stats = model.CampaignStats{Total: len(c.TargetContactIDs)}
	c.CreatedAt = time.Now()
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *fakeCampaignStore) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	c, ok := s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCampaignStore) ListCampaigns(ctx context.Context, userID, status string, offset, limit int) ([]*model.Campaign, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	all := []*model.Campaign{}
	for _, c := range s.campaigns {
		if userID != "" && c.UserID != userID {
			continue
		}
		if status != "" && string(c.Status) != status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (s *fakeCampaignStore) SetAudience(ctx context.Context, id string, contactIDs []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c, ok := s.campaigns[id]
	if !ok {
		return false, appErrors.NewCampaignNotFound(id)
	}
	if c.Status != model.StatusDraft {
		return false, nil
	}
	c.TargetContactIDs = contactIDs
	c.Stats = model.CampaignStats{Total: len(contactIDs)}
	return true, nil
}

func (s *fakeCampaignStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(s.campaigns, id)
	delete(s.logs, id)
	return nil
}

func (s *fakeCampaignStore) GetCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []*model.Campaign{}
	for _, c := range s.campaigns {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeCampaignStore) UpdateCampaign(ctx context.Context, id string, update model.CampaignUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.updateErr != nil {
		return s.updateErr
	}
	c, ok := s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	if update.Stats != nil {
		if update.Stats.Processed() > update.Stats.Total {
			return fmt.Errorf("stats out of bounds: %+v", *update.Stats)
		}
		c.Stats = *update.Stats
	}
	if update.Status != nil {
		c.Status = *update.Status
	}
	s.updates++
	return nil
}

func (s *fakeCampaignStore) TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c, ok := s.campaigns[id]
	if !ok {
		return false, appErrors.NewCampaignNotFound(id)
	}
	for _, f := range from {
		if c.Status == f {
			c.Status = to
			if to == model.StatusCompleted {
				s.completions[id]++
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeCampaignStore) AppendLog(ctx context.Context, campaignID string, entry *model.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.appendErr != nil {
		return s.appendErr
	}
	entry.CampaignID = campaignID
	entry.Timestamp = time.Now()
	s.logs[campaignID] = append(s.logs[campaignID], *entry)
	return nil
}

func (s *fakeCampaignStore) ListLogs(ctx context.Context, campaignID string, limit int) ([]model.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logs := s.logs[campaignID]
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return append([]model.DeliveryLog{}, logs...), nil
}

func (s *fakeCampaignStore) campaign(id string) model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.campaigns[id]
}

func (s *fakeCampaignStore) logsFor(id string) []model.DeliveryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DeliveryLog{}, s.logs[id]...)
}

func (s *fakeCampaignStore) setStatus(id string, status model.CampaignStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[id].Status = status
}

var _ repository.CampaignRepositoryInterface = (*fakeCampaignStore)(nil)

// ====================== Contacts ======================

type fakeContacts struct {
	mu       sync.Mutex
	contacts map[string]model.Contact
	calls    int
	err      error
}

func newFakeContacts(contacts ...model.Contact) *fakeContacts {
	f := &fakeContacts{contacts: map[string]model.Contact{}}
	for _, c := range contacts {
		f.contacts[c.ID] = c
	}
	return f
}

func (f *fakeContacts) Create(ctx context.Context, c *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = fmt.Sprintf("contact-%d", len(f.contacts)+1)
	}
	f.contacts[c.ID] = *c
	return nil
}

func (f *fakeContacts) GetContactsByIDs(ctx context.Context, userID string, ids []string) ([]model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Contact{}
	for _, id := range ids {
		if c, ok := f.contacts[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContacts) ListByUser(ctx context.Context, userID string) ([]model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Contact{}
	for _, c := range f.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContacts) Delete(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ok := f.contacts[id]
	if !ok || c.UserID != userID {
		return appErrors.NewContactNotFound(id)
	}
	delete(f.contacts, id)
	return nil
}

var _ repository.ContactRepositoryInterface = (*fakeContacts)(nil)

func contact(id, email string) model.Contact {
	return model.Contact{ID: id, UserID: ownerID, FirstName: "First-" + id, Company: "Co-" + id, Email: email}
}

// ====================== Validator / mailer ======================

type fakeValidator struct {
	invalid map[string]string
}

func (v *fakeValidator) Validate(ctx context.Context, address string) error {
	if reason, ok := v.invalid[address]; ok {
		return &validator.InvalidError{Address: address, Reason: reason, Detail: "rejected by test"}
	}
	return nil
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failures map[string]mailer.Result
	panicOn  string
	status   mailer.Status
	// afterSend runs after the n-th (1-based) message is recorded.
	afterSend func(n int)
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) mailer.Result {
	if msg.To == m.panicOn {
		panic("transport exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.afterSend != nil {
		m.afterSend(len(m.sent))
	}
	if res, ok := m.failures[msg.To]; ok {
		return res
	}
	if m.status != "" {
		return mailer.Result{Status: m.status}
	}
	return mailer.Result{Status: mailer.StatusSent}
}

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.To
	}
	return out
}

// ====================== Builders ======================

var testDispatchConfig = config.DispatchConfig{
	TickInterval:        6 * time.Second,
	SendConcurrency:     4,
	CampaignConcurrency: 4,
	LockTTL:             time.Minute,
}

func newEngine(store *fakeCampaignStore, contacts *fakeContacts, v service.AddressValidator, m mailer.Mailer) *service.DispatchEngine {
	if v == nil {
		v = &fakeValidator{}
	}
	return service.NewDispatchEngine(store, contacts, v, m, lock.NewLocalLocker(), testDispatchConfig)
}

// audience creates n contacts and returns them with their ids in order.
func audience(n int) ([]model.Contact, []string) {
	contacts := make([]model.Contact, n)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%03d", i)
		contacts[i] = contact(id, fmt.Sprintf("lead%03d@example.com", i))
		ids[i] = id
	}
	return contacts, ids
}

func sendingCampaign(id string, speed int, targets []string) *model.Campaign {
	return &model.Campaign{
		ID:               id,
		UserID:           ownerID,
		Name:             "Outreach " + id,
		Subject:          "Hello {{firstName}}",
		Body:             "Hi {{firstName}} at {{company}}",
		Speed:            speed,
		Status:           model.StatusSending,
		TargetContactIDs: targets,
		Stats:            model.CampaignStats{Total: len(targets)},
	}
}
