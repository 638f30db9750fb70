package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/model"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var campaignCols = []string{
	"id", "user_id", "name", "subject", "body", "speed", "status", "target_contact_ids",
	"stats_total", "stats_sent", "stats_failed", "created_at", "updated_at",
}

func TestCampaignRepository_Create(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs(sqlmock.AnyArg(), "user-1", "Spring outreach", "Hi {{firstName}}", "Body", 10, "draft",
			sqlmock.AnyArg(), 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &model.Campaign{
		UserID:           "user-1",
		Name:             "Spring outreach",
		Subject:          "Hi {{firstName}}",
		Body:             "Body",
		Speed:            10,
		TargetContactIDs: []string{"c1", "c2"},
	}
	require.NoError(t, repo.Create(context.Background(), c))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.StatusDraft, c.Status)
	assert.Equal(t, model.CampaignStats{Total: 2}, c.Stats)
}

func TestCampaignRepository_GetByID(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM campaigns WHERE id=\\$1").
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows(campaignCols).AddRow(
			"camp-1", "user-1", "Outreach", "Subj", "Body", 30, "sending", "{c1,c2,c3}",
			3, 1, 1, created, nil,
		))

	c, err := repo.GetByID(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSending, c.Status)
	assert.Equal(t, []string{"c1", "c2", "c3"}, c.TargetContactIDs)
	assert.Equal(t, model.CampaignStats{Total: 3, Sent: 1, Failed: 1}, c.Stats)
	assert.Nil(t, c.UpdatedAt)
}

func TestCampaignRepository_GetByIDNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectQuery("FROM campaigns WHERE id=\\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	var notFound *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestCampaignRepository_GetCampaignsByStatus(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}
	now := time.Now()

	mock.ExpectQuery("FROM campaigns WHERE status=\\$1").
		WithArgs("sending").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("a", "u1", "A", "s", "b", 10, "sending", "{x}", 1, 0, 0, now, nil).
			AddRow("b", "u2", "B", "s", "b", 10, "sending", "{}", 0, 0, 0, now, now))

	campaigns, err := repo.GetCampaignsByStatus(context.Background(), model.StatusSending)
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "u2", campaigns[1].UserID)
	assert.Equal(t, []string{}, campaigns[1].TargetContactIDs)
}

func TestCampaignRepository_ListCampaigns(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM campaigns WHERE 1=1 AND user_id=\\$1 AND status=\\$2").
		WithArgs("u1", "draft").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("u1", "draft", 10, 20).
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("a", "u1", "A", "s", "b", 10, "draft", "{}", 0, 0, 0, now, nil))

	campaigns, total, err := repo.ListCampaigns(context.Background(), "u1", "draft", 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, campaigns, 1)
}

func TestCampaignRepository_UpdateCampaign(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns SET stats_total=\\$1, stats_sent=\\$2, stats_failed=\\$3, updated_at=NOW\\(\\) WHERE id=\\$4").
		WithArgs(10, 4, 1, "camp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCampaign(context.Background(), "camp-1", model.CampaignUpdate{
		Stats: &model.CampaignStats{Total: 10, Sent: 4, Failed: 1},
	})
	require.NoError(t, err)
}

func TestCampaignRepository_UpdateCampaignStatusAndStats(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}
	status := model.StatusCompleted

	mock.ExpectExec("UPDATE campaigns SET status=\\$1, stats_total=\\$2, stats_sent=\\$3, stats_failed=\\$4, updated_at=NOW\\(\\) WHERE id=\\$5").
		WithArgs("completed", 3, 2, 1, "camp-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCampaign(context.Background(), "camp-1", model.CampaignUpdate{
		Status: &status,
		Stats:  &model.CampaignStats{Total: 3, Sent: 2, Failed: 1},
	})
	var notFound *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestCampaignRepository_UpdateCampaignNoop(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := &CampaignRepository{DB: db}
	assert.NoError(t, repo.UpdateCampaign(context.Background(), "camp-1", model.CampaignUpdate{}))
}

func TestCampaignRepository_TransitionStatus(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns SET status=\\$1, updated_at=NOW\\(\\) WHERE id=\\$2 AND status = ANY\\(\\$3\\)").
		WithArgs("sending", "camp-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TransitionStatus(context.Background(), "camp-1",
		[]model.CampaignStatus{model.StatusDraft, model.StatusPaused}, model.StatusSending)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCampaignRepository_TransitionStatusRejected(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.TransitionStatus(context.Background(), "camp-1",
		[]model.CampaignStatus{model.StatusSending}, model.StatusPaused)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCampaignRepository_TransitionStatusMissing(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.TransitionStatus(context.Background(), "ghost",
		[]model.CampaignStatus{model.StatusSending}, model.StatusPaused)
	var notFound *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestCampaignRepository_SetAudience(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns\\s+SET target_contact_ids=\\$1, stats_total=\\$2").
		WithArgs(sqlmock.AnyArg(), 3, "camp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.SetAudience(context.Background(), "camp-1", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCampaignRepository_Delete(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("DELETE FROM campaigns WHERE id=\\$1").
		WithArgs("camp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM campaigns WHERE id=\\$1").
		WithArgs("camp-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "camp-1"))
	assert.Error(t, repo.Delete(context.Background(), "camp-1"))
}

func TestCampaignRepository_AppendLog(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("INSERT INTO campaign_logs").
		WithArgs(sqlmock.AnyArg(), "camp-1", "ann@acme.com", "failed", "no-mx-record",
			"no-mx-record: domain acme.com has no mail exchanger", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &model.DeliveryLog{
		ContactEmail: "ann@acme.com",
		Status:       model.DeliveryFailed,
		Reason:       model.ReasonNoMXRecord,
		ErrorMessage: "no-mx-record: domain acme.com has no mail exchanger",
	}
	require.NoError(t, repo.AppendLog(context.Background(), "camp-1", entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "camp-1", entry.CampaignID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestCampaignRepository_ListLogs(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := &CampaignRepository{DB: db}
	now := time.Now()

	mock.ExpectQuery("FROM campaign_logs").
		WithArgs("camp-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "contact_email", "status", "reason", "error_message", "simulated", "created_at"}).
			AddRow("l2", "camp-1", "bo@globex.io", "sent", "", "", true, now).
			AddRow("l1", "camp-1", "ann@acme.com", "failed", "timeout", "timeout: smtp", false, now.Add(-time.Second)))

	logs, err := repo.ListLogs(context.Background(), "camp-1", 50)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Simulated)
	assert.Equal(t, model.DeliveryFailed, logs[1].Status)
	assert.Equal(t, model.ReasonTimeout, logs[1].Reason)
}
