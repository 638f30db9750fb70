package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/scoutier-backend/internal/errors"
	"github.com/unclebandit/scoutier-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, userID, status string, offset, limit int) ([]*model.Campaign, int, error)
	SetAudience(ctx context.Context, id string, contactIDs []string) (bool, error)
	Delete(ctx context.Context, id string) error

	// Dispatch
	GetCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, update model.CampaignUpdate) error
	TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus) (bool, error)

	// Delivery logs
	AppendLog(ctx context.Context, campaignID string, entry *model.DeliveryLog) error
	ListLogs(ctx context.Context, campaignID string, limit int) ([]model.DeliveryLog, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, user_id, name, subject, body, speed, status, target_contact_ids,
        stats_total, stats_sent, stats_failed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var targets pq.StringArray
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Subject, &c.Body, &c.Speed, &c.Status, &targets,
		&c.Stats.Total, &c.Stats.Sent, &c.Stats.Failed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TargetContactIDs = []string(targets)
	if c.TargetContactIDs == nil {
		c.TargetContactIDs = []string{}
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	if c.TargetContactIDs == nil {
		c.TargetContactIDs = []string{}
	}
	c.CreatedAt = time.Now().UTC()
	c.Stats = model.CampaignStats{Total: len(c.TargetContactIDs)}

	query := `
        INSERT INTO campaigns (id, user_id, name, subject, body, speed, status, target_contact_ids,
            stats_total, stats_sent, stats_failed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, $10)
    `
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.UserID, c.Name, c.Subject, c.Body, c.Speed, string(c.Status),
		pq.Array(c.TargetContactIDs), c.Stats.Total, c.CreatedAt,
	)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, userID, status string, offset, limit int) ([]*model.Campaign, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argPos := 1

	if userID != "" {
		where += fmt.Sprintf(" AND user_id=$%d", argPos)
		args = append(args, userID)
		argPos++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// SetAudience replaces the target list of a draft campaign and resets its
// counters. It returns false when the campaign is no longer a draft.
func (r *CampaignRepository) SetAudience(ctx context.Context, id string, contactIDs []string) (bool, error) {
	query := `
        UPDATE campaigns
        SET target_contact_ids=$1, stats_total=$2, stats_sent=0, stats_failed=0, updated_at=NOW()
        WHERE id=$3 AND status='draft'
    `
	res, err := r.DB.ExecContext(ctx, query, pq.Array(contactIDs), len(contactIDs), id)
	if err != nil {
		return false, err
	}
	return r.affected(ctx, res, id)
}

// Delete removes the campaign; its logs go with it (ON DELETE CASCADE).
func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

// ====================== Dispatch ======================

func (r *CampaignRepository) GetCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status=$1 ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateCampaign writes the non-nil fields of update in one statement.
func (r *CampaignRepository) UpdateCampaign(ctx context.Context, id string, update model.CampaignUpdate) error {
	sets := []string{}
	args := []any{}
	argPos := 1

	if update.Status != nil {
		sets = append(sets, fmt.Sprintf("status=$%d", argPos))
		args = append(args, string(*update.Status))
		argPos++
	}
	if update.Stats != nil {
		sets = append(sets, fmt.Sprintf("stats_total=$%d, stats_sent=$%d, stats_failed=$%d", argPos, argPos+1, argPos+2))
		args = append(args, update.Stats.Total, update.Stats.Sent, update.Stats.Failed)
		argPos += 3
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE campaigns SET %s, updated_at=NOW() WHERE id=$%d`, strings.Join(sets, ", "), argPos)
	res, err := r.DB.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

// TransitionStatus moves the campaign to `to` only if its current status is
// one of from. It reports whether the row changed.
func (r *CampaignRepository) TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status = ANY($3)`
	res, err := r.DB.ExecContext(ctx, query, string(to), id, pq.Array(fromStrs))
	if err != nil {
		return false, err
	}
	return r.affected(ctx, res, id)
}

// affected distinguishes "row exists but did not match" (false, nil) from
// "row does not exist" (ErrCampaignNotFound).
func (r *CampaignRepository) affected(ctx context.Context, res sql.Result, id string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, appErrors.NewCampaignNotFound(id)
	}
	return false, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
