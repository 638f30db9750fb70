package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/scoutier-backend/internal/model"
)

// ====================== Delivery Logs ======================

// AppendLog inserts a write-once log entry, assigning its id and timestamp
// when unset.
func (r *CampaignRepository) AppendLog(ctx context.Context, campaignID string, entry *model.DeliveryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.CampaignID = campaignID

	query := `
        INSERT INTO campaign_logs
        (id, campaign_id, contact_email, status, reason, error_message, simulated, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.ExecContext(ctx, query,
		entry.ID,
		entry.CampaignID,
		entry.ContactEmail,
		string(entry.Status),
		entry.Reason,
		entry.ErrorMessage,
		entry.Simulated,
		entry.Timestamp,
	)
	return err
}

// ListLogs returns the newest limit entries, newest first.
func (r *CampaignRepository) ListLogs(ctx context.Context, campaignID string, limit int) ([]model.DeliveryLog, error) {
	query := `
        SELECT id, campaign_id, contact_email, status, reason, error_message, simulated, created_at
        FROM campaign_logs
        WHERE campaign_id=$1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.DeliveryLog{}
	for rows.Next() {
		var l model.DeliveryLog
		if err := rows.Scan(
			&l.ID,
			&l.CampaignID,
			&l.ContactEmail,
			&l.Status,
			&l.Reason,
			&l.ErrorMessage,
			&l.Simulated,
			&l.Timestamp,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
