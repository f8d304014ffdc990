package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
)

// webhookLogRepository implements the WebhookLogRepository interface
type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

func (r *webhookLogRepository) Create(log *models.WebhookLog) error {
	return r.db.Create(log).Error
}

// CompleteReceived finalizes received rows for (source, eventType). The match
// is deliberately broad: concurrently in-flight webhooks of the same type are
// all marked completed, matching the original pipeline behavior.
func (r *webhookLogRepository) CompleteReceived(source, eventType string) (int64, error) {
	now := time.Now()
	result := r.db.Model(&models.WebhookLog{}).
		Where("source = ? AND event_type = ? AND status = ?",
			source, eventType, models.WEBHOOK_STATUS_RECEIVED).
		Updates(map[string]interface{}{
			"status":       models.WEBHOOK_STATUS_COMPLETED,
			"processed_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *webhookLogRepository) ListRecent(since time.Time, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.Where("created_at >= ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// FindByPayloadUserID matches the raw JSON body on the digiup_user_id field.
// The payload column is opaque text, so this is a substring match.
func (r *webhookLogRepository) FindByPayloadUserID(userID uint, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	pattern := fmt.Sprintf("%%\"digiup_user_id\":%d%%", userID)
	err := r.db.Where("payload LIKE ?", pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *webhookLogRepository) Count(since time.Time) (int64, error) {
	var count int64
	query := r.db.Model(&models.WebhookLog{})
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *webhookLogRepository) CountByStatus(status string, since time.Time) (int64, error) {
	var count int64
	query := r.db.Model(&models.WebhookLog{}).Where("status = ?", status)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.Count(&count).Error
	return count, err
}

// DeleteTerminalOlderThan removes completed and failed webhook logs past the
// retention window.
func (r *webhookLogRepository) DeleteTerminalOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.
		Where("created_at < ? AND status IN ?", cutoff,
			[]string{models.WEBHOOK_STATUS_COMPLETED, models.WEBHOOK_STATUS_FAILED}).
		Delete(&models.WebhookLog{})
	return result.RowsAffected, result.Error
}
