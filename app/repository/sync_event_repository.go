package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
)

// syncEventRepository implements the SyncEventRepository interface
type syncEventRepository struct {
	db *gorm.DB
}

// NewSyncEventRepository creates a new sync event repository instance
func NewSyncEventRepository(db *gorm.DB) SyncEventRepository {
	return &syncEventRepository{db: db}
}

func (r *syncEventRepository) Create(event *models.SyncEvent) error {
	return r.db.Create(event).Error
}

func (r *syncEventRepository) Update(event *models.SyncEvent) error {
	return r.db.Save(event).Error
}

func (r *syncEventRepository) GetByID(id uint) (*models.SyncEvent, error) {
	var event models.SyncEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// FindActiveByTypeAndUser is the weak idempotency guard for user syncs: it is
// a read-then-write check, so two racing workers can both miss and both
// create an event. Accepted limitation.
func (r *syncEventRepository) FindActiveByTypeAndUser(eventType string, userID uint) (*models.SyncEvent, error) {
	var event models.SyncEvent
	err := r.db.
		Where("event_type = ? AND user_id = ? AND status IN ?",
			eventType, userID,
			[]string{models.SYNC_EVENT_STATUS_PENDING, models.SYNC_EVENT_STATUS_PROCESSING}).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *syncEventRepository) FailProcessing(eventType string, userID uint, errorMessage, response string) (int64, error) {
	updates := map[string]interface{}{
		"status":        models.SYNC_EVENT_STATUS_FAILED,
		"error_message": errorMessage,
	}
	if response != "" {
		updates["response"] = response
	}
	result := r.db.Model(&models.SyncEvent{}).
		Where("event_type = ? AND user_id = ? AND status = ?",
			eventType, userID, models.SYNC_EVENT_STATUS_PROCESSING).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *syncEventRepository) GetRecentByUser(userID uint, limit int) ([]models.SyncEvent, error) {
	var events []models.SyncEvent
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *syncEventRepository) ListRecent(since time.Time, limit int) ([]models.SyncEvent, error) {
	var events []models.SyncEvent
	err := r.db.Where("created_at >= ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *syncEventRepository) FindFailedRetryable(limit int) ([]models.SyncEvent, error) {
	var events []models.SyncEvent
	err := r.db.
		Where("status = ? AND retry_count < ?", models.SYNC_EVENT_STATUS_FAILED, models.SyncEventMaxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *syncEventRepository) Count(since time.Time) (int64, error) {
	var count int64
	query := r.db.Model(&models.SyncEvent{})
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *syncEventRepository) CountByStatus(status string, since time.Time) (int64, error) {
	var count int64
	query := r.db.Model(&models.SyncEvent{}).Where("status = ?", status)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.Count(&count).Error
	return count, err
}

// DeleteTerminalOlderThan removes completed and failed events past the
// retention window. Pending and processing rows are never touched.
func (r *syncEventRepository) DeleteTerminalOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.
		Where("created_at < ? AND status IN ?", cutoff,
			[]string{models.SYNC_EVENT_STATUS_COMPLETED, models.SYNC_EVENT_STATUS_FAILED}).
		Delete(&models.SyncEvent{})
	return result.RowsAffected, result.Error
}
