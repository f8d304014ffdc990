package models

import "time"

// Sync event types mirror the three job kinds the worker executes.
const (
	SYNC_EVENT_USER         = "user_sync"
	SYNC_EVENT_USAGE        = "usage_sync"
	SYNC_EVENT_SUBSCRIPTION = "subscription_sync"
)

// Sync event statuses. Completed and failed are terminal.
const (
	SYNC_EVENT_STATUS_PENDING    = "pending"
	SYNC_EVENT_STATUS_PROCESSING = "processing"
	SYNC_EVENT_STATUS_COMPLETED  = "completed"
	SYNC_EVENT_STATUS_FAILED     = "failed"
)

// SyncEventMaxRetries bounds the maintenance retry sweep. Once RetryCount
// reaches this ceiling a failed event is permanently terminal.
const SyncEventMaxRetries = 3

// SyncEvent records one attempted synchronization action and its outcome.
// UserID is nullable because events may outlive the user they reference.
type SyncEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EventType    string     `gorm:"type:varchar(50);not null;index" json:"event_type"`
	UserID       *uint      `gorm:"index" json:"user_id"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Payload      string     `gorm:"type:longtext" json:"payload"`
	Response     string     `gorm:"type:longtext" json:"response"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	RetryCount   int        `gorm:"default:0" json:"retry_count"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	ProcessedAt  *time.Time `gorm:"type:timestamp;default:null" json:"processed_at"`
}

// IsTerminal reports whether the event reached a state after which no further
// processing happens without an explicit retry sweep.
func (e *SyncEvent) IsTerminal() bool {
	return e.Status == SYNC_EVENT_STATUS_COMPLETED || e.Status == SYNC_EVENT_STATUS_FAILED
}

// IsRetryable reports whether the maintenance sweep may re-drive this event.
func (e *SyncEvent) IsRetryable() bool {
	return e.Status == SYNC_EVENT_STATUS_FAILED && e.RetryCount < SyncEventMaxRetries
}
