package models

import "time"

const WEBHOOK_SOURCE_CREATORUP = "creatorup"

// Webhook log statuses. A row is created as "received" before any processing
// so the raw inbound body survives for replay even when processing fails.
const (
	WEBHOOK_STATUS_RECEIVED  = "received"
	WEBHOOK_STATUS_COMPLETED = "completed"
	WEBHOOK_STATUS_FAILED    = "failed"
)

// WebhookLog is the audit record of one inbound partner call.
type WebhookLog struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Source       string     `gorm:"type:varchar(50);not null;index" json:"source"`
	EventType    string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload      string     `gorm:"type:longtext;not null" json:"payload"`
	Status       string     `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	ProcessedAt  *time.Time `gorm:"type:timestamp;default:null" json:"processed_at"`
}

// IsTerminal reports whether the webhook finished processing.
func (w *WebhookLog) IsTerminal() bool {
	return w.Status == WEBHOOK_STATUS_COMPLETED || w.Status == WEBHOOK_STATUS_FAILED
}
