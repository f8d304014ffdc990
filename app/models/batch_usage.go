package models

import "time"

// BatchUsage is the legacy usage ledger kept in lockstep with CreatorUpUsage
// so older billing reports keep working. The worker writes both rows per
// usage-sync job.
type BatchUsage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	AppID       string    `gorm:"type:varchar(191);not null;index" json:"app_id"`
	BatchName   string    `gorm:"type:varchar(255);not null" json:"batch_name"`
	BatchType   string    `gorm:"type:varchar(50);not null;default:'video'" json:"batch_type"`
	UsageType   string    `gorm:"type:varchar(100);not null" json:"usage_type"`
	UsageAmount int       `gorm:"not null;default:1" json:"usage_amount"`
	MonthYear   string    `gorm:"type:varchar(7);not null;index" json:"month_year"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
	Metadata    string    `gorm:"type:longtext" json:"metadata"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
