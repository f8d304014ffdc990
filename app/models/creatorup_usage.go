package models

import "time"

// CreatorUpUsage is an append-only ledger entry of one billable usage unit
// reported by or on behalf of CreatorUp. The sync pipeline never updates or
// deletes these rows; analytics only reads them.
type CreatorUpUsage struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	CreatorUpUserID string    `gorm:"type:varchar(191);not null" json:"creatorup_user_id"`
	BatchName       string    `gorm:"type:varchar(255);not null" json:"batch_name"`
	BatchType       string    `gorm:"type:varchar(50);not null;default:'video'" json:"batch_type"`
	UsageType       string    `gorm:"type:varchar(100);not null;index" json:"usage_type"`
	UsageAmount     int       `gorm:"not null;default:1" json:"usage_amount"`
	MonthYear       string    `gorm:"type:varchar(7);not null;index" json:"month_year"`
	CompletedAt     time.Time `gorm:"not null" json:"completed_at"`
	Metadata        string    `gorm:"type:longtext" json:"metadata"`
	SyncedAt        time.Time `gorm:"autoCreateTime" json:"synced_at"`
}

// CurrentMonthYear returns the month partition key for usage rollups.
func CurrentMonthYear() string {
	return time.Now().Format("2006-01")
}
