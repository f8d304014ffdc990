package models

import "time"

const (
	SUBSCRIPTION_STATUS_ACTIVE    = "active"
	SUBSCRIPTION_STATUS_CANCELLED = "cancelled"
	SUBSCRIPTION_STATUS_EXPIRED   = "expired"
)

// AppSubscription links a user to a pricing plan of an app. Creating or
// changing one enqueues a subscription-sync job toward CreatorUp.
type AppSubscription struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index:ux_app_subscriptions_user_plan,unique,priority:1" json:"user_id"`
	AppID         uint       `gorm:"not null;index" json:"app_id"`
	PricingPlanID uint       `gorm:"not null;index:ux_app_subscriptions_user_plan,unique,priority:2" json:"pricing_plan_id"`
	Status        string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	CancelledAt   *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription currently grants access.
func (s *AppSubscription) IsActive() bool {
	return s.Status == SUBSCRIPTION_STATUS_ACTIVE
}
