package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	APP_STATUS_ACTIVE   = "active"
	APP_STATUS_INACTIVE = "inactive"
)

// App is a marketplace entry users can subscribe to. The CreatorUp app is the
// one whose subscriptions feed the subscription-sync pipeline.
type App struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Slug        string         `gorm:"uniqueIndex;type:varchar(100);not null" json:"slug"`
	Name        string         `gorm:"type:varchar(150);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	IconURL     string         `gorm:"type:varchar(255)" json:"icon_url"`
	Status      string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	PricingPlans []AppPricingPlan `gorm:"foreignKey:AppID" json:"pricing_plans,omitempty"`
}

// AppPricingPlan is one purchasable tier of an app.
type AppPricingPlan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AppID        uint      `gorm:"not null;index" json:"app_id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	PriceCents   int       `gorm:"not null;default:0" json:"price_cents"`
	Currency     string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Interval     string    `gorm:"type:varchar(20);not null;default:'month'" json:"interval"`
	UsageLimit   int       `gorm:"default:0" json:"usage_limit"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
