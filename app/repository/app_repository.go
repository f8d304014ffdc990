package repository

import (
	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
)

// appRepository implements the AppRepository interface
type appRepository struct {
	db *gorm.DB
}

// NewAppRepository creates a new app catalog repository instance
func NewAppRepository(db *gorm.DB) AppRepository {
	return &appRepository{db: db}
}

// ListActive returns all active marketplace apps with their pricing plans
func (r *appRepository) ListActive() ([]models.App, error) {
	var apps []models.App
	err := r.db.Preload("PricingPlans", "is_active = ?", true).
		Where("status = ?", models.APP_STATUS_ACTIVE).
		Order("name ASC").
		Find(&apps).Error
	return apps, err
}

// GetByID retrieves an app with its pricing plans
func (r *appRepository) GetByID(id uint) (*models.App, error) {
	var app models.App
	err := r.db.Preload("PricingPlans").First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetPricingPlan retrieves a pricing plan by ID
func (r *appRepository) GetPricingPlan(planID uint) (*models.AppPricingPlan, error) {
	var plan models.AppPricingPlan
	err := r.db.First(&plan, planID).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// CreateSubscription creates a new app subscription for a user
func (r *appRepository) CreateSubscription(sub *models.AppSubscription) error {
	return r.db.Create(sub).Error
}

// GetSubscriptionsByUser returns all subscriptions of a user
func (r *appRepository) GetSubscriptionsByUser(userID uint) ([]models.AppSubscription, error) {
	var subs []models.AppSubscription
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}
