package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage ledger repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) CreateUsage(usage *models.CreatorUpUsage) error {
	return r.db.Create(usage).Error
}

func (r *usageRepository) CreateBatchUsage(usage *models.BatchUsage) error {
	return r.db.Create(usage).Error
}

func (r *usageRepository) Count(since time.Time) (int64, error) {
	var count int64
	query := r.db.Model(&models.CreatorUpUsage{})
	if !since.IsZero() {
		query = query.Where("synced_at >= ?", since)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *usageRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CreatorUpUsage{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *usageRepository) SumAmountByUser(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.CreatorUpUsage{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(usage_amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *usageRepository) MonthlyBreakdown(since time.Time, limit int) ([]MonthlyUsage, error) {
	var rows []MonthlyUsage
	query := r.db.Model(&models.CreatorUpUsage{}).
		Select("month_year, COUNT(id) AS records, COALESCE(SUM(usage_amount), 0) AS total_amount").
		Group("month_year").
		Order("month_year DESC").
		Limit(limit)
	if !since.IsZero() {
		query = query.Where("synced_at >= ?", since)
	}
	err := query.Scan(&rows).Error
	return rows, err
}

func (r *usageRepository) MonthlyBreakdownByUser(userID uint, limit int) ([]MonthlyUsage, error) {
	var rows []MonthlyUsage
	err := r.db.Model(&models.CreatorUpUsage{}).
		Select("month_year, COUNT(id) AS records, COALESCE(SUM(usage_amount), 0) AS total_amount").
		Where("user_id = ?", userID).
		Group("month_year").
		Order("month_year DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *usageRepository) BreakdownByType(since time.Time) ([]UsageByType, error) {
	var rows []UsageByType
	query := r.db.Model(&models.CreatorUpUsage{}).
		Select("usage_type, COUNT(id) AS records, COALESCE(SUM(usage_amount), 0) AS total_amount").
		Group("usage_type")
	if !since.IsZero() {
		query = query.Where("synced_at >= ?", since)
	}
	err := query.Scan(&rows).Error
	return rows, err
}

func (r *usageRepository) BreakdownByTypeForUser(userID uint) ([]UsageByType, error) {
	var rows []UsageByType
	err := r.db.Model(&models.CreatorUpUsage{}).
		Select("usage_type, COUNT(id) AS records, COALESCE(SUM(usage_amount), 0) AS total_amount").
		Where("user_id = ?", userID).
		Group("usage_type").
		Scan(&rows).Error
	return rows, err
}
