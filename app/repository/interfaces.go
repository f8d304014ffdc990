package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
	CountBySyncStatus(status string) (int64, error)
	List(offset, limit int) ([]models.User, error)
}

// SyncEventRepository defines the interface for sync event bookkeeping
type SyncEventRepository interface {
	Create(event *models.SyncEvent) error
	Update(event *models.SyncEvent) error
	GetByID(id uint) (*models.SyncEvent, error)
	// FindActiveByTypeAndUser returns a pending or processing event of the
	// given type for the user, or gorm.ErrRecordNotFound.
	FindActiveByTypeAndUser(eventType string, userID uint) (*models.SyncEvent, error)
	// FailProcessing marks every processing event of the given type/user as
	// failed with the error detail. Returns the number of rows touched.
	FailProcessing(eventType string, userID uint, errorMessage, response string) (int64, error)
	GetRecentByUser(userID uint, limit int) ([]models.SyncEvent, error)
	ListRecent(since time.Time, limit int) ([]models.SyncEvent, error)
	// FindFailedRetryable returns failed events below the retry ceiling,
	// oldest first.
	FindFailedRetryable(limit int) ([]models.SyncEvent, error)
	Count(since time.Time) (int64, error)
	CountByStatus(status string, since time.Time) (int64, error)
	DeleteTerminalOlderThan(cutoff time.Time) (int64, error)
}

// WebhookLogRepository defines the interface for webhook audit records
type WebhookLogRepository interface {
	Create(log *models.WebhookLog) error
	// CompleteReceived finalizes every received row for (source, eventType).
	// May touch more than one concurrently in-flight row.
	CompleteReceived(source, eventType string) (int64, error)
	ListRecent(since time.Time, limit int) ([]models.WebhookLog, error)
	// FindByPayloadUserID returns logs whose raw payload references the user.
	FindByPayloadUserID(userID uint, limit int) ([]models.WebhookLog, error)
	Count(since time.Time) (int64, error)
	CountByStatus(status string, since time.Time) (int64, error)
	DeleteTerminalOlderThan(cutoff time.Time) (int64, error)
}

// MonthlyUsage is one month bucket of the usage rollup.
type MonthlyUsage struct {
	MonthYear   string `json:"month_year"`
	Records     int64  `json:"records"`
	TotalAmount int64  `json:"total_amount"`
}

// UsageByType is one usage-type bucket of the usage rollup.
type UsageByType struct {
	UsageType   string `json:"usage_type"`
	Records     int64  `json:"records"`
	TotalAmount int64  `json:"total_amount"`
}

// UsageRepository defines the interface for the append-only usage ledgers
type UsageRepository interface {
	CreateUsage(usage *models.CreatorUpUsage) error
	CreateBatchUsage(usage *models.BatchUsage) error
	Count(since time.Time) (int64, error)
	CountByUser(userID uint) (int64, error)
	SumAmountByUser(userID uint) (int64, error)
	MonthlyBreakdown(since time.Time, limit int) ([]MonthlyUsage, error)
	MonthlyBreakdownByUser(userID uint, limit int) ([]MonthlyUsage, error)
	BreakdownByType(since time.Time) ([]UsageByType, error)
	BreakdownByTypeForUser(userID uint) ([]UsageByType, error)
}

// AppRepository defines the interface for the app marketplace catalog
type AppRepository interface {
	ListActive() ([]models.App, error)
	GetByID(id uint) (*models.App, error)
	GetPricingPlan(planID uint) (*models.AppPricingPlan, error)
	CreateSubscription(sub *models.AppSubscription) error
	GetSubscriptionsByUser(userID uint) ([]models.AppSubscription, error)
}

// QueueRepository provides raw introspection of the Redis-backed job store
// for the admin surface.
type QueueRepository interface {
	GetJobKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User      UserRepository
	SyncEvent SyncEventRepository
	Webhook   WebhookLogRepository
	Usage     UsageRepository
	App       AppRepository
	Queue     QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db),
		SyncEvent: NewSyncEventRepository(db),
		Webhook:   NewWebhookLogRepository(db),
		Usage:     NewUsageRepository(db),
		App:       NewAppRepository(db),
		Queue:     NewQueueRepository(),
	}
}
