package creatorupsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/jobqueue"
)

// ErrQueueUnavailable wraps enqueue failures so the HTTP layer can map them
// to a 5xx. Sync is not buffered locally; callers must retry explicitly.
var ErrQueueUnavailable = errors.New("sync queue unavailable")

// ErrValidation marks producer-side payload validation failures (400s).
var ErrValidation = errors.New("invalid sync payload")

// Enqueue timing per job kind. User and subscription syncs wait a moment so
// any co-occurring local transaction commits first.
const (
	userSyncDelay         = 1 * time.Second
	usageSyncDelay        = 500 * time.Millisecond
	subscriptionSyncDelay = 1 * time.Second
)

// HealthChecker is the slice of the partner client the service needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Service is the CreatorUp sync pipeline facade: event production,
// maintenance sweeps, cleanup and aggregate statistics.
type Service struct {
	queue   jobqueue.Enqueuer
	stats   QueueStats
	users   repository.UserRepository
	events  repository.SyncEventRepository
	webhook repository.WebhookLogRepository
	usage   repository.UsageRepository
	client  HealthChecker
	db      *gorm.DB
}

// QueueStats exposes queue counters and the store-side retention cleaner.
type QueueStats interface {
	GetStatistics(ctx context.Context) (*jobqueue.Statistics, error)
	CleanupOldJobs(ctx context.Context) (int64, error)
}

// NewService wires the sync pipeline with explicit dependencies.
func NewService(
	queue jobqueue.Enqueuer,
	stats QueueStats,
	repos *repository.Repositories,
	client HealthChecker,
	db *gorm.DB,
) *Service {
	return &Service{
		queue:   queue,
		stats:   stats,
		users:   repos.User,
		events:  repos.SyncEvent,
		webhook: repos.Webhook,
		usage:   repos.Usage,
		client:  client,
		db:      db,
	}
}

// EnqueueUserSync queues a user profile push. The job ID combines the user ID
// and submission time for operational correlation; it is not a queue-level
// deduplication key, so repeated calls may create distinct jobs.
func (s *Service) EnqueueUserSync(payload jobqueue.UserSyncJobPayload) error {
	if payload.DigiUpUserID == 0 {
		return fmt.Errorf("%w: digiup_user_id is required", ErrValidation)
	}

	jobID := fmt.Sprintf("user-sync-%d-%d", payload.DigiUpUserID, time.Now().UnixMilli())
	_, err := s.queue.EnqueueJob(jobqueue.JobTypeUserSync, payload.ToMap(), jobqueue.EnqueueOptions{
		Delay:    userSyncDelay,
		Priority: jobqueue.PriorityUserSync,
		JobID:    jobID,
	})
	if err != nil {
		log.Errorf("[CreatorUpSync] Failed to enqueue user sync for %d: %v", payload.DigiUpUserID, err)
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	log.Infof("[CreatorUpSync] User sync queued: %s", jobID)
	return nil
}

// EnqueueUsageSync queues a usage ledger append.
func (s *Service) EnqueueUsageSync(payload jobqueue.UsageSyncJobPayload) error {
	if payload.BatchName == "" || payload.UsageType == "" {
		return fmt.Errorf("%w: batch_name and usage_type are required", ErrValidation)
	}

	jobID := fmt.Sprintf("usage-sync-%d-%d", payload.DigiUpUserID, time.Now().UnixMilli())
	_, err := s.queue.EnqueueJob(jobqueue.JobTypeUsageSync, payload.ToMap(), jobqueue.EnqueueOptions{
		Delay:    usageSyncDelay,
		Priority: jobqueue.PriorityUsageSync,
		JobID:    jobID,
	})
	if err != nil {
		log.Errorf("[CreatorUpSync] Failed to enqueue usage sync for %d: %v", payload.DigiUpUserID, err)
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	log.Infof("[CreatorUpSync] Usage sync queued: %s", jobID)
	return nil
}

// EnqueueSubscriptionSync queues a subscription state push.
func (s *Service) EnqueueSubscriptionSync(payload jobqueue.SubscriptionSyncJobPayload) error {
	if payload.DigiUpUserID == 0 {
		return fmt.Errorf("%w: digiup_user_id is required", ErrValidation)
	}

	jobID := fmt.Sprintf("subscription-sync-%d-%d", payload.DigiUpUserID, time.Now().UnixMilli())
	_, err := s.queue.EnqueueJob(jobqueue.JobTypeSubscriptionSync, payload.ToMap(), jobqueue.EnqueueOptions{
		Delay:    subscriptionSyncDelay,
		Priority: jobqueue.PrioritySubscriptionSync,
		JobID:    jobID,
	})
	if err != nil {
		log.Errorf("[CreatorUpSync] Failed to enqueue subscription sync for %d: %v", payload.DigiUpUserID, err)
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	log.Infof("[CreatorUpSync] Subscription sync queued: %s", jobID)
	return nil
}

// RetryOutcome is the per-event result of a retry sweep.
type RetryOutcome struct {
	EventID    uint   `json:"event_id"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RetryResult summarizes one retry sweep.
type RetryResult struct {
	RetriedEvents int            `json:"retried_events"`
	Results       []RetryOutcome `json:"results"`
}

// RetryFailedSyncEvents selects up to 10 failed events below the retry
// ceiling, oldest first, and re-drives the ones with type-specific retry
// logic. Events whose retry attempt itself fails stay in future sweeps until
// the ceiling is reached.
func (s *Service) RetryFailedSyncEvents(ctx context.Context) (*RetryResult, error) {
	failed, err := s.events.FindFailedRetryable(10)
	if err != nil {
		return nil, err
	}

	results := make([]RetryOutcome, 0, len(failed))
	for i := range failed {
		event := failed[i]
		outcome, err := s.retryEvent(ctx, &event)
		if err != nil {
			event.RetryCount++
			event.ErrorMessage = err.Error()
			if uerr := s.events.Update(&event); uerr != nil {
				log.Errorf("[CreatorUpSync] Failed to record retry error for event %d: %v", event.ID, uerr)
			}
			results = append(results, RetryOutcome{
				EventID: event.ID,
				Status:  "failed",
				Error:   err.Error(),
			})
			continue
		}
		if outcome != nil {
			results = append(results, *outcome)
		}
	}

	return &RetryResult{
		RetriedEvents: len(results),
		Results:       results,
	}, nil
}

func (s *Service) retryEvent(ctx context.Context, event *models.SyncEvent) (*RetryOutcome, error) {
	switch event.EventType {
	case models.SYNC_EVENT_USER:
		if event.UserID == nil {
			return nil, errors.New("sync event has no user reference")
		}
		if _, err := s.users.GetByID(*event.UserID); err != nil {
			return nil, fmt.Errorf("user %d not found: %w", *event.UserID, err)
		}
		event.Status = models.SYNC_EVENT_STATUS_PROCESSING
		event.RetryCount++
		if err := s.events.Update(event); err != nil {
			return nil, err
		}
		return &RetryOutcome{
			EventID:    event.ID,
			Status:     "retrying",
			RetryCount: event.RetryCount,
		}, nil
	default:
		log.Warnf("[CreatorUpSync] No retry handler for event type %s (event %d)", event.EventType, event.ID)
		return nil, nil
	}
}

// CleanupResult reports rows purged per category.
type CleanupResult struct {
	DeletedSyncEvents int64  `json:"deleted_sync_events"`
	DeletedWebhooks   int64  `json:"deleted_webhooks"`
	DeletedQueueJobs  int64  `json:"deleted_queue_jobs"`
	CleanupTimestamp  string `json:"cleanup_timestamp"`
}

// CleanupOldData purges terminal sync events older than 30 days, terminal
// webhook logs older than 7 days, and delegates to the job store's own
// retention cleaner.
func (s *Service) CleanupOldData(ctx context.Context) (*CleanupResult, error) {
	deletedEvents, err := s.events.DeleteTerminalOlderThan(time.Now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	deletedWebhooks, err := s.webhook.DeleteTerminalOlderThan(time.Now().AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}

	deletedJobs, err := s.stats.CleanupOldJobs(ctx)
	if err != nil {
		log.Errorf("[CreatorUpSync] Queue cleanup failed: %v", err)
		deletedJobs = 0
	}

	return &CleanupResult{
		DeletedSyncEvents: deletedEvents,
		DeletedWebhooks:   deletedWebhooks,
		DeletedQueueJobs:  deletedJobs,
		CleanupTimestamp:  time.Now().Format(time.RFC3339),
	}, nil
}

// SyncStatistics returns the coverage and success-rate aggregates.
func (s *Service) SyncStatistics(ctx context.Context) (map[string]interface{}, error) {
	totalUsers, err := s.users.Count()
	if err != nil {
		return nil, err
	}
	syncedUsers, err := s.users.CountBySyncStatus(models.SYNC_STATUS_SYNCED)
	if err != nil {
		return nil, err
	}

	totalEvents, err := s.events.Count(time.Time{})
	if err != nil {
		return nil, err
	}
	completedEvents, err := s.events.CountByStatus(models.SYNC_EVENT_STATUS_COMPLETED, time.Time{})
	if err != nil {
		return nil, err
	}

	totalWebhooks, err := s.webhook.Count(time.Time{})
	if err != nil {
		return nil, err
	}
	completedWebhooks, err := s.webhook.CountByStatus(models.WEBHOOK_STATUS_COMPLETED, time.Time{})
	if err != nil {
		return nil, err
	}

	totalUsage, err := s.usage.Count(time.Time{})
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"users": map[string]interface{}{
			"total":           totalUsers,
			"synced":          syncedUsers,
			"sync_percentage": percentage(syncedUsers, totalUsers),
		},
		"sync_events": map[string]interface{}{
			"total":        totalEvents,
			"successful":   completedEvents,
			"success_rate": percentage(completedEvents, totalEvents),
		},
		"webhooks": map[string]interface{}{
			"total":        totalWebhooks,
			"successful":   completedWebhooks,
			"success_rate": percentage(completedWebhooks, totalWebhooks),
		},
		"usage": map[string]interface{}{
			"total_records": totalUsage,
		},
	}, nil
}

// SystemHealth combines a database probe, queue statistics availability and
// the partner health endpoint. Healthy only when all three succeed.
func (s *Service) SystemHealth(ctx context.Context) map[string]interface{} {
	dbHealthy := s.db != nil
	if dbHealthy {
		var probe int
		if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&probe).Error; err != nil {
			dbHealthy = false
		}
	}

	queueStats, qerr := s.stats.GetStatistics(ctx)
	queueHealthy := qerr == nil

	partnerHealthy := s.client.HealthCheck(ctx)

	since := time.Now().Add(-24 * time.Hour)
	recentEventErrors, _ := s.events.CountByStatus(models.SYNC_EVENT_STATUS_FAILED, since)
	recentWebhookErrors, _ := s.webhook.CountByStatus(models.WEBHOOK_STATUS_FAILED, since)

	overall := "degraded"
	if dbHealthy && queueHealthy && partnerHealthy {
		overall = "healthy"
	}

	return map[string]interface{}{
		"database": map[string]interface{}{
			"status": healthWord(dbHealthy),
		},
		"queue": map[string]interface{}{
			"status": healthWord(queueHealthy),
			"stats":  queueStats,
		},
		"creatorup_api": map[string]interface{}{
			"status":    healthWord(partnerHealthy),
			"reachable": partnerHealthy,
		},
		"error_rates": map[string]interface{}{
			"sync_errors_24h":    recentEventErrors,
			"webhook_errors_24h": recentWebhookErrors,
		},
		"overall_status": overall,
	}
}

// RunRetrySweep implements jobqueue.Sweeper.
func (s *Service) RunRetrySweep(ctx context.Context) error {
	_, err := s.RetryFailedSyncEvents(ctx)
	return err
}

// RunCleanup implements jobqueue.Sweeper.
func (s *Service) RunCleanup(ctx context.Context) error {
	_, err := s.CleanupOldData(ctx)
	return err
}

func percentage(part, total int64) int {
	if total == 0 {
		return 0
	}
	return int(float64(part)/float64(total)*100 + 0.5)
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}
