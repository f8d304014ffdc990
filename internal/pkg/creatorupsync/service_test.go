package creatorupsync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/internal/pkg/jobqueue"
)

func newTestService(queue *fakeQueue, users *fakeUserRepo, events *fakeEventRepo, webhooks *fakeWebhookRepo, usage *fakeUsageRepo) *Service {
	return NewService(queue, queue, newTestRepos(users, events, webhooks, usage), fakeHealthChecker{healthy: true}, nil)
}

func minimalService(queue *fakeQueue) *Service {
	return newTestService(queue, newFakeUserRepo(), newFakeEventRepo(), newFakeWebhookRepo(), &fakeUsageRepo{})
}

func TestService_EnqueueUserSync(t *testing.T) {
	queue := &fakeQueue{}
	svc := minimalService(queue)

	err := svc.EnqueueUserSync(jobqueue.UserSyncJobPayload{
		DigiUpUserID: 42,
		Email:        "user@example.com",
	})
	require.NoError(t, err)

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, jobqueue.JobTypeUserSync, job.Type)
	assert.Equal(t, 1*time.Second, job.Opts.Delay)
	assert.Equal(t, jobqueue.PriorityUserSync, job.Opts.Priority)
	assert.True(t, strings.HasPrefix(job.Opts.JobID, "user-sync-42-"), "job id %q", job.Opts.JobID)
}

func TestService_EnqueueUserSyncValidation(t *testing.T) {
	queue := &fakeQueue{}
	svc := minimalService(queue)

	err := svc.EnqueueUserSync(jobqueue.UserSyncJobPayload{Email: "user@example.com"})

	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, queue.jobs)
}

func TestService_EnqueueUserSyncQueueDown(t *testing.T) {
	queue := &fakeQueue{enqueueErr: errors.New("redis: connection refused")}
	svc := minimalService(queue)

	err := svc.EnqueueUserSync(jobqueue.UserSyncJobPayload{DigiUpUserID: 42})

	assert.ErrorIs(t, err, ErrQueueUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestService_EnqueueUsageSync(t *testing.T) {
	queue := &fakeQueue{}
	svc := minimalService(queue)

	err := svc.EnqueueUsageSync(jobqueue.UsageSyncJobPayload{
		DigiUpUserID: 42,
		BatchName:    "march-batch",
		UsageType:    "video_generation",
	})
	require.NoError(t, err)

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, jobqueue.JobTypeUsageSync, job.Type)
	assert.Equal(t, 500*time.Millisecond, job.Opts.Delay)
	assert.Equal(t, jobqueue.PriorityUsageSync, job.Opts.Priority)
}

func TestService_EnqueueUsageSyncValidation(t *testing.T) {
	queue := &fakeQueue{}
	svc := minimalService(queue)

	tests := []struct {
		name    string
		payload jobqueue.UsageSyncJobPayload
	}{
		{"missing batch name", jobqueue.UsageSyncJobPayload{DigiUpUserID: 1, UsageType: "video_generation"}},
		{"missing usage type", jobqueue.UsageSyncJobPayload{DigiUpUserID: 1, BatchName: "b"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.EnqueueUsageSync(tc.payload), ErrValidation)
		})
	}
	assert.Empty(t, queue.jobs)
}

func TestService_EnqueueSubscriptionSync(t *testing.T) {
	queue := &fakeQueue{}
	svc := minimalService(queue)

	err := svc.EnqueueSubscriptionSync(jobqueue.SubscriptionSyncJobPayload{
		DigiUpUserID: 42,
		AppID:        "clip-studio",
		PlanName:     "pro",
		Status:       "active",
	})
	require.NoError(t, err)

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, jobqueue.JobTypeSubscriptionSync, job.Type)
	assert.Equal(t, 1*time.Second, job.Opts.Delay)
	assert.Equal(t, jobqueue.PrioritySubscriptionSync, job.Opts.Priority)
}

func failedEvent(userID uint, retryCount int, age time.Duration) *models.SyncEvent {
	uid := userID
	return &models.SyncEvent{
		UserID:     &uid,
		EventType:  models.SYNC_EVENT_USER,
		Status:     models.SYNC_EVENT_STATUS_FAILED,
		RetryCount: retryCount,
		CreatedAt:  time.Now().Add(-age),
	}
}

func TestService_RetryFailedSyncEvents(t *testing.T) {
	users := newFakeUserRepo(&models.User{ID: 42, Email: "user@example.com"})
	events := newFakeEventRepo(failedEvent(42, 1, time.Hour))
	svc := newTestService(&fakeQueue{}, users, events, newFakeWebhookRepo(), &fakeUsageRepo{})

	result, err := svc.RetryFailedSyncEvents(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.RetriedEvents)
	outcome := result.Results[0]
	assert.Equal(t, "retrying", outcome.Status)
	assert.Equal(t, 2, outcome.RetryCount)

	stored, err := events.GetByID(outcome.EventID)
	require.NoError(t, err)
	assert.Equal(t, models.SYNC_EVENT_STATUS_PROCESSING, stored.Status)
	assert.Equal(t, 2, stored.RetryCount)
}

func TestService_RetrySkipsExhaustedEvents(t *testing.T) {
	users := newFakeUserRepo(&models.User{ID: 42})
	events := newFakeEventRepo(
		failedEvent(42, 3, time.Hour),
		failedEvent(42, 5, 2*time.Hour),
	)
	svc := newTestService(&fakeQueue{}, users, events, newFakeWebhookRepo(), &fakeUsageRepo{})

	result, err := svc.RetryFailedSyncEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.RetriedEvents, "events at the retry ceiling are left alone")
}

func TestService_RetryCapsSweepAtTen(t *testing.T) {
	users := newFakeUserRepo(&models.User{ID: 42})
	seed := make([]*models.SyncEvent, 0, 15)
	for i := 0; i < 15; i++ {
		seed = append(seed, failedEvent(42, 0, time.Duration(i)*time.Minute))
	}
	events := newFakeEventRepo(seed...)
	svc := newTestService(&fakeQueue{}, users, events, newFakeWebhookRepo(), &fakeUsageRepo{})

	result, err := svc.RetryFailedSyncEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, result.RetriedEvents)
}

func TestService_RetryUnknownUserMarksFailedAgain(t *testing.T) {
	events := newFakeEventRepo(failedEvent(999, 1, time.Hour))
	svc := newTestService(&fakeQueue{}, newFakeUserRepo(), events, newFakeWebhookRepo(), &fakeUsageRepo{})

	result, err := svc.RetryFailedSyncEvents(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.RetriedEvents)
	outcome := result.Results[0]
	assert.Equal(t, "failed", outcome.Status)
	assert.Contains(t, outcome.Error, "999")

	stored, err := events.GetByID(outcome.EventID)
	require.NoError(t, err)
	assert.Equal(t, models.SYNC_EVENT_STATUS_FAILED, stored.Status)
	assert.Equal(t, 2, stored.RetryCount, "failed retry still consumes an attempt")
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestService_RetrySkipsTypesWithoutHandler(t *testing.T) {
	uid := uint(42)
	events := newFakeEventRepo(&models.SyncEvent{
		UserID:    &uid,
		EventType: models.SYNC_EVENT_USAGE,
		Status:    models.SYNC_EVENT_STATUS_FAILED,
		CreatedAt: time.Now().Add(-time.Hour),
	})
	svc := newTestService(&fakeQueue{}, newFakeUserRepo(&models.User{ID: 42}), events, newFakeWebhookRepo(), &fakeUsageRepo{})

	result, err := svc.RetryFailedSyncEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.RetriedEvents, "types without a retry handler are logged and skipped")
}

func TestService_CleanupOldData(t *testing.T) {
	now := time.Now()
	uid := uint(1)
	events := newFakeEventRepo(
		&models.SyncEvent{UserID: &uid, EventType: models.SYNC_EVENT_USER, Status: models.SYNC_EVENT_STATUS_COMPLETED, CreatedAt: now.AddDate(0, 0, -31)},
		&models.SyncEvent{UserID: &uid, EventType: models.SYNC_EVENT_USER, Status: models.SYNC_EVENT_STATUS_COMPLETED, CreatedAt: now.AddDate(0, 0, -29)},
		&models.SyncEvent{UserID: &uid, EventType: models.SYNC_EVENT_USER, Status: models.SYNC_EVENT_STATUS_PENDING, CreatedAt: now.AddDate(0, 0, -60)},
	)
	processed := now.AddDate(0, 0, -8)
	webhooks := newFakeWebhookRepo(
		&models.WebhookLog{Source: models.WEBHOOK_SOURCE_CREATORUP, EventType: "usage_update", Status: models.WEBHOOK_STATUS_COMPLETED, CreatedAt: now.AddDate(0, 0, -8), ProcessedAt: &processed},
		&models.WebhookLog{Source: models.WEBHOOK_SOURCE_CREATORUP, EventType: "usage_update", Status: models.WEBHOOK_STATUS_COMPLETED, CreatedAt: now.AddDate(0, 0, -6)},
		&models.WebhookLog{Source: models.WEBHOOK_SOURCE_CREATORUP, EventType: "usage_update", Status: models.WEBHOOK_STATUS_RECEIVED, CreatedAt: now.AddDate(0, 0, -20)},
	)
	queue := &fakeQueue{cleaned: 4}
	svc := newTestService(queue, newFakeUserRepo(), events, webhooks, &fakeUsageRepo{})

	result, err := svc.CleanupOldData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.DeletedSyncEvents, "only terminal events past 30 days")
	assert.Equal(t, int64(1), result.DeletedWebhooks, "only terminal webhooks past 7 days")
	assert.Equal(t, int64(4), result.DeletedQueueJobs)

	stamp, perr := time.Parse(time.RFC3339, result.CleanupTimestamp)
	require.NoError(t, perr)
	assert.WithinDuration(t, now, stamp, time.Minute)
}

func TestService_SyncStatistics(t *testing.T) {
	users := newFakeUserRepo(
		&models.User{ID: 1, SyncStatus: models.SYNC_STATUS_SYNCED},
		&models.User{ID: 2, SyncStatus: models.SYNC_STATUS_SYNCED},
		&models.User{ID: 3, SyncStatus: models.SYNC_STATUS_PENDING},
		&models.User{ID: 4, SyncStatus: models.SYNC_STATUS_PENDING},
	)
	uid := uint(1)
	events := newFakeEventRepo(
		&models.SyncEvent{UserID: &uid, EventType: models.SYNC_EVENT_USER, Status: models.SYNC_EVENT_STATUS_COMPLETED, CreatedAt: time.Now()},
		&models.SyncEvent{UserID: &uid, EventType: models.SYNC_EVENT_USER, Status: models.SYNC_EVENT_STATUS_FAILED, CreatedAt: time.Now()},
	)
	svc := newTestService(&fakeQueue{}, users, events, newFakeWebhookRepo(), &fakeUsageRepo{})

	stats, err := svc.SyncStatistics(context.Background())
	require.NoError(t, err)

	userStats := stats["users"].(map[string]interface{})
	assert.Equal(t, int64(4), userStats["total"])
	assert.Equal(t, int64(2), userStats["synced"])
	assert.Equal(t, 50, userStats["sync_percentage"])

	eventStats := stats["sync_events"].(map[string]interface{})
	assert.Equal(t, int64(2), eventStats["total"])
	assert.Equal(t, 50, eventStats["success_rate"])
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, percentage(0, 0))
	assert.Equal(t, 0, percentage(5, 0))
	assert.Equal(t, 50, percentage(1, 2))
	assert.Equal(t, 33, percentage(1, 3))
	assert.Equal(t, 100, percentage(3, 3))
}

func TestService_SweeperHooks(t *testing.T) {
	events := newFakeEventRepo()
	svc := newTestService(&fakeQueue{}, newFakeUserRepo(), events, newFakeWebhookRepo(), &fakeUsageRepo{})

	require.NoError(t, svc.RunRetrySweep(context.Background()))
	require.NoError(t, svc.RunCleanup(context.Background()))
}

func TestService_SystemHealthDegradedWhenPartnerUnreachable(t *testing.T) {
	uid := uint(1)
	events := newFakeEventRepo(
		&models.SyncEvent{UserID: &uid, EventType: models.SYNC_EVENT_USER, Status: models.SYNC_EVENT_STATUS_FAILED, CreatedAt: time.Now().Add(-time.Hour)},
		&models.SyncEvent{UserID: &uid, EventType: models.SYNC_EVENT_USER, Status: models.SYNC_EVENT_STATUS_FAILED, CreatedAt: time.Now().Add(-48 * time.Hour)},
	)
	webhooks := newFakeWebhookRepo(
		&models.WebhookLog{Source: models.WEBHOOK_SOURCE_CREATORUP, EventType: "usage_update", Status: models.WEBHOOK_STATUS_FAILED, CreatedAt: time.Now().Add(-time.Hour)},
	)
	queue := &fakeQueue{stats: &jobqueue.Statistics{Waiting: 3, Total: 3}}
	svc := NewService(queue, queue, newTestRepos(newFakeUserRepo(), events, webhooks, &fakeUsageRepo{}), fakeHealthChecker{healthy: false}, nil)

	health := svc.SystemHealth(context.Background())

	assert.Equal(t, "degraded", health["overall_status"])

	partner := health["creatorup_api"].(map[string]interface{})
	assert.Equal(t, "unhealthy", partner["status"])
	assert.Equal(t, false, partner["reachable"])

	queueHealth := health["queue"].(map[string]interface{})
	assert.Equal(t, "healthy", queueHealth["status"])
	assert.Equal(t, queue.stats, queueHealth["stats"])

	rates := health["error_rates"].(map[string]interface{})
	assert.Equal(t, int64(1), rates["sync_errors_24h"], "failures older than a day are excluded")
	assert.Equal(t, int64(1), rates["webhook_errors_24h"])
}

func TestService_SystemHealthDegradedWhenQueueDown(t *testing.T) {
	queue := &fakeQueue{statsErr: errors.New("redis: connection refused")}
	svc := newTestService(queue, newFakeUserRepo(), newFakeEventRepo(), newFakeWebhookRepo(), &fakeUsageRepo{})

	health := svc.SystemHealth(context.Background())

	assert.Equal(t, "degraded", health["overall_status"])
	queueHealth := health["queue"].(map[string]interface{})
	assert.Equal(t, "unhealthy", queueHealth["status"])
	assert.Nil(t, queueHealth["stats"])
}

func TestResolveAnalyticsPeriod(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		period    string
		startDate string
		endDate   string
		wantDays  int
	}{
		{"default", "", "", "", 30},
		{"seven days", "7d", "", "", 7},
		{"thirty days", "30d", "", "", 30},
		{"ninety days", "90d", "", "", 90},
		{"unknown falls back", "1y", "", "", 30},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := ResolveAnalyticsPeriod(tc.period, tc.startDate, tc.endDate)
			wantStart := now.AddDate(0, 0, -tc.wantDays)
			assert.WithinDuration(t, wantStart, p.Start, time.Minute)
		})
	}

	t.Run("explicit date range wins", func(t *testing.T) {
		p := ResolveAnalyticsPeriod("7d", "2026-03-01", "2026-03-15")
		assert.Equal(t, "2026-03-01", p.Start.Format("2006-01-02"))
		assert.Equal(t, "2026-03-16", p.End.Format("2006-01-02"), "end date is inclusive")
	})
}
