package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType(t *testing.T) {
	tests := []struct {
		name     string
		jobType  JobType
		expected string
	}{
		{"User Sync", JobTypeUserSync, "user_sync"},
		{"Usage Sync", JobTypeUsageSync, "usage_sync"},
		{"Subscription Sync", JobTypeSubscriptionSync, "subscription_sync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.jobType))
		})
	}
}

func TestJobPriorities(t *testing.T) {
	// User sync outranks subscription sync, which outranks usage sync.
	assert.Greater(t, PriorityUserSync, PrioritySubscriptionSync)
	assert.Greater(t, PrioritySubscriptionSync, PriorityUsageSync)
	// Subscription syncs still qualify for front-of-queue placement.
	assert.GreaterOrEqual(t, PrioritySubscriptionSync, PriorityHigh)
	assert.Less(t, PriorityUsageSync, PriorityHigh)
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{
			name:      "failed job with retries remaining",
			job:       &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 3},
			retryable: true,
		},
		{
			name:      "failed job at retry ceiling",
			job:       &Job{Status: JobStatusFailed, RetryCount: 3, MaxRetries: 3},
			retryable: false,
		},
		{
			name:      "completed job",
			job:       &Job{Status: JobStatusCompleted, RetryCount: 0, MaxRetries: 3},
			retryable: false,
		},
		{
			name:      "pending job",
			job:       &Job{Status: JobStatusPending, RetryCount: 0, MaxRetries: 3},
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_MarkAsFailed(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, MaxRetries: DefaultMaxRetries}

	job.MarkAsFailed("partner unreachable")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "partner unreachable", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("partner unreachable")
	job.MarkAsFailed("partner unreachable")

	assert.Equal(t, 3, job.RetryCount)
	assert.False(t, job.IsRetryable())
}

func TestJob_MarkAsCompleted_ClearsError(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, ErrorMsg: "transient"}

	job.MarkAsCompleted()

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
}

func TestUserSyncJobPayloadRoundTrip(t *testing.T) {
	payload := UserSyncJobPayload{
		DigiUpUserID:    42,
		CreatorUpUserID: "cu-42",
		DigiUpToken:     "token-abc",
		Email:           "creator@example.com",
		Name:            "Creator",
	}

	got, err := UserSyncJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *got)
}

func TestUsageSyncJobPayload_ToMapOmitsEmptyFields(t *testing.T) {
	payload := UsageSyncJobPayload{
		DigiUpUserID: 7,
		BatchName:    "render-batch-1",
		UsageType:    "video_render",
	}

	m := payload.ToMap()

	assert.Contains(t, m, "digiup_user_id")
	assert.Contains(t, m, "batch_name")
	assert.Contains(t, m, "usage_type")
	assert.NotContains(t, m, "month_year")
	assert.NotContains(t, m, "completed_at")
	assert.NotContains(t, m, "metadata")
}
