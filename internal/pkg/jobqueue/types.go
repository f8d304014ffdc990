package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of sync job. The set is closed: every type has a
// strongly-typed payload struct below and a branch in the processor.
type JobType string

const (
	JobTypeUserSync         JobType = "user_sync"
	JobTypeUsageSync        JobType = "usage_sync"
	JobTypeSubscriptionSync JobType = "subscription_sync"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Queue priorities. Jobs at or above PriorityHigh jump to the front of the
// pending list when enqueued or promoted from the delayed bucket.
const (
	PriorityUserSync         = 10
	PrioritySubscriptionSync = 8
	PriorityUsageSync        = 5
	PriorityHigh             = 8
)

// Job represents one unit of sync work in the durable queue. The payload is a
// copy of the data that produced it, never a live reference.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Priority    int                    `json:"priority"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// UserSyncJobPayload carries a user profile push toward CreatorUp. The token
// is the caller's own access token (delegated-credential model).
type UserSyncJobPayload struct {
	DigiUpUserID    uint                   `json:"digiup_user_id"`
	CreatorUpUserID string                 `json:"creatorup_user_id"`
	DigiUpToken     string                 `json:"digiup_token"`
	Email           string                 `json:"email"`
	Name            string                 `json:"name"`
	Extra           map[string]interface{} `json:"extra,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p UserSyncJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"digiup_user_id":    p.DigiUpUserID,
		"creatorup_user_id": p.CreatorUpUserID,
		"digiup_token":      p.DigiUpToken,
		"email":             p.Email,
		"name":              p.Name,
	}
	if p.Extra != nil {
		m["extra"] = p.Extra
	}
	return m
}

// FromMap creates a payload from a map
func UserSyncJobPayloadFromMap(data map[string]interface{}) (*UserSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload UserSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// UsageSyncJobPayload carries one billable usage unit.
type UsageSyncJobPayload struct {
	DigiUpUserID    uint                   `json:"digiup_user_id"`
	CreatorUpUserID string                 `json:"creatorup_user_id,omitempty"`
	AppID           string                 `json:"app_id,omitempty"`
	BatchName       string                 `json:"batch_name"`
	BatchType       string                 `json:"batch_type,omitempty"`
	UsageType       string                 `json:"usage_type"`
	UsageAmount     int                    `json:"usage_amount,omitempty"`
	MonthYear       string                 `json:"month_year,omitempty"`
	CompletedAt     string                 `json:"completed_at,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p UsageSyncJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"digiup_user_id": p.DigiUpUserID,
		"batch_name":     p.BatchName,
		"usage_type":     p.UsageType,
	}
	if p.CreatorUpUserID != "" {
		m["creatorup_user_id"] = p.CreatorUpUserID
	}
	if p.AppID != "" {
		m["app_id"] = p.AppID
	}
	if p.BatchType != "" {
		m["batch_type"] = p.BatchType
	}
	if p.UsageAmount != 0 {
		m["usage_amount"] = p.UsageAmount
	}
	if p.MonthYear != "" {
		m["month_year"] = p.MonthYear
	}
	if p.CompletedAt != "" {
		m["completed_at"] = p.CompletedAt
	}
	if p.Metadata != nil {
		m["metadata"] = p.Metadata
	}
	return m
}

// FromMap creates a payload from a map
func UsageSyncJobPayloadFromMap(data map[string]interface{}) (*UsageSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload UsageSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// SubscriptionSyncJobPayload carries the latest subscription state of a user.
type SubscriptionSyncJobPayload struct {
	DigiUpUserID uint                   `json:"digiup_user_id"`
	AppID        string                 `json:"app_id,omitempty"`
	PlanName     string                 `json:"plan_name,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p SubscriptionSyncJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"digiup_user_id": p.DigiUpUserID,
	}
	if p.AppID != "" {
		m["app_id"] = p.AppID
	}
	if p.PlanName != "" {
		m["plan_name"] = p.PlanName
	}
	if p.Status != "" {
		m["status"] = p.Status
	}
	if p.Data != nil {
		m["data"] = p.Data
	}
	return m
}

// FromMap creates a payload from a map
func SubscriptionSyncJobPayloadFromMap(data map[string]interface{}) (*SubscriptionSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload SubscriptionSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
