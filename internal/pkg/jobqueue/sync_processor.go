package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/creatorup"
)

// PartnerClient is the slice of the CreatorUp client the worker needs.
type PartnerClient interface {
	PushUserProfile(ctx context.Context, userData map[string]interface{}, digiupToken string) (map[string]interface{}, error)
}

// SyncProcessor executes the three sync job kinds against the record store
// and the partner platform.
type SyncProcessor struct {
	users  repository.UserRepository
	events repository.SyncEventRepository
	usage  repository.UsageRepository
	client PartnerClient
}

// NewSyncProcessor wires the worker-side dependencies explicitly.
func NewSyncProcessor(users repository.UserRepository, events repository.SyncEventRepository, usage repository.UsageRepository, client PartnerClient) *SyncProcessor {
	return &SyncProcessor{
		users:  users,
		events: events,
		usage:  usage,
		client: client,
	}
}

// Process dispatches one job. The JobType set is closed; the default branch
// only fires on corrupted job records and is retried like any other failure.
func (p *SyncProcessor) Process(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeUserSync:
		return p.processUserSync(ctx, job)
	case JobTypeUsageSync:
		return p.processUsageSync(ctx, job)
	case JobTypeSubscriptionSync:
		return p.processSubscriptionSync(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processUserSync pushes a user profile to CreatorUp and records the outcome
// on both the user row and a SyncEvent. The find-or-create check is a weak
// idempotency guard: racing workers for the same user can each create an
// event and each call the partner.
func (p *SyncProcessor) processUserSync(ctx context.Context, job *Job) error {
	payload, err := UserSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid user sync payload: %w", err)
	}

	event, err := p.events.FindActiveByTypeAndUser(models.SYNC_EVENT_USER, payload.DigiUpUserID)
	if err != nil {
		userID := payload.DigiUpUserID
		event = &models.SyncEvent{
			EventType: models.SYNC_EVENT_USER,
			UserID:    &userID,
			Status:    models.SYNC_EVENT_STATUS_PROCESSING,
			Payload:   mustJSON(job.Payload),
		}
		if err := p.events.Create(event); err != nil {
			return fmt.Errorf("failed to create sync event: %w", err)
		}
	}

	event.Status = models.SYNC_EVENT_STATUS_PROCESSING
	if err := p.events.Update(event); err != nil {
		return fmt.Errorf("failed to mark sync event processing: %w", err)
	}

	result, err := p.client.PushUserProfile(ctx, job.Payload, payload.DigiUpToken)
	if err != nil {
		response := ""
		if apiErr, ok := err.(*creatorup.APIError); ok {
			response = apiErr.Body
		}
		if _, ferr := p.events.FailProcessing(models.SYNC_EVENT_USER, payload.DigiUpUserID, err.Error(), response); ferr != nil {
			log.Errorf("[SyncProcessor] Failed to mark events failed for user %d: %v", payload.DigiUpUserID, ferr)
		}
		return err
	}

	user, err := p.users.GetByID(payload.DigiUpUserID)
	if err != nil {
		return fmt.Errorf("user %d not found after sync: %w", payload.DigiUpUserID, err)
	}

	metadata := mustJSON(map[string]interface{}{
		"last_sync_response": result,
		"sync_timestamp":     time.Now().Format(time.RFC3339),
		"job_id":             job.ID,
	})
	user.MarkSynced(metadata)
	if payload.CreatorUpUserID != "" {
		cuID := payload.CreatorUpUserID
		user.CreatorUpUserID = &cuID
	}
	if err := p.users.Update(user); err != nil {
		return fmt.Errorf("failed to update user sync state: %w", err)
	}

	now := time.Now()
	event.Status = models.SYNC_EVENT_STATUS_COMPLETED
	event.Response = mustJSON(result)
	event.ProcessedAt = &now
	if err := p.events.Update(event); err != nil {
		return fmt.Errorf("failed to complete sync event: %w", err)
	}

	log.Infof("[SyncProcessor] User sync completed for user %d", payload.DigiUpUserID)
	return nil
}

// processUsageSync appends a usage ledger entry plus the legacy batch usage
// row. This path is NOT idempotent: redelivery of the same job creates a
// duplicate ledger row.
func (p *SyncProcessor) processUsageSync(ctx context.Context, job *Job) error {
	payload, err := UsageSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid usage sync payload: %w", err)
	}

	creatorUpUserID := payload.CreatorUpUserID
	if creatorUpUserID == "" {
		creatorUpUserID = fmt.Sprintf("%d", payload.DigiUpUserID)
	}
	batchType := payload.BatchType
	if batchType == "" {
		batchType = "video"
	}
	amount := payload.UsageAmount
	if amount == 0 {
		amount = 1
	}
	monthYear := payload.MonthYear
	if monthYear == "" {
		monthYear = models.CurrentMonthYear()
	}
	completedAt := time.Now()
	if payload.CompletedAt != "" {
		if t, perr := time.Parse(time.RFC3339, payload.CompletedAt); perr == nil {
			completedAt = t
		}
	}

	metadata := map[string]interface{}{
		"job_id":       job.ID,
		"processed_at": time.Now().Format(time.RFC3339),
	}
	for k, v := range payload.Metadata {
		metadata[k] = v
	}

	usage := &models.CreatorUpUsage{
		UserID:          payload.DigiUpUserID,
		CreatorUpUserID: creatorUpUserID,
		BatchName:       payload.BatchName,
		BatchType:       batchType,
		UsageType:       payload.UsageType,
		UsageAmount:     amount,
		MonthYear:       monthYear,
		CompletedAt:     completedAt,
		Metadata:        mustJSON(metadata),
	}
	if err := p.usage.CreateUsage(usage); err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}

	appID := payload.AppID
	if appID == "" {
		appID = "creatorup-app-id"
	}
	batchUsage := &models.BatchUsage{
		UserID:      payload.DigiUpUserID,
		AppID:       appID,
		BatchName:   payload.BatchName,
		BatchType:   batchType,
		UsageType:   payload.UsageType,
		UsageAmount: amount,
		MonthYear:   monthYear,
		CompletedAt: completedAt,
		Metadata:    mustJSON(metadata),
	}
	if err := p.usage.CreateBatchUsage(batchUsage); err != nil {
		return fmt.Errorf("failed to create batch usage record: %w", err)
	}

	log.Infof("[SyncProcessor] Usage sync completed for user %d", payload.DigiUpUserID)
	return nil
}

// processSubscriptionSync overwrites the user's partner metadata with the
// latest subscription payload. Last write wins; no merge with prior contents.
func (p *SyncProcessor) processSubscriptionSync(ctx context.Context, job *Job) error {
	payload, err := SubscriptionSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid subscription sync payload: %w", err)
	}

	user, err := p.users.GetByID(payload.DigiUpUserID)
	if err != nil {
		return fmt.Errorf("user %d not found for subscription sync: %w", payload.DigiUpUserID, err)
	}

	user.CreatorUpMetadata = mustJSON(map[string]interface{}{
		"subscription_data":        job.Payload,
		"last_subscription_update": time.Now().Format(time.RFC3339),
		"job_id":                   job.ID,
	})
	if err := p.users.Update(user); err != nil {
		return fmt.Errorf("failed to update subscription metadata: %w", err)
	}

	log.Infof("[SyncProcessor] Subscription sync completed for user %d", payload.DigiUpUserID)
	return nil
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
