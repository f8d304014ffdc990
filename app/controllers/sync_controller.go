package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/jobqueue"
	"github.com/digiup/backend/internal/pkg/usercontext"
)

type syncUserRequest struct {
	CreatorUpUserID string `json:"creatorup_user_id"`
}

type syncUsageRequest struct {
	UsageData map[string]interface{} `json:"usage_data"`
}

// HandleSyncUser links the account to a CreatorUp user and queues a profile
// push. The link fields are written synchronously so the caller sees them
// immediately; the partner push happens in the background worker.
func HandleSyncUser(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req syncUserRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.CreatorUpUserID == "" {
		return respondError(c, fiber.StatusBadRequest, "CreatorUp user ID is required")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	now := time.Now()
	user.CreatorUpUserID = &req.CreatorUpUserID
	user.CreatorUpSyncedAt = &now
	user.SyncStatus = models.SYNC_STATUS_SYNCED
	user.CreatorUpMetadata = mustMarshal(map[string]interface{}{
		"synced_at": now.Format(time.RFC3339),
		"source":    "digiup",
	})
	if err := repo.Update(user); err != nil {
		log.Errorf("[Sync] Failed to update sync fields for user %d: %v", user.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "Failed to update user")
	}

	err = syncService.EnqueueUserSync(jobqueue.UserSyncJobPayload{
		DigiUpUserID:    user.ID,
		CreatorUpUserID: req.CreatorUpUserID,
		DigiUpToken:     extractBearer(c),
		Email:           user.Email,
		Name:            user.Name,
	})
	if err != nil {
		log.Errorf("[Sync] Failed to enqueue user sync for %d: %v", user.ID, err)
		return respondError(c, fiber.StatusServiceUnavailable, "Sync queue unavailable")
	}

	return respondSuccess(c, fiber.StatusOK, "User synced successfully", fiber.Map{
		"user_id":           user.ID,
		"creatorup_user_id": user.CreatorUpUserID,
		"synced_at":         user.CreatorUpSyncedAt,
	})
}

// HandleSyncUsage records a usage ledger row reported by the client and logs
// an already-completed sync event for it.
func HandleSyncUsage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req syncUsageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	data := req.UsageData
	batchName, _ := data["batch_name"].(string)
	usageType, _ := data["usage_type"].(string)
	if batchName == "" || usageType == "" {
		return respondError(c, fiber.StatusBadRequest, "Invalid usage data provided")
	}

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	creatorupUserID := ""
	if user.CreatorUpUserID != nil {
		creatorupUserID = *user.CreatorUpUserID
	}
	if creatorupUserID == "" {
		creatorupUserID = strconv.FormatUint(uint64(user.ID), 10)
	}

	record := &models.CreatorUpUsage{
		UserID:          user.ID,
		CreatorUpUserID: creatorupUserID,
		BatchName:       batchName,
		BatchType:       stringField(data, "batch_type", "video"),
		UsageType:       usageType,
		UsageAmount:     intField(data, "usage_amount", 1),
		MonthYear:       stringField(data, "month_year", models.CurrentMonthYear()),
		CompletedAt:     timeField(data, "completed_at"),
		Metadata:        marshalField(data, "metadata"),
	}
	if err := repos.Usage.CreateUsage(record); err != nil {
		log.Errorf("[Sync] Failed to create usage record for user %d: %v", user.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "Failed to record usage")
	}

	// Push the usage toward the partner in the background. The local ledger
	// row is already committed, so a queue outage only delays the push.
	err = syncService.EnqueueUsageSync(jobqueue.UsageSyncJobPayload{
		DigiUpUserID:    user.ID,
		CreatorUpUserID: creatorupUserID,
		BatchName:       batchName,
		BatchType:       record.BatchType,
		UsageType:       usageType,
		UsageAmount:     record.UsageAmount,
		MonthYear:       record.MonthYear,
	})
	if err != nil {
		log.Warnf("[Sync] Failed to enqueue usage push for user %d: %v", user.ID, err)
	}

	userID := user.ID
	event := &models.SyncEvent{
		EventType: models.SYNC_EVENT_USAGE,
		UserID:    &userID,
		Status:    models.SYNC_EVENT_STATUS_COMPLETED,
		Payload:   mustMarshal(data),
		Response:  mustMarshal(map[string]interface{}{"usage_record_id": record.ID}),
	}
	if err := repos.SyncEvent.Create(event); err != nil {
		log.Warnf("[Sync] Failed to log usage sync event for user %d: %v", user.ID, err)
	}

	return respondSuccess(c, fiber.StatusOK, "Usage synced successfully", fiber.Map{
		"usage_record_id": record.ID,
		"synced_at":       record.SyncedAt,
	})
}

// HandleSyncStatus returns the user's sync link state and recent events.
// Read-only; calling it repeatedly changes nothing.
func HandleSyncStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fiber.StatusNotFound, "User not found")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	events, err := repos.SyncEvent.GetRecentByUser(user.ID, 10)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to load sync events")
	}

	return respondSuccess(c, fiber.StatusOK, "", fiber.Map{
		"user": fiber.Map{
			"id":                    user.ID,
			"creatorup_user_id":     user.CreatorUpUserID,
			"creatorup_synced_at":   user.CreatorUpSyncedAt,
			"sync_status":           user.SyncStatus,
			"last_creatorup_access": user.LastCreatorUpAccess,
			"creatorup_metadata":    user.CreatorUpMetadata,
		},
		"recent_events": events,
	})
}

func mustMarshal(v interface{}) string {
	blob, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(blob)
}

func stringField(data map[string]interface{}, key, fallback string) string {
	if s, ok := data[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func intField(data map[string]interface{}, key string, fallback int) int {
	if n, ok := data[key].(float64); ok && n > 0 {
		return int(n)
	}
	return fallback
}

func timeField(data map[string]interface{}, key string) time.Time {
	if s, ok := data[key].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Now()
}

func marshalField(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	return mustMarshal(v)
}
